package handlers

import (
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/ctxutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

// requestData returns the authenticated request data; RequireAuth guarantees
// presence on protected routes.
func requestData(c *gin.Context) *ctxutil.RequestData {
	return ctxutil.GetRequestData(c.Request.Context())
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func readUpload(fh *multipart.FileHeader) (services.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return services.UploadFile{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return services.UploadFile{}, err
	}
	return services.UploadFile{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
