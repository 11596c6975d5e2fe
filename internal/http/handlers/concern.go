package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

type ConcernHandler struct {
	concernService services.ConcernService
	maxUploadBytes int64
}

func NewConcernHandler(concernService services.ConcernService, maxUploadBytes int64) *ConcernHandler {
	return &ConcernHandler{concernService: concernService, maxUploadBytes: maxUploadBytes}
}

// Create accepts a multipart form: type, title, description, latitude,
// longitude plus any number of "files" attachments.
func (ch *ConcernHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ch.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "Invalid or oversized multipart form.")
		return
	}

	lat, _ := strconv.ParseFloat(c.PostForm("latitude"), 64)
	lng, _ := strconv.ParseFloat(c.PostForm("longitude"), 64)

	in := services.CreateConcernInput{
		Type:        c.PostForm("type"),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Latitude:    lat,
		Longitude:   lng,
	}
	for _, fh := range form.File["files"] {
		upload, err := readUpload(fh)
		if err != nil {
			response.BadRequest(c, "Could not read uploaded file.")
			return
		}
		in.Files = append(in.Files, upload)
	}

	rd := requestData(c)
	concern, err := ch.concernService.Create(c.Request.Context(), rd.UserID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Concern submitted.", concern)
}

func (ch *ConcernHandler) ListMine(c *gin.Context) {
	rd := requestData(c)
	concerns, err := ch.concernService.ListMine(c.Request.Context(), rd.UserID, concernFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", concerns)
}

func (ch *ConcernHandler) ListAll(c *gin.Context) {
	concerns, err := ch.concernService.ListAll(c.Request.Context(), concernFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", concerns)
}

func (ch *ConcernHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid concern id.")
		return
	}
	rd := requestData(c)
	requester := &types.User{ID: rd.UserID, Role: rd.Role}
	concern, err := ch.concernService.Get(c.Request.Context(), requester, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", concern)
}

func (ch *ConcernHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid concern id.")
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	rd := requestData(c)
	concern, err := ch.concernService.Update(c.Request.Context(), rd.UserID, id, req.Title, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Concern updated.", concern)
}

func (ch *ConcernHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid concern id.")
		return
	}
	rd := requestData(c)
	if err := ch.concernService.Delete(c.Request.Context(), rd.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Concern deleted.", nil)
}

func (ch *ConcernHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid concern id.")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	concern, err := ch.concernService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Concern status updated.", concern)
}

func concernFilterFromQuery(c *gin.Context) repos.ConcernFilter {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return repos.ConcernFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Type:     c.Query("type"),
		Limit:    limit,
		Offset:   offset,
	}
}
