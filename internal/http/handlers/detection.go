package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

// DetectionHandler is the camera-facing intake endpoint. Devices authenticate
// with identifier + API key headers, not user tokens.
type DetectionHandler struct {
	verificationService services.VerificationService
	maxUploadBytes      int64
}

func NewDetectionHandler(verificationService services.VerificationService, maxUploadBytes int64) *DetectionHandler {
	return &DetectionHandler{verificationService: verificationService, maxUploadBytes: maxUploadBytes}
}

func (dh *DetectionHandler) Ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, dh.maxUploadBytes)

	fh, err := c.FormFile("snapshot")
	if err != nil {
		response.BadRequest(c, "snapshot file is required.")
		return
	}
	upload, err := readUpload(fh)
	if err != nil {
		response.BadRequest(c, "Could not read snapshot.")
		return
	}

	confidence, _ := strconv.ParseFloat(c.PostForm("confidence"), 64)
	var capturedAt time.Time
	if raw := c.PostForm("captured_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			capturedAt = t
		}
	}

	var objects []string
	for _, o := range strings.Split(c.PostForm("detected_objects"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			objects = append(objects, o)
		}
	}

	outcome, err := dh.verificationService.HandleDetection(c.Request.Context(), services.DetectionInput{
		DeviceIdentifier: c.GetHeader("X-Device-Identifier"),
		DeviceAPIKey:     c.GetHeader("X-Device-Key"),
		Snapshot:         upload.Data,
		SnapshotMime:     upload.MimeType,
		DetectedObjects:  objects,
		YOLOConfidence:   confidence,
		CapturedAt:       capturedAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if outcome.Accepted {
		response.Created(c, "Detection verified; accident recorded.", outcome)
		return
	}
	response.OK(c, "Detection rejected; false alarm recorded.", outcome)
}
