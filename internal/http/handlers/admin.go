package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

// AdminHandler groups the operator-only surfaces: the job failure log,
// camera registration, and the false-alarm review list.
type AdminHandler struct {
	jobRuns           repos.JobRunRepo
	deviceService     services.DeviceService
	falseAlarmService services.FalseAlarmService
}

func NewAdminHandler(jobRuns repos.JobRunRepo, deviceService services.DeviceService, falseAlarmService services.FalseAlarmService) *AdminHandler {
	return &AdminHandler{
		jobRuns:           jobRuns,
		deviceService:     deviceService,
		falseAlarmService: falseAlarmService,
	}
}

// JobFailures lists jobs that exhausted their retries, newest first.
func (ah *AdminHandler) JobFailures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		}
	}
	failed, err := ah.jobRuns.ListFailed(c.Request.Context(), nil, since, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", failed)
}

func (ah *AdminHandler) RegisterDevice(c *gin.Context) {
	var req struct {
		Identifier string  `json:"identifier"`
		Name       string  `json:"name"`
		Purok      string  `json:"purok"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	device, err := ah.deviceService.Register(c.Request.Context(), services.RegisterDeviceInput{
		Identifier: req.Identifier,
		Name:       req.Name,
		Purok:      req.Purok,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	// The api_key in this response is the only time the key is visible.
	response.Created(c, "Device registered.", device)
}

func (ah *AdminHandler) ListDevices(c *gin.Context) {
	devices, err := ah.deviceService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", devices)
}

func (ah *AdminHandler) SetDeviceActive(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid device id.")
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	if err := ah.deviceService.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Device updated.", nil)
}

func (ah *AdminHandler) ListFalseAlarms(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		}
	}
	alarms, err := ah.falseAlarmService.List(c.Request.Context(), since, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", alarms)
}
