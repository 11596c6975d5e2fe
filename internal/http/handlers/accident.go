package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

type AccidentHandler struct {
	accidentService services.AccidentService
	heatmapService  services.HeatmapService
}

func NewAccidentHandler(accidentService services.AccidentService, heatmapService services.HeatmapService) *AccidentHandler {
	return &AccidentHandler{accidentService: accidentService, heatmapService: heatmapService}
}

func (ah *AccidentHandler) List(c *gin.Context) {
	accidents, err := ah.accidentService.List(c.Request.Context(), accidentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", accidents)
}

func (ah *AccidentHandler) ListActive(c *gin.Context) {
	accidents, err := ah.accidentService.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", accidents)
}

func (ah *AccidentHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid accident id.")
		return
	}
	accident, err := ah.accidentService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", accident)
}

func (ah *AccidentHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid accident id.")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	accident, err := ah.accidentService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Accident status updated.", accident)
}

// Heatmap aggregates accidents since ?days=N (default 30) into geo cells.
func (ah *AccidentHandler) Heatmap(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		response.BadRequest(c, "Invalid days parameter.")
		return
	}
	cells, err := ah.heatmapService.Cells(c.Request.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", cells)
}

func (ah *AccidentHandler) Markers(c *gin.Context) {
	markers, err := ah.heatmapService.Markers(c.Request.Context(), accidentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", markers)
}

func accidentFilterFromQuery(c *gin.Context) repos.AccidentFilter {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	filter := repos.AccidentFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Severity: c.Query("severity"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = t
		}
	}
	if raw := c.Query("until"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Until = t
		}
	}
	return filter
}
