package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

type DistributionHandler struct {
	distributionService services.DistributionService
}

func NewDistributionHandler(distributionService services.DistributionService) *DistributionHandler {
	return &DistributionHandler{distributionService: distributionService}
}

// Assign hands a concern to an official. Omitting official_id picks the
// reporter's purok leader.
func (dh *DistributionHandler) Assign(c *gin.Context) {
	concernID, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid concern id.")
		return
	}
	var req struct {
		OfficialID *uuid.UUID `json:"official_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	dist, err := dh.distributionService.Assign(c.Request.Context(), concernID, req.OfficialID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Concern assigned.", dist)
}

func (dh *DistributionHandler) Advance(c *gin.Context) {
	distID, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid assignment id.")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	rd := requestData(c)
	actor := &types.User{ID: rd.UserID, Role: rd.Role}
	dist, err := dh.distributionService.Advance(c.Request.Context(), actor, distID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Assignment updated.", dist)
}

// ListMine lists the authenticated official's assignments; ?active=true
// filters out resolved ones.
func (dh *DistributionHandler) ListMine(c *gin.Context) {
	rd := requestData(c)
	activeOnly := c.Query("active") == "true"
	dists, err := dh.distributionService.ListByOfficial(c.Request.Context(), rd.UserID, activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", dists)
}

func (dh *DistributionHandler) ListByConcern(c *gin.Context) {
	concernID, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid concern id.")
		return
	}
	dists, err := dh.distributionService.ListByConcern(c.Request.Context(), concernID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", dists)
}
