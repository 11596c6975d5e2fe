package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

type SuspensionHandler struct {
	suspensionService services.SuspensionService
}

func NewSuspensionHandler(suspensionService services.SuspensionService) *SuspensionHandler {
	return &SuspensionHandler{suspensionService: suspensionService}
}

func (sh *SuspensionHandler) Punish(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid user id.")
		return
	}
	var req struct {
		Type      string `json:"type"`
		Reason    string `json:"reason"`
		Days      int    `json:"days"`
		Permanent bool   `json:"permanent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	rd := requestData(c)
	suspension, err := sh.suspensionService.Punish(c.Request.Context(), rd.UserID, userID, services.PunishInput{
		Type:      req.Type,
		Reason:    req.Reason,
		Days:      req.Days,
		Permanent: req.Permanent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Punishment issued.", suspension)
}

func (sh *SuspensionHandler) ListByUser(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid user id.")
		return
	}
	suspensions, err := sh.suspensionService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", suspensions)
}

// Available reports which punishments the ladder currently allows for a user.
func (sh *SuspensionHandler) Available(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid user id.")
		return
	}
	available, err := sh.suspensionService.AvailablePunishments(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"available": available})
}

func (sh *SuspensionHandler) Lift(c *gin.Context) {
	suspensionID, ok := uuidParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid suspension id.")
		return
	}
	if err := sh.suspensionService.Lift(c.Request.Context(), suspensionID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Suspension lifted.", nil)
}
