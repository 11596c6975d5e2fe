package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
)

func HealthCheck(c *gin.Context) {
	response.OK(c, "ok", nil)
}
