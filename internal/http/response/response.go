package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
)

// Envelope is the uniform success shape: {success, message, data}.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorEnvelope is the uniform failure shape: {success:false, message, errors?}.
type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Error translates any error into the envelope via apierr. Unknown errors
// become opaque 500s so internals never leak to clients.
func Error(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		return
	}

	env := ErrorEnvelope{Success: false, Message: ae.Error()}
	switch ae.Code {
	case "validation":
		env.Message = "Validation failed."
		if ae.Err != nil {
			env.Errors = []string{ae.Err.Error()}
		}
	case "internal", "upstream":
		env.Message = "Something went wrong. Please try again later."
	}
	c.AbortWithStatusJSON(ae.Status, env)
}

// BadRequest reports a malformed request body or parameter.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope{Success: false, Message: message})
}
