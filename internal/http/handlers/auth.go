package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Purok     string `json:"purok"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	user, pair, err := ah.authService.Register(c.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Purok:     req.Purok,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Account created.", gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    int(ah.authService.AccessTTL().Seconds()),
	})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	user, pair, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Logged in.", gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    int(ah.authService.AccessTTL().Seconds()),
	})
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	pair, err := ah.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Token refreshed.", gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    int(ah.authService.AccessTTL().Seconds()),
	})
}

func (ah *AuthHandler) Logout(c *gin.Context) {
	if err := ah.authService.Logout(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Logged out.", nil)
}

func (ah *AuthHandler) SendOTP(c *gin.Context) {
	rd := requestData(c)
	if err := ah.authService.SendPhoneOTP(c.Request.Context(), rd.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Verification code sent.", nil)
}

func (ah *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	rd := requestData(c)
	if err := ah.authService.VerifyPhoneOTP(c.Request.Context(), rd.UserID, req.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Phone number verified.", nil)
}

// VerifyID accepts a multipart "id_image" photo of a government ID.
func (ah *AuthHandler) VerifyID(c *gin.Context) {
	fh, err := c.FormFile("id_image")
	if err != nil {
		response.BadRequest(c, "id_image file is required.")
		return
	}
	upload, err := readUpload(fh)
	if err != nil {
		response.BadRequest(c, "Could not read uploaded file.")
		return
	}
	rd := requestData(c)
	if err := ah.authService.VerifyID(c.Request.Context(), rd.UserID, upload.Data, upload.MimeType); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Identity verified.", nil)
}
