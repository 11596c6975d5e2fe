package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	rd := requestData(c)
	user, err := uh.userService.Get(c.Request.Context(), rd.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", user)
}

func (uh *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Purok     string `json:"purok"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	rd := requestData(c)
	user, err := uh.userService.UpdateProfile(c.Request.Context(), rd.UserID, services.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Purok:     req.Purok,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Profile updated.", user)
}

func (uh *UserHandler) UpdateAvatarColor(c *gin.Context) {
	var req struct {
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	rd := requestData(c)
	user, err := uh.userService.UpdateAvatarColor(c.Request.Context(), rd.UserID, req.Color)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Avatar color updated.", user)
}

func (uh *UserHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		response.BadRequest(c, "avatar file is required.")
		return
	}
	upload, err := readUpload(fh)
	if err != nil {
		response.BadRequest(c, "Could not read uploaded file.")
		return
	}
	rd := requestData(c)
	user, err := uh.userService.UploadAvatarImage(c.Request.Context(), rd.UserID, upload.Data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Avatar updated.", user)
}
