package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/handlers"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/middleware"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/envutil"
)

type RouterConfig struct {
	Mode string

	AuthMiddleware *middleware.AuthMiddleware

	AuthHandler         *handlers.AuthHandler
	UserHandler         *handlers.UserHandler
	ConcernHandler      *handlers.ConcernHandler
	DetectionHandler    *handlers.DetectionHandler
	AccidentHandler     *handlers.AccidentHandler
	DistributionHandler *handlers.DistributionHandler
	SuspensionHandler   *handlers.SuspensionHandler
	AdminHandler        *handlers.AdminHandler
	SSEHandler          *handlers.SSEHandler

	// LocalMediaRoot, when set, serves fallback-stored media from /media.
	LocalMediaRoot string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware("urbanwatch-backend"))

	allowOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if raw := envutil.String("CORS_ALLOW_ORIGINS", ""); raw != "" {
		allowOrigins = strings.Split(raw, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Device-Identifier", "X-Device-Key"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.LocalMediaRoot != "" {
		router.Static("/media", cfg.LocalMediaRoot)
	}

	api := router.Group("/api")

	// Public
	api.POST("/register", cfg.AuthHandler.Register)
	api.POST("/login", cfg.AuthHandler.Login)
	api.POST("/refresh", cfg.AuthHandler.Refresh)

	// Device-authenticated camera intake; device credentials travel in
	// headers, not bearer tokens.
	api.POST("/detections", cfg.DetectionHandler.Ingest)

	// Authenticated
	auth := api.Group("")
	auth.Use(cfg.AuthMiddleware.RequireAuth())

	auth.POST("/logout", cfg.AuthHandler.Logout)
	auth.POST("/otp/send", cfg.AuthHandler.SendOTP)
	auth.POST("/otp/verify", cfg.AuthHandler.VerifyOTP)
	auth.POST("/verify-id", cfg.AuthHandler.VerifyID)

	auth.GET("/user", cfg.UserHandler.GetMe)
	auth.PUT("/user", cfg.UserHandler.UpdateProfile)
	auth.PUT("/user/avatar/color", cfg.UserHandler.UpdateAvatarColor)
	auth.POST("/user/avatar", cfg.UserHandler.UploadAvatar)

	auth.POST("/concerns", cfg.ConcernHandler.Create)
	auth.GET("/concerns", cfg.ConcernHandler.ListMine)
	auth.GET("/concerns/:id", cfg.ConcernHandler.Get)
	auth.PUT("/concerns/:id", cfg.ConcernHandler.Update)
	auth.DELETE("/concerns/:id", cfg.ConcernHandler.Delete)

	auth.GET("/accidents", cfg.AccidentHandler.List)
	auth.GET("/accidents/active", cfg.AccidentHandler.ListActive)
	auth.GET("/accidents/heatmap", cfg.AccidentHandler.Heatmap)
	auth.GET("/accidents/markers", cfg.AccidentHandler.Markers)
	auth.GET("/accidents/:id", cfg.AccidentHandler.Get)

	auth.GET("/sse/stream", cfg.SSEHandler.Stream)
	auth.POST("/sse/subscribe", cfg.SSEHandler.Subscribe)
	auth.POST("/sse/unsubscribe", cfg.SSEHandler.Unsubscribe)

	// Officials (purok leaders and operators)
	officials := auth.Group("")
	officials.Use(cfg.AuthMiddleware.RequireRoles(types.RolePurokLeader, types.RoleOperator))
	officials.GET("/assignments", cfg.DistributionHandler.ListMine)
	officials.PUT("/assignments/:id", cfg.DistributionHandler.Advance)

	// Operators only
	ops := auth.Group("")
	ops.Use(cfg.AuthMiddleware.RequireRoles(types.RoleOperator))
	ops.GET("/admin/concerns", cfg.ConcernHandler.ListAll)
	ops.PUT("/concerns/:id/status", cfg.ConcernHandler.UpdateStatus)
	ops.PUT("/accidents/:id/status", cfg.AccidentHandler.UpdateStatus)
	ops.POST("/concerns/:id/assign", cfg.DistributionHandler.Assign)
	ops.GET("/concerns/:id/assignments", cfg.DistributionHandler.ListByConcern)
	ops.POST("/users/:id/punish", cfg.SuspensionHandler.Punish)
	ops.GET("/users/:id/suspensions", cfg.SuspensionHandler.ListByUser)
	ops.GET("/users/:id/punishments/available", cfg.SuspensionHandler.Available)
	ops.POST("/suspensions/:id/lift", cfg.SuspensionHandler.Lift)
	ops.GET("/admin/job-failures", cfg.AdminHandler.JobFailures)
	ops.GET("/admin/false-alarms", cfg.AdminHandler.ListFalseAlarms)
	ops.POST("/admin/devices", cfg.AdminHandler.RegisterDevice)
	ops.GET("/admin/devices", cfg.AdminHandler.ListDevices)
	ops.PUT("/admin/devices/:id/active", cfg.AdminHandler.SetDeviceActive)

	return router
}
