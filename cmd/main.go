package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gemini"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/twilio"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/db"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/handlers"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/middleware"
	"github.com/urbanwatch/urbanwatch-backend/internal/jobs"
	"github.com/urbanwatch/urbanwatch-backend/internal/observability"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/config"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/envutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/localmedia"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime/bus"
	"github.com/urbanwatch/urbanwatch-backend/internal/server"
	"github.com/urbanwatch/urbanwatch-backend/internal/services"
	"github.com/urbanwatch/urbanwatch-backend/internal/temporalx"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "urbanwatch-backend",
		Environment: cfg.Server.Mode,
	})
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			log.Warn("OTel shutdown failed", "error", err)
		}
	}()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	thePG := postgresService.DB()
	if err := db.AutoMigrateAll(thePG); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	if err := db.EnsureIncidentIndexes(thePG); err != nil {
		log.Fatal("Postgres index setup failed", "error", err)
	}

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	userOTPRepo := repos.NewUserOTPRepo(thePG, log)
	userSuspensionRepo := repos.NewUserSuspensionRepo(thePG, log)
	accidentRepo := repos.NewAccidentRepo(thePG, log)
	concernRepo := repos.NewConcernRepo(thePG, log)
	incidentMediaRepo := repos.NewIncidentMediaRepo(thePG, log)
	falseAlarmRepo := repos.NewFalseAlarmRepo(thePG, log)
	deviceRepo := repos.NewDeviceRepo(thePG, log)
	distributionRepo := repos.NewDistributionRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	// Clients
	log.Info("Setting up clients...")
	verifier, err := gemini.New(log)
	if err != nil {
		log.Fatal("Could not init Gemini verifier", "error", err)
	}
	defer verifier.Close()

	var bucketService gcp.BucketService
	if !cfg.Media.UseLocalStore {
		bucketService, err = gcp.NewBucketService(log)
		if err != nil {
			log.Warn("Could not init BucketService; using local media store", "error", err)
			bucketService = nil
		}
	}
	localStore, err := localmedia.NewStore(log)
	if err != nil {
		log.Warn("Could not init local media store", "error", err)
		localStore = nil
	}
	var fallback gcp.BucketService
	localMediaRoot := ""
	if localStore != nil {
		fallback = localStore
		localMediaRoot = localStore.Root()
	}
	mediaService, err := services.NewMediaService(log, bucketService, fallback)
	if err != nil {
		log.Fatal("No media storage backend available", "error", err)
	}

	visionClient, err := gcp.NewVision(log)
	if err != nil {
		log.Warn("Could not init Vision client; ID verification disabled", "error", err)
		visionClient = nil
	}
	smsClient, err := twilio.NewFromEnv(log)
	if err != nil {
		log.Warn("Could not init Twilio client; SMS disabled", "error", err)
		smsClient = nil
	}

	// Realtime
	log.Info("Setting up realtime fanout...")
	sseHub := realtime.NewSSEHub(log)
	sseBus, err := bus.NewSSEBus(log)
	if err != nil {
		log.Warn("Could not init Redis SSE bus; realtime limited to this node", "error", err)
		sseBus = nil
	}
	if sseBus != nil {
		if err := sseBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
			log.Warn("Could not start SSE forwarder", "error", err)
		}
		defer sseBus.Close()
	}
	broadcaster := services.NewBroadcaster(log, sseBus, sseHub)

	// Temporal
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Warn("Could not connect to Temporal; jobs queue without scheduling", "error", err)
		temporalClient = nil
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}
	enqueuer := jobs.NewEnqueuer(log, jobRunRepo, temporalClient)

	// Services
	log.Info("Setting up services...")
	storageForAvatars := bucketService
	if storageForAvatars == nil {
		storageForAvatars = fallback
	}
	avatarService, err := services.NewAvatarService(log, userRepo, storageForAvatars)
	if err != nil {
		log.Warn("Could not init AvatarService; generated avatars disabled", "error", err)
		avatarService = nil
	}
	authService, err := services.NewAuthService(
		thePG, log, cfg,
		userRepo, userTokenRepo, userOTPRepo,
		avatarService, visionClient, smsClient,
		envutil.String("JWT_SECRET_KEY", ""),
	)
	if err != nil {
		log.Fatal("Could not init AuthService", "error", err)
	}
	userService := services.NewUserService(thePG, log, userRepo, avatarService)
	suspensionService := services.NewSuspensionService(thePG, log, userSuspensionRepo, userRepo)
	falseAlarmService := services.NewFalseAlarmService(log, falseAlarmRepo, broadcaster)
	concernService := services.NewConcernService(
		thePG, log,
		concernRepo, incidentMediaRepo, userRepo,
		suspensionService, mediaService, enqueuer, broadcaster,
	)
	verificationService := services.NewVerificationService(
		thePG, log, cfg, verifier,
		deviceRepo, accidentRepo, incidentMediaRepo, userRepo,
		falseAlarmService, mediaService, enqueuer, broadcaster,
	)
	accidentService := services.NewAccidentService(log, accidentRepo, incidentMediaRepo, broadcaster)
	heatmapService := services.NewHeatmapService(log, accidentRepo)
	distributionService := services.NewDistributionService(
		thePG, log,
		distributionRepo, concernRepo, userRepo,
		enqueuer, broadcaster,
	)
	deviceService := services.NewDeviceService(log, deviceRepo)

	// Router
	log.Info("Setting up router...")
	router := server.NewRouter(server.RouterConfig{
		Mode:                cfg.Server.Mode,
		AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
		AuthHandler:         handlers.NewAuthHandler(authService),
		UserHandler:         handlers.NewUserHandler(userService),
		ConcernHandler:      handlers.NewConcernHandler(concernService, cfg.Media.MaxUploadBytes),
		DetectionHandler:    handlers.NewDetectionHandler(verificationService, cfg.Media.MaxUploadBytes),
		AccidentHandler:     handlers.NewAccidentHandler(accidentService, heatmapService),
		DistributionHandler: handlers.NewDistributionHandler(distributionService),
		SuspensionHandler:   handlers.NewSuspensionHandler(suspensionService),
		AdminHandler:        handlers.NewAdminHandler(jobRunRepo, deviceService, falseAlarmService),
		SSEHandler:          handlers.NewSSEHandler(log, sseHub),
		LocalMediaRoot:      localMediaRoot,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		log.Info("Server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", "error", err)
	}
}
