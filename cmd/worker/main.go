package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gemini"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/sendgrid"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/twilio"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/db"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	jobhandlers "github.com/urbanwatch/urbanwatch-backend/internal/jobs/handlers"
	jobrt "github.com/urbanwatch/urbanwatch-backend/internal/jobs/runtime"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/config"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/localmedia"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime/bus"
	"github.com/urbanwatch/urbanwatch-backend/internal/temporalx"
	"github.com/urbanwatch/urbanwatch-backend/internal/temporalx/temporalworker"
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

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	thePG := postgresService.DB()

	concernRepo := repos.NewConcernRepo(thePG, log)
	incidentMediaRepo := repos.NewIncidentMediaRepo(thePG, log)
	userRepo := repos.NewUserRepo(thePG, log)
	distributionRepo := repos.NewDistributionRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	verifier, err := gemini.New(log)
	if err != nil {
		log.Warn("Could not init Gemini verifier; concern classification jobs will fail", "error", err)
		verifier = nil
	} else {
		defer verifier.Close()
	}
	speechClient, err := gcp.NewSpeech(log)
	if err != nil {
		log.Warn("Could not init Speech client; voice transcription jobs will fail", "error", err)
		speechClient = nil
	} else {
		defer speechClient.Close()
	}

	var storage gcp.BucketService
	if !cfg.Media.UseLocalStore {
		storage, err = gcp.NewBucketService(log)
		if err != nil {
			log.Warn("Could not init BucketService", "error", err)
			storage = nil
		}
	}
	if storage == nil {
		localStore, lsErr := localmedia.NewStore(log)
		if lsErr != nil {
			log.Warn("Could not init local media store", "error", lsErr)
		} else {
			storage = localStore
		}
	}

	emailClient, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("Could not init SendGrid client; email jobs will fail", "error", err)
		emailClient = nil
	}
	smsClient, err := twilio.NewFromEnv(log)
	if err != nil {
		log.Warn("Could not init Twilio client; SMS jobs will fail", "error", err)
		smsClient = nil
	}

	sseBus, err := bus.NewSSEBus(log)
	if err != nil {
		log.Warn("Could not init Redis SSE bus; job broadcasts disabled", "error", err)
		sseBus = nil
	} else {
		defer sseBus.Close()
	}

	registry := jobrt.NewRegistry()
	if err := jobhandlers.RegisterAll(registry, jobhandlers.Deps{
		Log:           log,
		Concerns:      concernRepo,
		Media:         incidentMediaRepo,
		Users:         userRepo,
		Distributions: distributionRepo,
		Verifier:      verifier,
		Speech:        speechClient,
		Storage:       storage,
		Email:         emailClient,
		SMS:           smsClient,
		Bus:           sseBus,
	}); err != nil {
		log.Fatal("Could not register job handlers", "error", err)
	}

	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Fatal("Could not connect to Temporal", "error", err)
	}
	if temporalClient == nil {
		log.Fatal("TEMPORAL_ADDRESS is required for the worker")
	}
	defer temporalClient.Close()

	runner, err := temporalworker.NewRunner(log, temporalClient, thePG, jobRunRepo, registry, cfg.Jobs.RetryBackoff)
	if err != nil {
		log.Fatal("Could not build Temporal worker", "error", err)
	}
	if err := runner.Start(ctx); err != nil {
		log.Fatal("Temporal worker exited", "error", err)
	}

	<-ctx.Done()
	log.Info("Shutting down worker")
}
