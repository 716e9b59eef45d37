package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/ai/tasks"
	"github.com/mediavault/mediavault-backend/internal/db"
	"github.com/mediavault/mediavault-backend/internal/lifecycle"
	"github.com/mediavault/mediavault-backend/internal/platform/docscan"
	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/gcp"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
	"github.com/mediavault/mediavault-backend/internal/platform/openai"
	"github.com/mediavault/mediavault-backend/internal/repos"
	"github.com/mediavault/mediavault-backend/internal/services"
	"github.com/mediavault/mediavault-backend/internal/transport"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Warn("Auto migration failed", "error", err)
	}
	gdb := dbService.DB()

	// Repos
	log.Info("Setting up repos...")
	assetRepo := repos.NewAssetRepo(gdb, log)
	variantRepo := repos.NewVariantRepo(gdb, log)

	// Platform clients
	log.Info("Setting up platform clients...")
	bucket, err := gcp.NewBucket(log)
	if err != nil {
		log.Error("Could not init bucket client", "error", err)
		os.Exit(1)
	}
	visionClient, err := gcp.NewVision(log)
	if err != nil {
		log.Warn("Could not init vision client, analysis disabled", "error", err)
		visionClient = nil
	}
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init AI client", "error", err)
		os.Exit(1)
	}
	scanner, err := docscan.NewProviderFromEnv(log)
	if err != nil {
		log.Error("Could not init document OCR provider", "error", err)
		os.Exit(1)
	}

	// Task catalogue
	if err := ai.LoadPipelineOverrides(); err != nil {
		log.Warn("Pipeline overrides not loaded", "error", err)
	}
	registry := ai.NewRegistry(tasks.All(log, openaiClient, scanner)...)

	// Lifecycle
	log.Info("Setting up lifecycle service...")
	archive := services.NewArchive(log, bucket)
	plan := services.NewVariantPlan()
	builder := services.NewProxyVariantBuilder(log)
	svc := lifecycle.NewService(log, assetRepo, variantRepo, archive, visionClient, plan, builder, registry)

	// Transport
	rdb := transport.NewRedisClient()
	dispatcher := transport.NewRedisDispatcher(log, rdb)
	svc.SetDispatcher(dispatcher)

	worker := transport.NewWorker(log, rdb, dispatcher, svc, []string{
		transport.QueueAssetTransitions,
		transport.QueueVariantTransitions,
		transport.QueueAITasks,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Worker starting", "queues", 3)
	if err := worker.Start(ctx); err != nil && ctx.Err() == nil {
		log.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Worker drained, shutting down")
}
