// mediatask registers one source URL, runs its lifecycle and a task
// pipeline synchronously, and prints the projected catalogue view. Meant
// for local runs and backfills; the long-running worker lives in cmd/main.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mediavault/mediavault-backend/internal/ai"
	"github.com/mediavault/mediavault-backend/internal/ai/tasks"
	"github.com/mediavault/mediavault-backend/internal/db"
	"github.com/mediavault/mediavault-backend/internal/domain/assets"
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
	var (
		url       = flag.String("url", "", "source URL to register")
		pipeline  = flag.String("pipeline", "quick-scan", "named pipeline to enqueue")
		taskList  = flag.String("tasks", "", "comma-separated task list, overrides -pipeline")
		skipAI    = flag.Bool("skip-ai", false, "only run the lifecycle, no enrichment")
		listType  = flag.String("list-type", "", "list assets classified as this document type and exit")
		listTasks = flag.Bool("list-tasks", false, "print the registered task handlers and exit")
		export    = flag.String("export", "", "after the run, write the archived original to this file")
	)
	flag.Parse()

	if *url == "" && *listType == "" && !*listTasks {
		fmt.Fprintln(os.Stderr, "usage: mediatask -url <source-url> [-pipeline name | -tasks a,b,c] [-export file]")
		fmt.Fprintln(os.Stderr, "       mediatask -list-type <document-type> | -list-tasks")
		os.Exit(2)
	}

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	gdb := dbService.DB()

	assetRepo := repos.NewAssetRepo(gdb, log)
	variantRepo := repos.NewVariantRepo(gdb, log)

	if *listType != "" {
		listed, err := assetRepo.ListByDocumentType(context.Background(), nil, *listType, 50)
		if err != nil {
			log.Error("Listing failed", "error", err)
			os.Exit(1)
		}
		for _, a := range listed {
			fmt.Printf("%s\t%s\t%s\n", a.ID, a.Marking, a.OriginalURL)
		}
		return
	}

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

	if err := ai.LoadPipelineOverrides(); err != nil {
		log.Warn("Pipeline overrides not loaded", "error", err)
	}
	registry := ai.NewRegistry(tasks.All(log, openaiClient, scanner)...)

	if *listTasks {
		out, _ := json.MarshalIndent(registry.Describe(), "", "  ")
		fmt.Println(string(out))
		return
	}

	archive := services.NewArchive(log, bucket)
	svc := lifecycle.NewService(log, assetRepo, variantRepo, archive, visionClient,
		services.NewVariantPlan(), services.NewProxyVariantBuilder(log), registry)
	// Inline execution end to end; no broker involved.
	svc.SetDispatcher(transport.NewSyncDispatcher(svc))

	ctx := context.Background()

	asset, err := svc.Register(ctx, *url)
	if err != nil {
		log.Error("Lifecycle failed", "error", err)
		os.Exit(1)
	}

	if !*skipAI {
		if *taskList != "" {
			if err := svc.Runner().Enqueue(ctx, asset, strings.Split(*taskList, ",")); err != nil {
				log.Error("Enqueue failed", "error", err)
				os.Exit(1)
			}
			if _, err := svc.Runner().RunAll(ctx, asset); err != nil {
				log.Error("Task run failed", "error", err)
				os.Exit(1)
			}
		} else if err := svc.EnqueuePipeline(ctx, asset.ID, *pipeline); err != nil {
			log.Error("Pipeline failed", "error", err)
			os.Exit(1)
		}
	}

	final, err := assetRepo.GetByIDWithVariants(ctx, nil, asset.ID)
	if err != nil || final == nil {
		log.Error("Could not reload asset", "error", err)
		os.Exit(1)
	}

	if *export != "" && final.StorageKey != "" {
		data, err := archive.Load(ctx, final.StorageKey)
		if err != nil {
			log.Error("Could not read archived original", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*export, data, 0o644); err != nil {
			log.Error("Could not write export file", "error", err)
			os.Exit(1)
		}
		log.Info("Exported archived original", "path", *export, "size", len(data))
	}

	view := assets.Project(final.AICompleted)
	out, _ := json.MarshalIndent(map[string]any{
		"id":       final.ID,
		"marking":  final.Marking,
		"mime":     final.Mime,
		"archive":  final.ArchiveURL,
		"variants": len(final.Variants),
		"view":     view,
	}, "", "  ")
	fmt.Println(string(out))
}
