package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai/gemini"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai/openai"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/db"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/logger"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/objectstorage"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/temporal"

	assetworker "github.com/ilovetoast/jackpot-firehorse-sub012/pkg/worker"
)

const gracefulShutdownWaitPeriod = 15 * time.Second // Wait period before stopping worker
const gracefulShutdownTimeout = 60 * time.Minute    // Maximum time for in-flight workflows to complete

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zapLogger, _ := logger.GetZapLogger(ctx)
	defer func() {
		// can't handle the error due to https://github.com/uber-go/zap/issues/880
		_ = zapLogger.Sync()
	}()

	gormDB := db.GetSharedConnection()
	defer db.Close(gormDB)
	repo := repository.NewRepository(gormDB)

	redisClient := redis.NewClient(&config.Config.Cache.Redis.RedisOptions)
	defer redisClient.Close()

	objectStorage, err := objectstorage.NewObjectStorageClientAndInitBucket(ctx, config.Config.Minio)
	if err != nil {
		zapLogger.Fatal("Unable to initialize object storage", zap.Error(err))
	}

	// The AI collaborator is optional: without an API key the AI stages skip.
	var aiClient ai.Client
	if config.Config.AI.APIKey != "" {
		switch config.Config.AI.Provider {
		case ai.ModelFamilyGemini:
			aiClient, err = gemini.NewClient(ctx, config.Config.AI.APIKey, config.Config.AI.Model)
		default:
			aiClient, err = openai.NewClient(ctx, config.Config.AI.APIKey, config.Config.AI.Model)
		}
		if err != nil {
			zapLogger.Fatal("Unable to create AI client", zap.Error(err))
		}
		defer aiClient.Close()
	} else {
		zapLogger.Warn("No AI API key configured, AI stages will be skipped")
	}

	temporalClient, err := temporalclient.Dial(temporal.ClientOptions(config.Config.Temporal, zapLogger))
	if err != nil {
		zapLogger.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	cw, err := assetworker.New(assetworker.Config{
		Repository:    repo,
		ObjectStorage: objectStorage,
		AIClient:      aiClient,
		RedisClient:   redisClient,
		Pipeline:      config.Config.Pipeline,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Unable to create worker", zap.Error(err))
	}

	w := worker.New(temporalClient, assetworker.TaskQueue, worker.Options{
		WorkflowPanicPolicy:                    worker.BlockWorkflow,
		WorkerStopTimeout:                      gracefulShutdownTimeout,
		MaxConcurrentWorkflowTaskExecutionSize: 100,
	})

	// ===== Workflow Registrations =====
	w.RegisterWorkflow(cw.ProcessAssetWorkflow) // Main asset processing orchestration workflow
	w.RegisterWorkflow(cw.WatchdogWorkflow)     // Scheduled reconciliation of abandoned preview work

	// ===== ProcessAssetWorkflow Activities =====
	w.RegisterActivity(cw.MarkProcessingStartedActivity)     // Claim the per-commit idempotency guard
	w.RegisterActivity(cw.ClassifyAssetActivity)             // Decide the processing category once
	w.RegisterActivity(cw.ShortCircuitActivity)              // Terminal bookkeeping for unsupported assets
	w.RegisterActivity(cw.ExtractMetadataActivity)           // Intrinsic properties off the source object
	w.RegisterActivity(cw.GeneratePreviewsActivity)          // Thumbnail engine with CAS state machine
	w.RegisterActivity(cw.PopulateComputedMetadataActivity)  // Gated display-field derivation
	w.RegisterActivity(cw.AITagActivity)                     // Gated candidate tag generation
	w.RegisterActivity(cw.AIGenerateMetadataActivity)        // Gated candidate field generation
	w.RegisterActivity(cw.AIAutoApplyTagsActivity)           // Confidence split: apply vs suggest
	w.RegisterActivity(cw.AISuggestMetadataActivity)         // Field application and analysis close-out
	w.RegisterActivity(cw.FinalizeAssetActivity)             // Metadata merge and version freeze
	w.RegisterActivity(cw.PromoteAssetActivity)              // Copy-then-delete to the permanent path
	w.RegisterActivity(cw.UpdateThumbnailStatusActivity)     // CAS transitions for cleanup paths
	w.RegisterActivity(cw.RecordFailureActivity)             // Failure record persistence

	// ===== WatchdogWorkflow Activities =====
	w.RegisterActivity(cw.SweepStuckAssetsActivity) // Reconcile assets stuck in PROCESSING

	if err := w.Start(); err != nil {
		zapLogger.Fatal(fmt.Sprintf("Unable to start worker: %s", err))
	}

	zapLogger.Info("Temporal worker started successfully and is polling for tasks")

	// Start the watchdog on its fixed schedule. The fixed workflow ID makes
	// this a singleton across worker replicas.
	go func() {
		workflowOptions := temporalclient.StartWorkflowOptions{
			ID:                    assetworker.WatchdogWorkflowID,
			TaskQueue:             assetworker.TaskQueue,
			WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			CronSchedule:          fmt.Sprintf("@every %s", config.Config.Pipeline.WatchdogInterval),
		}

		_, err := temporalClient.ExecuteWorkflow(context.Background(), workflowOptions, cw.WatchdogWorkflow)
		if err != nil {
			zapLogger.Error("Failed to start watchdog workflow", zap.Error(err))
		} else {
			zapLogger.Info("Watchdog workflow scheduled",
				zap.Duration("interval", config.Config.Pipeline.WatchdogInterval))
		}
	}()

	// Setup graceful shutdown on SIGTERM (kill) and SIGINT (Ctrl+C)
	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)

	<-quitSig

	// Allow in-flight workflows to complete before stopping
	zapLogger.Info("Shutdown signal received, waiting for in-flight workflows to complete...")
	time.Sleep(gracefulShutdownWaitPeriod)

	zapLogger.Info("Shutting down worker...")
	w.Stop()
}
