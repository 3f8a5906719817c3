package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/db"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/logger"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/service"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/temporal"

	assetworker "github.com/ilovetoast/jackpot-firehorse-sub012/pkg/worker"
)

const usage = `Usage: ops <command> [flags]

Commands:
  stuck-list              List assets stuck in PROCESSING past the watchdog threshold
  stuck-repair            Reconcile stuck assets immediately and re-trigger them
  retry-preview           Re-run processing for an asset whose preview generation failed
  retry-capability        Re-run assets that skipped a stage for the given failure category
  recompute-metadata      Backfill computed metadata for a tenant's completed assets
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	assetFlag := flags.String("asset", "", "asset UID")
	tenantFlag := flags.String("tenant", "", "tenant UID")
	reasonFlag := flags.String("reason", "", "failure category, e.g. missing-capability")
	configFlag := flags.String("file", "config/config.yaml", "configuration file")
	if err := flags.Parse(os.Args[2:]); err != nil {
		log.Fatal(err.Error())
	}

	if err := config.Init(*configFlag); err != nil {
		log.Fatal(err.Error())
	}

	ctx := context.Background()

	zapLogger, _ := logger.GetZapLogger(ctx)
	defer func() {
		_ = zapLogger.Sync()
	}()

	gormDB := db.GetSharedConnection()
	defer db.Close(gormDB)
	repo := repository.NewRepository(gormDB)

	redisClient := redis.NewClient(&config.Config.Cache.Redis.RedisOptions)
	defer redisClient.Close()

	temporalClient, err := temporalclient.Dial(temporal.ClientOptions(config.Config.Temporal, zapLogger))
	if err != nil {
		log.Fatalf("Unable to create Temporal client: %s", err)
	}
	defer temporalClient.Close()

	cw, err := assetworker.New(assetworker.Config{
		Repository:  repo,
		RedisClient: redisClient,
		Pipeline:    config.Config.Pipeline,
	}, zapLogger)
	if err != nil {
		log.Fatalf("Unable to create worker: %s", err)
	}

	svc := service.NewService(
		repo,
		nil,
		redisClient,
		config.Config.Pipeline,
		assetworker.NewProcessAssetWorkflow(temporalClient, cw),
	)

	switch command {
	case "stuck-list":
		assets, err := svc.ListStuckAssets(ctx)
		if err != nil {
			log.Fatal(err.Error())
		}
		for _, asset := range assets {
			since := "unknown"
			if asset.ThumbnailStartedAt != nil {
				since = asset.ThumbnailStartedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			fmt.Printf("%s\ttenant=%s\tsince=%s\n", asset.UID, asset.TenantUID, since)
		}
		fmt.Printf("%d stuck asset(s)\n", len(assets))

	case "stuck-repair":
		repaired, err := svc.RepairStuckAssets(ctx)
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("Repaired %d asset(s)\n", repaired)

	case "retry-preview":
		assetUID := mustUUID(*assetFlag, "-asset")
		tenantUID := mustUUID(*tenantFlag, "-tenant")
		if err := svc.RetryPreview(ctx, assetUID, tenantUID); err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("Re-triggered processing for asset %s\n", assetUID)

	case "retry-capability":
		tenantUID := mustUUID(*tenantFlag, "-tenant")
		if *reasonFlag == "" {
			log.Fatal("-reason is required")
		}
		retried, err := svc.RetrySkippedStages(ctx, tenantUID, *reasonFlag)
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("Re-triggered %d asset(s) for category %s\n", retried, *reasonFlag)

	case "recompute-metadata":
		tenantUID := mustUUID(*tenantFlag, "-tenant")
		updated, err := svc.RecomputeComputedMetadata(ctx, tenantUID)
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("Updated computed metadata on %d asset(s)\n", updated)

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func mustUUID(s, name string) uuid.UUID {
	if s == "" {
		log.Fatalf("%s is required", name)
	}
	id, err := uuid.FromString(s)
	if err != nil {
		log.Fatalf("%s is not a valid UUID: %s", name, err)
	}
	return id
}
