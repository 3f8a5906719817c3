package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/errorsx"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/logger"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// triggerLeaseLifetime bounds how long a trigger lease blocks duplicate
// deliveries of the same commit event. The DB-level processing_started guard
// is the real idempotency barrier; the lease only absorbs delivery bursts.
const triggerLeaseLifetime = 45 * time.Second

func triggerLeaseKey(assetUID uuid.UUID) string {
	return "worker-processing-asset-" + assetUID.String()
}

func (s *service) ProcessAsset(ctx context.Context, assetUID, tenantUID uuid.UUID) error {
	log, _ := logger.GetZapLogger(ctx)

	if s.redisClient != nil {
		ok, err := s.redisClient.SetNX(ctx, triggerLeaseKey(assetUID), "1", triggerLeaseLifetime).Result()
		if err != nil {
			// the DB guard still collapses duplicates; a cache outage must
			// not stop processing
			log.Warn("Trigger lease unavailable, proceeding without it")
		} else if !ok {
			log.Info("Duplicate trigger absorbed by lease")
			return nil
		}
	}

	return s.processAssetWorkflow.Execute(ctx, ProcessAssetWorkflowParam{
		AssetUID:  assetUID,
		TenantUID: tenantUID,
	})
}

func (s *service) RetryPreview(ctx context.Context, assetUID, tenantUID uuid.UUID) error {
	asset, err := s.repository.GetAssetByUID(ctx, assetUID)
	if err != nil {
		return errorsx.AddMessage(err, "Asset not found.")
	}
	if asset.ThumbnailStatus != repository.ThumbnailStatusFailed {
		return errorsx.AddMessage(
			fmt.Errorf("%w: thumbnail status is %s", errorsx.ErrInvalidArgument, asset.ThumbnailStatus),
			"Only assets whose preview generation failed can be retried.",
		)
	}
	return s.retrigger(ctx, asset, tenantUID)
}

func (s *service) RetrySkippedStages(ctx context.Context, tenantUID uuid.UUID, reason string) (int, error) {
	failures, err := s.repository.ListUnresolvedFailures(ctx, "")
	if err != nil {
		return 0, err
	}

	seen := map[uuid.UUID]bool{}
	retried := 0
	for _, failure := range failures {
		if failure.Category != reason || seen[failure.AssetUID] {
			continue
		}
		seen[failure.AssetUID] = true

		asset, err := s.repository.GetAssetByUID(ctx, failure.AssetUID)
		if err != nil {
			return retried, err
		}
		if err := s.retrigger(ctx, asset, tenantUID); err != nil {
			return retried, err
		}
		retried++
	}
	return retried, nil
}

// retrigger resets the processing bookkeeping for a fresh attempt and starts
// the workflow. A current version frozen by an earlier finalize is reopened so
// the stages can write to it again. Failure records of the previous attempt
// are resolved so the asset stops advertising an issue that is being acted on.
func (s *service) retrigger(ctx context.Context, asset *repository.AssetModel, tenantUID uuid.UUID) error {
	if _, err := s.repository.CompareAndSwapThumbnailStatus(ctx, asset.UID,
		asset.ThumbnailStatus, repository.ThumbnailStatusPending, ""); err != nil {
		return err
	}
	if err := s.repository.ResetProcessingStarted(ctx, asset.UID); err != nil {
		return err
	}

	version, err := s.repository.GetCurrentVersion(ctx, asset.UID)
	if err != nil && !errors.Is(err, errorsx.ErrNotFound) {
		return err
	}
	if version != nil && version.PipelineStatus == repository.PipelineStatusCompleted {
		if _, err := s.repository.ReopenAssetVersion(ctx, version.UID); err != nil {
			return err
		}
	}

	if _, err := s.repository.ResolveFailures(ctx, asset.UID, ""); err != nil {
		return err
	}

	return s.processAssetWorkflow.Execute(ctx, ProcessAssetWorkflowParam{
		AssetUID:  asset.UID,
		TenantUID: tenantUID,
	})
}
