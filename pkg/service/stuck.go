package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

func (s *service) ListStuckAssets(ctx context.Context) ([]repository.AssetModel, error) {
	cutoff := time.Now().UTC().Add(-s.pipeline.WatchdogThreshold)
	return s.repository.ListStuckThumbnailAssets(ctx, cutoff)
}

func (s *service) RepairStuckAssets(ctx context.Context) (int, error) {
	stuck, err := s.ListStuckAssets(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, asset := range stuck {
		swapped, err := s.repository.CompareAndSwapThumbnailStatus(ctx, asset.UID,
			repository.ThumbnailStatusProcessing, repository.ThumbnailStatusFailed,
			repository.ReasonTimeout)
		if err != nil {
			return repaired, err
		}
		if !swapped {
			// a finishing worker or the watchdog got there first
			continue
		}
		if _, err := s.repository.RecordFailure(ctx, repository.FailureRecordModel{
			AssetUID: asset.UID,
			Stage:    string(pipeline.StageGeneratePreviews),
			Category: string(pipeline.FailureTimeout),
			Message:  fmt.Sprintf("reconciled by operator after %s", time.Since(*asset.ThumbnailStartedAt).Round(time.Second)),
		}); err != nil {
			return repaired, err
		}

		fresh, err := s.repository.GetAssetByUID(ctx, asset.UID)
		if err != nil {
			return repaired, err
		}
		if err := s.retrigger(ctx, fresh, asset.TenantUID); err != nil {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}

func (s *service) AssetHasProcessingIssue(ctx context.Context, assetUID uuid.UUID) (bool, error) {
	return s.repository.HasUnresolvedFailure(ctx, assetUID)
}

func (s *service) GetAssetFailures(ctx context.Context, assetUID uuid.UUID) ([]repository.FailureRecordModel, error) {
	return s.repository.ListFailuresByAsset(ctx, assetUID)
}
