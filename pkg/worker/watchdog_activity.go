package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// SweepStuckAssetsActivityResult reports one watchdog pass.
type SweepStuckAssetsActivityResult struct {
	Scanned     int // Assets found stuck in PROCESSING past the threshold
	Reconciled  int // Assets this pass moved to FAILED
	LostToRaces int // Assets a finishing worker completed first
}

// SweepStuckAssetsActivity reconciles assets stuck in PROCESSING longer than
// the watchdog threshold: each is compare-and-set to FAILED with reason
// timeout and gets a failure record. A worker finishing at the same moment
// wins the CAS and the sweep leaves its terminal state alone. Visibility
// fields are never touched.
func (w *Worker) SweepStuckAssetsActivity(ctx context.Context) (*SweepStuckAssetsActivityResult, error) {
	cutoff := time.Now().UTC().Add(-w.pipeline.WatchdogThreshold)
	stuck, err := w.repository.ListStuckThumbnailAssets(ctx, cutoff)
	if err != nil {
		return nil, stageApplicationError(err)
	}

	result := &SweepStuckAssetsActivityResult{Scanned: len(stuck)}
	for _, asset := range stuck {
		swapped, err := w.repository.CompareAndSwapThumbnailStatus(ctx, asset.UID,
			repository.ThumbnailStatusProcessing, repository.ThumbnailStatusFailed,
			repository.ReasonTimeout)
		if err != nil {
			return result, stageApplicationError(err)
		}
		if !swapped {
			result.LostToRaces++
			continue
		}

		age := time.Since(*asset.ThumbnailStartedAt).Round(time.Second)
		if _, err := w.repository.RecordFailure(ctx, repository.FailureRecordModel{
			AssetUID: asset.UID,
			Stage:    string(pipeline.StageGeneratePreviews),
			Category: string(pipeline.FailureTimeout),
			Message:  fmt.Sprintf("preview stage abandoned for %s, reconciled by watchdog", age),
		}); err != nil {
			return result, stageApplicationError(err)
		}
		result.Reconciled++

		w.log.Warn("Watchdog reconciled stuck asset",
			zap.String("assetUID", asset.UID.String()),
			zap.Duration("age", age))
	}
	return result, nil
}
