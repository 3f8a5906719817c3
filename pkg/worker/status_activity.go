package worker

import (
	"context"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/errorsx"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// This file contains status tracking activities used by ProcessAssetWorkflow:
// - MarkProcessingStartedActivity - Claims the per-commit idempotency guard
// - UpdateThumbnailStatusActivity - Compare-and-set on thumbnail_status
// - RecordFailureActivity - Persists a failure record for a stage

// MarkProcessingStartedActivityParam defines the parameters for the MarkProcessingStartedActivity
type MarkProcessingStartedActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// MarkProcessingStartedActivity claims the processing_started guard. The
// return value tells the workflow whether it owns this processing attempt.
func (w *Worker) MarkProcessingStartedActivity(ctx context.Context, param *MarkProcessingStartedActivityParam) (bool, error) {
	won, err := w.repository.MarkProcessingStarted(ctx, param.AssetUID)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to claim the asset for processing. Please try again.")
		return false, stageApplicationError(err)
	}
	if !won {
		w.log.Info("Asset already claimed, skipping", zap.String("assetUID", param.AssetUID.String()))
	}
	return won, nil
}

// UpdateThumbnailStatusActivityParam defines the parameters for the UpdateThumbnailStatusActivity
type UpdateThumbnailStatusActivityParam struct {
	AssetUID uuid.UUID                  // Asset unique identifier
	From     repository.ThumbnailStatus // Expected current status
	To       repository.ThumbnailStatus // New status
	Reason   string                     // Optional reason code for terminal states
}

// UpdateThumbnailStatusActivity transitions thumbnail_status with a
// compare-and-set. A lost race is not an error: the workflow and the
// watchdog both rely on the swapped result to adjudicate.
func (w *Worker) UpdateThumbnailStatusActivity(ctx context.Context, param *UpdateThumbnailStatusActivityParam) (bool, error) {
	swapped, err := w.repository.CompareAndSwapThumbnailStatus(ctx, param.AssetUID, param.From, param.To, param.Reason)
	if err != nil {
		return false, stageApplicationError(err)
	}
	if !swapped {
		w.log.Info("Thumbnail status moved underneath us",
			zap.String("assetUID", param.AssetUID.String()),
			zap.String("expected", string(param.From)),
			zap.String("wanted", string(param.To)))
	}
	return swapped, nil
}

// RecordFailureActivityParam defines the parameters for the RecordFailureActivity
type RecordFailureActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
	Stage    string    // Stage that failed
	Category string    // Failure category
	Message  string    // Human-readable cause
	Attempts int       // Attempts consumed before giving up
}

// RecordFailureActivity persists a failure record. It never touches the
// asset's visibility fields.
func (w *Worker) RecordFailureActivity(ctx context.Context, param *RecordFailureActivityParam) error {
	_, err := w.repository.RecordFailure(ctx, repository.FailureRecordModel{
		AssetUID: param.AssetUID,
		Stage:    param.Stage,
		Category: param.Category,
		Message:  param.Message,
		Attempts: param.Attempts,
	})
	if err != nil {
		return stageApplicationError(err)
	}
	w.log.Warn("Recorded stage failure",
		zap.String("assetUID", param.AssetUID.String()),
		zap.String("stage", param.Stage),
		zap.String("category", param.Category))
	return nil
}
