package worker

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// previewNotReadyError is the application error type a gated activity returns
// when thumbnail_status has not reached a ready state. It is retryable by
// construction; the workflow pairs it with a fixed-interval retry policy.
const previewNotReadyError = "PreviewNotReady"

func newPreviewNotReadyError(status repository.ThumbnailStatus) error {
	return temporal.NewApplicationError("preview not ready: "+string(status), previewNotReadyError)
}

// IsPreviewNotReady reports whether an activity error is the gate signal.
func IsPreviewNotReady(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == previewNotReadyError
}

// stageApplicationError converts a stage failure into a Temporal application
// error whose type carries the failure category. Non-retryable categories
// stop the activity's retry loop immediately.
func stageApplicationError(err error) error {
	if err == nil {
		return nil
	}
	category := pipeline.Categorize(err)
	if category.Retryable() {
		return temporal.NewApplicationErrorWithCause(err.Error(), string(category), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(category), err)
}

// failureCategoryOf recovers the category from an exhausted activity error.
func failureCategoryOf(err error) pipeline.FailureCategory {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch c := pipeline.FailureCategory(appErr.Type()); c {
		case pipeline.FailureTransientIO, pipeline.FailureDecode, pipeline.FailureUnsupportedFormat,
			pipeline.FailureOversized, pipeline.FailureTimeout, pipeline.FailureMissingCapability,
			pipeline.FailureInternal:
			return c
		}
	}
	return pipeline.Categorize(err)
}

// requirePreviewReady loads the asset and enforces the sequencing gate: the
// caller may touch pixels only once thumbnail_status is COMPLETED or SKIPPED.
func (w *Worker) requirePreviewReady(ctx context.Context, assetUID uuid.UUID) (*repository.AssetModel, error) {
	asset, err := w.repository.GetAssetByUID(ctx, assetUID)
	if err != nil {
		return nil, stageApplicationError(err)
	}
	if !asset.ThumbnailStatus.Ready() {
		return nil, newPreviewNotReadyError(asset.ThumbnailStatus)
	}
	return asset, nil
}

// mergeVersionMetadata folds key/value pairs into the current version's
// metadata bag.
func (w *Worker) mergeVersionMetadata(ctx context.Context, version *repository.AssetVersionModel, kv map[string]any) (*repository.AssetVersionModel, error) {
	bag := make(map[string]any, len(version.Metadata)+len(kv))
	for k, v := range version.Metadata {
		bag[k] = v
	}
	for k, v := range kv {
		bag[k] = v
	}
	return w.repository.UpdateAssetVersion(ctx, version.UID, map[string]any{
		repository.AssetVersionColumn.Metadata: datatypes.JSONMap(bag),
	})
}
