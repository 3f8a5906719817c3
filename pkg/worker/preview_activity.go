package worker

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/classifier"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/objectstorage"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// GeneratePreviewsActivityParam defines the parameters for the GeneratePreviewsActivity
type GeneratePreviewsActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
	Category string    // Classifier category, decided once upstream
}

// GeneratePreviewsActivity runs the thumbnail engine for one asset: claims
// PROCESSING via compare-and-set, renders and uploads every configured size,
// then lands on a terminal status. Vector categories terminate here without
// touching pixels, per the configured policy.
func (w *Worker) GeneratePreviewsActivity(ctx context.Context, param *GeneratePreviewsActivityParam) error {
	category := classifier.Category(param.Category)

	asset, err := w.repository.GetAssetByUID(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}

	if category == classifier.CategoryVectorSkip {
		return w.completeVectorAsset(ctx, asset)
	}

	swapped, err := w.repository.CompareAndSwapThumbnailStatus(ctx, param.AssetUID,
		repository.ThumbnailStatusPending, repository.ThumbnailStatusProcessing, "")
	if err != nil {
		return stageApplicationError(err)
	}
	if !swapped {
		asset, err = w.repository.GetAssetByUID(ctx, param.AssetUID)
		if err != nil {
			return stageApplicationError(err)
		}
		if asset.ThumbnailStatus.Terminal() {
			// an earlier attempt already finished
			w.log.Info("Previews already terminal, skipping",
				zap.String("assetUID", param.AssetUID.String()),
				zap.String("status", string(asset.ThumbnailStatus)))
			return nil
		}
		// PROCESSING: a prior retry attempt of this same activity claimed it
	}

	if err := w.renderAndStore(ctx, asset, category); err != nil {
		category := pipeline.Categorize(err)
		if !category.Retryable() {
			// terminal failure: land on FAILED before surfacing the error
			_, casErr := w.repository.CompareAndSwapThumbnailStatus(ctx, param.AssetUID,
				repository.ThumbnailStatusProcessing, repository.ThumbnailStatusFailed, string(category))
			if casErr != nil {
				w.log.Error("Failed to mark previews FAILED",
					zap.String("assetUID", param.AssetUID.String()), zap.Error(casErr))
			}
		}
		return stageApplicationError(err)
	}

	swapped, err = w.repository.CompareAndSwapThumbnailStatus(ctx, param.AssetUID,
		repository.ThumbnailStatusProcessing, repository.ThumbnailStatusCompleted, "")
	if err != nil {
		return stageApplicationError(err)
	}
	if !swapped {
		// the watchdog timed us out while we were still uploading; its
		// terminal state wins
		w.log.Warn("Lost completion race to the watchdog", zap.String("assetUID", param.AssetUID.String()))
	}
	return nil
}

// completeVectorAsset terminates the preview stage for vector sources. The
// configured policy picks between COMPLETED-with-flag and SKIPPED; both are
// terminal non-error states.
func (w *Worker) completeVectorAsset(ctx context.Context, asset *repository.AssetModel) error {
	to := repository.ThumbnailStatusCompleted
	if w.pipeline.VectorPolicy == config.VectorPolicySkipped {
		to = repository.ThumbnailStatusSkipped
	}
	if _, err := w.repository.CompareAndSwapThumbnailStatus(ctx, asset.UID,
		repository.ThumbnailStatusPending, to, repository.ReasonVectorNoPreview); err != nil {
		return stageApplicationError(err)
	}
	version, err := w.repository.GetCurrentVersion(ctx, asset.UID)
	if err != nil {
		return stageApplicationError(err)
	}
	if _, err := w.mergeVersionMetadata(ctx, version, map[string]any{
		"vector_no_preview": true,
	}); err != nil {
		return stageApplicationError(err)
	}
	w.log.Info("Vector asset, no raster preview",
		zap.String("assetUID", asset.UID.String()), zap.String("status", string(to)))
	return nil
}

// renderAndStore does the pixel work: fetch, decode, resample, encode,
// upload, and persist the rendition list on the current version.
func (w *Worker) renderAndStore(ctx context.Context, asset *repository.AssetModel, category classifier.Category) error {
	version, err := w.repository.GetCurrentVersion(ctx, asset.UID)
	if err != nil {
		return err
	}

	content, err := w.objectStorage.GetFile(ctx, asset.StoragePath)
	if err != nil {
		return pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureTransientIO, fmt.Errorf("fetching source object: %w", err))
	}

	result, err := w.engine.Generate(ctx, content, category)
	if err != nil {
		return err
	}

	thumbs := make([]repository.Thumbnail, 0, len(result.Renditions))
	for _, r := range result.Renditions {
		path := objectstorage.GetThumbnailPathOfAsset(
			asset.TenantUID.String(), asset.UID.String(), r.SizeName, r.Ext)
		if err := w.objectStorage.UploadFile(ctx, path, r.Data, r.MimeType); err != nil {
			return pipeline.NewStageError(pipeline.StageGeneratePreviews,
				pipeline.FailureTransientIO, fmt.Errorf("uploading %s rendition: %w", r.SizeName, err))
		}
		thumbs = append(thumbs, repository.Thumbnail{
			Size:   r.SizeName,
			Path:   path,
			Width:  r.Width,
			Height: r.Height,
		})
	}

	encoded, err := repository.MarshalThumbnails(thumbs)
	if err != nil {
		return err
	}
	updates := map[string]any{
		repository.AssetVersionColumn.Width:      result.SourceWidth,
		repository.AssetVersionColumn.Height:     result.SourceHeight,
		repository.AssetVersionColumn.Thumbnails: encoded,
	}
	if result.Degraded {
		bag := map[string]any{}
		for k, v := range version.Metadata {
			bag[k] = v
		}
		bag[repository.MetadataKeyThumbnailQuality] = repository.ThumbnailQualityDegraded
		updates[repository.AssetVersionColumn.Metadata] = datatypes.JSONMap(bag)
	}
	if _, err := w.repository.UpdateAssetVersion(ctx, version.UID, updates); err != nil {
		return err
	}

	w.log.Info("Generated previews",
		zap.String("assetUID", asset.UID.String()),
		zap.Int("renditions", len(thumbs)),
		zap.Bool("degraded", result.Degraded))
	return nil
}

