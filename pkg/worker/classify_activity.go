package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/classifier"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// classifyHeadSize is how many leading bytes feed magic-byte sniffing.
const classifyHeadSize = 3072

// ClassifyAssetActivityParam defines the parameters for the ClassifyAssetActivity
type ClassifyAssetActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// ClassifyAssetActivity determines the asset's processing category from the
// declared MIME type, the filename extension and the object's leading bytes.
// The category is computed once here and drives every branch downstream;
// stages never re-classify.
func (w *Worker) ClassifyAssetActivity(ctx context.Context, param *ClassifyAssetActivityParam) (string, error) {
	asset, err := w.repository.GetAssetByUID(ctx, param.AssetUID)
	if err != nil {
		return "", stageApplicationError(err)
	}
	version, err := w.repository.GetCurrentVersion(ctx, param.AssetUID)
	if err != nil {
		return "", stageApplicationError(err)
	}

	content, err := w.objectStorage.GetFile(ctx, asset.StoragePath)
	if err != nil {
		return "", stageApplicationError(fmt.Errorf("fetching object head: %w", err))
	}
	head := content
	if len(head) > classifyHeadSize {
		head = head[:classifyHeadSize]
	}

	category := classifier.Classify(version.MimeType, filepath.Base(asset.StoragePath), head)

	updates := map[string]any{}
	if version.MimeType == "" && len(head) > 0 {
		updates[repository.AssetVersionColumn.MimeType] = mimetype.Detect(head).String()
	}
	if len(updates) > 0 {
		if _, err := w.repository.UpdateAssetVersion(ctx, version.UID, updates); err != nil {
			return "", stageApplicationError(err)
		}
	}

	w.log.Info("Classified asset",
		zap.String("assetUID", param.AssetUID.String()),
		zap.String("category", string(category)))
	return string(category), nil
}

// ShortCircuitActivityParam defines the parameters for the ShortCircuitActivity
type ShortCircuitActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// ShortCircuitActivity applies the terminal bookkeeping for unsupported
// assets: previews are skipped, every downstream flag that a stage would have
// set is set here, and only the finalizer will run afterwards.
func (w *Worker) ShortCircuitActivity(ctx context.Context, param *ShortCircuitActivityParam) error {
	if _, err := w.repository.CompareAndSwapThumbnailStatus(ctx, param.AssetUID,
		repository.ThumbnailStatusPending, repository.ThumbnailStatusSkipped,
		repository.ReasonUnsupportedType); err != nil {
		return stageApplicationError(err)
	}

	if _, err := w.repository.UpdateAsset(ctx, param.AssetUID, map[string]any{
		repository.AssetColumn.AnalysisStatus: string(repository.AnalysisStatusSkipped),
	}); err != nil {
		return stageApplicationError(err)
	}

	if _, err := w.repository.MergeAssetMetadata(ctx, param.AssetUID, map[string]any{
		repository.MetadataKeyExtractionSkipped: true,
		repository.MetadataKeyPreviewSkipped:    true,
		repository.MetadataKeyAISkipped:         true,
	}); err != nil {
		return stageApplicationError(err)
	}

	w.log.Info("Short-circuited unsupported asset", zap.String("assetUID", param.AssetUID.String()))
	return nil
}
