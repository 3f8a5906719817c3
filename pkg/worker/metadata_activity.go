package worker

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// ExtractMetadataActivityParam defines the parameters for the ExtractMetadataActivity
type ExtractMetadataActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// ExtractMetadataActivity reads intrinsic properties off the source object:
// byte size and, for image headers the registered decoders understand, the
// native dimensions. Runs before previews; it needs no pixel access.
func (w *Worker) ExtractMetadataActivity(ctx context.Context, param *ExtractMetadataActivityParam) error {
	asset, err := w.repository.GetAssetByUID(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}
	version, err := w.repository.GetCurrentVersion(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}

	content, err := w.objectStorage.GetFile(ctx, asset.StoragePath)
	if err != nil {
		return stageApplicationError(pipeline.NewStageError(pipeline.StageExtractMetadata,
			pipeline.FailureTransientIO, fmt.Errorf("fetching source object: %w", err)))
	}

	kv := map[string]any{
		"file_size_bytes": len(content),
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(content)); err == nil {
		kv["source_format"] = format
		if _, err := w.repository.UpdateAssetVersion(ctx, version.UID, map[string]any{
			repository.AssetVersionColumn.Width:  cfg.Width,
			repository.AssetVersionColumn.Height: cfg.Height,
		}); err != nil {
			return stageApplicationError(err)
		}
	}
	if _, err := w.mergeVersionMetadata(ctx, version, kv); err != nil {
		return stageApplicationError(err)
	}

	w.log.Info("Extracted intrinsic metadata",
		zap.String("assetUID", param.AssetUID.String()),
		zap.Int("bytes", len(content)))
	return nil
}

// PopulateComputedMetadataActivityParam defines the parameters for the PopulateComputedMetadataActivity
type PopulateComputedMetadataActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// PopulateComputedMetadataActivity derives display fields from the rendered
// previews. Gated: it checks the preview signal at entry and reports not
// ready without side effects, leaving the retry to the caller's schedule.
func (w *Worker) PopulateComputedMetadataActivity(ctx context.Context, param *PopulateComputedMetadataActivityParam) error {
	asset, err := w.requirePreviewReady(ctx, param.AssetUID)
	if err != nil {
		return err
	}
	version, err := w.repository.GetCurrentVersion(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}

	kv, err := repository.ComputedVersionMetadata(version, asset.ThumbnailStatus)
	if err != nil {
		return stageApplicationError(err)
	}
	if _, err := w.mergeVersionMetadata(ctx, version, kv); err != nil {
		return stageApplicationError(err)
	}

	w.log.Info("Populated computed metadata", zap.String("assetUID", param.AssetUID.String()))
	return nil
}
