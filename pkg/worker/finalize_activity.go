package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/objectstorage"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// FinalizeAssetActivityParam defines the parameters for the FinalizeAssetActivity
type FinalizeAssetActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// FinalizeAssetActivity commits the processing attempt: folds the current
// version's metadata bag into the asset's bag (version wins on conflicts,
// asset-scoped keys survive) and stamps the version completed. It runs once
// per attempt no matter how the upstream stages fared.
func (w *Worker) FinalizeAssetActivity(ctx context.Context, param *FinalizeAssetActivityParam) error {
	version, err := w.repository.GetCurrentVersion(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}

	if version.PipelineStatus == repository.PipelineStatusCompleted {
		// an earlier attempt of this activity already landed
		w.log.Info("Version already finalized", zap.String("assetUID", param.AssetUID.String()))
		return nil
	}

	// candidate bags are working state of the AI stage pair, not output
	contribution := make(map[string]any, len(version.Metadata))
	for k, v := range version.Metadata {
		if k == metadataKeyAICandidateTags || k == metadataKeyAICandidateFields {
			continue
		}
		contribution[k] = v
	}
	if _, err := w.repository.MergeAssetMetadata(ctx, param.AssetUID, contribution); err != nil {
		return stageApplicationError(err)
	}

	// an analysis that never concluded is closed as pending-free here so the
	// asset does not advertise work that will not happen
	asset, err := w.repository.GetAssetByUID(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}
	if asset.AnalysisStatus == repository.AnalysisStatusPending {
		if _, err := w.repository.UpdateAsset(ctx, param.AssetUID, map[string]any{
			repository.AssetColumn.AnalysisStatus: string(repository.AnalysisStatusFailed),
		}); err != nil {
			return stageApplicationError(err)
		}
	}

	if _, err := w.repository.CompleteAssetVersion(ctx, version.UID); err != nil {
		return stageApplicationError(err)
	}

	w.log.Info("Finalized asset", zap.String("assetUID", param.AssetUID.String()))
	return nil
}

// PromoteAssetActivityParam defines the parameters for the PromoteAssetActivity
type PromoteAssetActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// PromoteAssetActivity moves the object from its staging path to the
// canonical tenant-prefixed path via copy-then-delete. The asset's stored
// path flips only after the copy lands, so a crash mid-promotion never
// leaves the asset pointing at a missing object.
func (w *Worker) PromoteAssetActivity(ctx context.Context, param *PromoteAssetActivityParam) error {
	asset, err := w.repository.GetAssetByUID(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}

	permanent := objectstorage.GetPermanentPathOfAsset(
		asset.TenantUID.String(), asset.UID.String(), extOfPath(asset.StoragePath))
	if asset.StoragePath == permanent {
		// already promoted on an earlier attempt
		return nil
	}

	if err := w.objectStorage.PromoteFile(ctx, asset.StoragePath, permanent); err != nil {
		return stageApplicationError(pipeline.NewStageError(pipeline.StagePromote,
			pipeline.FailureTransientIO, fmt.Errorf("promoting object: %w", err)))
	}

	if _, err := w.repository.UpdateAsset(ctx, param.AssetUID, map[string]any{
		repository.AssetColumn.StoragePath: permanent,
	}); err != nil {
		return stageApplicationError(err)
	}

	w.log.Info("Promoted asset object",
		zap.String("assetUID", param.AssetUID.String()), zap.String("path", permanent))
	return nil
}

// extOfPath is the lowercase extension without the dot.
func extOfPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
