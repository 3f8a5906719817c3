package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// Version metadata keys private to the AI stage pair: candidates land first,
// the apply/suggest stages consume them.
const (
	metadataKeyAICandidateTags   = "ai_candidate_tags"
	metadataKeyAICandidateFields = "ai_candidate_fields"
	metadataKeyAITagSuggestions  = "ai_tag_suggestions"
)

// suggestedMetadataFields are the fields the vision model is asked to fill.
var suggestedMetadataFields = []string{"title", "description", "alt_text"}

// analysisRenditionMinWidth picks the preview handed to the vision model:
// the smallest rendition at least this wide.
const analysisRenditionMinWidth = 256

// AIActivityParam is shared by the four AI stages; they all operate on the
// asset's current version.
type AIActivityParam struct {
	AssetUID uuid.UUID // Asset unique identifier
}

// AITagActivity sends a rendered preview to the vision model and stores the
// candidate tags with their confidence scores. Gated on preview readiness.
func (w *Worker) AITagActivity(ctx context.Context, param *AIActivityParam) error {
	asset, err := w.requirePreviewReady(ctx, param.AssetUID)
	if err != nil {
		return err
	}

	version, rendition, skip, err := w.analysisInput(ctx, asset)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	content, err := w.objectStorage.GetFile(ctx, rendition.Path)
	if err != nil {
		return stageApplicationError(pipeline.NewStageError(pipeline.StageAITag,
			pipeline.FailureTransientIO, fmt.Errorf("fetching rendition: %w", err)))
	}

	tags, err := w.aiClient.TagImage(ctx, content, mimeOfExt(rendition.Path))
	if err != nil {
		return stageApplicationError(pipeline.NewStageError(pipeline.StageAITag,
			pipeline.FailureTransientIO, err))
	}

	if _, err := w.mergeVersionMetadata(ctx, version, map[string]any{
		metadataKeyAICandidateTags: tags,
	}); err != nil {
		return stageApplicationError(err)
	}
	w.log.Info("Stored candidate tags",
		zap.String("assetUID", param.AssetUID.String()), zap.Int("count", len(tags)))
	return nil
}

// AIGenerateMetadataActivity asks the vision model to propose values for the
// suggested metadata fields. Gated on preview readiness.
func (w *Worker) AIGenerateMetadataActivity(ctx context.Context, param *AIActivityParam) error {
	asset, err := w.requirePreviewReady(ctx, param.AssetUID)
	if err != nil {
		return err
	}

	version, rendition, skip, err := w.analysisInput(ctx, asset)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	content, err := w.objectStorage.GetFile(ctx, rendition.Path)
	if err != nil {
		return stageApplicationError(pipeline.NewStageError(pipeline.StageAIMetadata,
			pipeline.FailureTransientIO, fmt.Errorf("fetching rendition: %w", err)))
	}

	fields, err := w.aiClient.SuggestMetadata(ctx, content, mimeOfExt(rendition.Path), suggestedMetadataFields)
	if err != nil {
		return stageApplicationError(pipeline.NewStageError(pipeline.StageAIMetadata,
			pipeline.FailureTransientIO, err))
	}

	if _, err := w.mergeVersionMetadata(ctx, version, map[string]any{
		metadataKeyAICandidateFields: fields,
	}); err != nil {
		return stageApplicationError(err)
	}
	return nil
}

// AIAutoApplyTagsActivity splits the candidate tags at the configured
// confidence threshold: confident tags are applied, the rest kept as
// suggestions for review. Gated on preview readiness.
func (w *Worker) AIAutoApplyTagsActivity(ctx context.Context, param *AIActivityParam) error {
	if _, err := w.requirePreviewReady(ctx, param.AssetUID); err != nil {
		return err
	}
	if w.aiClient == nil {
		return nil
	}
	version, err := w.repository.GetCurrentVersion(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}

	var candidates []ai.Tag
	if err := decodeMetadataValue(version.Metadata[metadataKeyAICandidateTags], &candidates); err != nil {
		return stageApplicationError(err)
	}

	applied := make([]string, 0, len(candidates))
	var suggestions []ai.Tag
	for _, tag := range candidates {
		if tag.Confidence >= w.pipeline.AutoApplyConfidence {
			applied = append(applied, tag.Name)
		} else {
			suggestions = append(suggestions, tag)
		}
	}

	if _, err := w.mergeVersionMetadata(ctx, version, map[string]any{
		repository.MetadataKeyAITags: applied,
		metadataKeyAITagSuggestions:  suggestions,
	}); err != nil {
		return stageApplicationError(err)
	}
	w.log.Info("Auto-applied tags",
		zap.String("assetUID", param.AssetUID.String()),
		zap.Int("applied", len(applied)), zap.Int("suggested", len(suggestions)))
	return nil
}

// AISuggestMetadataActivity applies confident field proposals directly and
// stores the rest for human review, then closes the analysis. Gated on
// preview readiness.
func (w *Worker) AISuggestMetadataActivity(ctx context.Context, param *AIActivityParam) error {
	if _, err := w.requirePreviewReady(ctx, param.AssetUID); err != nil {
		return err
	}
	if w.aiClient == nil {
		return nil
	}
	version, err := w.repository.GetCurrentVersion(ctx, param.AssetUID)
	if err != nil {
		return stageApplicationError(err)
	}

	var candidates []ai.SuggestedField
	if err := decodeMetadataValue(version.Metadata[metadataKeyAICandidateFields], &candidates); err != nil {
		return stageApplicationError(err)
	}

	kv := map[string]any{}
	var suggested []ai.SuggestedField
	for _, field := range candidates {
		if field.Confidence >= w.pipeline.AutoApplyConfidence {
			kv[field.Name] = field.Value
		} else {
			suggested = append(suggested, field)
		}
	}
	kv[repository.MetadataKeyAISuggested] = suggested

	if _, err := w.mergeVersionMetadata(ctx, version, kv); err != nil {
		return stageApplicationError(err)
	}
	if _, err := w.repository.UpdateAsset(ctx, param.AssetUID, map[string]any{
		repository.AssetColumn.AnalysisStatus: string(repository.AnalysisStatusCompleted),
	}); err != nil {
		return stageApplicationError(err)
	}
	return nil
}

// analysisInput resolves the version and the rendition to analyze. skip=true
// means the AI stages have nothing to do here (no client configured or no
// rasterized preview exists); the skip flags are recorded once.
func (w *Worker) analysisInput(ctx context.Context, asset *repository.AssetModel) (version *repository.AssetVersionModel, rendition *repository.Thumbnail, skip bool, err error) {
	version, err = w.repository.GetCurrentVersion(ctx, asset.UID)
	if err != nil {
		return nil, nil, false, stageApplicationError(err)
	}

	if w.aiClient == nil {
		return version, nil, true, w.markAISkipped(ctx, asset)
	}

	thumbs, err := version.ThumbnailList()
	if err != nil {
		return nil, nil, false, stageApplicationError(err)
	}
	if len(thumbs) == 0 {
		// vector or skipped assets have no raster surface to analyze
		return version, nil, true, w.markAISkipped(ctx, asset)
	}

	pick := thumbs[0]
	for _, t := range thumbs[1:] {
		switch {
		case pick.Width < analysisRenditionMinWidth && t.Width > pick.Width:
			pick = t
		case t.Width >= analysisRenditionMinWidth && t.Width < pick.Width:
			pick = t
		}
	}
	return version, &pick, false, nil
}

func (w *Worker) markAISkipped(ctx context.Context, asset *repository.AssetModel) error {
	if asset.AnalysisStatus == repository.AnalysisStatusSkipped {
		return nil
	}
	if _, err := w.repository.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.AnalysisStatus: string(repository.AnalysisStatusSkipped),
	}); err != nil {
		return stageApplicationError(err)
	}
	if _, err := w.repository.MergeAssetMetadata(ctx, asset.UID, map[string]any{
		repository.MetadataKeyAISkipped: true,
	}); err != nil {
		return stageApplicationError(err)
	}
	return nil
}

// decodeMetadataValue converts a metadata bag value back into a typed slice.
// Values are native structs right after being written and generic JSON after
// a DB round trip; the marshal hop handles both.
func decodeMetadataValue(v any, out any) error {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// mimeOfExt maps a rendition path to its content type.
func mimeOfExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
