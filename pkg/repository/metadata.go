package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// assetScopedKeys survive every merge: the version bag may not overwrite
// them even when it carries the same key.
var assetScopedKeys = map[string]bool{
	MetadataKeyCategoryID:        true,
	MetadataKeyExtractionSkipped: true,
	MetadataKeyPreviewSkipped:    true,
	MetadataKeyAISkipped:         true,
}

// MergeMetadataBags folds a version's metadata into an asset's bag. Version
// values win on key conflicts, except asset-scoped keys, which always keep
// the asset's value. Neither input is mutated.
func MergeMetadataBags(asset, version map[string]any) map[string]any {
	out := make(map[string]any, len(asset)+len(version))
	for k, v := range asset {
		out[k] = v
	}
	for k, v := range version {
		if assetScopedKeys[k] {
			if _, held := out[k]; held {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// ComputedVersionMetadata derives the display fields of a rendered version:
// preview presence and count, pixel area, aspect ratio and orientation. The
// preview state is recorded alongside so consumers can tell a full preview
// set from a degraded or skipped one.
func ComputedVersionMetadata(version *AssetVersionModel, previewState ThumbnailStatus) (map[string]any, error) {
	thumbs, err := version.ThumbnailList()
	if err != nil {
		return nil, err
	}
	kv := map[string]any{
		"has_preview":   len(thumbs) > 0,
		"preview_count": len(thumbs),
		"pixel_area":    version.Width * version.Height,
		"preview_state": string(previewState),
	}
	if version.Width > 0 && version.Height > 0 {
		kv["aspect_ratio"] = float64(version.Width) / float64(version.Height)
		kv["orientation"] = orientationOf(version.Width, version.Height)
	}
	return kv, nil
}

func orientationOf(width, height int) string {
	switch {
	case width > height:
		return "landscape"
	case height > width:
		return "portrait"
	default:
		return "square"
	}
}

// withUpdateLock row-locks on postgres; sqlite (tests) has no FOR UPDATE and
// serializes writers anyway, so the query is left untouched there.
func withUpdateLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
