package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/errorsx"
)

// CreateAssetVersion inserts a version and demotes any prior current version
// of the same asset in the same transaction.
func (r *repository) CreateAssetVersion(ctx context.Context, version AssetVersionModel) (*AssetVersionModel, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if version.IsCurrent {
			where := fmt.Sprintf("%s = ? AND %s = ?", AssetVersionColumn.AssetUID, AssetVersionColumn.IsCurrent)
			if err := tx.Model(&AssetVersionModel{}).
				Where(where, version.AssetUID, true).
				Update(AssetVersionColumn.IsCurrent, false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&version).Error
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// GetCurrentVersion fetches the single current version of an asset.
func (r *repository) GetCurrentVersion(ctx context.Context, assetUID uuid.UUID) (*AssetVersionModel, error) {
	var version AssetVersionModel
	where := fmt.Sprintf("%s = ? AND %s = ?", AssetVersionColumn.AssetUID, AssetVersionColumn.IsCurrent)
	if err := r.db.WithContext(ctx).Where(where, assetUID, true).First(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetching current version: %w", errorsx.ErrNotFound)
		}
		return nil, err
	}
	return &version, nil
}

// UpdateAssetVersion applies a column update map to a version that has not
// completed its pipeline. Completed versions are immutable.
func (r *repository) UpdateAssetVersion(ctx context.Context, versionUID uuid.UUID, updates map[string]any) (*AssetVersionModel, error) {
	where := fmt.Sprintf("%s = ? AND %s <> ?", AssetVersionColumn.UID, AssetVersionColumn.PipelineStatus)
	res := r.db.WithContext(ctx).Model(&AssetVersionModel{}).
		Where(where, versionUID, string(PipelineStatusCompleted)).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("updating version: %w", errorsx.ErrNotFound)
	}
	return r.getVersionByUID(ctx, versionUID)
}

// ReopenAssetVersion lifts the completed-version freeze ahead of a re-run:
// pipeline status back to PENDING, completion timestamp cleared. This is the
// only write that may touch a completed version.
func (r *repository) ReopenAssetVersion(ctx context.Context, versionUID uuid.UUID) (*AssetVersionModel, error) {
	where := fmt.Sprintf("%s = ?", AssetVersionColumn.UID)
	res := r.db.WithContext(ctx).Model(&AssetVersionModel{}).
		Where(where, versionUID).
		Updates(map[string]any{
			AssetVersionColumn.PipelineStatus:      string(PipelineStatusPending),
			AssetVersionColumn.PipelineCompletedAt: nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("reopening version: %w", errorsx.ErrNotFound)
	}
	return r.getVersionByUID(ctx, versionUID)
}

// CompleteAssetVersion marks the version's pipeline finished, freezing it.
func (r *repository) CompleteAssetVersion(ctx context.Context, versionUID uuid.UUID) (*AssetVersionModel, error) {
	now := time.Now().UTC()
	return r.UpdateAssetVersion(ctx, versionUID, map[string]any{
		AssetVersionColumn.PipelineStatus:      string(PipelineStatusCompleted),
		AssetVersionColumn.PipelineCompletedAt: now,
	})
}

func (r *repository) getVersionByUID(ctx context.Context, versionUID uuid.UUID) (*AssetVersionModel, error) {
	var version AssetVersionModel
	where := fmt.Sprintf("%s = ?", AssetVersionColumn.UID)
	if err := r.db.WithContext(ctx).Where(where, versionUID).First(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetching version: %w", errorsx.ErrNotFound)
		}
		return nil, err
	}
	return &version, nil
}
