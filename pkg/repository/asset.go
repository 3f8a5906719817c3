package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/errorsx"
)

// CreateAsset inserts a new asset row.
func (r *repository) CreateAsset(ctx context.Context, asset AssetModel) (*AssetModel, error) {
	if err := r.db.WithContext(ctx).Create(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errorsx.ErrAlreadyExists
		}
		return nil, err
	}
	return &asset, nil
}

// GetAssetByUID fetches an asset regardless of visibility. Pipeline stages use
// this: they must keep operating on hidden and archived assets.
func (r *repository) GetAssetByUID(ctx context.Context, assetUID uuid.UUID) (*AssetModel, error) {
	var asset AssetModel
	where := fmt.Sprintf("%s = ?", AssetColumn.UID)
	if err := r.db.WithContext(ctx).Where(where, assetUID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetching asset: %w", errorsx.ErrNotFound)
		}
		return nil, err
	}
	return &asset, nil
}

// GetVisibleAssetByUID fetches an asset through the visibility scope. Consumer
// surfaces use this; a hit on a hidden asset reads as not found.
func (r *repository) GetVisibleAssetByUID(ctx context.Context, assetUID uuid.UUID) (*AssetModel, error) {
	var asset AssetModel
	where := fmt.Sprintf("%s = ?", AssetColumn.UID)
	err := r.db.WithContext(ctx).Scopes(VisibleAssets).Where(where, assetUID).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetching visible asset: %w", errorsx.ErrNotFound)
		}
		return nil, err
	}
	return &asset, nil
}

// ListVisibleAssets lists a tenant's consumer-visible assets.
func (r *repository) ListVisibleAssets(ctx context.Context, tenantUID uuid.UUID) ([]AssetModel, error) {
	var assets []AssetModel
	where := fmt.Sprintf("%s = ?", AssetColumn.TenantUID)
	err := r.db.WithContext(ctx).
		Scopes(VisibleAssets).
		Where(where, tenantUID).
		Order(fmt.Sprintf("%s DESC", AssetColumn.CreateTime)).
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// UpdateAsset applies a column update map and returns the fresh row.
func (r *repository) UpdateAsset(ctx context.Context, assetUID uuid.UUID, updates map[string]any) (*AssetModel, error) {
	where := fmt.Sprintf("%s = ?", AssetColumn.UID)
	res := r.db.WithContext(ctx).Model(&AssetModel{}).Where(where, assetUID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("updating asset: %w", errorsx.ErrNotFound)
	}
	return r.GetAssetByUID(ctx, assetUID)
}

// MarkProcessingStarted flips the idempotency guard. Only the caller that
// observes the flip (true) may run the pipeline for this commit; everyone
// else sees false and backs off.
func (r *repository) MarkProcessingStarted(ctx context.Context, assetUID uuid.UUID) (bool, error) {
	where := fmt.Sprintf("%s = ? AND %s = ?", AssetColumn.UID, AssetColumn.ProcessingStarted)
	res := r.db.WithContext(ctx).Model(&AssetModel{}).
		Where(where, assetUID, false).
		Update(AssetColumn.ProcessingStarted, true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResetProcessingStarted reopens the guard, used by recovery tooling when a
// run is known dead.
func (r *repository) ResetProcessingStarted(ctx context.Context, assetUID uuid.UUID) error {
	where := fmt.Sprintf("%s = ?", AssetColumn.UID)
	return r.db.WithContext(ctx).Model(&AssetModel{}).
		Where(where, assetUID).
		Update(AssetColumn.ProcessingStarted, false).Error
}

// CompareAndSwapThumbnailStatus transitions thumbnail_status only if the row
// still holds the expected prior state. Returns false when the row moved
// underneath the caller, which the watchdog and workers treat as "someone
// else got here first".
func (r *repository) CompareAndSwapThumbnailStatus(ctx context.Context, assetUID uuid.UUID, from, to ThumbnailStatus, reason string) (bool, error) {
	updates := map[string]any{
		AssetColumn.ThumbnailStatus: string(to),
		AssetColumn.ThumbnailReason: reason,
	}
	switch to {
	case ThumbnailStatusProcessing:
		updates[AssetColumn.ThumbnailStartedAt] = time.Now().UTC()
	case ThumbnailStatusCompleted, ThumbnailStatusFailed, ThumbnailStatusSkipped:
		updates[AssetColumn.ThumbnailStartedAt] = gorm.Expr("NULL")
	}
	where := fmt.Sprintf("%s = ? AND %s = ?", AssetColumn.UID, AssetColumn.ThumbnailStatus)
	res := r.db.WithContext(ctx).Model(&AssetModel{}).
		Where(where, assetUID, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListStuckThumbnailAssets returns assets that entered PROCESSING before the
// cutoff and never reached a terminal state. The watchdog sweeps these.
func (r *repository) ListStuckThumbnailAssets(ctx context.Context, startedBefore time.Time) ([]AssetModel, error) {
	var assets []AssetModel
	where := fmt.Sprintf("%s = ? AND %s IS NOT NULL AND %s < ?",
		AssetColumn.ThumbnailStatus, AssetColumn.ThumbnailStartedAt, AssetColumn.ThumbnailStartedAt)
	err := r.db.WithContext(ctx).
		Where(where, string(ThumbnailStatusProcessing), startedBefore).
		Order(fmt.Sprintf("%s ASC", AssetColumn.ThumbnailStartedAt)).
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// MergeAssetMetadata folds version metadata into the asset's bag with
// MergeMetadataBags and persists the result. The read-merge-write runs in a
// transaction with the row locked so concurrent finalizers cannot lose keys.
func (r *repository) MergeAssetMetadata(ctx context.Context, assetUID uuid.UUID, versionMetadata map[string]any) (*AssetModel, error) {
	var merged *AssetModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var asset AssetModel
		where := fmt.Sprintf("%s = ?", AssetColumn.UID)
		if err := withUpdateLock(tx).Where(where, assetUID).First(&asset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("merging metadata: %w", errorsx.ErrNotFound)
			}
			return err
		}
		bag := datatypes.JSONMap(MergeMetadataBags(asset.Metadata, versionMetadata))
		if err := tx.Model(&AssetModel{}).Where(where, assetUID).
			Update(AssetColumn.Metadata, bag).Error; err != nil {
			return err
		}
		asset.Metadata = bag
		merged = &asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}
