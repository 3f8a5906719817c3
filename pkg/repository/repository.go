package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Repository interface
type Repository interface {
	AssetRepositoryI
	AssetVersionRepositoryI
	FailureRecordRepositoryI
}

// AssetRepositoryI groups asset-level operations.
type AssetRepositoryI interface {
	CreateAsset(ctx context.Context, asset AssetModel) (*AssetModel, error)
	GetAssetByUID(ctx context.Context, assetUID uuid.UUID) (*AssetModel, error)
	GetVisibleAssetByUID(ctx context.Context, assetUID uuid.UUID) (*AssetModel, error)
	ListVisibleAssets(ctx context.Context, tenantUID uuid.UUID) ([]AssetModel, error)
	UpdateAsset(ctx context.Context, assetUID uuid.UUID, updates map[string]any) (*AssetModel, error)
	MarkProcessingStarted(ctx context.Context, assetUID uuid.UUID) (bool, error)
	ResetProcessingStarted(ctx context.Context, assetUID uuid.UUID) error
	CompareAndSwapThumbnailStatus(ctx context.Context, assetUID uuid.UUID, from, to ThumbnailStatus, reason string) (bool, error)
	ListStuckThumbnailAssets(ctx context.Context, startedBefore time.Time) ([]AssetModel, error)
	MergeAssetMetadata(ctx context.Context, assetUID uuid.UUID, versionMetadata map[string]any) (*AssetModel, error)
}

// AssetVersionRepositoryI groups version-level operations.
type AssetVersionRepositoryI interface {
	CreateAssetVersion(ctx context.Context, version AssetVersionModel) (*AssetVersionModel, error)
	GetCurrentVersion(ctx context.Context, assetUID uuid.UUID) (*AssetVersionModel, error)
	UpdateAssetVersion(ctx context.Context, versionUID uuid.UUID, updates map[string]any) (*AssetVersionModel, error)
	ReopenAssetVersion(ctx context.Context, versionUID uuid.UUID) (*AssetVersionModel, error)
	CompleteAssetVersion(ctx context.Context, versionUID uuid.UUID) (*AssetVersionModel, error)
}

// FailureRecordRepositoryI groups failure bookkeeping.
type FailureRecordRepositoryI interface {
	RecordFailure(ctx context.Context, record FailureRecordModel) (*FailureRecordModel, error)
	ListFailuresByAsset(ctx context.Context, assetUID uuid.UUID) ([]FailureRecordModel, error)
	ListUnresolvedFailures(ctx context.Context, stage string) ([]FailureRecordModel, error)
	ResolveFailures(ctx context.Context, assetUID uuid.UUID, stage string) (int64, error)
	HasUnresolvedFailure(ctx context.Context, assetUID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}
