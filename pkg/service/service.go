package service

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/objectstorage"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// Workflow parameter types - these match the worker package types structurally

// ProcessAssetWorkflowParam defines the parameters for the ProcessAssetWorkflow
type ProcessAssetWorkflowParam struct {
	AssetUID  uuid.UUID
	TenantUID uuid.UUID
}

// Workflow interfaces - these match the worker package interfaces structurally

// ProcessAssetWorkflow interface
type ProcessAssetWorkflow interface {
	Execute(ctx context.Context, param ProcessAssetWorkflowParam) error
}

// Service defines the asset pipeline use cases exposed to entrypoints and to
// the operational tooling.
type Service interface {
	// ProcessAsset reacts to a committed upload: it takes the per-asset
	// trigger lease and starts one processing attempt. Duplicate deliveries
	// of the same commit event collapse into a single attempt.
	ProcessAsset(ctx context.Context, assetUID, tenantUID uuid.UUID) error

	// RetryPreview re-runs processing for an asset whose preview stage landed
	// on FAILED. Terminal failures stay terminal until this is called.
	RetryPreview(ctx context.Context, assetUID, tenantUID uuid.UUID) error

	// RetrySkippedStages re-runs processing for assets that skipped a stage
	// for the given reason code, typically after a missing capability has
	// been restored. It returns the number of assets re-triggered.
	RetrySkippedStages(ctx context.Context, tenantUID uuid.UUID, reason string) (int, error)

	// ListStuckAssets reports assets sitting in PROCESSING past the watchdog
	// threshold. The watchdog reconciles these on its own schedule; this is
	// the on-demand view for operators.
	ListStuckAssets(ctx context.Context) ([]repository.AssetModel, error)

	// RepairStuckAssets reconciles stuck assets immediately instead of
	// waiting for the next watchdog pass, then re-triggers them.
	RepairStuckAssets(ctx context.Context) (int, error)

	// RecomputeComputedMetadata backfills the preview-derived metadata fields
	// across a tenant's visible assets, writing into the asset bags directly
	// since historical versions are frozen. Returns the number of assets
	// updated.
	RecomputeComputedMetadata(ctx context.Context, tenantUID uuid.UUID) (int, error)

	// AssetHasProcessingIssue reports whether the asset carries unresolved
	// failure records. Surfaces in admin listings, never in asset visibility.
	AssetHasProcessingIssue(ctx context.Context, assetUID uuid.UUID) (bool, error)

	// GetAssetFailures lists the asset's failure records, newest first.
	GetAssetFailures(ctx context.Context, assetUID uuid.UUID) ([]repository.FailureRecordModel, error)

	// TODO instead of exposing these dependencies, Service should expose use
	// cases covering what callers need from them.
	Repository() repository.Repository
	ObjectStorage() objectstorage.ObjectStorageI
	RedisClient() *redis.Client

	// Workflow interfaces for proper decoupling
	ProcessAssetWorkflow() ProcessAssetWorkflow
}

type service struct {
	repository    repository.Repository
	objectStorage objectstorage.ObjectStorageI
	redisClient   *redis.Client
	pipeline      config.PipelineConfig

	// Workflow implementations
	processAssetWorkflow ProcessAssetWorkflow
}

// NewService initiates a service instance
func NewService(
	r repository.Repository,
	os objectstorage.ObjectStorageI,
	rc *redis.Client,
	pipelineConfig config.PipelineConfig,
	processAssetWorkflow ProcessAssetWorkflow,
) Service {
	return &service{
		repository:           r,
		objectStorage:        os,
		redisClient:          rc,
		pipeline:             pipelineConfig,
		processAssetWorkflow: processAssetWorkflow,
	}
}

func (s *service) Repository() repository.Repository           { return s.repository }
func (s *service) ObjectStorage() objectstorage.ObjectStorageI { return s.objectStorage }
func (s *service) RedisClient() *redis.Client                  { return s.redisClient }
func (s *service) ProcessAssetWorkflow() ProcessAssetWorkflow  { return s.processAssetWorkflow }
