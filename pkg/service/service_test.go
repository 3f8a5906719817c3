package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gofrs/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/errorsx"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

type fakeProcessAssetWorkflow struct {
	calls []ProcessAssetWorkflowParam
	err   error
}

func (f *fakeProcessAssetWorkflow) Execute(_ context.Context, param ProcessAssetWorkflowParam) error {
	f.calls = append(f.calls, param)
	return f.err
}

// metadataNumber reads a numeric bag value. Numbers come back from the DB as
// json.Number, not float64.
func metadataNumber(c *qt.C, v any) float64 {
	n, ok := v.(json.Number)
	c.Assert(ok, qt.IsTrue, qt.Commentf("value %v (%T) is not a number", v, v))
	f, err := n.Float64()
	c.Assert(err, qt.IsNil)
	return f
}

func newTestService(c *qt.C) (Service, repository.Repository, *fakeProcessAssetWorkflow) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	c.Assert(err, qt.IsNil)
	err = db.AutoMigrate(
		&repository.AssetModel{},
		&repository.AssetVersionModel{},
		&repository.FailureRecordModel{},
	)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		db.Exec("DROP TABLE asset")
		db.Exec("DROP TABLE asset_version")
		db.Exec("DROP TABLE failure_record")
	})

	repo := repository.NewRepository(db)
	wf := &fakeProcessAssetWorkflow{}
	svc := NewService(repo, nil, nil, config.PipelineConfig{
		WatchdogThreshold: 15 * time.Minute,
	}, wf)
	return svc, repo, wf
}

func seedServiceAsset(c *qt.C, repo repository.Repository, status repository.ThumbnailStatus) *repository.AssetModel {
	asset, err := repo.CreateAsset(context.Background(), repository.AssetModel{
		TenantUID:       uuid.Must(uuid.NewV4()),
		Status:          repository.AssetStatusVisible,
		ThumbnailStatus: status,
		AnalysisStatus:  repository.AnalysisStatusPending,
		StoragePath:     "tenant/staging/file.png",
		Bucket:          "assets",
	})
	c.Assert(err, qt.IsNil)
	return asset
}

func TestProcessAsset(t *testing.T) {
	c := qt.New(t)
	svc, repo, wf := newTestService(c)
	ctx := context.Background()

	asset := seedServiceAsset(c, repo, repository.ThumbnailStatusPending)

	err := svc.ProcessAsset(ctx, asset.UID, asset.TenantUID)
	c.Assert(err, qt.IsNil)
	c.Assert(wf.calls, qt.HasLen, 1)
	c.Check(wf.calls[0].AssetUID, qt.Equals, asset.UID)
	c.Check(wf.calls[0].TenantUID, qt.Equals, asset.TenantUID)
}

func TestRetryPreview(t *testing.T) {
	c := qt.New(t)
	svc, repo, wf := newTestService(c)
	ctx := context.Background()

	asset := seedServiceAsset(c, repo, repository.ThumbnailStatusFailed)
	won, err := repo.MarkProcessingStarted(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Assert(won, qt.IsTrue)
	_, err = repo.RecordFailure(ctx, repository.FailureRecordModel{
		AssetUID: asset.UID,
		Stage:    string(pipeline.StageGeneratePreviews),
		Category: string(pipeline.FailureDecode),
		Message:  "corrupt payload",
	})
	c.Assert(err, qt.IsNil)

	err = svc.RetryPreview(ctx, asset.UID, asset.TenantUID)
	c.Assert(err, qt.IsNil)
	c.Assert(wf.calls, qt.HasLen, 1)

	// the retry resets every piece of processing bookkeeping
	got, err := repo.GetAssetByUID(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ThumbnailStatus, qt.Equals, repository.ThumbnailStatusPending)
	c.Check(got.ProcessingStarted, qt.IsFalse)

	issue, err := svc.AssetHasProcessingIssue(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(issue, qt.IsFalse)
}

func TestRetryPreview_AfterFinalize(t *testing.T) {
	c := qt.New(t)
	svc, repo, wf := newTestService(c)
	ctx := context.Background()

	// first attempt failed terminally but the finalizer still ran and froze
	// the current version
	asset := seedServiceAsset(c, repo, repository.ThumbnailStatusFailed)
	version, err := repo.CreateAssetVersion(ctx, repository.AssetVersionModel{
		AssetUID:  asset.UID,
		IsCurrent: true,
	})
	c.Assert(err, qt.IsNil)
	_, err = repo.CompleteAssetVersion(ctx, version.UID)
	c.Assert(err, qt.IsNil)
	_, err = repo.UpdateAssetVersion(ctx, version.UID, map[string]any{
		repository.AssetVersionColumn.Width: 800,
	})
	c.Assert(errors.Is(err, errorsx.ErrNotFound), qt.IsTrue)

	err = svc.RetryPreview(ctx, asset.UID, asset.TenantUID)
	c.Assert(err, qt.IsNil)
	c.Assert(wf.calls, qt.HasLen, 1)

	// the retry reopened the version so the stages can persist again
	got, err := repo.GetCurrentVersion(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.PipelineStatus, qt.Equals, repository.PipelineStatusPending)
	c.Check(got.PipelineCompletedAt, qt.IsNil)

	_, err = repo.UpdateAssetVersion(ctx, version.UID, map[string]any{
		repository.AssetVersionColumn.Width:  800,
		repository.AssetVersionColumn.Height: 600,
	})
	c.Assert(err, qt.IsNil)
}

func TestRetryPreview_RequiresFailedState(t *testing.T) {
	c := qt.New(t)
	svc, repo, wf := newTestService(c)
	ctx := context.Background()

	asset := seedServiceAsset(c, repo, repository.ThumbnailStatusCompleted)

	err := svc.RetryPreview(ctx, asset.UID, asset.TenantUID)
	c.Assert(err, qt.IsNotNil)
	c.Check(errors.Is(err, errorsx.ErrInvalidArgument), qt.IsTrue)
	c.Check(wf.calls, qt.HasLen, 0)
}

func TestRetrySkippedStages(t *testing.T) {
	c := qt.New(t)
	svc, repo, wf := newTestService(c)
	ctx := context.Background()

	missing := seedServiceAsset(c, repo, repository.ThumbnailStatusFailed)
	decodeFail := seedServiceAsset(c, repo, repository.ThumbnailStatusFailed)

	_, err := repo.RecordFailure(ctx, repository.FailureRecordModel{
		AssetUID: missing.UID,
		Stage:    string(pipeline.StageGeneratePreviews),
		Category: string(pipeline.FailureMissingCapability),
		Message:  "pdftoppm not installed",
	})
	c.Assert(err, qt.IsNil)
	_, err = repo.RecordFailure(ctx, repository.FailureRecordModel{
		AssetUID: decodeFail.UID,
		Stage:    string(pipeline.StageGeneratePreviews),
		Category: string(pipeline.FailureDecode),
		Message:  "corrupt payload",
	})
	c.Assert(err, qt.IsNil)

	retried, err := svc.RetrySkippedStages(ctx, missing.TenantUID, string(pipeline.FailureMissingCapability))
	c.Assert(err, qt.IsNil)
	c.Check(retried, qt.Equals, 1)
	c.Assert(wf.calls, qt.HasLen, 1)
	c.Check(wf.calls[0].AssetUID, qt.Equals, missing.UID)
}

func TestRepairStuckAssets(t *testing.T) {
	c := qt.New(t)
	svc, repo, wf := newTestService(c)
	ctx := context.Background()

	stuck := seedServiceAsset(c, repo, repository.ThumbnailStatusPending)
	_, err := repo.CompareAndSwapThumbnailStatus(ctx, stuck.UID,
		repository.ThumbnailStatusPending, repository.ThumbnailStatusProcessing, "")
	c.Assert(err, qt.IsNil)
	started := time.Now().UTC().Add(-time.Hour)
	_, err = repo.UpdateAsset(ctx, stuck.UID, map[string]any{
		repository.AssetColumn.ThumbnailStartedAt: &started,
	})
	c.Assert(err, qt.IsNil)

	listed, err := svc.ListStuckAssets(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(listed, qt.HasLen, 1)

	repaired, err := svc.RepairStuckAssets(ctx)
	c.Assert(err, qt.IsNil)
	c.Check(repaired, qt.Equals, 1)
	c.Assert(wf.calls, qt.HasLen, 1)

	got, err := repo.GetAssetByUID(ctx, stuck.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ThumbnailStatus, qt.Equals, repository.ThumbnailStatusPending)
	// visibility is untouched by the repair
	c.Check(got.Status, qt.Equals, repository.AssetStatusVisible)
}

func TestRecomputeComputedMetadata(t *testing.T) {
	c := qt.New(t)
	svc, repo, _ := newTestService(c)
	ctx := context.Background()

	asset := seedServiceAsset(c, repo, repository.ThumbnailStatusCompleted)
	published := time.Now().UTC().Add(-time.Hour)
	_, err := repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.PublishedAt: &published,
	})
	c.Assert(err, qt.IsNil)

	thumbs, err := repository.MarshalThumbnails([]repository.Thumbnail{
		{Size: "medium", Path: "t/thumbnail/a/medium.jpeg", Width: 512, Height: 384},
	})
	c.Assert(err, qt.IsNil)
	_, err = repo.CreateAssetVersion(ctx, repository.AssetVersionModel{
		AssetUID:   asset.UID,
		IsCurrent:  true,
		Width:      1024,
		Height:     768,
		Thumbnails: thumbs,
	})
	c.Assert(err, qt.IsNil)

	// still-pending assets are left out of the backfill
	_, err = repo.CreateAsset(ctx, repository.AssetModel{
		TenantUID:       asset.TenantUID,
		Status:          repository.AssetStatusVisible,
		PublishedAt:     &published,
		ThumbnailStatus: repository.ThumbnailStatusPending,
		AnalysisStatus:  repository.AnalysisStatusPending,
		StoragePath:     "tenant/staging/pending.png",
		Bucket:          "assets",
	})
	c.Assert(err, qt.IsNil)

	updated, err := svc.RecomputeComputedMetadata(ctx, asset.TenantUID)
	c.Assert(err, qt.IsNil)
	c.Check(updated, qt.Equals, 1)

	got, err := repo.GetAssetByUID(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.Metadata["has_preview"], qt.Equals, true)
	c.Check(got.Metadata["orientation"], qt.Equals, "landscape")
	c.Check(metadataNumber(c, got.Metadata["pixel_area"]), qt.Equals, float64(1024*768))
}
