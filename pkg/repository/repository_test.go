package repository_test

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gofrs/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

func newTestDB(c *qt.C) *gorm.DB {
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
	return db
}

func newTestAsset(c *qt.C, repo repository.Repository) *repository.AssetModel {
	asset, err := repo.CreateAsset(context.Background(), repository.AssetModel{
		TenantUID:       uuid.Must(uuid.NewV4()),
		Status:          repository.AssetStatusVisible,
		ThumbnailStatus: repository.ThumbnailStatusPending,
		AnalysisStatus:  repository.AnalysisStatusPending,
		StoragePath:     "tenant/raw/logo.png",
		Bucket:          "assets",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(asset.UID.IsNil(), qt.IsFalse)
	return asset
}

func TestRepository_MarkProcessingStarted(t *testing.T) {
	c := qt.New(t)
	repo := repository.NewRepository(newTestDB(c))
	ctx := context.Background()

	asset := newTestAsset(c, repo)

	won, err := repo.MarkProcessingStarted(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(won, qt.IsTrue)

	// second trigger for the same commit loses the guard
	won, err = repo.MarkProcessingStarted(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(won, qt.IsFalse)

	err = repo.ResetProcessingStarted(ctx, asset.UID)
	c.Check(err, qt.IsNil)

	won, err = repo.MarkProcessingStarted(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(won, qt.IsTrue)
}

func TestRepository_CompareAndSwapThumbnailStatus(t *testing.T) {
	c := qt.New(t)
	repo := repository.NewRepository(newTestDB(c))
	ctx := context.Background()

	asset := newTestAsset(c, repo)

	swapped, err := repo.CompareAndSwapThumbnailStatus(ctx, asset.UID,
		repository.ThumbnailStatusPending, repository.ThumbnailStatusProcessing, "")
	c.Check(err, qt.IsNil)
	c.Check(swapped, qt.IsTrue)

	got, err := repo.GetAssetByUID(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ThumbnailStatus, qt.Equals, repository.ThumbnailStatusProcessing)
	c.Check(got.ThumbnailStartedAt, qt.IsNotNil)

	// stale expectation loses
	swapped, err = repo.CompareAndSwapThumbnailStatus(ctx, asset.UID,
		repository.ThumbnailStatusPending, repository.ThumbnailStatusProcessing, "")
	c.Check(err, qt.IsNil)
	c.Check(swapped, qt.IsFalse)

	swapped, err = repo.CompareAndSwapThumbnailStatus(ctx, asset.UID,
		repository.ThumbnailStatusProcessing, repository.ThumbnailStatusFailed, repository.ReasonTimeout)
	c.Check(err, qt.IsNil)
	c.Check(swapped, qt.IsTrue)

	got, err = repo.GetAssetByUID(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ThumbnailStatus, qt.Equals, repository.ThumbnailStatusFailed)
	c.Check(got.ThumbnailReason, qt.Equals, repository.ReasonTimeout)
	c.Check(got.ThumbnailStartedAt, qt.IsNil)
}

func TestRepository_ListStuckThumbnailAssets(t *testing.T) {
	c := qt.New(t)
	repo := repository.NewRepository(newTestDB(c))
	ctx := context.Background()

	stuck := newTestAsset(c, repo)
	fresh := newTestAsset(c, repo)

	for _, a := range []*repository.AssetModel{stuck, fresh} {
		swapped, err := repo.CompareAndSwapThumbnailStatus(ctx, a.UID,
			repository.ThumbnailStatusPending, repository.ThumbnailStatusProcessing, "")
		c.Assert(err, qt.IsNil)
		c.Assert(swapped, qt.IsTrue)
	}

	// age the first one past the cutoff
	old := time.Now().UTC().Add(-30 * time.Minute)
	_, err := repo.UpdateAsset(ctx, stuck.UID, map[string]any{
		repository.AssetColumn.ThumbnailStartedAt: old,
	})
	c.Assert(err, qt.IsNil)

	got, err := repo.ListStuckThumbnailAssets(ctx, time.Now().UTC().Add(-15*time.Minute))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
	c.Check(got[0].UID, qt.Equals, stuck.UID)
}

func TestRepository_Visibility(t *testing.T) {
	c := qt.New(t)
	repo := repository.NewRepository(newTestDB(c))
	ctx := context.Background()

	asset := newTestAsset(c, repo)
	c.Check(repository.IsAssetVisible(asset), qt.IsFalse)

	_, err := repo.GetVisibleAssetByUID(ctx, asset.UID)
	c.Check(err, qt.IsNotNil)

	now := time.Now().UTC()
	asset, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.PublishedAt: now,
	})
	c.Assert(err, qt.IsNil)
	c.Check(repository.IsAssetVisible(asset), qt.IsTrue)

	got, err := repo.GetVisibleAssetByUID(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(got.UID, qt.Equals, asset.UID)

	// processing failure does not hide the asset
	_, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.ThumbnailStatus: string(repository.ThumbnailStatusFailed),
	})
	c.Assert(err, qt.IsNil)
	_, err = repo.GetVisibleAssetByUID(ctx, asset.UID)
	c.Check(err, qt.IsNil)

	// neither does a FAILED lifecycle status on a published asset
	asset, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.Status: string(repository.AssetStatusFailed),
	})
	c.Assert(err, qt.IsNil)
	c.Check(repository.IsAssetVisible(asset), qt.IsTrue)
	got, err = repo.GetVisibleAssetByUID(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(got.UID, qt.Equals, asset.UID)

	// a publish time in the future keeps the asset out of view
	future := now.Add(time.Hour)
	asset, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.PublishedAt: &future,
	})
	c.Assert(err, qt.IsNil)
	c.Check(repository.IsAssetVisible(asset), qt.IsFalse)
	_, err = repo.GetVisibleAssetByUID(ctx, asset.UID)
	c.Check(err, qt.IsNotNil)
	asset, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.PublishedAt: &now,
	})
	c.Assert(err, qt.IsNil)

	// hiding by lifecycle status does
	asset, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.Status: string(repository.AssetStatusHidden),
	})
	c.Assert(err, qt.IsNil)
	c.Check(repository.IsAssetVisible(asset), qt.IsFalse)
	asset, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.Status: string(repository.AssetStatusVisible),
	})
	c.Assert(err, qt.IsNil)

	// archiving does
	asset, err = repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.ArchivedAt: now,
	})
	c.Assert(err, qt.IsNil)
	c.Check(repository.IsAssetVisible(asset), qt.IsFalse)
	_, err = repo.GetVisibleAssetByUID(ctx, asset.UID)
	c.Check(err, qt.IsNotNil)

	list, err := repo.ListVisibleAssets(ctx, asset.TenantUID)
	c.Assert(err, qt.IsNil)
	c.Check(list, qt.HasLen, 0)
}

func TestRepository_MergeAssetMetadata(t *testing.T) {
	c := qt.New(t)
	repo := repository.NewRepository(newTestDB(c))
	ctx := context.Background()

	asset := newTestAsset(c, repo)
	_, err := repo.UpdateAsset(ctx, asset.UID, map[string]any{
		repository.AssetColumn.Metadata: datatypes.JSONMap{
			repository.MetadataKeyCategoryID: "cat-7",
			"title":                          "old title",
		},
	})
	c.Assert(err, qt.IsNil)

	merged, err := repo.MergeAssetMetadata(ctx, asset.UID, map[string]any{
		repository.MetadataKeyCategoryID: "cat-9",
		"title":                          "new title",
		"width":                          800,
	})
	c.Assert(err, qt.IsNil)

	// version wins on plain keys, asset-scoped keys survive
	c.Check(merged.Metadata["title"], qt.Equals, "new title")
	c.Check(merged.Metadata[repository.MetadataKeyCategoryID], qt.Equals, "cat-7")
	c.Check(merged.Metadata["width"], qt.Not(qt.IsNil))
}

func TestMergeMetadataBags(t *testing.T) {
	c := qt.New(t)

	asset := map[string]any{
		repository.MetadataKeyCategoryID: "cat-1",
		"author":                         "ann",
	}
	version := map[string]any{
		repository.MetadataKeyCategoryID: "cat-2",
		"author":                         "bob",
		"pages":                          3,
	}

	out := repository.MergeMetadataBags(asset, version)
	c.Check(out[repository.MetadataKeyCategoryID], qt.Equals, "cat-1")
	c.Check(out["author"], qt.Equals, "bob")
	c.Check(out["pages"], qt.Equals, 3)

	// inputs untouched
	c.Check(asset["author"], qt.Equals, "ann")

	// asset-scoped key passes through when the asset never held it
	out = repository.MergeMetadataBags(map[string]any{}, version)
	c.Check(out[repository.MetadataKeyCategoryID], qt.Equals, "cat-2")
}

func TestRepository_AssetVersionLifecycle(t *testing.T) {
	c := qt.New(t)
	repo := repository.NewRepository(newTestDB(c))
	ctx := context.Background()

	asset := newTestAsset(c, repo)

	v1, err := repo.CreateAssetVersion(ctx, repository.AssetVersionModel{
		AssetUID:  asset.UID,
		IsCurrent: true,
		MimeType:  "image/png",
	})
	c.Assert(err, qt.IsNil)

	v2, err := repo.CreateAssetVersion(ctx, repository.AssetVersionModel{
		AssetUID:  asset.UID,
		IsCurrent: true,
		MimeType:  "image/png",
	})
	c.Assert(err, qt.IsNil)

	current, err := repo.GetCurrentVersion(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(current.UID, qt.Equals, v2.UID)
	c.Check(current.UID, qt.Not(qt.Equals), v1.UID)

	thumbs, err := repository.MarshalThumbnails([]repository.Thumbnail{
		{Size: "small", Path: "tenant/thumbs/small.webp", Width: 256, Height: 171},
	})
	c.Assert(err, qt.IsNil)

	updated, err := repo.UpdateAssetVersion(ctx, v2.UID, map[string]any{
		repository.AssetVersionColumn.Width:      800,
		repository.AssetVersionColumn.Height:     534,
		repository.AssetVersionColumn.Thumbnails: thumbs,
	})
	c.Assert(err, qt.IsNil)
	c.Check(updated.Width, qt.Equals, 800)

	list, err := updated.ThumbnailList()
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	c.Check(list[0].Size, qt.Equals, "small")

	completed, err := repo.CompleteAssetVersion(ctx, v2.UID)
	c.Assert(err, qt.IsNil)
	c.Check(completed.PipelineStatus, qt.Equals, repository.PipelineStatusCompleted)
	c.Check(completed.PipelineCompletedAt, qt.IsNotNil)

	// completed versions are frozen
	_, err = repo.UpdateAssetVersion(ctx, v2.UID, map[string]any{
		repository.AssetVersionColumn.Width: 1,
	})
	c.Check(err, qt.IsNotNil)

	// reopening lifts the freeze for a re-run
	reopened, err := repo.ReopenAssetVersion(ctx, v2.UID)
	c.Assert(err, qt.IsNil)
	c.Check(reopened.PipelineStatus, qt.Equals, repository.PipelineStatusPending)
	c.Check(reopened.PipelineCompletedAt, qt.IsNil)

	updated, err = repo.UpdateAssetVersion(ctx, v2.UID, map[string]any{
		repository.AssetVersionColumn.Width: 1024,
	})
	c.Assert(err, qt.IsNil)
	c.Check(updated.Width, qt.Equals, 1024)
}

func TestRepository_FailureRecords(t *testing.T) {
	c := qt.New(t)
	repo := repository.NewRepository(newTestDB(c))
	ctx := context.Background()

	asset := newTestAsset(c, repo)

	has, err := repo.HasUnresolvedFailure(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(has, qt.IsFalse)

	_, err = repo.RecordFailure(ctx, repository.FailureRecordModel{
		AssetUID: asset.UID,
		Stage:    "generate-previews",
		Category: "decode",
		Message:  "decoding image: unexpected EOF",
	})
	c.Assert(err, qt.IsNil)
	_, err = repo.RecordFailure(ctx, repository.FailureRecordModel{
		AssetUID: asset.UID,
		Stage:    "ai-tag",
		Category: "transient-io",
		Message:  "calling vision model: connection reset",
		Attempts: 3,
	})
	c.Assert(err, qt.IsNil)

	has, err = repo.HasUnresolvedFailure(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(has, qt.IsTrue)

	records, err := repo.ListFailuresByAsset(ctx, asset.UID)
	c.Assert(err, qt.IsNil)
	c.Check(records, qt.HasLen, 2)

	open, err := repo.ListUnresolvedFailures(ctx, "generate-previews")
	c.Assert(err, qt.IsNil)
	c.Assert(open, qt.HasLen, 1)
	c.Check(open[0].Stage, qt.Equals, "generate-previews")

	n, err := repo.ResolveFailures(ctx, asset.UID, "generate-previews")
	c.Check(err, qt.IsNil)
	c.Check(n, qt.Equals, int64(1))

	has, err = repo.HasUnresolvedFailure(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(has, qt.IsTrue)

	n, err = repo.ResolveFailures(ctx, asset.UID, "")
	c.Check(err, qt.IsNil)
	c.Check(n, qt.Equals, int64(1))

	has, err = repo.HasUnresolvedFailure(ctx, asset.UID)
	c.Check(err, qt.IsNil)
	c.Check(has, qt.IsFalse)
}
