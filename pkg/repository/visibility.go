package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// IsAssetVisible is the single visibility predicate. An asset is visible to
// consumers iff it is not deleted, not archived, its publish time has passed,
// and its lifecycle status is not HIDDEN. Processing state never participates:
// a FAILED asset whose previews never materialized is still visible, just
// without previews.
func IsAssetVisible(asset *AssetModel) bool {
	if asset == nil {
		return false
	}
	return asset.DeletedAt == nil &&
		asset.ArchivedAt == nil &&
		asset.PublishedAt != nil &&
		!asset.PublishedAt.After(time.Now().UTC()) &&
		asset.Status != AssetStatusHidden
}

// VisibleAssets is the query-side twin of IsAssetVisible. Every listing that
// serves consumers must go through this scope so the SQL filter cannot drift
// from the in-memory predicate.
func VisibleAssets(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf(
		"%s IS NULL AND %s IS NULL AND %s <= ? AND %s <> ?",
		AssetColumn.DeletedAt, AssetColumn.ArchivedAt, AssetColumn.PublishedAt, AssetColumn.Status,
	), time.Now().UTC(), string(AssetStatusHidden))
}
