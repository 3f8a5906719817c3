package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

// RecordFailure appends a failure record.
func (r *repository) RecordFailure(ctx context.Context, record FailureRecordModel) (*FailureRecordModel, error) {
	if record.Attempts == 0 {
		record.Attempts = 1
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListFailuresByAsset returns every failure for an asset, newest first.
func (r *repository) ListFailuresByAsset(ctx context.Context, assetUID uuid.UUID) ([]FailureRecordModel, error) {
	var records []FailureRecordModel
	where := fmt.Sprintf("%s = ?", FailureRecordColumn.AssetUID)
	err := r.db.WithContext(ctx).
		Where(where, assetUID).
		Order(fmt.Sprintf("%s DESC", FailureRecordColumn.CreateTime)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListUnresolvedFailures returns open failures, optionally filtered by stage.
func (r *repository) ListUnresolvedFailures(ctx context.Context, stage string) ([]FailureRecordModel, error) {
	var records []FailureRecordModel
	q := r.db.WithContext(ctx).
		Where(fmt.Sprintf("%s IS NULL", FailureRecordColumn.ResolvedAt))
	if stage != "" {
		q = q.Where(fmt.Sprintf("%s = ?", FailureRecordColumn.Stage), stage)
	}
	err := q.Order(fmt.Sprintf("%s DESC", FailureRecordColumn.CreateTime)).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ResolveFailures closes open failures for an asset. An empty stage closes
// all of them. Returns the number of records resolved.
func (r *repository) ResolveFailures(ctx context.Context, assetUID uuid.UUID, stage string) (int64, error) {
	now := time.Now().UTC()
	q := r.db.WithContext(ctx).Model(&FailureRecordModel{}).
		Where(fmt.Sprintf("%s = ? AND %s IS NULL", FailureRecordColumn.AssetUID, FailureRecordColumn.ResolvedAt), assetUID)
	if stage != "" {
		q = q.Where(fmt.Sprintf("%s = ?", FailureRecordColumn.Stage), stage)
	}
	res := q.Update(FailureRecordColumn.ResolvedAt, now)
	return res.RowsAffected, res.Error
}

// HasUnresolvedFailure reports whether an asset carries any open failure.
// Surfaces use this to flag processing issues without exposing the records.
func (r *repository) HasUnresolvedFailure(ctx context.Context, assetUID uuid.UUID) (bool, error) {
	var count int64
	where := fmt.Sprintf("%s = ? AND %s IS NULL", FailureRecordColumn.AssetUID, FailureRecordColumn.ResolvedAt)
	err := r.db.WithContext(ctx).Model(&FailureRecordModel{}).
		Where(where, assetUID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
