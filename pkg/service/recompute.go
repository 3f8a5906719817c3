package service

import (
	"context"

	"github.com/gofrs/uuid"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

func (s *service) RecomputeComputedMetadata(ctx context.Context, tenantUID uuid.UUID) (int, error) {
	assets, err := s.repository.ListVisibleAssets(ctx, tenantUID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, asset := range assets {
		if !asset.ThumbnailStatus.Ready() {
			continue
		}
		version, err := s.repository.GetCurrentVersion(ctx, asset.UID)
		if err != nil {
			return updated, err
		}

		kv, err := repository.ComputedVersionMetadata(version, asset.ThumbnailStatus)
		if err != nil {
			return updated, err
		}
		// completed versions are frozen, so backfilled fields land on the
		// asset bag the same way the finalizer would have merged them
		if _, err := s.repository.MergeAssetMetadata(ctx, asset.UID, kv); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
