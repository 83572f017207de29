package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type RevocationEpochRepository struct {
	db *gorm.DB
}

func NewRevocationEpochRepository(db *gorm.DB) *RevocationEpochRepository {
	return &RevocationEpochRepository{db: db}
}

func (r *RevocationEpochRepository) GetEpoch(ctx context.Context, scope string) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	if scope == "" {
		return 0, errors.New("epoch scope is required")
	}
	var epochs []int64
	if err := r.db.WithContext(ctx).
		Raw(`SELECT epoch FROM revocation_epochs WHERE scope = ?`, scope).
		Scan(&epochs).Error; err != nil {
		return 0, err
	}
	if len(epochs) == 0 {
		return 0, nil
	}
	return epochs[0], nil
}

// BumpEpoch increments atomically; concurrent bumps never return the same
// value.
func (r *RevocationEpochRepository) BumpEpoch(ctx context.Context, scope string) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	if scope == "" {
		return 0, errors.New("epoch scope is required")
	}
	var epoch int64
	if err := r.db.WithContext(ctx).
		Raw(
			`INSERT INTO revocation_epochs (scope, epoch, updated_at)
			 VALUES (?, 1, ?)
			 ON CONFLICT (scope)
			 DO UPDATE SET epoch = revocation_epochs.epoch + 1, updated_at = EXCLUDED.updated_at
			 RETURNING epoch`,
			scope,
			time.Now().UTC(),
		).Scan(&epoch).Error; err != nil {
		return 0, err
	}
	return epoch, nil
}
