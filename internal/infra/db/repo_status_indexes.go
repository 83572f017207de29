package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatusIndexRepository struct {
	db *gorm.DB
}

func NewStatusIndexRepository(db *gorm.DB) *StatusIndexRepository {
	return &StatusIndexRepository{db: db}
}

// Allocate draws the next index from status_list_counter. Concurrent
// allocations for the same credential converge on the first stored index.
func (r *StatusIndexRepository) Allocate(ctx context.Context, credentialID string) (int, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	if credentialID == "" {
		return 0, errors.New("credential_id is required")
	}
	if idx, ok, err := r.Lookup(ctx, credentialID); err != nil || ok {
		return idx, err
	}
	var idx int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`INSERT INTO status_list_counter (id, next_index)
			 VALUES (1, 1)
			 ON CONFLICT (id)
			 DO UPDATE SET next_index = status_list_counter.next_index + 1
			 RETURNING next_index - 1`,
		).Scan(&idx).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "credential_id"}}, DoNothing: true}).
			Create(&StatusIndexModel{
				CredentialID: credentialID,
				StatusIndex:  idx,
				CreatedAt:    time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return 0, err
	}
	stored, ok, err := r.Lookup(ctx, credentialID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("status index allocation lost")
	}
	return stored, nil
}

func (r *StatusIndexRepository) Lookup(ctx context.Context, credentialID string) (int, bool, error) {
	if r.db == nil {
		return 0, false, errDBUnavailable
	}
	var model StatusIndexModel
	err := r.db.WithContext(ctx).Where("credential_id = ?", credentialID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return model.StatusIndex, true, nil
}
