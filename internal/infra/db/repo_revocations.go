package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attestd/internal/domain"
)

type RevocationRepository struct {
	db *gorm.DB
}

func NewRevocationRepository(db *gorm.DB) *RevocationRepository {
	return &RevocationRepository{db: db}
}

// Insert relies on the unique credential_id constraint: a conflicting
// insert affects no rows and reports domain.ErrAlreadyRevoked.
func (r *RevocationRepository) Insert(ctx context.Context, entry domain.RevocationEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := RevocationModel{
		ID:           entry.ID,
		CredentialID: entry.CredentialID,
		IssuerID:     stringPtrIfNotEmpty(entry.IssuerID),
		Reason:       string(entry.Reason),
		RevokedBy:    stringPtrIfNotEmpty(entry.RevokedBy),
		Notes:        stringPtrIfNotEmpty(entry.Notes),
		StatusIndex:  entry.StatusIndex,
		RevokedAt:    entry.RevokedAt.UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "credential_id"}}, DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyRevoked
	}
	return nil
}

func (r *RevocationRepository) Get(ctx context.Context, credentialID string) (*domain.RevocationEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RevocationModel
	if err := r.db.WithContext(ctx).Where("credential_id = ?", credentialID).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	entry := revocationFromModel(model)
	return &entry, nil
}

func (r *RevocationRepository) DeleteIfReason(ctx context.Context, credentialID string, reason domain.RevocationReason) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Where("credential_id = ? AND reason = ?", credentialID, string(reason)).
		Delete(&RevocationModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RevocationRepository) List(ctx context.Context, filter domain.RevocationFilter) ([]domain.RevocationEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Model(&RevocationModel{})
	if filter.IssuerID != "" {
		query = query.Where("issuer_id = ?", filter.IssuerID)
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", string(filter.Reason))
	}
	if !filter.Since.IsZero() {
		query = query.Where("revoked_at >= ?", filter.Since.UTC())
	}
	var models []RevocationModel
	if err := query.Order("revoked_at ASC").Order("credential_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RevocationEntry, 0, len(models))
	for _, model := range models {
		out = append(out, revocationFromModel(model))
	}
	return out, nil
}

func (r *RevocationRepository) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&RevocationModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RevocationRepository) Exists(ctx context.Context, credentialIDs []string) (map[string]bool, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	out := make(map[string]bool, len(credentialIDs))
	if len(credentialIDs) == 0 {
		return out, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).
		Model(&RevocationModel{}).
		Where("credential_id IN ?", credentialIDs).
		Pluck("credential_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func revocationFromModel(model RevocationModel) domain.RevocationEntry {
	return domain.RevocationEntry{
		ID:           model.ID,
		CredentialID: model.CredentialID,
		IssuerID:     stringValue(model.IssuerID),
		Reason:       domain.RevocationReason(model.Reason),
		RevokedBy:    stringValue(model.RevokedBy),
		Notes:        stringValue(model.Notes),
		StatusIndex:  model.StatusIndex,
		RevokedAt:    model.RevokedAt.UTC(),
	}
}
