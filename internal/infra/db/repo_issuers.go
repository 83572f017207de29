package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type IssuerRepository struct {
	db   *gorm.DB
	inTx bool
}

func NewIssuerRepository(db *gorm.DB) *IssuerRepository {
	return &IssuerRepository{db: db}
}

func (r *IssuerRepository) Create(ctx context.Context, rec domain.IssuerRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := issuerModelFromDomain(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return domain.ErrIssuerNotFound
		}
		return err
	}
	return nil
}

func (r *IssuerRepository) Get(ctx context.Context, id string) (*domain.IssuerRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx)
	if r.inTx {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model IssuerModel
	if err := query.Where("id = ?", id).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return issuerFromModel(model)
}

func (r *IssuerRepository) List(ctx context.Context) ([]domain.IssuerRecord, error) {
	return r.find(ctx, r.db)
}

func (r *IssuerRepository) ListChildren(ctx context.Context, parentID string) ([]domain.IssuerRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	return r.find(ctx, r.db.Where("parent_id = ?", parentID))
}

func (r *IssuerRepository) find(ctx context.Context, query *gorm.DB) ([]domain.IssuerRecord, error) {
	if query == nil {
		return nil, errDBUnavailable
	}
	var models []IssuerModel
	if err := query.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.IssuerRecord, 0, len(models))
	for _, model := range models {
		rec, err := issuerFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Update persists trust and revocation state. The parent link is fixed at
// creation.
func (r *IssuerRepository) Update(ctx context.Context, rec domain.IssuerRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	metadata, err := encodeAttributes(rec.Metadata)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&IssuerModel{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"trust_level":       int(rec.TrustLevel),
			"metadata":          metadata,
			"revoked":           rec.Revoked,
			"revocation_reason": stringPtrIfNotEmpty(rec.RevocationReason),
			"revoked_at":        utcPtr(rec.RevokedAt),
			"updated_at":        rec.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IssuerRepository) WithTx(ctx context.Context, fn func(repo usecase.IssuerRepository) error) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&IssuerRepository{db: tx, inTx: true})
	})
}

func issuerModelFromDomain(rec domain.IssuerRecord) (IssuerModel, error) {
	metadata, err := encodeAttributes(rec.Metadata)
	if err != nil {
		return IssuerModel{}, err
	}
	return IssuerModel{
		ID:               rec.ID,
		Type:             string(rec.Type),
		TrustLevel:       int(rec.TrustLevel),
		ParentID:         stringPtrIfNotEmpty(rec.ParentID),
		Metadata:         metadata,
		Revoked:          rec.Revoked,
		RevocationReason: stringPtrIfNotEmpty(rec.RevocationReason),
		RevokedAt:        utcPtr(rec.RevokedAt),
		CreatedAt:        rec.CreatedAt.UTC(),
		UpdatedAt:        rec.UpdatedAt.UTC(),
	}, nil
}

func issuerFromModel(model IssuerModel) (*domain.IssuerRecord, error) {
	metadata, err := decodeAttributes(model.Metadata)
	if err != nil {
		return nil, err
	}
	return &domain.IssuerRecord{
		ID:               model.ID,
		Type:             domain.IssuerType(model.Type),
		TrustLevel:       domain.TrustLevel(model.TrustLevel),
		ParentID:         stringValue(model.ParentID),
		Metadata:         metadata,
		Revoked:          model.Revoked,
		RevocationReason: stringValue(model.RevocationReason),
		RevokedAt:        utcPtr(model.RevokedAt),
		CreatedAt:        model.CreatedAt.UTC(),
		UpdatedAt:        model.UpdatedAt.UTC(),
	}, nil
}
