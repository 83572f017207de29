package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type CertificateRepository struct {
	db *gorm.DB
	// inTx makes reads take row locks.
	inTx bool
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Create(ctx context.Context, cert domain.Certificate) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := certificateModelFromDomain(cert)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *CertificateRepository) Get(ctx context.Context, id string) (*domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx)
	if r.inTx {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model CertificateModel
	if err := query.Where("id = ?", id).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return certificateFromModel(model)
}

func (r *CertificateRepository) GetBySubject(ctx context.Context, subjectID string) (*domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at DESC").
		Order("id DESC").
		Take(&model).Error
	if err != nil {
		return nil, notFound(err)
	}
	return certificateFromModel(model)
}

func (r *CertificateRepository) ListByStatus(ctx context.Context, status domain.CertificateStatus) ([]domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CertificateModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Certificate, 0, len(models))
	for _, model := range models {
		cert, err := certificateFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, *cert)
	}
	return out, nil
}

// Update persists the lifecycle fields. Identity, key material and validity
// are immutable after issuance.
func (r *CertificateRepository) Update(ctx context.Context, cert domain.Certificate) error {
	if r.db == nil {
		return errDBUnavailable
	}
	var reason *string
	if cert.RevocationReason != "" {
		v := string(cert.RevocationReason)
		reason = &v
	}
	res := r.db.WithContext(ctx).
		Model(&CertificateModel{}).
		Where("id = ?", cert.ID).
		Updates(map[string]any{
			"status":            string(cert.Status),
			"revocation_reason": reason,
			"revoked_at":        utcPtr(cert.RevokedAt),
			"suspended_at":      utcPtr(cert.SuspendedAt),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CertificateRepository) WithTx(ctx context.Context, fn func(repo usecase.CertificateRepository) error) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CertificateRepository{db: tx, inTx: true})
	})
}

func certificateModelFromDomain(cert domain.Certificate) (CertificateModel, error) {
	attrs, err := encodeAttributes(cert.SubjectAttributes)
	if err != nil {
		return CertificateModel{}, err
	}
	ext, err := encodeAttributes(cert.Extensions)
	if err != nil {
		return CertificateModel{}, err
	}
	var reason *string
	if cert.RevocationReason != "" {
		v := string(cert.RevocationReason)
		reason = &v
	}
	return CertificateModel{
		ID:                  cert.ID,
		IssuerID:            cert.IssuerID,
		SubjectID:           cert.SubjectID,
		SubjectAttributes:   attrs,
		PublicKey:           copyBytes(cert.PublicKey),
		Signature:           copyBytes(cert.Signature),
		SignatureAlg:        cert.SignatureAlg,
		ValidFrom:           cert.ValidFrom.UTC(),
		ValidUntil:          cert.ValidUntil.UTC(),
		Status:              string(cert.Status),
		ParentCertificateID: stringPtrIfNotEmpty(cert.ParentCertificateID),
		Extensions:          ext,
		Fingerprint:         cert.Fingerprint,
		RevocationReason:    reason,
		RevokedAt:           utcPtr(cert.RevokedAt),
		SuspendedAt:         utcPtr(cert.SuspendedAt),
		CreatedAt:           cert.CreatedAt.UTC(),
	}, nil
}

func certificateFromModel(model CertificateModel) (*domain.Certificate, error) {
	attrs, err := decodeAttributes(model.SubjectAttributes)
	if err != nil {
		return nil, err
	}
	ext, err := decodeAttributes(model.Extensions)
	if err != nil {
		return nil, err
	}
	return &domain.Certificate{
		ID:                  model.ID,
		IssuerID:            model.IssuerID,
		SubjectID:           model.SubjectID,
		SubjectAttributes:   attrs,
		PublicKey:           copyBytes(model.PublicKey),
		Signature:           copyBytes(model.Signature),
		SignatureAlg:        model.SignatureAlg,
		ValidFrom:           model.ValidFrom.UTC(),
		ValidUntil:          model.ValidUntil.UTC(),
		Status:              domain.CertificateStatus(model.Status),
		ParentCertificateID: stringValue(model.ParentCertificateID),
		Extensions:          ext,
		Fingerprint:         model.Fingerprint,
		RevocationReason:    domain.RevocationReason(stringValue(model.RevocationReason)),
		RevokedAt:           utcPtr(model.RevokedAt),
		SuspendedAt:         utcPtr(model.SuspendedAt),
		CreatedAt:           model.CreatedAt.UTC(),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
