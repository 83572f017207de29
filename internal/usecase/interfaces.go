package usecase

import (
	"context"
	"time"

	"attestd/internal/domain"
)

type Clock func() time.Time

type CertificateRepository interface {
	Create(ctx context.Context, cert domain.Certificate) error
	Get(ctx context.Context, id string) (*domain.Certificate, error)
	// GetBySubject returns the most recently issued certificate for the subject.
	GetBySubject(ctx context.Context, subjectID string) (*domain.Certificate, error)
	ListByStatus(ctx context.Context, status domain.CertificateStatus) ([]domain.Certificate, error)
	Update(ctx context.Context, cert domain.Certificate) error
	WithTx(ctx context.Context, fn func(repo CertificateRepository) error) error
}

type RevocationRepository interface {
	// Insert fails with domain.ErrAlreadyRevoked when the credential already has an entry.
	Insert(ctx context.Context, entry domain.RevocationEntry) error
	Get(ctx context.Context, credentialID string) (*domain.RevocationEntry, error)
	DeleteIfReason(ctx context.Context, credentialID string, reason domain.RevocationReason) (bool, error)
	List(ctx context.Context, filter domain.RevocationFilter) ([]domain.RevocationEntry, error)
	Count(ctx context.Context) (int64, error)
	Exists(ctx context.Context, credentialIDs []string) (map[string]bool, error)
}

type RevocationEpochRepository interface {
	GetEpoch(ctx context.Context, issuerID string) (int64, error)
	BumpEpoch(ctx context.Context, issuerID string) (int64, error)
}

type StatusIndexRepository interface {
	// Allocate is idempotent per credential id.
	Allocate(ctx context.Context, credentialID string) (int, error)
	Lookup(ctx context.Context, credentialID string) (int, bool, error)
}

type IssuerRepository interface {
	// Create fails with domain.ErrAlreadyExists for a duplicate id.
	Create(ctx context.Context, rec domain.IssuerRecord) error
	Get(ctx context.Context, id string) (*domain.IssuerRecord, error)
	List(ctx context.Context) ([]domain.IssuerRecord, error)
	ListChildren(ctx context.Context, parentID string) ([]domain.IssuerRecord, error)
	Update(ctx context.Context, rec domain.IssuerRecord) error
	WithTx(ctx context.Context, fn func(repo IssuerRepository) error) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type EventLog interface {
	Append(ctx context.Context, event domain.Event) (domain.Event, error)
	List(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error)
}

type CryptoService interface {
	Canonicalize(v any) ([]byte, error)
	Digest(v any) (string, error)
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.IssuancePolicyInput) (domain.PolicyEvaluation, error)
}

// Authority is the identity this deployment signs certificates and
// credentials as.
type Authority struct {
	ID     string
	Signer domain.Signer
}

func (a Authority) VerificationMethod() string {
	return a.ID + "#key-1"
}
