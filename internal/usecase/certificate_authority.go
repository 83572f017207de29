package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attestd/internal/domain"
)

type IssueCertificateRequest struct {
	SubjectID           string
	SubjectAttributes   domain.Attributes
	PublicKey           []byte
	ValidFrom           time.Time
	ValidUntil          time.Time
	ParentCertificateID string
	Extensions          domain.Attributes
}

// CertificateAuthority issues certificates and drives their lifecycle.
// When Revocations is set, revoking a certificate also records it in the
// registry so VerifyCertificate and registry lookups agree.
type CertificateAuthority struct {
	Authority    Authority
	Certificates CertificateRepository
	Revocations  *RevocationRegistry
	Crypto       CryptoService
	Events       *EventEmitter
	Clock        Clock
	Logger       *zap.Logger
}

func NewCertificateAuthority(authority Authority, certificates CertificateRepository, crypto CryptoService, clock Clock) *CertificateAuthority {
	return &CertificateAuthority{
		Authority:    authority,
		Certificates: certificates,
		Crypto:       crypto,
		Clock:        clock,
	}
}

// certificatePayload is the signed portion of a certificate.
type certificatePayload struct {
	ID                  string            `json:"id"`
	IssuerID            string            `json:"issuer_id"`
	SubjectID           string            `json:"subject_id"`
	SubjectAttributes   domain.Attributes `json:"subject_attributes,omitempty"`
	PublicKey           []byte            `json:"public_key"`
	SignatureAlg        string            `json:"signature_alg"`
	ValidFrom           string            `json:"valid_from"`
	ValidUntil          string            `json:"valid_until"`
	ParentCertificateID string            `json:"parent_certificate_id,omitempty"`
	Extensions          domain.Attributes `json:"extensions,omitempty"`
}

func (a *CertificateAuthority) IssueCertificate(ctx context.Context, req IssueCertificateRequest) (domain.Certificate, error) {
	if err := a.ready(); err != nil {
		return domain.Certificate{}, err
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if req.SubjectID == "" {
		return domain.Certificate{}, fmt.Errorf("%w: subject_id is required", domain.ErrInvalidArgument)
	}
	now := a.now().UTC()
	if req.ValidFrom.IsZero() {
		req.ValidFrom = now
	}
	if req.ValidUntil.IsZero() {
		return domain.Certificate{}, fmt.Errorf("%w: valid_until is required", domain.ErrInvalidArgument)
	}
	validFrom := req.ValidFrom.UTC().Truncate(time.Microsecond)
	validUntil := req.ValidUntil.UTC().Truncate(time.Microsecond)
	if validFrom.After(validUntil) {
		return domain.Certificate{}, domain.ErrInvalidValidity
	}
	if req.ParentCertificateID != "" {
		if _, err := a.Certificates.Get(ctx, req.ParentCertificateID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Certificate{}, fmt.Errorf("%w: parent certificate %s not found", domain.ErrInvalidArgument, req.ParentCertificateID)
			}
			return domain.Certificate{}, err
		}
	}

	publicKey := req.PublicKey
	if len(publicKey) == 0 {
		publicKey = a.Authority.Signer.PublicKey()
	}
	cert := domain.Certificate{
		ID:                  newCertificateID(),
		IssuerID:            a.Authority.ID,
		SubjectID:           req.SubjectID,
		SubjectAttributes:   req.SubjectAttributes.Clone(),
		PublicKey:           append([]byte(nil), publicKey...),
		SignatureAlg:        a.Authority.Signer.Algorithm(),
		ValidFrom:           validFrom,
		ValidUntil:          validUntil,
		Status:              domain.CertificateStatusActive,
		ParentCertificateID: req.ParentCertificateID,
		Extensions:          req.Extensions.Clone(),
		CreatedAt:           now.Truncate(time.Microsecond),
	}
	canonical, err := a.Crypto.Canonicalize(payloadOf(cert))
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("canonicalize certificate: %w", err)
	}
	signature, err := a.Authority.Signer.Sign(canonical)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("sign certificate: %w", err)
	}
	cert.Signature = signature
	cert.Fingerprint = sha256Hex(append(canonical, signature...))

	if err := a.Certificates.Create(ctx, cert); err != nil {
		return domain.Certificate{}, err
	}
	a.logger().Info("certificate issued",
		zap.String("certificate_id", cert.ID),
		zap.String("subject_id", cert.SubjectID),
	)
	a.Events.EmitCertificateIssued(ctx, cert)
	return cert, nil
}

// RevokeCertificate moves an active or suspended certificate to revoked.
// It returns false for an unknown id and domain.ErrAlreadyRevoked when the
// certificate is already revoked.
func (a *CertificateAuthority) RevokeCertificate(ctx context.Context, id string, reason domain.RevocationReason) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	if reason == "" {
		reason = domain.ReasonUnspecified
	}
	if !reason.Valid() {
		return false, fmt.Errorf("%w: unknown revocation reason %q", domain.ErrInvalidArgument, reason)
	}
	var revoked domain.Certificate
	found, already := false, false
	err := a.Certificates.WithTx(ctx, func(repo CertificateRepository) error {
		cert, err := repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		found = true
		if cert.Status == domain.CertificateStatusRevoked {
			already = true
			revoked = *cert
			return nil
		}
		revokedAt := a.now().UTC()
		cert.Status = domain.CertificateStatusRevoked
		cert.RevocationReason = reason
		cert.RevokedAt = &revokedAt
		cert.SuspendedAt = nil
		if err := repo.Update(ctx, *cert); err != nil {
			return err
		}
		revoked = *cert
		return nil
	})
	if err != nil || !found {
		return false, err
	}
	// The ledger entry is written only once the certificate is committed. A
	// repeated revoke fills it in if an earlier attempt died in between.
	a.recordLedgerEntry(ctx, revoked)
	if already {
		return false, domain.ErrAlreadyRevoked
	}
	a.logger().Info("certificate revoked",
		zap.String("certificate_id", id),
		zap.String("reason", string(reason)),
	)
	a.Events.EmitCertificateStatusChanged(ctx, domain.EventCertificateRevoked, revoked)
	return true, nil
}

func (a *CertificateAuthority) recordLedgerEntry(ctx context.Context, cert domain.Certificate) {
	if a.Revocations == nil {
		return
	}
	_, err := a.Revocations.Revoke(ctx, RevocationRequest{
		CredentialID: cert.ID,
		IssuerID:     cert.IssuerID,
		Reason:       cert.RevocationReason,
		RevokedBy:    a.Authority.ID,
		Notes:        "certificate revoked",
	})
	if err != nil && !errors.Is(err, domain.ErrAlreadyRevoked) {
		a.logger().Error("record certificate revocation failed",
			zap.String("certificate_id", cert.ID),
			zap.Error(err),
		)
	}
}

// SuspendCertificate puts an active certificate on hold. Certificates in any
// other state, and unknown ids, yield false.
func (a *CertificateAuthority) SuspendCertificate(ctx context.Context, id string, reason domain.RevocationReason) (bool, error) {
	if reason == "" {
		reason = domain.ReasonCertificateHold
	}
	if !reason.Valid() {
		return false, fmt.Errorf("%w: unknown revocation reason %q", domain.ErrInvalidArgument, reason)
	}
	return a.transition(ctx, id, domain.CertificateStatusActive, domain.EventCertificateSuspended, func(cert *domain.Certificate, now time.Time) {
		cert.Status = domain.CertificateStatusSuspended
		cert.RevocationReason = reason
		cert.SuspendedAt = &now
	})
}

// ReinstateCertificate returns a suspended certificate to active. The
// recorded reason is kept.
func (a *CertificateAuthority) ReinstateCertificate(ctx context.Context, id string) (bool, error) {
	return a.transition(ctx, id, domain.CertificateStatusSuspended, domain.EventCertificateReinstated, func(cert *domain.Certificate, now time.Time) {
		cert.Status = domain.CertificateStatusActive
		cert.SuspendedAt = nil
	})
}

func (a *CertificateAuthority) transition(ctx context.Context, id string, from domain.CertificateStatus, eventType domain.EventType, apply func(cert *domain.Certificate, now time.Time)) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	var updated domain.Certificate
	changed := false
	err := a.Certificates.WithTx(ctx, func(repo CertificateRepository) error {
		cert, err := repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		if cert.Status != from {
			return nil
		}
		apply(cert, a.now().UTC())
		if err := repo.Update(ctx, *cert); err != nil {
			return err
		}
		updated = *cert
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}
	a.Events.EmitCertificateStatusChanged(ctx, eventType, updated)
	return true, nil
}

// VerifyCertificate reports whether the certificate is active, inside its
// validity window, carries an intact signature from this authority and has
// no registry entry.
func (a *CertificateAuthority) VerifyCertificate(ctx context.Context, id string) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	cert, ok, err := a.GetCertificate(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if !cert.IsValidAt(a.now()) {
		return false, nil
	}
	if cert.IssuerID == a.Authority.ID {
		canonical, err := a.Crypto.Canonicalize(payloadOf(*cert))
		if err != nil {
			return false, fmt.Errorf("canonicalize certificate: %w", err)
		}
		if !a.Authority.Signer.Verify(canonical, cert.Signature) {
			a.logger().Warn("certificate signature mismatch", zap.String("certificate_id", id))
			return false, nil
		}
	}
	if a.Revocations != nil {
		revoked, err := a.Revocations.IsRevoked(ctx, id)
		if err != nil {
			return false, err
		}
		if revoked {
			return false, nil
		}
	}
	return true, nil
}

func (a *CertificateAuthority) GetCertificate(ctx context.Context, id string) (*domain.Certificate, bool, error) {
	if a == nil || a.Certificates == nil {
		return nil, false, errors.New("certificate repository is required")
	}
	cert, err := a.Certificates.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return cert, true, nil
}

// GetCertificateBySubject returns the most recently issued certificate for
// the subject.
func (a *CertificateAuthority) GetCertificateBySubject(ctx context.Context, subjectID string) (*domain.Certificate, bool, error) {
	if a == nil || a.Certificates == nil {
		return nil, false, errors.New("certificate repository is required")
	}
	cert, err := a.Certificates.GetBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return cert, true, nil
}

func (a *CertificateAuthority) GetCertificateStatus(ctx context.Context, id string) (domain.CertificateStatus, bool, error) {
	cert, ok, err := a.GetCertificate(ctx, id)
	if err != nil || !ok {
		return "", ok, err
	}
	return cert.Status, true, nil
}

func (a *CertificateAuthority) GetActiveCertificates(ctx context.Context) ([]domain.Certificate, error) {
	if a == nil || a.Certificates == nil {
		return nil, errors.New("certificate repository is required")
	}
	return a.Certificates.ListByStatus(ctx, domain.CertificateStatusActive)
}

func (a *CertificateAuthority) ready() error {
	if a == nil {
		return errors.New("certificate authority is nil")
	}
	if a.Certificates == nil {
		return errors.New("certificate repository is required")
	}
	if a.Crypto == nil {
		return errors.New("crypto service is required")
	}
	if a.Authority.ID == "" || a.Authority.Signer == nil {
		return errors.New("authority identity and signer are required")
	}
	return nil
}

func (a *CertificateAuthority) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func (a *CertificateAuthority) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func payloadOf(cert domain.Certificate) certificatePayload {
	return certificatePayload{
		ID:                  cert.ID,
		IssuerID:            cert.IssuerID,
		SubjectID:           cert.SubjectID,
		SubjectAttributes:   cert.SubjectAttributes,
		PublicKey:           cert.PublicKey,
		SignatureAlg:        cert.SignatureAlg,
		ValidFrom:           cert.ValidFrom.UTC().Format(time.RFC3339Nano),
		ValidUntil:          cert.ValidUntil.UTC().Format(time.RFC3339Nano),
		ParentCertificateID: cert.ParentCertificateID,
		Extensions:          cert.Extensions,
	}
}

func newCertificateID() string {
	return "cert_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
