package domain

import "time"

type CertificateStatus string

const (
	CertificateStatusActive    CertificateStatus = "active"
	CertificateStatusSuspended CertificateStatus = "suspended"
	CertificateStatusRevoked   CertificateStatus = "revoked"
)

// ExtensionTrustLevel is the conventional extension key carrying the
// subject's trust level.
const ExtensionTrustLevel = "trust_level"

// Certificate is a signed attestation about a subject. Certificates are
// never deleted; revoked and suspended certificates stay queryable.
type Certificate struct {
	ID                  string            `json:"id"`
	IssuerID            string            `json:"issuer_id"`
	SubjectID           string            `json:"subject_id"`
	SubjectAttributes   Attributes        `json:"subject_attributes,omitempty"`
	PublicKey           []byte            `json:"public_key"`
	Signature           []byte            `json:"signature"`
	SignatureAlg        string            `json:"signature_alg"`
	ValidFrom           time.Time         `json:"valid_from"`
	ValidUntil          time.Time         `json:"valid_until"`
	Status              CertificateStatus `json:"status"`
	ParentCertificateID string            `json:"parent_certificate_id,omitempty"`
	Extensions          Attributes        `json:"extensions,omitempty"`
	Fingerprint         string            `json:"fingerprint"`
	RevocationReason    RevocationReason  `json:"revocation_reason,omitempty"`
	RevokedAt           *time.Time        `json:"revoked_at,omitempty"`
	SuspendedAt         *time.Time        `json:"suspended_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// IsRoot reports whether the certificate has no parent.
func (c Certificate) IsRoot() bool {
	return c.ParentCertificateID == ""
}

// IsValidAt reports whether the certificate is active and t falls inside
// [ValidFrom, ValidUntil].
func (c Certificate) IsValidAt(t time.Time) bool {
	if c.Status != CertificateStatusActive {
		return false
	}
	return !t.Before(c.ValidFrom) && !t.After(c.ValidUntil)
}

func (c Certificate) IsValid() bool {
	return c.IsValidAt(time.Now())
}

// Clone copies the certificate so callers cannot mutate stored state.
func (c Certificate) Clone() Certificate {
	out := c
	out.SubjectAttributes = c.SubjectAttributes.Clone()
	out.Extensions = c.Extensions.Clone()
	out.PublicKey = cloneBytes(c.PublicKey)
	out.Signature = cloneBytes(c.Signature)
	out.RevokedAt = cloneTime(c.RevokedAt)
	out.SuspendedAt = cloneTime(c.SuspendedAt)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	t := *in
	return &t
}
