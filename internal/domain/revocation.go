package domain

import "time"

// RevocationReason uses the RFC 5280 CRLReason names.
type RevocationReason string

const (
	ReasonUnspecified          RevocationReason = "unspecified"
	ReasonKeyCompromise        RevocationReason = "keyCompromise"
	ReasonCACompromise         RevocationReason = "caCompromise"
	ReasonAffiliationChanged   RevocationReason = "affiliationChanged"
	ReasonSuperseded           RevocationReason = "superseded"
	ReasonCessationOfOperation RevocationReason = "cessationOfOperation"
	ReasonCertificateHold      RevocationReason = "certificateHold"
	ReasonPrivilegeWithdrawn   RevocationReason = "privilegeWithdrawn"
	ReasonAACompromise         RevocationReason = "aaCompromise"
)

var knownReasons = map[RevocationReason]struct{}{
	ReasonUnspecified:          {},
	ReasonKeyCompromise:        {},
	ReasonCACompromise:         {},
	ReasonAffiliationChanged:   {},
	ReasonSuperseded:           {},
	ReasonCessationOfOperation: {},
	ReasonCertificateHold:      {},
	ReasonPrivilegeWithdrawn:   {},
	ReasonAACompromise:         {},
}

func (r RevocationReason) Valid() bool {
	_, ok := knownReasons[r]
	return ok
}

// Reversible reports whether an entry with this reason may be lifted.
// Only a certificate hold is reversible.
func (r RevocationReason) Reversible() bool {
	return r == ReasonCertificateHold
}

// RevocationEntry records one revocation or hold. There is at most one entry
// per credential id.
type RevocationEntry struct {
	ID           string           `json:"id"`
	CredentialID string           `json:"credential_id"`
	IssuerID     string           `json:"issuer_id,omitempty"`
	Reason       RevocationReason `json:"reason"`
	RevokedBy    string           `json:"revoked_by,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	StatusIndex  *int             `json:"status_index,omitempty"`
	RevokedAt    time.Time        `json:"revoked_at"`
}

// RevocationFilter narrows registry queries. Zero fields are ignored.
type RevocationFilter struct {
	IssuerID string
	Reason   RevocationReason
	Since    time.Time
}

func (f RevocationFilter) Matches(entry RevocationEntry) bool {
	if f.IssuerID != "" && entry.IssuerID != f.IssuerID {
		return false
	}
	if f.Reason != "" && entry.Reason != f.Reason {
		return false
	}
	if !f.Since.IsZero() && entry.RevokedAt.Before(f.Since) {
		return false
	}
	return true
}
