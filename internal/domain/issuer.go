package domain

import (
	"fmt"
	"strings"
	"time"
)

type IssuerType string

const (
	IssuerTypeRootCA         IssuerType = "root_ca"
	IssuerTypeIntermediateCA IssuerType = "intermediate_ca"
	IssuerTypeIssuingCA      IssuerType = "issuing_ca"
	IssuerTypeTrustedIssuer  IssuerType = "trusted_issuer"
)

func (t IssuerType) Valid() bool {
	switch t {
	case IssuerTypeRootCA, IssuerTypeIntermediateCA, IssuerTypeIssuingCA, IssuerTypeTrustedIssuer:
		return true
	}
	return false
}

// TrustLevel is ordinal: UNKNOWN < BASIC < VERIFIED < HIGH < ULTIMATE.
type TrustLevel int

const (
	TrustLevelUnknown TrustLevel = iota
	TrustLevelBasic
	TrustLevelVerified
	TrustLevelHigh
	TrustLevelUltimate
)

var trustLevelNames = [...]string{"unknown", "basic", "verified", "high", "ultimate"}

func (l TrustLevel) String() string {
	if l < TrustLevelUnknown || l > TrustLevelUltimate {
		return fmt.Sprintf("trust_level(%d)", int(l))
	}
	return trustLevelNames[l]
}

func (l TrustLevel) Valid() bool {
	return l >= TrustLevelUnknown && l <= TrustLevelUltimate
}

func ParseTrustLevel(s string) (TrustLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range trustLevelNames {
		if n == name {
			return TrustLevel(i), nil
		}
	}
	return TrustLevelUnknown, fmt.Errorf("%w: unknown trust level %q", ErrInvalidArgument, s)
}

func (l TrustLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: trust level %d", ErrInvalidArgument, int(l))
	}
	return []byte(l.String()), nil
}

func (l *TrustLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseTrustLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// IssuerRecord is one participant of the trust framework. Records form a
// tree through ParentID; an empty ParentID marks a root.
type IssuerRecord struct {
	ID               string     `json:"id"`
	Type             IssuerType `json:"type"`
	TrustLevel       TrustLevel `json:"trust_level"`
	ParentID         string     `json:"parent_id,omitempty"`
	Metadata         Attributes `json:"metadata,omitempty"`
	Revoked          bool       `json:"revoked"`
	RevocationReason string     `json:"revocation_reason,omitempty"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (r IssuerRecord) IsRoot() bool {
	return r.ParentID == ""
}

func (r IssuerRecord) Clone() IssuerRecord {
	out := r
	out.Metadata = r.Metadata.Clone()
	out.RevokedAt = cloneTime(r.RevokedAt)
	return out
}
