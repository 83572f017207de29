package domain

// TrustChain is the ordered path from an issuer (index 0) up to its root
// (last index).
type TrustChain struct {
	CredentialID string         `json:"credential_id,omitempty"`
	Issuers      []IssuerRecord `json:"issuers"`
	Valid        bool           `json:"valid"`
	Error        string         `json:"error,omitempty"`
}

func (c TrustChain) Depth() int {
	return len(c.Issuers)
}

// Issuer returns the immediate issuer, or nil for an empty chain.
func (c TrustChain) Issuer() *IssuerRecord {
	if len(c.Issuers) == 0 {
		return nil
	}
	rec := c.Issuers[0]
	return &rec
}

// RootIssuer returns the last link when it has no parent.
func (c TrustChain) RootIssuer() *IssuerRecord {
	if len(c.Issuers) == 0 {
		return nil
	}
	rec := c.Issuers[len(c.Issuers)-1]
	if !rec.IsRoot() {
		return nil
	}
	return &rec
}
