package domain

// IssuancePolicyInput is the document handed to the issuance policy.
type IssuancePolicyInput struct {
	IssuerID         string     `json:"issuer_id"`
	IssuerRegistered bool       `json:"issuer_registered"`
	IssuerTrustLevel string     `json:"issuer_trust_level"`
	SubjectID        string     `json:"subject_id"`
	CredentialTypes  []string   `json:"credential_types"`
	Claims           Attributes `json:"claims,omitempty"`
	HasExpiration    bool       `json:"has_expiration"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
