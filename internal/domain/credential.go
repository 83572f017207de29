package domain

import "time"

const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	ContextStatusList    = "https://w3id.org/vc/status-list/2021/v1"

	TypeVerifiableCredential   = "VerifiableCredential"
	TypeVerifiablePresentation = "VerifiablePresentation"
	TypeStatusListCredential   = "StatusList2021Credential"
	TypeStatusList             = "StatusList2021"
	TypeStatusListEntry        = "StatusList2021Entry"

	StatusPurposeRevocation = "revocation"

	ProofPurposeAssertion      = "assertionMethod"
	ProofPurposeAuthentication = "authentication"
)

// Credential is a W3C-style verifiable credential. CredentialSubject always
// carries the subject id under "id".
type Credential struct {
	Context           []string          `json:"@context"`
	ID                string            `json:"id"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	IssuanceDate      time.Time         `json:"issuanceDate"`
	ExpirationDate    *time.Time        `json:"expirationDate,omitempty"`
	CredentialStatus  *CredentialStatus `json:"credentialStatus,omitempty"`
	CredentialSubject Attributes        `json:"credentialSubject"`
	Proof             *Proof            `json:"proof,omitempty"`
}

func (c Credential) SubjectID() string {
	id, _ := c.CredentialSubject.String("id")
	return id
}

// CredentialStatus is a StatusList2021Entry pointing at one bit of the
// issuer's status list.
type CredentialStatus struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose"`
	StatusListIndex      string `json:"statusListIndex"`
	StatusListCredential string `json:"statusListCredential"`
}

// Proof is a linked-data style proof. Challenge and Domain are set on
// presentation proofs to bind them to one verification request.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	ProofValue         string    `json:"proofValue,omitempty"`
	Challenge          string    `json:"challenge,omitempty"`
	Domain             string    `json:"domain,omitempty"`
}

// Presentation bundles credentials under a holder-bound, challenge-bound
// proof.
type Presentation struct {
	Context              []string     `json:"@context"`
	ID                   string       `json:"id"`
	Type                 []string     `json:"type"`
	Holder               string       `json:"holder"`
	VerifiableCredential []Credential `json:"verifiableCredential"`
	Proof                *Proof       `json:"proof,omitempty"`
}

// VerificationResult separates hard failures (Errors) from soft signals
// (Warnings). Valid is true iff Errors is empty.
type VerificationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type PresentationVerificationResult struct {
	Valid    bool     `json:"valid"`
	Holder   string   `json:"holder"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// StatusListCredential is the StatusList2021Credential document published
// for external verifiers.
type StatusListCredential struct {
	Context           []string          `json:"@context"`
	ID                string            `json:"id"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	IssuanceDate      time.Time         `json:"issuanceDate"`
	CredentialSubject StatusListSubject `json:"credentialSubject"`
	Proof             *Proof            `json:"proof,omitempty"`
}

type StatusListSubject struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	StatusPurpose string `json:"statusPurpose"`
	EncodedList   string `json:"encodedList"`
}
