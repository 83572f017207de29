package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attestd/internal/domain"
)

const ProofTypeDataIntegrity = "DataIntegrityProof"

type IssueCredentialRequest struct {
	SubjectID      string
	Claims         domain.Attributes
	Types          []string
	ExpirationDate *time.Time
}

type CreatePresentationRequest struct {
	Holder      string
	Credentials []domain.Credential
	Challenge   string
	Domain      string
}

// CredentialService issues and verifies credentials and presentations on
// behalf of Authority. Revocation and trust lookups are delegated to the
// registry and the trust framework.
type CredentialService struct {
	Authority     Authority
	Revocations   *RevocationRegistry
	Trust         *TrustFramework
	Policy        PolicyEngine
	Crypto        CryptoService
	Events        *EventEmitter
	Clock         Clock
	Logger        *zap.Logger
	StatusListURL string
}

func NewCredentialService(authority Authority, revocations *RevocationRegistry, trust *TrustFramework, crypto CryptoService, clock Clock) *CredentialService {
	return &CredentialService{
		Authority:   authority,
		Revocations: revocations,
		Trust:       trust,
		Crypto:      crypto,
		Clock:       clock,
	}
}

func (s *CredentialService) IssueCredential(ctx context.Context, req IssueCredentialRequest) (domain.Credential, error) {
	if err := s.ready(); err != nil {
		return domain.Credential{}, err
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if req.SubjectID == "" {
		return domain.Credential{}, fmt.Errorf("%w: subject_id is required", domain.ErrInvalidArgument)
	}
	now := s.now().UTC().Truncate(time.Second)
	if req.ExpirationDate != nil && !req.ExpirationDate.After(now) {
		return domain.Credential{}, fmt.Errorf("%w: expiration_date must be in the future", domain.ErrInvalidArgument)
	}
	types := credentialTypes(req.Types)

	if err := s.checkIssuance(ctx, req, types); err != nil {
		return domain.Credential{}, err
	}

	subject := req.Claims.Clone()
	if subject == nil {
		subject = domain.Attributes{}
	}
	subject["id"] = req.SubjectID

	cred := domain.Credential{
		Context:           []string{domain.ContextCredentialsV1},
		ID:                "urn:uuid:" + uuid.NewString(),
		Type:              types,
		Issuer:            s.Authority.ID,
		IssuanceDate:      now,
		CredentialSubject: subject,
	}
	if req.ExpirationDate != nil {
		exp := req.ExpirationDate.UTC().Truncate(time.Second)
		cred.ExpirationDate = &exp
	}
	if s.Revocations != nil && s.Revocations.StatusIndexes != nil && s.StatusListURL != "" {
		idx, err := s.Revocations.AssignStatusIndex(ctx, cred.ID)
		if err != nil {
			return domain.Credential{}, fmt.Errorf("assign status index: %w", err)
		}
		cred.Context = append(cred.Context, domain.ContextStatusList)
		cred.CredentialStatus = StatusEntry(s.StatusListURL, idx)
	}

	proof := domain.Proof{
		Type:               ProofTypeDataIntegrity,
		Created:            now,
		VerificationMethod: s.Authority.VerificationMethod(),
		ProofPurpose:       domain.ProofPurposeAssertion,
	}
	value, err := s.signProof(cred, proof)
	if err != nil {
		return domain.Credential{}, err
	}
	proof.ProofValue = value
	cred.Proof = &proof

	s.logger().Info("credential issued",
		zap.String("credential_id", cred.ID),
		zap.String("subject_id", req.SubjectID),
	)
	s.Events.EmitCredentialIssued(ctx, cred)
	return cred, nil
}

func (s *CredentialService) checkIssuance(ctx context.Context, req IssueCredentialRequest, types []string) error {
	input := domain.IssuancePolicyInput{
		IssuerID:         s.Authority.ID,
		IssuerTrustLevel: domain.TrustLevelUnknown.String(),
		SubjectID:        req.SubjectID,
		CredentialTypes:  types,
		Claims:           req.Claims,
		HasExpiration:    req.ExpirationDate != nil,
	}
	if s.Trust != nil {
		rec, ok, err := s.Trust.GetIssuer(ctx, s.Authority.ID)
		if err != nil {
			return err
		}
		if ok {
			if rec.Revoked {
				return fmt.Errorf("%w: %s", domain.ErrIssuerRevoked, rec.ID)
			}
			input.IssuerRegistered = true
			input.IssuerTrustLevel = rec.TrustLevel.String()
		}
	}
	if s.Policy == nil {
		return nil
	}
	eval, err := s.Policy.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("evaluate issuance policy: %w", err)
	}
	if eval.Result.Allow && len(eval.Result.Deny) == 0 {
		return nil
	}
	codes := make([]string, 0, len(eval.Result.Deny))
	for _, deny := range eval.Result.Deny {
		codes = append(codes, deny.Code)
	}
	s.logger().Info("credential issuance denied",
		zap.String("subject_id", req.SubjectID),
		zap.Strings("deny", codes),
		zap.String("bundle_hash", eval.BundleHash),
	)
	if len(codes) == 0 {
		return domain.ErrPolicyDenied
	}
	return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.Join(codes, ","))
}

// VerifyCredential never returns an error: every failure is reported in the
// result. Expiry, revocation and an invalid proof from this authority are
// errors; an untrusted issuer or an unverifiable foreign proof is a warning.
func (s *CredentialService) VerifyCredential(ctx context.Context, cred domain.Credential) domain.VerificationResult {
	result := domain.VerificationResult{Errors: []string{}, Warnings: []string{}}
	if err := s.ready(); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	now := s.now()
	if cred.ExpirationDate != nil && cred.ExpirationDate.Before(now) {
		result.Errors = append(result.Errors, "Credential has expired")
	}
	if cred.IssuanceDate.After(now) {
		result.Warnings = append(result.Warnings, "Credential issuance date is in the future")
	}

	if s.Revocations != nil {
		revoked, err := s.Revocations.IsRevoked(ctx, cred.ID)
		switch {
		case err != nil:
			s.logger().Warn("revocation lookup failed", zap.String("credential_id", cred.ID), zap.Error(err))
			result.Errors = append(result.Errors, "Revocation status could not be determined")
		case revoked:
			result.Errors = append(result.Errors, "Credential has been revoked")
		}
	}

	trusted := false
	if s.Trust != nil {
		ok, err := s.Trust.IsIssuerTrusted(ctx, cred.Issuer)
		if err != nil {
			s.logger().Warn("issuer lookup failed", zap.String("issuer_id", cred.Issuer), zap.Error(err))
		}
		trusted = ok
	}
	if !trusted {
		result.Warnings = append(result.Warnings, "Issuer is not in the trusted issuer registry")
	}

	if cred.Issuer == s.Authority.ID {
		switch {
		case cred.Proof == nil:
			result.Errors = append(result.Errors, "Credential is missing a proof")
		case !s.verifyProof(cred, *cred.Proof):
			result.Errors = append(result.Errors, "Credential proof is invalid")
		}
	} else {
		result.Warnings = append(result.Warnings, "Credential proof could not be verified for issuer "+cred.Issuer)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// CreatePresentation wraps credentials under a proof bound to challenge and
// domain. The proof is produced with the authority's key on the holder's
// behalf.
func (s *CredentialService) CreatePresentation(ctx context.Context, req CreatePresentationRequest) (domain.Presentation, error) {
	if err := s.ready(); err != nil {
		return domain.Presentation{}, err
	}
	if strings.TrimSpace(req.Holder) == "" {
		return domain.Presentation{}, fmt.Errorf("%w: holder is required", domain.ErrInvalidArgument)
	}
	if req.Challenge == "" {
		return domain.Presentation{}, fmt.Errorf("%w: challenge is required", domain.ErrInvalidArgument)
	}
	if len(req.Credentials) == 0 {
		return domain.Presentation{}, fmt.Errorf("%w: at least one credential is required", domain.ErrInvalidArgument)
	}
	pres := domain.Presentation{
		Context:              []string{domain.ContextCredentialsV1},
		ID:                   "urn:uuid:" + uuid.NewString(),
		Type:                 []string{domain.TypeVerifiablePresentation},
		Holder:               req.Holder,
		VerifiableCredential: append([]domain.Credential(nil), req.Credentials...),
	}
	proof := domain.Proof{
		Type:               ProofTypeDataIntegrity,
		Created:            s.now().UTC().Truncate(time.Second),
		VerificationMethod: s.Authority.VerificationMethod(),
		ProofPurpose:       domain.ProofPurposeAuthentication,
		Challenge:          req.Challenge,
		Domain:             req.Domain,
	}
	value, err := s.signProof(pres, proof)
	if err != nil {
		return domain.Presentation{}, err
	}
	proof.ProofValue = value
	pres.Proof = &proof
	return pres, nil
}

// VerifyPresentation checks the challenge first; a mismatch ends
// verification. Otherwise every embedded credential is verified and its
// messages are reported prefixed with the credential id.
func (s *CredentialService) VerifyPresentation(ctx context.Context, pres domain.Presentation, expectedChallenge string) domain.PresentationVerificationResult {
	result := domain.PresentationVerificationResult{Holder: pres.Holder, Errors: []string{}, Warnings: []string{}}
	if err := s.ready(); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if pres.Proof == nil {
		result.Errors = append(result.Errors, "Presentation is missing a proof")
		return result
	}
	if pres.Proof.Challenge != expectedChallenge {
		result.Errors = append(result.Errors, "Challenge mismatch")
		return result
	}
	if pres.Proof.VerificationMethod == s.Authority.VerificationMethod() && !s.verifyProof(pres, *pres.Proof) {
		result.Errors = append(result.Errors, "Presentation proof is invalid")
	}
	if len(pres.VerifiableCredential) == 0 {
		result.Errors = append(result.Errors, "Presentation contains no credentials")
	}
	for _, cred := range pres.VerifiableCredential {
		res := s.VerifyCredential(ctx, cred)
		for _, msg := range res.Errors {
			result.Errors = append(result.Errors, cred.ID+": "+msg)
		}
		for _, msg := range res.Warnings {
			result.Warnings = append(result.Warnings, cred.ID+": "+msg)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// RevokeCredential records a revocation attributed to this authority.
func (s *CredentialService) RevokeCredential(ctx context.Context, credentialID string, reason domain.RevocationReason) (domain.RevocationEntry, error) {
	if s == nil || s.Revocations == nil {
		return domain.RevocationEntry{}, errors.New("revocation registry is required")
	}
	return s.Revocations.RevokeWithIssuer(ctx, s.Authority.ID, RevocationRequest{
		CredentialID: credentialID,
		Reason:       reason,
		RevokedBy:    s.Authority.ID,
	})
}

func (s *CredentialService) BuildTrustChain(ctx context.Context, credentialID, issuerID string) (domain.TrustChain, error) {
	if s == nil || s.Trust == nil {
		return domain.TrustChain{}, errors.New("trust framework is required")
	}
	return s.Trust.BuildTrustChain(ctx, credentialID, issuerID)
}

func (s *CredentialService) MeetsMinimumTrustLevel(ctx context.Context, issuerID string, min domain.TrustLevel) (bool, error) {
	if s == nil || s.Trust == nil {
		return false, errors.New("trust framework is required")
	}
	return s.Trust.MeetsMinimumTrustLevel(ctx, issuerID, min)
}

// StatusListCredential returns the signed status list for this authority.
func (s *CredentialService) StatusListCredential(ctx context.Context) (domain.StatusListCredential, error) {
	if err := s.ready(); err != nil {
		return domain.StatusListCredential{}, err
	}
	if s.Revocations == nil {
		return domain.StatusListCredential{}, errors.New("revocation registry is required")
	}
	if s.StatusListURL == "" {
		return domain.StatusListCredential{}, fmt.Errorf("%w: status list url is not configured", domain.ErrNotFound)
	}
	doc, err := s.Revocations.ToStatusList2021(ctx, s.Authority.ID, s.StatusListURL)
	if err != nil {
		return domain.StatusListCredential{}, err
	}
	proof := domain.Proof{
		Type:               ProofTypeDataIntegrity,
		Created:            doc.IssuanceDate,
		VerificationMethod: s.Authority.VerificationMethod(),
		ProofPurpose:       domain.ProofPurposeAssertion,
	}
	value, err := s.signProof(doc, proof)
	if err != nil {
		return domain.StatusListCredential{}, err
	}
	proof.ProofValue = value
	doc.Proof = &proof
	return doc, nil
}

// VerifyStatusListCredential checks a status list document signed by this
// authority.
func (s *CredentialService) VerifyStatusListCredential(doc domain.StatusListCredential) bool {
	if s.ready() != nil || doc.Proof == nil {
		return false
	}
	return s.verifyProof(doc, *doc.Proof)
}

// signProof signs the canonical form of document with proof attached and
// ProofValue empty. document must be a Credential, Presentation or
// StatusListCredential value.
func (s *CredentialService) signProof(document any, proof domain.Proof) (string, error) {
	proof.ProofValue = ""
	payload, err := s.proofPayload(document, proof)
	if err != nil {
		return "", err
	}
	sig, err := s.Authority.Signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign proof: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

func (s *CredentialService) verifyProof(document any, proof domain.Proof) bool {
	sig, err := base64.RawURLEncoding.DecodeString(proof.ProofValue)
	if err != nil || len(sig) == 0 {
		return false
	}
	proof.ProofValue = ""
	payload, err := s.proofPayload(document, proof)
	if err != nil {
		return false
	}
	return s.Authority.Signer.Verify(payload, sig)
}

func (s *CredentialService) proofPayload(document any, proof domain.Proof) ([]byte, error) {
	switch doc := document.(type) {
	case domain.Credential:
		doc.Proof = &proof
		return s.Crypto.Canonicalize(doc)
	case domain.Presentation:
		doc.Proof = &proof
		return s.Crypto.Canonicalize(doc)
	case domain.StatusListCredential:
		doc.Proof = &proof
		return s.Crypto.Canonicalize(doc)
	default:
		return nil, fmt.Errorf("unsupported proof document %T", document)
	}
}

func credentialTypes(requested []string) []string {
	out := []string{domain.TypeVerifiableCredential}
	seen := map[string]struct{}{domain.TypeVerifiableCredential: {}}
	for _, t := range requested {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (s *CredentialService) ready() error {
	if s == nil {
		return errors.New("credential service is nil")
	}
	if s.Crypto == nil {
		return errors.New("crypto service is required")
	}
	if s.Authority.ID == "" || s.Authority.Signer == nil {
		return errors.New("authority identity and signer are required")
	}
	return nil
}

func (s *CredentialService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *CredentialService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
