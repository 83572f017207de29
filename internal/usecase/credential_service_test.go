package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type stubPolicy struct {
	result domain.PolicyResult
	input  domain.IssuancePolicyInput
}

func (p *stubPolicy) Evaluate(ctx context.Context, input domain.IssuancePolicyInput) (domain.PolicyEvaluation, error) {
	p.input = input
	return domain.PolicyEvaluation{BundleHash: "stub", Result: p.result}, nil
}

func issueCredential(t *testing.T, f *fixture, subject string, expires *time.Time) domain.Credential {
	t.Helper()
	cred, err := f.creds.IssueCredential(context.Background(), usecase.IssueCredentialRequest{
		SubjectID:      subject,
		Claims:         domain.Attributes{"degree": "BSc", "id": "ignored"},
		Types:          []string{"UniversityDegreeCredential"},
		ExpirationDate: expires,
	})
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}
	return cred
}

func hasMessage(list []string, substr string) bool {
	for _, msg := range list {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func TestCredentialService_IssueShape(t *testing.T) {
	f := newFixture(t)
	cred := issueCredential(t, f, "did:example:alice", nil)

	if cred.SubjectID() != "did:example:alice" {
		t.Fatalf("subject id must win over claims, got %q", cred.SubjectID())
	}
	if cred.Type[0] != domain.TypeVerifiableCredential || cred.Type[1] != "UniversityDegreeCredential" {
		t.Fatalf("unexpected types %v", cred.Type)
	}
	if cred.Issuer != testAuthorityID || cred.Proof == nil || cred.Proof.ProofValue == "" {
		t.Fatalf("unexpected issuer or proof: %+v", cred)
	}
	if cred.CredentialStatus == nil || cred.CredentialStatus.StatusListCredential != testStatusURL {
		t.Fatalf("expected credentialStatus entry, got %+v", cred.CredentialStatus)
	}
	if !strings.HasPrefix(cred.ID, "urn:uuid:") {
		t.Fatalf("unexpected id %q", cred.ID)
	}
}

func TestCredentialService_VerifyRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerRoot(t, testAuthorityID)
	exp := f.clock.Now().Add(24 * time.Hour)
	cred := issueCredential(t, f, "did:example:alice", &exp)

	raw, err := json.Marshal(cred)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded domain.Credential
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	result := f.creds.VerifyCredential(ctx, decoded)
	if !result.Valid || len(result.Errors) != 0 || len(result.Warnings) != 0 {
		t.Fatalf("expected clean verification, got %+v", result)
	}

	decoded.CredentialSubject["degree"] = "PhD"
	tampered := f.creds.VerifyCredential(ctx, decoded)
	if tampered.Valid || !hasMessage(tampered.Errors, "proof is invalid") {
		t.Fatalf("expected tampered credential to fail, got %+v", tampered)
	}
}

func TestCredentialService_VerifyExpiredAndRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.clock.Now().Add(time.Hour)
	cred := issueCredential(t, f, "did:example:alice", &exp)

	f.clock.Advance(2 * time.Hour)
	if _, err := f.creds.RevokeCredential(ctx, cred.ID, domain.ReasonKeyCompromise); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	result := f.creds.VerifyCredential(ctx, cred)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if !hasMessage(result.Errors, "expired") || !hasMessage(result.Errors, "revoked") {
		t.Fatalf("expected expiry and revocation errors, got %v", result.Errors)
	}
	entry, _, _ := f.registry.GetRevocationEntry(ctx, cred.ID)
	if entry.IssuerID != testAuthorityID || entry.StatusIndex == nil {
		t.Fatalf("expected issuer and status index on entry, got %+v", entry)
	}
}

func TestCredentialService_UntrustedIssuerIsWarning(t *testing.T) {
	f := newFixture(t)
	cred := issueCredential(t, f, "did:example:alice", nil)
	result := f.creds.VerifyCredential(context.Background(), cred)
	if !result.Valid {
		t.Fatalf("untrusted issuer alone must not invalidate, got %+v", result)
	}
	if !hasMessage(result.Warnings, "not in the trusted issuer registry") {
		t.Fatalf("expected trust warning, got %v", result.Warnings)
	}
}

func TestCredentialService_ForeignCredentialWithoutProof(t *testing.T) {
	f := newFixture(t)
	cred := domain.Credential{
		ID:                "urn:uuid:foreign",
		Type:              []string{domain.TypeVerifiableCredential},
		Issuer:            "did:example:other",
		IssuanceDate:      f.clock.Now().Add(-time.Hour),
		CredentialSubject: domain.Attributes{"id": "did:example:bob"},
	}
	result := f.creds.VerifyCredential(context.Background(), cred)
	if !result.Valid || len(result.Warnings) != 2 {
		t.Fatalf("expected valid with two warnings, got %+v", result)
	}
}

func TestCredentialService_RevokedAuthorityCannotIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerRoot(t, testAuthorityID)
	_, _ = f.trust.RevokeIssuer(ctx, testAuthorityID, "decommissioned")
	_, err := f.creds.IssueCredential(ctx, usecase.IssueCredentialRequest{SubjectID: "did:example:alice"})
	if !errors.Is(err, domain.ErrIssuerRevoked) {
		t.Fatalf("expected ErrIssuerRevoked, got %v", err)
	}
}

func TestCredentialService_PolicyDenies(t *testing.T) {
	f := newFixture(t)
	policy := &stubPolicy{result: domain.PolicyResult{Allow: false, Deny: []domain.PolicyDeny{{Code: "EXPIRATION_REQUIRED"}}}}
	f.creds.Policy = policy
	_, err := f.creds.IssueCredential(context.Background(), usecase.IssueCredentialRequest{SubjectID: "did:example:alice"})
	if !errors.Is(err, domain.ErrPolicyDenied) || !strings.Contains(err.Error(), "EXPIRATION_REQUIRED") {
		t.Fatalf("expected policy denial, got %v", err)
	}
	if policy.input.SubjectID != "did:example:alice" || policy.input.HasExpiration {
		t.Fatalf("unexpected policy input %+v", policy.input)
	}

	policy.result = domain.PolicyResult{Allow: true}
	if _, err := f.creds.IssueCredential(context.Background(), usecase.IssueCredentialRequest{SubjectID: "did:example:alice"}); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestCredentialService_Presentation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerRoot(t, testAuthorityID)
	good := issueCredential(t, f, "did:example:alice", nil)
	bad := issueCredential(t, f, "did:example:alice", nil)
	_, _ = f.creds.RevokeCredential(ctx, bad.ID, domain.ReasonSuperseded)

	pres, err := f.creds.CreatePresentation(ctx, usecase.CreatePresentationRequest{
		Holder:      "did:example:alice",
		Credentials: []domain.Credential{good},
		Challenge:   "nonce-1",
		Domain:      "verifier.example",
	})
	if err != nil {
		t.Fatalf("create presentation: %v", err)
	}
	ok := f.creds.VerifyPresentation(ctx, pres, "nonce-1")
	if !ok.Valid || ok.Holder != "did:example:alice" {
		t.Fatalf("expected valid presentation, got %+v", ok)
	}

	mismatch := f.creds.VerifyPresentation(ctx, pres, "nonce-2")
	if mismatch.Valid || len(mismatch.Errors) != 1 || mismatch.Errors[0] != "Challenge mismatch" {
		t.Fatalf("expected only a challenge mismatch, got %+v", mismatch)
	}

	mixed, err := f.creds.CreatePresentation(ctx, usecase.CreatePresentationRequest{
		Holder:      "did:example:alice",
		Credentials: []domain.Credential{good, bad},
		Challenge:   "nonce-3",
	})
	if err != nil {
		t.Fatalf("create mixed presentation: %v", err)
	}
	res := f.creds.VerifyPresentation(ctx, mixed, "nonce-3")
	if res.Valid || !hasMessage(res.Errors, bad.ID+": Credential has been revoked") {
		t.Fatalf("expected revoked credential error prefixed with its id, got %+v", res)
	}

	if _, err := f.creds.CreatePresentation(ctx, usecase.CreatePresentationRequest{Holder: "did:example:alice", Challenge: "n"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty presentation, got %v", err)
	}
}

func TestCredentialService_StatusListCredentialIsSigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := issueCredential(t, f, "did:example:alice", nil)
	_, _ = f.creds.RevokeCredential(ctx, cred.ID, domain.ReasonKeyCompromise)

	doc, err := f.creds.StatusListCredential(ctx)
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	if doc.Proof == nil || doc.Issuer != testAuthorityID || doc.ID != testStatusURL {
		t.Fatalf("unexpected document %+v", doc)
	}
	if !f.creds.VerifyStatusListCredential(doc) {
		t.Fatal("status list proof must verify")
	}
	doc.CredentialSubject.EncodedList = "tampered"
	if f.creds.VerifyStatusListCredential(doc) {
		t.Fatal("tampered status list must not verify")
	}
}
