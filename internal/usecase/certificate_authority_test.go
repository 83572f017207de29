package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

func TestCertificateAuthority_IssueAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")

	if cert.Status != domain.CertificateStatusActive {
		t.Fatalf("expected active, got %s", cert.Status)
	}
	if cert.IssuerID != testAuthorityID || len(cert.Signature) == 0 || len(cert.Fingerprint) != 64 {
		t.Fatalf("unexpected certificate: %+v", cert)
	}
	ok, err := f.ca.VerifyCertificate(ctx, cert.ID)
	if err != nil || !ok {
		t.Fatalf("expected verify true, got %v %v", ok, err)
	}
	got, found, err := f.ca.GetCertificateBySubject(ctx, "alice")
	if err != nil || !found || got.ID != cert.ID {
		t.Fatalf("lookup by subject: %v %v %+v", found, err, got)
	}
}

func TestCertificateAuthority_IssueRejectsInvertedValidity(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	_, err := f.ca.IssueCertificate(context.Background(), usecase.IssueCertificateRequest{
		SubjectID:  "alice",
		ValidFrom:  now.Add(time.Hour),
		ValidUntil: now,
	})
	if !errors.Is(err, domain.ErrInvalidValidity) {
		t.Fatalf("expected ErrInvalidValidity, got %v", err)
	}
	if _, found, _ := f.ca.GetCertificateBySubject(context.Background(), "alice"); found {
		t.Fatal("no certificate should be stored")
	}
}

func TestCertificateAuthority_LastIssuedWinsForSubject(t *testing.T) {
	f := newFixture(t)
	f.issueCert(t, "alice")
	f.clock.Advance(time.Second)
	second := f.issueCert(t, "alice")

	got, _, err := f.ca.GetCertificateBySubject(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("expected latest certificate %s, got %s", second.ID, got.ID)
	}
}

func TestCertificateAuthority_VerifyFailsOutsideWindow(t *testing.T) {
	f := newFixture(t)
	cert := f.issueCert(t, "alice")
	f.clock.Advance(48 * time.Hour)
	ok, err := f.ca.VerifyCertificate(context.Background(), cert.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected expired certificate to fail verification")
	}
}

func TestCertificateAuthority_RevokeRecordsRegistryEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")

	ok, err := f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonKeyCompromise)
	if err != nil || !ok {
		t.Fatalf("revoke: %v %v", ok, err)
	}
	revoked, err := f.registry.IsRevoked(ctx, cert.ID)
	if err != nil || !revoked {
		t.Fatalf("expected registry entry, got %v %v", revoked, err)
	}
	verified, _ := f.ca.VerifyCertificate(ctx, cert.ID)
	if verified {
		t.Fatal("revoked certificate must not verify")
	}
	if _, err := f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonSuperseded); !errors.Is(err, domain.ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked on second revoke, got %v", err)
	}
	stored, _, _ := f.ca.GetCertificate(ctx, cert.ID)
	if stored.RevocationReason != domain.ReasonKeyCompromise {
		t.Fatalf("expected first reason kept, got %s", stored.RevocationReason)
	}
	if ok, err := f.ca.RevokeCertificate(ctx, "cert_missing", domain.ReasonUnspecified); ok || err != nil {
		t.Fatalf("expected false,nil for unknown id, got %v %v", ok, err)
	}
}

func TestCertificateAuthority_RegistryRevocationBlocksVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")
	if _, err := f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: cert.ID, Reason: domain.ReasonAffiliationChanged}); err != nil {
		t.Fatalf("registry revoke: %v", err)
	}
	ok, _ := f.ca.VerifyCertificate(ctx, cert.ID)
	if ok {
		t.Fatal("registry entry must block verification")
	}
	// The certificate itself can still be revoked; the existing entry is kept.
	if ok, err := f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonKeyCompromise); err != nil || !ok {
		t.Fatalf("revoke after registry entry: %v %v", ok, err)
	}
	entry, _, _ := f.registry.GetRevocationEntry(ctx, cert.ID)
	if entry.Reason != domain.ReasonAffiliationChanged {
		t.Fatalf("expected registry reason unchanged, got %s", entry.Reason)
	}
}

func TestCertificateAuthority_SuspendReinstate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")

	if ok, err := f.ca.ReinstateCertificate(ctx, cert.ID); ok || err != nil {
		t.Fatalf("reinstate of active must be false, got %v %v", ok, err)
	}
	if ok, err := f.ca.SuspendCertificate(ctx, cert.ID, domain.ReasonCertificateHold); !ok || err != nil {
		t.Fatalf("suspend: %v %v", ok, err)
	}
	if verified, _ := f.ca.VerifyCertificate(ctx, cert.ID); verified {
		t.Fatal("suspended certificate must not verify")
	}
	if ok, _ := f.ca.SuspendCertificate(ctx, cert.ID, domain.ReasonCertificateHold); ok {
		t.Fatal("double suspend must be false")
	}
	if ok, err := f.ca.ReinstateCertificate(ctx, cert.ID); !ok || err != nil {
		t.Fatalf("reinstate: %v %v", ok, err)
	}
	stored, _, _ := f.ca.GetCertificate(ctx, cert.ID)
	if stored.Status != domain.CertificateStatusActive {
		t.Fatalf("expected active, got %s", stored.Status)
	}
	if stored.RevocationReason != domain.ReasonCertificateHold {
		t.Fatalf("reinstate must keep the recorded reason, got %q", stored.RevocationReason)
	}
	if verified, _ := f.ca.VerifyCertificate(ctx, cert.ID); !verified {
		t.Fatal("reinstated certificate must verify")
	}
}

func TestCertificateAuthority_RevokedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")
	if _, err := f.ca.SuspendCertificate(ctx, cert.ID, ""); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if ok, err := f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonCessationOfOperation); !ok || err != nil {
		t.Fatalf("revoke suspended: %v %v", ok, err)
	}
	if ok, _ := f.ca.ReinstateCertificate(ctx, cert.ID); ok {
		t.Fatal("revoked certificate must not be reinstated")
	}
	if ok, _ := f.ca.SuspendCertificate(ctx, cert.ID, ""); ok {
		t.Fatal("revoked certificate must not be suspended")
	}
	active, _ := f.ca.GetActiveCertificates(ctx)
	if len(active) != 0 {
		t.Fatalf("expected no active certificates, got %d", len(active))
	}
}

func TestCertificateAuthority_ConcurrentRevokeHasOneWinner(t *testing.T) {
	f := newFixture(t)
	cert := f.issueCert(t, "alice")
	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		already int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.ca.RevokeCertificate(context.Background(), cert.ID, domain.ReasonKeyCompromise)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case ok && err == nil:
				winners++
			case errors.Is(err, domain.ErrAlreadyRevoked):
				already++
			default:
				t.Errorf("unexpected result %v %v", ok, err)
			}
		}()
	}
	wg.Wait()
	if winners != 1 || already != n-1 {
		t.Fatalf("expected 1 winner and %d rejections, got %d and %d", n-1, winners, already)
	}
}

func TestCertificateAuthority_EmitsEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")
	_, _ = f.ca.SuspendCertificate(ctx, cert.ID, "")
	_, _ = f.ca.ReinstateCertificate(ctx, cert.ID)
	_, _ = f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonSuperseded)

	want := []domain.EventType{
		domain.EventCertificateIssued,
		domain.EventCertificateSuspended,
		domain.EventCertificateReinstated,
		domain.EventRevocationRecorded,
		domain.EventCertificateRevoked,
	}
	got := f.published.types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if err := usecase.VerifyEventChain(ctx, f.log); err != nil {
		t.Fatalf("event chain: %v", err)
	}
}

type failingUpdateCerts struct {
	usecase.CertificateRepository
	err error
}

func (r failingUpdateCerts) Update(ctx context.Context, cert domain.Certificate) error {
	return r.err
}

func (r failingUpdateCerts) WithTx(ctx context.Context, fn func(repo usecase.CertificateRepository) error) error {
	return r.CertificateRepository.WithTx(ctx, func(tx usecase.CertificateRepository) error {
		return fn(failingUpdateCerts{CertificateRepository: tx, err: r.err})
	})
}

func TestCertificateAuthority_FailedRevokeLeavesNoLedgerEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")
	diskFull := errors.New("disk full")
	f.ca.Certificates = failingUpdateCerts{CertificateRepository: f.certs, err: diskFull}

	ok, err := f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonKeyCompromise)
	if ok || !errors.Is(err, diskFull) {
		t.Fatalf("expected update failure, got %v %v", ok, err)
	}
	stored, _, _ := f.ca.GetCertificate(ctx, cert.ID)
	if stored.Status != domain.CertificateStatusActive {
		t.Fatalf("expected certificate to stay active, got %s", stored.Status)
	}
	if revoked, _ := f.registry.IsRevoked(ctx, cert.ID); revoked {
		t.Fatal("failed revoke must not leave a registry entry")
	}
	got := f.published.types()
	if len(got) != 1 || got[0] != domain.EventCertificateIssued {
		t.Fatalf("expected only the issuance event, got %v", got)
	}
}

func TestCertificateAuthority_RepeatRevokeFillsMissingLedgerEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.issueCert(t, "alice")
	f.ca.Revocations = nil
	if ok, err := f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonKeyCompromise); !ok || err != nil {
		t.Fatalf("revoke: %v %v", ok, err)
	}
	f.ca.Revocations = f.registry

	if _, err := f.ca.RevokeCertificate(ctx, cert.ID, domain.ReasonSuperseded); !errors.Is(err, domain.ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	entry, ok, err := f.registry.GetRevocationEntry(ctx, cert.ID)
	if err != nil || !ok {
		t.Fatalf("expected reconciled entry, got %v %v", ok, err)
	}
	if entry.Reason != domain.ReasonKeyCompromise {
		t.Fatalf("expected certificate reason on ledger, got %s", entry.Reason)
	}
}
