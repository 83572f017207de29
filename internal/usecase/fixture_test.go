package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"attestd/internal/domain"
	"attestd/internal/infra/crypto"
	"attestd/internal/infra/memstore"
	"attestd/internal/usecase"
)

const (
	testAuthorityID = "did:example:authority"
	testStatusURL   = "https://status.example.test/list/1"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock     *manualClock
	authority usecase.Authority
	published *recordingPublisher
	log       *memstore.EventLog
	certs     *memstore.CertificateStore
	issuers   *memstore.IssuerStore
	ca        *usecase.CertificateAuthority
	registry  *usecase.RevocationRegistry
	trust     *usecase.TrustFramework
	creds     *usecase.CredentialService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := crypto.NewHashSigner([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:     clock,
		authority: usecase.Authority{ID: testAuthorityID, Signer: signer},
		published: &recordingPublisher{},
		log:       memstore.NewEventLog(),
		certs:     memstore.NewCertificateStore(),
		issuers:   memstore.NewIssuerStore(),
	}
	events := usecase.NewEventEmitter(f.log, f.published, clock.Now, nil)
	cryptoSvc := crypto.NewService()

	f.registry = usecase.NewRevocationRegistry(memstore.NewRevocationStore(), memstore.NewStatusIndexStore(), memstore.NewEpochStore(), clock.Now)
	f.registry.Events = events

	f.trust = usecase.NewTrustFramework(f.issuers, clock.Now)
	f.trust.Events = events

	f.ca = usecase.NewCertificateAuthority(f.authority, f.certs, cryptoSvc, clock.Now)
	f.ca.Revocations = f.registry
	f.ca.Events = events

	f.creds = usecase.NewCredentialService(f.authority, f.registry, f.trust, cryptoSvc, clock.Now)
	f.creds.Events = events
	f.creds.StatusListURL = testStatusURL
	return f
}

func (f *fixture) issueCert(t *testing.T, subject string) domain.Certificate {
	t.Helper()
	now := f.clock.Now()
	cert, err := f.ca.IssueCertificate(context.Background(), usecase.IssueCertificateRequest{
		SubjectID:  subject,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("issue certificate: %v", err)
	}
	return cert
}

func (f *fixture) registerRoot(t *testing.T, id string) domain.IssuerRecord {
	t.Helper()
	rec, err := f.trust.RegisterIssuer(context.Background(), usecase.RegisterIssuerRequest{
		ID:         id,
		Type:       domain.IssuerTypeRootCA,
		TrustLevel: domain.TrustLevelUltimate,
	})
	if err != nil {
		t.Fatalf("register root %s: %v", id, err)
	}
	return rec
}

func (f *fixture) delegate(t *testing.T, parent, id string, level domain.TrustLevel) domain.IssuerRecord {
	t.Helper()
	rec, err := f.trust.RegisterDelegatedIssuer(context.Background(), parent, usecase.RegisterIssuerRequest{
		ID:         id,
		Type:       domain.IssuerTypeIntermediateCA,
		TrustLevel: level,
	})
	if err != nil {
		t.Fatalf("delegate %s under %s: %v", id, parent, err)
	}
	return rec
}
