package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

func TestCertificateStore_GetBySubjectLastIssuedWins(t *testing.T) {
	ctx := context.Background()
	store := NewCertificateStore()
	first := domain.Certificate{ID: "cert-1", SubjectID: "alice", Status: domain.CertificateStatusActive}
	second := domain.Certificate{ID: "cert-2", SubjectID: "alice", Status: domain.CertificateStatusActive}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := store.Create(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := store.Create(ctx, first); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, err := store.GetBySubject(ctx, "alice")
	if err != nil {
		t.Fatalf("get by subject: %v", err)
	}
	if got.ID != "cert-2" {
		t.Fatalf("expected cert-2, got %s", got.ID)
	}
}

func TestCertificateStore_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewCertificateStore()
	_ = store.Create(ctx, domain.Certificate{ID: "cert-1", SubjectID: "alice", Status: domain.CertificateStatusActive})

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(repo usecase.CertificateRepository) error {
		cert, err := repo.Get(ctx, "cert-1")
		if err != nil {
			return err
		}
		cert.Status = domain.CertificateStatusRevoked
		if err := repo.Update(ctx, *cert); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	cert, _ := store.Get(ctx, "cert-1")
	if cert.Status != domain.CertificateStatusActive {
		t.Fatalf("expected rollback to active, got %s", cert.Status)
	}
}

func TestCertificateStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewCertificateStore()
	_ = store.Create(ctx, domain.Certificate{ID: "cert-1", SubjectAttributes: domain.Attributes{"role": "admin"}})
	cert, _ := store.Get(ctx, "cert-1")
	cert.SubjectAttributes["role"] = "guest"
	again, _ := store.Get(ctx, "cert-1")
	if again.SubjectAttributes["role"] != "admin" {
		t.Fatal("stored certificate was mutated through a returned copy")
	}
}

func TestIssuerStore_ListChildren(t *testing.T) {
	ctx := context.Background()
	store := NewIssuerStore()
	_ = store.Create(ctx, domain.IssuerRecord{ID: "root"})
	_ = store.Create(ctx, domain.IssuerRecord{ID: "a", ParentID: "root"})
	_ = store.Create(ctx, domain.IssuerRecord{ID: "b", ParentID: "root"})
	_ = store.Create(ctx, domain.IssuerRecord{ID: "c", ParentID: "a"})

	children, err := store.ListChildren(ctx, "root")
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if err := store.Create(ctx, domain.IssuerRecord{ID: "a"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRevocationStore_InsertOnce(t *testing.T) {
	ctx := context.Background()
	store := NewRevocationStore()
	entry := domain.RevocationEntry{CredentialID: "cred-1", Reason: domain.ReasonKeyCompromise, RevokedAt: time.Unix(100, 0)}
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("insert: %v", err)
	}
	entry.Reason = domain.ReasonSuperseded
	if err := store.Insert(ctx, entry); !errors.Is(err, domain.ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	got, _ := store.Get(ctx, "cred-1")
	if got.Reason != domain.ReasonKeyCompromise {
		t.Fatalf("expected original reason kept, got %s", got.Reason)
	}
	removed, _ := store.DeleteIfReason(ctx, "cred-1", domain.ReasonCertificateHold)
	if removed {
		t.Fatal("expected non-hold entry to stay")
	}
}

func TestStatusIndexStore_ConcurrentAllocationIsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewStatusIndexStore()
	const n = 64
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := store.Allocate(ctx, "cred-"+string(rune('A'+i)))
			if err != nil {
				t.Errorf("allocate: %v", err)
			}
			results[i] = idx
		}(i)
	}
	wg.Wait()
	seen := map[int]bool{}
	for _, idx := range results {
		if seen[idx] {
			t.Fatalf("duplicate index %d", idx)
		}
		seen[idx] = true
	}
	again, _ := store.Allocate(ctx, "cred-A")
	if again != results[0] {
		t.Fatalf("expected idempotent allocation, got %d want %d", again, results[0])
	}
}

func TestEventLog_ChainVerifies(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, domain.Event{
			ID:         "evt-" + string(rune('a'+i)),
			Type:       domain.EventIssuerRegistered,
			TargetType: domain.EventTargetIssuer,
			TargetID:   "issuer-1",
			Payload:    map[string]any{"n": i},
			OccurredAt: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := usecase.VerifyEventChain(ctx, log); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	log.events[1].Payload["n"] = 42
	if err := usecase.VerifyEventChain(ctx, log); err == nil {
		t.Fatal("expected tampered payload to break the chain")
	}
}

func TestEventLog_ChainCoversTargetTypeAndActor(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(*domain.Event){
		"target type": func(e *domain.Event) { e.TargetType = domain.EventTargetCredential },
		"actor":       func(e *domain.Event) { e.Actor = "did:example:mallory" },
	}
	for name, tamper := range cases {
		t.Run(name, func(t *testing.T) {
			log := NewEventLog()
			for i := 0; i < 2; i++ {
				_, err := log.Append(ctx, domain.Event{
					ID:         "evt-" + string(rune('a'+i)),
					Type:       domain.EventCertificateIssued,
					TargetType: domain.EventTargetCertificate,
					TargetID:   "cert-1",
					Actor:      "did:example:authority",
					Payload:    map[string]any{},
					OccurredAt: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
				})
				if err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			tamper(&log.events[0])
			if err := usecase.VerifyEventChain(ctx, log); err == nil {
				t.Fatalf("expected edited %s to break the chain", name)
			}
		})
	}
}
