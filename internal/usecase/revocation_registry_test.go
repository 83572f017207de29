package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"attestd/internal/domain"
	"attestd/internal/infra/memstore"
	"attestd/internal/usecase"
	"attestd/pkg/statuslist"
)

func TestRevocationRegistry_RevokeIsIdempotentlyRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry, err := f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "cred-1", Reason: domain.ReasonKeyCompromise, IssuerID: "issuer-a"})
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if entry.ID == "" || !entry.RevokedAt.Equal(f.clock.Now()) {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	_, err = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "cred-1", Reason: domain.ReasonSuperseded})
	if !errors.Is(err, domain.ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	got, ok, _ := f.registry.GetRevocationEntry(ctx, "cred-1")
	if !ok || got.Reason != domain.ReasonKeyCompromise || got.IssuerID != "issuer-a" {
		t.Fatalf("first entry must be kept, got %+v", got)
	}
}

func TestRevocationRegistry_RejectsUnknownReason(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Revoke(context.Background(), usecase.RevocationRequest{CredentialID: "cred-1", Reason: "bored"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRevocationRegistry_RemoveHoldOnlyLiftsHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "held", Reason: domain.ReasonCertificateHold})
	_, _ = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "gone", Reason: domain.ReasonKeyCompromise})

	if ok, err := f.registry.RemoveHold(ctx, "gone"); ok || err != nil {
		t.Fatalf("expected false for permanent revocation, got %v %v", ok, err)
	}
	if ok, err := f.registry.RemoveHold(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected false for missing entry, got %v %v", ok, err)
	}
	if ok, err := f.registry.RemoveHold(ctx, "held"); !ok || err != nil {
		t.Fatalf("expected hold removed, got %v %v", ok, err)
	}
	if revoked, _ := f.registry.IsRevoked(ctx, "held"); revoked {
		t.Fatal("hold should be lifted")
	}
	if revoked, _ := f.registry.IsRevoked(ctx, "gone"); !revoked {
		t.Fatal("permanent revocation should remain")
	}
}

func TestRevocationRegistry_CheckBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "a"})
	got, err := f.registry.CheckBatch(ctx, []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("check batch: %v", err)
	}
	if len(got) != 2 || !got["a"] || got["b"] {
		t.Fatalf("unexpected batch result: %v", got)
	}
	empty, err := f.registry.CheckBatch(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty map, got %v %v", empty, err)
	}
}

func TestRevocationRegistry_Queries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.clock.Now()
	_, _ = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "a", IssuerID: "x", Reason: domain.ReasonKeyCompromise})
	f.clock.Advance(time.Minute)
	_, _ = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "b", IssuerID: "y", Reason: domain.ReasonKeyCompromise})
	f.clock.Advance(time.Minute)
	_, _ = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "c", IssuerID: "x", Reason: domain.ReasonSuperseded})

	byIssuer, _ := f.registry.GetRevocationsByIssuer(ctx, "x")
	if len(byIssuer) != 2 {
		t.Fatalf("expected 2 entries for issuer x, got %d", len(byIssuer))
	}
	byReason, _ := f.registry.GetRevocationsByReason(ctx, domain.ReasonKeyCompromise)
	if len(byReason) != 2 {
		t.Fatalf("expected 2 keyCompromise entries, got %d", len(byReason))
	}
	since, _ := f.registry.GetRevocationsSince(ctx, start.Add(time.Minute))
	if len(since) != 2 || since[0].CredentialID != "b" {
		t.Fatalf("unexpected since result: %+v", since)
	}
	count, _ := f.registry.GetRevocationCount(ctx)
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
	epoch, _ := f.registry.Epoch(ctx)
	if epoch != 3 {
		t.Fatalf("expected epoch 3, got %d", epoch)
	}
}

func TestRevocationRegistry_HashIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	build := func(ids ...string) string {
		reg := usecase.NewRevocationRegistry(memstore.NewRevocationStore(), nil, nil, func() time.Time { return at })
		for _, id := range ids {
			if _, err := reg.Revoke(ctx, usecase.RevocationRequest{CredentialID: id, Reason: domain.ReasonSuperseded}); err != nil {
				t.Fatalf("revoke: %v", err)
			}
		}
		hash, err := reg.GenerateRevocationListHash(ctx)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		return hash
	}
	a := build("one", "two", "three")
	b := build("three", "one", "two")
	if a != b {
		t.Fatalf("hash depends on insertion order: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if c := build("one", "two"); c == a {
		t.Fatal("different ledgers must hash differently")
	}
	if empty := build(); len(empty) != 64 {
		t.Fatalf("empty ledger hash must be 64 hex chars, got %q", empty)
	}
}

func TestRevocationRegistry_StatusListReflectsEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, _ := f.registry.AssignStatusIndex(ctx, "cred-a")
	second, _ := f.registry.AssignStatusIndex(ctx, "cred-b")
	if first == second {
		t.Fatal("status indexes must be unique")
	}
	if again, _ := f.registry.AssignStatusIndex(ctx, "cred-a"); again != first {
		t.Fatalf("expected stable index %d, got %d", first, again)
	}
	_, _ = f.registry.Revoke(ctx, usecase.RevocationRequest{CredentialID: "cred-b", Reason: domain.ReasonKeyCompromise})

	doc, err := f.registry.ToStatusList2021(ctx, testAuthorityID, testStatusURL)
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	if doc.CredentialSubject.StatusPurpose != domain.StatusPurposeRevocation {
		t.Fatalf("unexpected purpose %q", doc.CredentialSubject.StatusPurpose)
	}
	bits, err := statuslist.Decode(doc.CredentialSubject.EncodedList)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bits.Len() != statuslist.DefaultSize {
		t.Fatalf("expected %d bits, got %d", statuslist.DefaultSize, bits.Len())
	}
	if set, _ := bits.Get(second); !set {
		t.Fatal("revoked credential bit must be set")
	}
	if set, _ := bits.Get(first); set {
		t.Fatal("active credential bit must be clear")
	}
}
