package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
)

func TestHashSigner_Deterministic(t *testing.T) {
	signer, err := NewHashSigner([]byte("secret"))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	first, _ := signer.Sign([]byte("payload"))
	second, _ := signer.Sign([]byte("payload"))
	if !bytes.Equal(first, second) {
		t.Fatal("expected deterministic signatures")
	}
	if !signer.Verify([]byte("payload"), first) {
		t.Fatal("expected signature to verify")
	}
	if signer.Verify([]byte("payload2"), first) {
		t.Fatal("expected tampered payload to fail")
	}
	if bytes.Contains(signer.PublicKey(), []byte("secret")) {
		t.Fatal("public key must not reveal the secret")
	}
}

func TestHashSigner_RequiresSecret(t *testing.T) {
	if _, err := NewHashSigner(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestEd25519Signer_FromSeedHex(t *testing.T) {
	seedHex := strings.Repeat("01", ed25519.SeedSize)
	signer, err := NewEd25519SignerFromSeedHex(seedHex)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	sig, err := signer.Sign([]byte("payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !ed25519.Verify(signer.PublicKey(), []byte("payload"), sig) {
		t.Fatal("signature must verify against the exposed public key")
	}
	if signer.Verify([]byte("other"), sig) {
		t.Fatal("expected verification failure on different payload")
	}
	if signer.Algorithm() != AlgEd25519 {
		t.Fatalf("unexpected algorithm %s", signer.Algorithm())
	}
}

func TestEd25519Signer_FromBase64(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	fromSeed, err := NewEd25519SignerFromBase64(base64.StdEncoding.EncodeToString(seed))
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	fromKey, err := NewEd25519SignerFromBase64(base64.StdEncoding.EncodeToString(ed25519.NewKeyFromSeed(seed)))
	if err != nil {
		t.Fatalf("from key: %v", err)
	}
	if !bytes.Equal(fromSeed.PublicKey(), fromKey.PublicKey()) {
		t.Fatal("expected identical public keys")
	}
	if _, err := NewEd25519SignerFromBase64(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected error for short key")
	}
}
