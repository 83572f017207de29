package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"attestd/internal/domain"
)

const (
	AlgEd25519    = "ed25519"
	AlgHMACSHA256 = "hmac-sha256"
)

// Ed25519Signer signs with a fixed ed25519 key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length: %d", len(priv))
	}
	return &Ed25519Signer{priv: priv}, nil
}

func NewEd25519SignerFromSeedHex(seedHex string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length: %d", len(seed))
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// NewEd25519SignerFromBase64 accepts either a 32-byte seed or a 64-byte
// private key.
func NewEd25519SignerFromBase64(b64 string) (*Ed25519Signer, error) {
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	switch len(decoded) {
	case ed25519.PrivateKeySize:
		return &Ed25519Signer{priv: ed25519.PrivateKey(decoded)}, nil
	case ed25519.SeedSize:
		return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(decoded)}, nil
	default:
		return nil, fmt.Errorf("invalid ed25519 key length: %d", len(decoded))
	}
}

func (s *Ed25519Signer) Algorithm() string {
	return AlgEd25519
}

func (s *Ed25519Signer) PublicKey() []byte {
	pub := s.priv.Public().(ed25519.PublicKey)
	out := make([]byte, len(pub))
	copy(out, pub)
	return out
}

func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, payload), nil
}

func (s *Ed25519Signer) Verify(payload, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(s.priv.Public().(ed25519.PublicKey), payload, signature)
}

// HashSigner is the deterministic keyed-hash stand-in used when no
// asymmetric key is configured. Anyone holding the secret can forge
// signatures, so it only fits single-party deployments and tests.
type HashSigner struct {
	secret []byte
}

func NewHashSigner(secret []byte) (*HashSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("hash signer secret is required")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &HashSigner{secret: s}, nil
}

func (s *HashSigner) Algorithm() string {
	return AlgHMACSHA256
}

// PublicKey returns a digest of the secret that identifies the key
// without revealing it.
func (s *HashSigner) PublicKey() []byte {
	sum := sha256.Sum256(s.secret)
	return sum[:]
}

func (s *HashSigner) Sign(payload []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil), nil
}

func (s *HashSigner) Verify(payload, signature []byte) bool {
	expected, _ := s.Sign(payload)
	return hmac.Equal(expected, signature)
}

var (
	_ domain.Signer = (*Ed25519Signer)(nil)
	_ domain.Signer = (*HashSigner)(nil)
)
