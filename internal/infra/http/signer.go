package http

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"go.uber.org/zap"

	"attestd/internal/config"
	"attestd/internal/domain"
	"attestd/internal/infra/crypto"
)

// loadAuthoritySigner picks the first configured key source: seed hex,
// base64 key, then HMAC secret. Outside production an ephemeral ed25519 key
// is generated when none is set.
func loadAuthoritySigner(cfg config.Config, logger *zap.Logger) (domain.Signer, error) {
	switch {
	case cfg.SigningPrivateKeySeedHex != "":
		return crypto.NewEd25519SignerFromSeedHex(cfg.SigningPrivateKeySeedHex)
	case cfg.SigningPrivateKeyBase64 != "":
		return crypto.NewEd25519SignerFromBase64(cfg.SigningPrivateKeyBase64)
	case cfg.SigningSecret != "":
		return crypto.NewHashSigner([]byte(cfg.SigningSecret))
	}
	if cfg.IsProduction() {
		return nil, errors.New("a signing key is required in production")
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	logger.Warn("no signing key configured; using an ephemeral ed25519 key")
	return crypto.NewEd25519Signer(priv)
}
