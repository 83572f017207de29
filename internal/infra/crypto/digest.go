package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

func SHA256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

// DigestCanonical returns the lowercase sha256 hex of v's canonical JSON.
func DigestCanonical(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(canonical), nil
}
