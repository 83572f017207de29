package domain

// Signer is the signing capability of an authority. Implementations range
// from a deterministic keyed hash to real asymmetric keys.
type Signer interface {
	Algorithm() string
	PublicKey() []byte
	Sign(payload []byte) ([]byte, error)
	Verify(payload, signature []byte) bool
}
