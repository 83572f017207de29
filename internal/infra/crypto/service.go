package crypto

// Service exposes canonicalisation and digests to the use cases.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Canonicalize(v any) ([]byte, error) {
	return Canonicalize(v)
}

func (s *Service) Digest(v any) (string, error) {
	return DigestCanonical(v)
}
