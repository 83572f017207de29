package domain

import "errors"

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrNotFound                = errors.New("not found")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrAlreadyExists           = errors.New("already exists")
	ErrAlreadyRevoked          = errors.New("already revoked")
	ErrInvalidValidity         = errors.New("valid_from is after valid_until")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrIssuerNotFound          = errors.New("issuer not found")
	ErrIssuerRevoked           = errors.New("issuer revoked")
	ErrRootTrustLevel          = errors.New("root issuer must carry ultimate trust")
	ErrTrustLevelExceedsParent = errors.New("trust level exceeds parent issuer")
	ErrPolicyDenied            = errors.New("issuance denied by policy")
	ErrSignatureInvalid        = errors.New("signature invalid")
)
