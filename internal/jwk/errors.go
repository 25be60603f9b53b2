package jwk

import "errors"

var (
	ErrInvalidJWKS      = errors.New("invalid JWKS")
	ErrUnexpectedStatus = errors.New("unexpected status")
)
