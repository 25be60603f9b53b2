package josekeys

import (
	"errors"

	ijwk "github.com/keksclan/goJoseKeys/internal/jwk"
)

var (
	ErrInvalidConfiguration = errors.New("invalid jwks provider configuration")
	ErrFetch                = errors.New("failed to fetch JWKS")
	ErrInvalidJWKS          = ijwk.ErrInvalidJWKS
	ErrUnsupportedKeySize   = errors.New("unsupported derived key size")
	ErrEmptySecret          = errors.New("empty secret")
	ErrKeyNotFound          = errors.New("key not found")
	ErrKeyAlgorithmMismatch = errors.New("key algorithm does not match token algorithm")
	ErrCacheStore           = errors.New("jwks cache store rejected")
	ErrCacheValue           = errors.New("unreadable jwks cache value")
)
