package josekeys

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Config describes where a key set comes from.
type Config struct {
	// JWKS is a static key set. Mutually exclusive with JWKSURI.
	JWKS jwk.Set
	// JWKSURI is the remote JWKS endpoint.
	JWKSURI string

	// CacheTTL applies when a cache is passed with WithCache. Default 24h.
	CacheTTL time.Duration
	// CacheNoExpiry stores the remote set without expiry, ignoring CacheTTL.
	CacheNoExpiry bool
	// MinRefreshInterval limits reloads forced by unknown kids. Default 1m.
	MinRefreshInterval time.Duration

	Auth         AuthConfig
	ExtraHeaders map[string]string
}

func (c *Config) setDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MinRefreshInterval == 0 {
		c.MinRefreshInterval = DefaultMinRefreshInterval
	}
}

func (c Config) Validate() error {
	if c.JWKS != nil && c.JWKSURI != "" {
		return fmt.Errorf("%w: provide only one of jwks or jwks_uri", ErrInvalidConfiguration)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: negative cache ttl", ErrInvalidConfiguration)
	}
	if c.MinRefreshInterval < 0 {
		return fmt.Errorf("%w: negative min refresh interval", ErrInvalidConfiguration)
	}
	if c.JWKSURI != "" {
		if err := validateJWKSURI(c.JWKSURI); err != nil {
			return err
		}
	}
	if err := c.Auth.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

func (a AuthConfig) validate() error {
	switch a.Kind {
	case "", AuthKindNone:
	case AuthKindBasic:
		if a.Username == "" {
			return errors.New("basic auth requires a username")
		}
	case AuthKindBearer:
		if a.BearerToken == "" {
			return errors.New("bearer auth requires a token")
		}
	case AuthKindHeader:
		if a.HeaderName == "" {
			return errors.New("header auth requires a header name")
		}
	default:
		return fmt.Errorf("unsupported auth kind %q", a.Kind)
	}
	return nil
}

// New validates cfg and builds the matching Provider.
func New(cfg Config, opts ...Option) (Provider, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ttl := cfg.CacheTTL
	if cfg.CacheNoExpiry {
		ttl = 0
	}

	return NewBuilder().
		SetJWKS(cfg.JWKS).
		SetJWKSURI(cfg.JWKSURI).
		SetHTTPClient(o.httpc).
		SetRequestFactory(o.requests).
		SetCache(o.cache).
		SetCacheTTL(ttl).
		SetMinRefreshInterval(cfg.MinRefreshInterval).
		SetAuth(cfg.Auth).
		SetExtraHeaders(cfg.ExtraHeaders).
		SetLogger(o.logger).
		SetCacheErrorHook(o.onCacheError).
		Build()
}
