package josekeys

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultCacheTTL is how long a cached remote key set is kept unless
// SetCacheTTL says otherwise.
const DefaultCacheTTL = 24 * time.Hour

// DefaultMinRefreshInterval is the minimum time between two forced reloads of
// a cached remote set, as triggered by KeyFunc on an unknown kid.
const DefaultMinRefreshInterval = time.Minute

// Builder assembles a Provider. Setters never fail; Build validates.
// A Builder is meant for a single owner: configure, Build, discard.
type Builder struct {
	jwks         jwk.Set
	jwksURI      string
	httpc        HTTPClient
	requests     RequestFactory
	cache        Cache
	cacheTTL     time.Duration
	minRefresh   time.Duration
	auth         AuthConfig
	extraHeaders map[string]string
	logger       *slog.Logger
	onCacheError CacheErrorHook
}

func NewBuilder() *Builder {
	return &Builder{cacheTTL: DefaultCacheTTL, minRefresh: DefaultMinRefreshInterval}
}

// SetJWKS sets a static key set. It cannot be combined with SetJWKSURI.
func (b *Builder) SetJWKS(set jwk.Set) *Builder {
	b.jwks = set
	return b
}

// SetJWKSURI sets the remote JWKS endpoint. An empty uri unsets it.
func (b *Builder) SetJWKSURI(uri string) *Builder {
	b.jwksURI = uri
	return b
}

// SetHTTPClient sets the client for remote fetches. nil selects the default.
func (b *Builder) SetHTTPClient(c HTTPClient) *Builder {
	b.httpc = c
	return b
}

// SetRequestFactory sets the request factory for remote fetches. nil selects
// DefaultRequestFactory.
func (b *Builder) SetRequestFactory(f RequestFactory) *Builder {
	b.requests = f
	return b
}

// SetCache enables read-through caching of the remote set. nil disables it.
func (b *Builder) SetCache(c Cache) *Builder {
	b.cache = c
	return b
}

// SetCacheTTL sets the cache entry lifetime. 0 stores entries without expiry.
func (b *Builder) SetCacheTTL(ttl time.Duration) *Builder {
	b.cacheTTL = ttl
	return b
}

// SetMinRefreshInterval limits how often CachedProvider.Refresh reloads the
// set from the URI. 0 removes the limit.
func (b *Builder) SetMinRefreshInterval(d time.Duration) *Builder {
	b.minRefresh = d
	return b
}

func (b *Builder) SetAuth(auth AuthConfig) *Builder {
	b.auth = auth
	return b
}

func (b *Builder) SetExtraHeaders(headers map[string]string) *Builder {
	b.extraHeaders = maps.Clone(headers)
	return b
}

func (b *Builder) SetLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) SetCacheErrorHook(h CacheErrorHook) *Builder {
	b.onCacheError = h
	return b
}

// Build returns a MemoryProvider when no URI is set, otherwise a
// RemoteProvider, wrapped in a CachedProvider when a cache is set.
// It fails with ErrInvalidConfiguration when both a static set and a URI are
// configured, or when the URI is not an absolute http(s) URL. Build performs
// no I/O.
func (b *Builder) Build() (Provider, error) {
	if b.jwks != nil && b.jwksURI != "" {
		return nil, fmt.Errorf("%w: provide only one of a static key set or a JWKS URI", ErrInvalidConfiguration)
	}

	if b.jwksURI == "" {
		return NewMemoryProvider(b.jwks), nil
	}

	if err := validateJWKSURI(b.jwksURI); err != nil {
		return nil, err
	}
	if b.cacheTTL < 0 {
		return nil, fmt.Errorf("%w: negative cache ttl %s", ErrInvalidConfiguration, b.cacheTTL)
	}
	if b.minRefresh < 0 {
		return nil, fmt.Errorf("%w: negative min refresh interval %s", ErrInvalidConfiguration, b.minRefresh)
	}

	var p Provider = NewRemoteProvider(RemoteConfig{
		URI:            b.jwksURI,
		HTTPClient:     b.httpc,
		RequestFactory: b.requests,
		Auth:           b.auth,
		ExtraHeaders:   b.extraHeaders,
	})

	if b.cache != nil {
		p = NewCachedProvider(p, b.cache, CachedConfig{
			Key:                CacheKey(b.jwksURI),
			TTL:                b.cacheTTL,
			MinRefreshInterval: b.minRefresh,
			Logger:             b.logger,
			OnCacheError:       b.onCacheError,
		})
	}
	return p, nil
}

func validateJWKSURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: jwks uri: %v", ErrInvalidConfiguration, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: jwks uri must be an absolute http(s) URL, got %q", ErrInvalidConfiguration, uri)
	}
	return nil
}
