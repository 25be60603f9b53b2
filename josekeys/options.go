package josekeys

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	icache "github.com/keksclan/goJoseKeys/internal/cache"
	"github.com/redis/go-redis/v9"
)

// HTTPClient sends JWKS requests. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFactory creates the GET request issued by RemoteProvider.
type RequestFactory interface {
	NewRequest(ctx context.Context, method, url string) (*http.Request, error)
}

// RequestFactoryFunc adapts a function to RequestFactory.
type RequestFactoryFunc func(ctx context.Context, method, url string) (*http.Request, error)

func (f RequestFactoryFunc) NewRequest(ctx context.Context, method, url string) (*http.Request, error) {
	return f(ctx, method, url)
}

// DefaultRequestFactory builds body-less requests with http.NewRequestWithContext.
var DefaultRequestFactory RequestFactory = RequestFactoryFunc(func(ctx context.Context, method, url string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, nil)
})

// defaultHTTPTimeout applies to the client created when none is configured.
const defaultHTTPTimeout = 5 * time.Second

func newDefaultHTTPClient() HTTPClient {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// Cache stores fetched key sets. A zero ttl means no expiry. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, cost int64, ttl time.Duration) bool
	Del(key string)
}

// NewRistrettoCache returns an in-process Cache.
func NewRistrettoCache(numCounters, maxCost, bufferItems int64) (Cache, error) {
	c, err := icache.NewRistrettoCache(numCounters, maxCost, bufferItems)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewDefaultCache returns an in-process Cache sized for a handful of key sets.
func NewDefaultCache() (Cache, error) {
	return NewRistrettoCache(1<<15, 1<<20, 64)
}

// NewRedisCache returns a Cache shared through Redis. Key sets are stored as
// JSON under prefix+key.
func NewRedisCache(client redis.UniversalClient, prefix string) Cache {
	return icache.NewRedisCache(client, prefix, 0)
}

// CacheErrorHook observes cache failures that CachedProvider swallows.
type CacheErrorHook func(key string, err error)

// AuthKind selects the authentication method for JWKS requests.
type AuthKind string

const (
	AuthKindNone   AuthKind = "none"
	AuthKindBasic  AuthKind = "basic"
	AuthKindBearer AuthKind = "bearer"
	AuthKindHeader AuthKind = "header"
)

// AuthConfig holds authentication settings for remote JWKS requests.
type AuthConfig struct {
	Kind        AuthKind
	Username    string
	Password    string
	BearerToken string
	HeaderName  string
	HeaderValue string
}

// Option configures New.
type Option func(*options)

type options struct {
	httpc        HTTPClient
	requests     RequestFactory
	cache        Cache
	logger       *slog.Logger
	onCacheError CacheErrorHook
}

func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) {
		o.httpc = c
	}
}

func WithRequestFactory(f RequestFactory) Option {
	return func(o *options) {
		o.requests = f
	}
}

// WithCache enables read-through caching of the remote key set.
func WithCache(c Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithCacheErrorHook(h CacheErrorHook) Option {
	return func(o *options) {
		o.onCacheError = h
	}
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
