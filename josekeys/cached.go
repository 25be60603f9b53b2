package josekeys

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

// CacheKey derives the cache key for a JWKS URI: its unpadded base64url
// encoding. Equal URIs give equal keys and distinct URIs distinct keys.
func CacheKey(uri string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(uri))
}

// flightTimeout bounds a shared inner fetch, which no longer follows the
// cancellation of the caller that started it.
const flightTimeout = 30 * time.Second

// CachedConfig configures a CachedProvider.
type CachedConfig struct {
	Key string
	TTL time.Duration // 0: no expiry enforced by this layer
	// MinRefreshInterval is the minimum time between two forced reloads by
	// Refresh. 0 disables the limit.
	MinRefreshInterval time.Duration
	Logger             *slog.Logger
	OnCacheError       CacheErrorHook
}

// CachedProvider is a read-through cache in front of another Provider.
//
// Cache read and write failures are never returned from Fetch; they are
// logged and passed to the configured CacheErrorHook. Errors from the inner
// provider are returned unchanged.
type CachedProvider struct {
	inner        Provider
	cache        Cache
	key          string
	ttl          time.Duration
	minRefresh   time.Duration
	logger       *slog.Logger
	onCacheError CacheErrorHook
	sfGroup      singleflight.Group

	now         func() time.Time
	lastRefresh atomic.Int64 // unix nanos of the last forced reload
}

func NewCachedProvider(inner Provider, c Cache, cfg CachedConfig) *CachedProvider {
	return &CachedProvider{
		inner:        inner,
		cache:        c,
		key:          cfg.Key,
		ttl:          cfg.TTL,
		minRefresh:   cfg.MinRefreshInterval,
		now:          time.Now,
		logger:       loggerOrDiscard(cfg.Logger),
		onCacheError: cfg.OnCacheError,
	}
}

// Key returns the cache key the set is stored under.
func (p *CachedProvider) Key() string { return p.key }

func (p *CachedProvider) Fetch(ctx context.Context) (jwk.Set, error) {
	if set, ok := p.lookup(ctx); ok {
		p.logger.DebugContext(ctx, "jwks cache hit", "key", p.key)
		return set, nil
	}

	// Concurrent misses share a single inner fetch. The flight is detached
	// from the caller that started it; every caller stops waiting on its own ctx.
	ch := p.sfGroup.DoChan(p.key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()

		if set, ok := p.lookup(fctx); ok {
			return set, nil
		}
		p.logger.DebugContext(fctx, "jwks cache miss", "key", p.key)
		set, err := p.inner.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		p.store(fctx, set)
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		set, ok := res.Val.(jwk.Set)
		if !ok {
			return nil, fmt.Errorf("unexpected singleflight result type %T for key=%s", res.Val, p.key)
		}
		return set, nil
	}
}

// Refresh drops the cached set and fetches it again, at most once per
// MinRefreshInterval. Calls inside the interval return the current set
// through Fetch.
func (p *CachedProvider) Refresh(ctx context.Context) (jwk.Set, error) {
	now := p.now().UnixNano()
	last := p.lastRefresh.Load()
	if last != 0 && now-last < int64(p.minRefresh) {
		p.logger.DebugContext(ctx, "jwks refresh throttled", "key", p.key)
		return p.Fetch(ctx)
	}
	if !p.lastRefresh.CompareAndSwap(last, now) {
		// Another caller claimed this refresh.
		return p.Fetch(ctx)
	}
	p.Invalidate()
	return p.Fetch(ctx)
}

// Invalidate drops the cached set so the next Fetch goes to the inner provider.
func (p *CachedProvider) Invalidate() {
	p.cache.Del(p.key)
	p.wait()
}

func (p *CachedProvider) lookup(ctx context.Context) (jwk.Set, bool) {
	val, ok := p.cache.Get(p.key)
	if !ok || val == nil {
		return nil, false
	}

	var raw []byte
	switch v := val.(type) {
	case jwk.Set:
		return v, true
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		p.reportCacheError(ctx, fmt.Errorf("%w: type %T", ErrCacheValue, val))
		return nil, false
	}

	set, err := jwk.Parse(raw)
	if err != nil {
		p.reportCacheError(ctx, fmt.Errorf("%w: %w", ErrCacheValue, err))
		return nil, false
	}
	return set, true
}

func (p *CachedProvider) store(ctx context.Context, set jwk.Set) {
	if !p.cache.Set(p.key, set, 1, p.ttl) {
		p.reportCacheError(ctx, fmt.Errorf("%w: key=%s", ErrCacheStore, p.key))
		return
	}
	p.wait()
}

// wait flushes asynchronous caches so the next lookup sees the write.
func (p *CachedProvider) wait() {
	if w, ok := p.cache.(interface{ Wait() }); ok {
		w.Wait()
	}
}

func (p *CachedProvider) reportCacheError(ctx context.Context, err error) {
	p.logger.WarnContext(ctx, "jwks cache failure", "key", p.key, "error", err)
	if p.onCacheError != nil {
		p.onCacheError(p.key, err)
	}
}
