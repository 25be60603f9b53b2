package josekeys

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

func octSet(t *testing.T, kids ...string) jwk.Set {
	t.Helper()
	set := jwk.NewSet()
	for _, kid := range kids {
		key, err := jwk.FromRaw([]byte("secret-for-" + kid))
		if err != nil {
			t.Fatalf("build key: %v", err)
		}
		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			t.Fatalf("set kid: %v", err)
		}
		if err := set.AddKey(key); err != nil {
			t.Fatalf("add key: %v", err)
		}
	}
	return set
}

func toJSONMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// jwksServer serves the current value of set and counts requests.
type jwksServer struct {
	*httptest.Server
	hits     atomic.Int32
	mu       sync.Mutex
	set      jwk.Set
	lastAuth string
}

func newJWKSServer(t *testing.T, set jwk.Set) *jwksServer {
	t.Helper()
	s := &jwksServer{set: set}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		s.lastAuth = r.Header.Get("Authorization")
		body, err := json.Marshal(s.set)
		s.mu.Unlock()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) authorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func (s *jwksServer) swap(set jwk.Set) {
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

// mapCache is a synchronous Cache that records its calls.
type mapCache struct {
	mu      sync.Mutex
	items   map[string]any
	gets    int
	sets    int
	lastTTL time.Duration
	reject  bool
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]any)}
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(key string, value any, _ int64, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.lastTTL = ttl
	if c.reject {
		return false
	}
	c.items[key] = value
	return true
}

func (c *mapCache) Del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *mapCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

// countingProvider counts Fetch calls and returns set or err.
type countingProvider struct {
	calls atomic.Int32
	set   jwk.Set
	err   error
	gate  chan struct{}
}

func (p *countingProvider) Fetch(ctx context.Context) (jwk.Set, error) {
	p.calls.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.set, nil
}
