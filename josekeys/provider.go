// Package josekeys supplies JSON Web Key Sets to JOSE verifiers and derives
// symmetric keys from shared secrets.
//
// A Provider resolves a key set on demand. Providers come from a static set
// (MemoryProvider), a remote JWKS URI (RemoteProvider) or a remote URI behind
// a read-through cache (CachedProvider). Builder and New pick and compose the
// right one from configuration.
//
// Concurrency: every Provider is safe for concurrent Fetch calls; nothing is
// mutated after construction. Returned sets are shared and must be treated
// as read-only.
package josekeys

import (
	"context"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Provider resolves a JSON Web Key Set.
type Provider interface {
	Fetch(ctx context.Context) (jwk.Set, error)
}

// MemoryProvider serves a fixed key set.
type MemoryProvider struct {
	set jwk.Set
}

// NewMemoryProvider wraps set. A nil set is served as an empty set.
func NewMemoryProvider(set jwk.Set) *MemoryProvider {
	if set == nil {
		set = jwk.NewSet()
	}
	return &MemoryProvider{set: set}
}

// Fetch returns the wrapped set. It never fails.
func (p *MemoryProvider) Fetch(_ context.Context) (jwk.Set, error) {
	return p.set, nil
}
