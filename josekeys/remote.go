package josekeys

import (
	"context"
	"fmt"
	"net/http"

	ijwk "github.com/keksclan/goJoseKeys/internal/jwk"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// RemoteConfig configures a RemoteProvider.
type RemoteConfig struct {
	URI            string
	HTTPClient     HTTPClient     // nil: *http.Client with a 5s timeout
	RequestFactory RequestFactory // nil: DefaultRequestFactory
	Auth           AuthConfig
	ExtraHeaders   map[string]string
}

// RemoteProvider downloads the key set on every Fetch. It does no caching;
// wrap it in a CachedProvider for that.
type RemoteProvider struct {
	uri     string
	fetcher *ijwk.Fetcher
}

func NewRemoteProvider(cfg RemoteConfig) *RemoteProvider {
	httpc := cfg.HTTPClient
	if isNilHTTPClient(httpc) {
		httpc = newDefaultHTTPClient()
	}
	requests := cfg.RequestFactory
	if requests == nil {
		requests = DefaultRequestFactory
	}

	f := ijwk.NewFetcher(httpc, requests.NewRequest)
	f.SetAuth(ijwk.AuthConfig{
		Kind:        ijwk.AuthKind(cfg.Auth.Kind),
		Username:    cfg.Auth.Username,
		Password:    cfg.Auth.Password,
		BearerToken: cfg.Auth.BearerToken,
		HeaderName:  cfg.Auth.HeaderName,
		HeaderValue: cfg.Auth.HeaderValue,
	})
	if len(cfg.ExtraHeaders) > 0 {
		f.SetExtraHeaders(cfg.ExtraHeaders)
	}
	return &RemoteProvider{uri: cfg.URI, fetcher: f}
}

// URI returns the JWKS endpoint this provider reads from.
func (p *RemoteProvider) URI() string { return p.uri }

// Fetch issues one GET to the JWKS URI. Transport, status and parse failures
// wrap ErrFetch; malformed bodies additionally wrap ErrInvalidJWKS.
func (p *RemoteProvider) Fetch(ctx context.Context) (jwk.Set, error) {
	set, err := p.fetcher.Fetch(ctx, p.uri)
	if err != nil {
		return nil, fmt.Errorf("%w from %s: %w", ErrFetch, p.uri, err)
	}
	return set, nil
}

// isNilHTTPClient catches both a nil interface and a typed nil *http.Client.
func isNilHTTPClient(c HTTPClient) bool {
	if c == nil {
		return true
	}
	hc, ok := c.(*http.Client)
	return ok && hc == nil
}
