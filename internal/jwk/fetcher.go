// Package jwk fetches JSON Web Key Sets over HTTP.
package jwk

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// maxJWKSResponseSize limits the size of JWKS HTTP responses to prevent memory bombs.
const maxJWKSResponseSize = 1 << 20 // 1 MB

// AuthKind selects the authentication method for JWKS requests.
type AuthKind string

const (
	AuthKindNone   AuthKind = "none"
	AuthKindBasic  AuthKind = "basic"
	AuthKindBearer AuthKind = "bearer"
	AuthKindHeader AuthKind = "header"
)

// AuthConfig holds authentication settings for JWKS fetching.
type AuthConfig struct {
	Kind        AuthKind
	Username    string
	Password    string
	BearerToken string
	HeaderName  string
	HeaderValue string
}

// Doer sends a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFunc creates a body-less request for method and url.
type RequestFunc func(ctx context.Context, method, url string) (*http.Request, error)

// Fetcher downloads and parses a key set. It holds no per-call state and is
// safe for concurrent use once configured.
type Fetcher struct {
	httpc        Doer
	newRequest   RequestFunc
	auth         AuthConfig
	extraHeaders map[string]string
}

func NewFetcher(httpc Doer, newRequest RequestFunc) *Fetcher {
	return &Fetcher{httpc: httpc, newRequest: newRequest}
}

// SetAuth configures authentication for JWKS requests.
func (f *Fetcher) SetAuth(auth AuthConfig) {
	f.auth = auth
}

// SetExtraHeaders configures additional headers for JWKS requests.
func (f *Fetcher) SetExtraHeaders(headers map[string]string) {
	f.extraHeaders = maps.Clone(headers)
}

// Fetch issues one GET to jwksURL and parses the body as a key set.
func (f *Fetcher) Fetch(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := f.newRequest(ctx, http.MethodGet, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("create request: request factory returned nil")
	}

	f.applyAuth(req)
	for k, v := range f.extraHeaders {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxJWKSResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrInvalidJWKS, maxJWKSResponseSize)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJWKS, err)
	}
	return set, nil
}

func (f *Fetcher) applyAuth(req *http.Request) {
	switch f.auth.Kind {
	case AuthKindBasic:
		req.SetBasicAuth(f.auth.Username, f.auth.Password)
	case AuthKindBearer:
		req.Header.Set("Authorization", "Bearer "+f.auth.BearerToken)
	case AuthKindHeader:
		if f.auth.HeaderName != "" {
			req.Header.Set(f.auth.HeaderName, f.auth.HeaderValue)
		}
	}
}
