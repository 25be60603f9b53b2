package jwk

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

func newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, nil)
}

func serveJWKS(t *testing.T, checkFn func(r *http.Request)) *httptest.Server {
	t.Helper()
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key, err := jwk.FromRaw(&privKey.PublicKey)
	if err != nil {
		t.Fatalf("build jwk: %v", err)
	}
	_ = key.Set(jwk.KeyIDKey, "test-kid")
	set := jwk.NewSet()
	_ = set.AddKey(key)
	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal set: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if checkFn != nil {
			checkFn(r)
		}
		switch r.URL.Path {
		case "/invalid":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"keys": "not-an-array"}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/at-limit":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(paddedKeySet(maxJWKSResponseSize))
		case "/oversized":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(paddedKeySet(2 * maxJWKSResponseSize))
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// paddedKeySet returns an empty key set padded with trailing whitespace to
// exactly size bytes. It stays valid JSON at any size.
func paddedKeySet(size int) []byte {
	body := []byte(`{"keys":[]}`)
	return append(body, bytes.Repeat([]byte(" "), size-len(body))...)
}

func TestFetchParsesKeySet(t *testing.T) {
	var method string
	srv := serveJWKS(t, func(r *http.Request) { method = r.Method })

	f := NewFetcher(srv.Client(), newRequest)
	set, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if method != http.MethodGet {
		t.Errorf("method: want GET, got %s", method)
	}
	if _, ok := set.LookupKeyID("test-kid"); !ok {
		t.Error("expected key test-kid in fetched set")
	}
}

func TestFetchInvalidBody(t *testing.T) {
	srv := serveJWKS(t, nil)

	f := NewFetcher(srv.Client(), newRequest)
	_, err := f.Fetch(context.Background(), srv.URL+"/invalid")
	if !errors.Is(err, ErrInvalidJWKS) {
		t.Errorf("expected ErrInvalidJWKS, got %v", err)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := serveJWKS(t, nil)

	f := NewFetcher(srv.Client(), newRequest)
	_, err := f.Fetch(context.Background(), srv.URL+"/oversized")
	if !errors.Is(err, ErrInvalidJWKS) {
		t.Fatalf("expected ErrInvalidJWKS, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error should mention the size limit, got %v", err)
	}
}

func TestFetchAcceptsBodyAtLimit(t *testing.T) {
	srv := serveJWKS(t, nil)

	f := NewFetcher(srv.Client(), newRequest)
	set, err := f.Fetch(context.Background(), srv.URL+"/at-limit")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("want empty set, got %d keys", set.Len())
	}
}

func TestFetchUnexpectedStatus(t *testing.T) {
	srv := serveJWKS(t, nil)

	f := NewFetcher(srv.Client(), newRequest)
	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention status code, got %v", err)
	}
}

func TestFetchRequestFactoryError(t *testing.T) {
	boom := errors.New("boom")
	f := NewFetcher(http.DefaultClient, func(context.Context, string, string) (*http.Request, error) {
		return nil, boom
	})
	_, err := f.Fetch(context.Background(), "https://example.com/jwks.json")
	if !errors.Is(err, boom) {
		t.Errorf("expected factory error to be wrapped, got %v", err)
	}
}

func TestFetchBasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	srv := serveJWKS(t, func(r *http.Request) { user, pass, ok = r.BasicAuth() })

	f := NewFetcher(srv.Client(), newRequest)
	f.SetAuth(AuthConfig{Kind: AuthKindBasic, Username: "jwks-user", Password: "jwks-pass"})
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !ok || user != "jwks-user" || pass != "jwks-pass" {
		t.Errorf("basic auth: got ok=%v user=%q pass=%q", ok, user, pass)
	}
}

func TestFetchBearerAuth(t *testing.T) {
	var got string
	srv := serveJWKS(t, func(r *http.Request) { got = r.Header.Get("Authorization") })

	f := NewFetcher(srv.Client(), newRequest)
	f.SetAuth(AuthConfig{Kind: AuthKindBearer, BearerToken: "my-jwks-bearer"})
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "Bearer my-jwks-bearer" {
		t.Errorf("bearer auth: want 'Bearer my-jwks-bearer', got %q", got)
	}
}

func TestFetchCustomHeaderAndExtraHeaders(t *testing.T) {
	var key, tenant, accept string
	srv := serveJWKS(t, func(r *http.Request) {
		key = r.Header.Get("X-Jwks-Key")
		tenant = r.Header.Get("X-Tenant")
		accept = r.Header.Get("Accept")
	})

	headers := map[string]string{"X-Tenant": "acme"}
	f := NewFetcher(srv.Client(), newRequest)
	f.SetAuth(AuthConfig{Kind: AuthKindHeader, HeaderName: "X-Jwks-Key", HeaderValue: "k-123"})
	f.SetExtraHeaders(headers)
	headers["X-Tenant"] = "mutated"

	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if key != "k-123" {
		t.Errorf("custom header: want k-123, got %q", key)
	}
	if tenant != "acme" {
		t.Errorf("extra header: want acme, got %q", tenant)
	}
	if accept != "application/json" {
		t.Errorf("accept: want application/json, got %q", accept)
	}
}
