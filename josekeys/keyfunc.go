package josekeys

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Refresher is implemented by providers that can reload their key set on
// demand. CachedProvider limits how often that reaches the inner provider.
type Refresher interface {
	Refresh(ctx context.Context) (jwk.Set, error)
}

// KeyFunc adapts a Provider to jwt.Keyfunc. The key is chosen by the token's
// kid header, or is the only key of the set when the token has no kid. An
// unknown kid on a Refresher provider triggers a Refresh, which picks up
// rotated keys; Refresh decides whether that goes back to the remote source.
func KeyFunc(ctx context.Context, p Provider) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)

		set, err := p.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		key, err := selectKey(set, kid)
		if errors.Is(err, ErrKeyNotFound) && kid != "" {
			if r, ok := p.(Refresher); ok {
				if set, err = r.Refresh(ctx); err != nil {
					return nil, err
				}
				key, err = selectKey(set, kid)
			}
		}
		if err != nil {
			return nil, err
		}

		if alg := key.Algorithm(); alg != nil && alg.String() != "" && t.Method != nil && alg.String() != t.Method.Alg() {
			return nil, fmt.Errorf("%w: key %q is for %s, token uses %s", ErrKeyAlgorithmMismatch, kid, alg, t.Method.Alg())
		}

		var rawKey any
		if err := key.Raw(&rawKey); err != nil {
			return nil, fmt.Errorf("failed to get raw key: %w", err)
		}
		return rawKey, nil
	}
}

func selectKey(set jwk.Set, kid string) (jwk.Key, error) {
	if kid != "" {
		key, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
		}
		return key, nil
	}
	if set.Len() == 1 {
		if key, ok := set.Key(0); ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: token has no kid and the set holds %d keys", ErrKeyNotFound, set.Len())
}
