// Package josekeysfiber publishes a josekeys.Provider's key set from a Fiber
// app, typically at /.well-known/jwks.json.
//
// By default only public key material is served: symmetric keys are dropped
// and private keys are reduced to their public halves.
//
// Concurrency: All exported functions are safe for concurrent use.
package josekeysfiber

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/keksclan/goJoseKeys/josekeys"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Option configures the handler.
type Option func(*options)

type options struct {
	maxAge         time.Duration
	includePrivate bool
}

// WithMaxAge sets the Cache-Control max-age of the response. Default 5m;
// 0 sends no-store.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) {
		o.maxAge = d
	}
}

// WithPrivateKeys serves the set exactly as the provider returns it.
// Only use this on internal endpoints.
func WithPrivateKeys() Option {
	return func(o *options) {
		o.includePrivate = true
	}
}

func buildOptions(opts []Option) options {
	o := options{maxAge: 5 * time.Minute}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Handler returns a Fiber handler that serves the provider's key set as a
// JWKS document. Fetch failures answer 502 without details.
func Handler(p josekeys.Provider, opts ...Option) fiber.Handler {
	o := buildOptions(opts)

	return func(c *fiber.Ctx) error {
		set, err := p.Fetch(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "jwks unavailable"})
		}
		if !o.includePrivate {
			if set, err = publicSet(set); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "jwks unavailable"})
			}
		}

		if o.maxAge > 0 {
			c.Set(fiber.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", int(o.maxAge.Seconds())))
		} else {
			c.Set(fiber.HeaderCacheControl, "no-store")
		}
		body, err := json.Marshal(set)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "jwks unavailable"})
		}
		c.Set(fiber.HeaderContentType, "application/jwk-set+json")
		return c.Send(body)
	}
}

// publicSet drops oct keys and replaces every other key with its public form.
func publicSet(set jwk.Set) (jwk.Set, error) {
	out := jwk.NewSet()
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		if key.KeyType() == jwa.OctetSeq {
			continue
		}
		pub, err := key.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("public key of %q: %w", key.KeyID(), err)
		}
		if err := out.AddKey(pub); err != nil {
			return nil, err
		}
	}
	return out, nil
}
