// Package cache holds the key-set cache backends used by josekeys.CachedProvider.
package cache

import (
	"time"
)

// Cache is a simple key/value cache with per-entry TTL.
// A zero ttl means the entry never expires. Set reports whether the value
// was accepted.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, cost int64, ttl time.Duration) bool
	Del(key string)
}
