package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRedisTimeout bounds every Redis round trip when no timeout is configured.
const defaultRedisTimeout = 2 * time.Second

// RedisCache is a shared Cache backed by Redis. Values are stored as JSON;
// Get returns the raw JSON bytes, which callers decode themselves.
type RedisCache struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisCache wraps client. Keys are stored under prefix+key.
func NewRedisCache(client redis.UniversalClient, prefix string, timeout time.Duration) *RedisCache {
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	return &RedisCache{client: client, prefix: prefix, timeout: timeout}
}

// Get returns the stored bytes. Redis errors are reported as a miss.
func (r *RedisCache) Get(key string) (any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set stores value as JSON. cost is ignored.
func (r *RedisCache) Set(key string, value any, _ int64, ttl time.Duration) bool {
	if ttl < 0 {
		return false
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return false
		}
		data = b
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	// go-redis treats 0 as "no expiration".
	return r.client.Set(ctx, r.prefix+key, data, ttl).Err() == nil
}

func (r *RedisCache) Del(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_ = r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
