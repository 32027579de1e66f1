// Package redis provides a Redis-backed query cache.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/couchcryptid/glacier-telemetry/internal/query"
)

const keyPrefix = "glacier:query:"

// KV is the key-value surface the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// ClientKV adapts a go-redis client to KV.
type ClientKV struct {
	c *redis.Client
}

// NewClientKV connects to addr. The connection is established lazily.
func NewClientKV(addr string) *ClientKV {
	return &ClientKV{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *ClientKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, query.ErrCacheMiss
	}
	return val, err
}

func (r *ClientKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *ClientKV) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *ClientKV) Close() error {
	return r.c.Close()
}

// Cache implements query.Cache on top of a KV store. Expiry is delegated to
// the store.
type Cache struct {
	kv KV
}

// NewCache wraps kv.
func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

func (c *Cache) Get(ctx context.Context, key query.CacheKey) ([]byte, error) {
	return c.kv.Get(ctx, keyPrefix+key.String())
}

func (c *Cache) Set(ctx context.Context, key query.CacheKey, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.kv.Set(ctx, keyPrefix+key.String(), value, ttl)
}

// CheckReadiness pings the store.
func (c *Cache) CheckReadiness(ctx context.Context) error {
	return c.kv.Ping(ctx)
}
