// Package cache provides the pluggable key-value store backing the OAuth2
// token cache. Single-instance deployments use the in-memory backend;
// multi-instance deployments can point the same call sites at Redis.
package cache

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Cache defines the operations the token cache relies on. Values are raw
// bytes; callers own serialization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LocalCache wraps patrickmn/go-cache for in-memory caching.
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance.
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache.
func (l *LocalCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, found := l.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return data, true
}

// Set stores a value in the local cache.
func (l *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the local cache.
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// RedisCache wraps go-redis for caching shared across instances.
type RedisCache struct {
	client    *goredis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance.
func NewRedisCache(client *goredis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis. Lookup failures read as misses.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value in Redis.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

// Delete removes a value from Redis.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

var (
	_ Cache = (*LocalCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
