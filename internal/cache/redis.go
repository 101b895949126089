package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Cache = (*RedisCache)(nil)

// RedisCache shares gazetteer lookups between workers and processes.
// Entries rely on Redis TTLs for expiration.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

// NewRedisCache creates a cache over an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:    client,
		ttl:       ttl,
		opTimeout: 2 * time.Second,
	}
}

// DialRedis connects to addr and verifies the server answers PING
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opTimeout)
}

// Get retrieves a value; errors other than a missing key are treated as a miss
func (c *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := c.context()
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores a value with the given TTL, or the cache default when ttl is zero
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	ctx, cancel := c.context()
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Delete removes a value
func (c *RedisCache) Delete(key string) error {
	ctx, cancel := c.context()
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every toporag entry, leaving other keys untouched
func (c *RedisCache) Clear() error {
	ctx, cancel := c.context()
	defer cancel()

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
