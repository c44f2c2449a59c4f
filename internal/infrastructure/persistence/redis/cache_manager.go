package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/tenantjwt/internal/domain/service"
)

// CacheEngine is a distributed cache engine over Redis. Every key is namespaced
// with prefix so several engines can share a database.
type CacheEngine struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
}

var _ service.CacheEngine = (*CacheEngine)(nil)

// NewCacheEngine creates the engine. A zero defaultTTL stores keys without expiry.
func NewCacheEngine(client redis.UniversalClient, prefix string, defaultTTL time.Duration) *CacheEngine {
	return &CacheEngine{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *CacheEngine) key(k string) string {
	return c.prefix + k
}

func (c *CacheEngine) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Put uses SET, which replaces the value and its expiry in one step.
func (c *CacheEngine) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *CacheEngine) Contains(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *CacheEngine) Remove(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
