package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/tenantjwt/internal/domain/service"
)

// TTLEngine is an unbounded in-process engine backed by go-cache. Expired entries
// are swept by go-cache's janitor on a timer.
type TTLEngine struct {
	c *gocache.Cache
}

var _ service.CacheEngine = (*TTLEngine)(nil)

// NewTTLEngine creates the engine. A zero defaultTTL means entries never expire.
func NewTTLEngine(defaultTTL, sweepInterval time.Duration) *TTLEngine {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &TTLEngine{c: gocache.New(defaultTTL, sweepInterval)}
}

func (e *TTLEngine) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := e.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), true, nil
}

func (e *TTLEngine) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	e.c.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (e *TTLEngine) Contains(_ context.Context, key string) (bool, error) {
	_, ok := e.c.Get(key)
	return ok, nil
}

func (e *TTLEngine) Remove(_ context.Context, key string) (bool, error) {
	_, ok := e.c.Get(key)
	e.c.Delete(key)
	return ok, nil
}
