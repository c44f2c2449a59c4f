package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/tenantjwt/pkg/logger"
)

func newTestEngine(t *testing.T, defaultTTL time.Duration) (*CacheEngine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheEngine(client, "tenantjwt:", defaultTTL), mr
}

func TestCacheEngine_Lifecycle(t *testing.T) {
	engine, mr := newTestEngine(t, 0)
	ctx := context.Background()

	_, ok, err := engine.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, engine.Put(ctx, "k", []byte("v1"), 0))
	assert.True(t, mr.Exists("tenantjwt:k"))
	assert.Zero(t, mr.TTL("tenantjwt:k"))

	require.NoError(t, engine.Put(ctx, "k", []byte("v2"), 0))
	v, ok, err := engine.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), v)

	present, err := engine.Contains(ctx, "k")
	require.NoError(t, err)
	assert.True(t, present)

	removed, err := engine.Remove(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = engine.Remove(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCacheEngine_TTL(t *testing.T) {
	engine, mr := newTestEngine(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, engine.Put(ctx, "default", []byte("x"), 0))
	require.NoError(t, engine.Put(ctx, "short", []byte("x"), time.Second))
	assert.Equal(t, time.Minute, mr.TTL("tenantjwt:default"))

	mr.FastForward(2 * time.Second)
	present, err := engine.Contains(ctx, "short")
	require.NoError(t, err)
	assert.False(t, present)

	present, err = engine.Contains(ctx, "default")
	require.NoError(t, err)
	assert.True(t, present)
}

func TestCacheEngine_ServerDown(t *testing.T) {
	engine, mr := newTestEngine(t, 0)
	mr.Close()

	_, _, err := engine.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestRedisConnection_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	conn := NewRedisConnectionFromClient(client, logger.NewNoopLogger())
	defer conn.Close()

	health, err := conn.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, health["connected"])
}
