package crypto

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/turtacn/tenantjwt/internal/infrastructure/persistence/redis"
)

func TestSealedEngine_RedisNeverSeesPlaintext(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	inner := redisstore.NewCacheEngine(client, "tenantjwt:", 0)

	engine, err := NewSealedEngine(inner, strings.Repeat("s", 32))
	require.NoError(t, err)
	ctx := context.Background()

	value := []byte(`{"client_id":"acme","signing_secret":"acme-signing-secret-0123456789abcdef"}`)
	require.NoError(t, engine.Put(ctx, "cc:acme", value, 0))

	stored, err := mr.Get("tenantjwt:cc:acme")
	require.NoError(t, err)
	assert.NotContains(t, stored, "acme-signing-secret")
	assert.Equal(t, 4, strings.Count(stored, "."), "compact JWE")

	got, ok, err := engine.Get(ctx, "cc:acme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value, got)

	// a peer with another secret cannot read the entry and drops it
	other, err := NewSealedEngine(inner, strings.Repeat("o", 32))
	require.NoError(t, err)
	_, ok, err = other.Get(ctx, "cc:acme")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("tenantjwt:cc:acme"))
}

func TestSealedEngine_PlainEntryIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := NewSealedEngine(redisstore.NewCacheEngine(client, "tenantjwt:", 0), strings.Repeat("s", 32))
	require.NoError(t, err)
	require.NoError(t, mr.Set("tenantjwt:cc:acme", `{"client_id":"acme"}`))

	_, ok, err := engine.Get(context.Background(), "cc:acme")
	require.NoError(t, err)
	assert.False(t, ok)

	contains, err := engine.Contains(context.Background(), "cc:acme")
	require.NoError(t, err)
	assert.False(t, contains)
}

func TestNewSealedEngine_ShortSecret(t *testing.T) {
	_, err := NewSealedEngine(nil, "short")
	assert.Error(t, err)
}
