package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

func newConfigCache(engine service.CacheEngine, store *countingStore) *service.ClientConfigurationCache {
	return service.NewClientConfigurationCache(engine, store, logger.NewNoopLogger(),
		service.ClientConfigurationCacheOptions{TTL: time.Minute, LoadTimeout: time.Second})
}

func TestClientConfigurationCache_MissLoadsOnceThenHits(t *testing.T) {
	store := newCountingStore(testConfig("acme", "a"))
	cache := newConfigCache(newMapEngine(), store)
	ctx := context.Background()

	cfg, found, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "acme", cfg.ClientID)

	_, found, err = cache.Get(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int32(1), store.reads.Load())

	cached, err := cache.Contains(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestClientConfigurationCache_AbsenceIsNotCached(t *testing.T) {
	store := newCountingStore()
	engine := newMapEngine()
	cache := newConfigCache(engine, store)
	ctx := context.Background()

	_, found, err := cache.Get(ctx, "late")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, engine.puts.Load())

	// provisioned after the first miss
	require.NoError(t, store.Save(ctx, ptr(testConfig("late", "l"))))

	cfg, found, err := cache.Get(ctx, "late")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "late", cfg.ClientID)
	assert.Equal(t, int32(2), store.reads.Load())
}

func TestClientConfigurationCache_PutReplaces(t *testing.T) {
	store := newCountingStore()
	cache := newConfigCache(newMapEngine(), store)
	ctx := context.Background()

	v1 := testConfig("acme", "a")
	v2 := testConfig("acme", "b")
	v2.AccessTokenValiditySeconds = 60

	require.NoError(t, cache.Put(ctx, "acme", &v1))
	got, found, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(&v1))

	require.NoError(t, cache.Put(ctx, "acme", &v2))
	got, _, err = cache.Get(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, got.Equal(&v2))
	assert.Zero(t, store.reads.Load())
}

func TestClientConfigurationCache_ConcurrentMissesCoalesce(t *testing.T) {
	store := newCountingStore(testConfig("acme", "a"))
	store.gate = make(chan struct{})
	cache := newConfigCache(newMapEngine(), store)

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, found, err := cache.Get(context.Background(), "acme")
			if err == nil && (!found || cfg.ClientID != "acme") {
				err = assert.AnError
			}
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.reads.Load())
}

func TestClientConfigurationCache_CallerDeadlineIsUpstreamTimeout(t *testing.T) {
	store := newCountingStore(testConfig("acme", "a"))
	store.gate = make(chan struct{})
	defer close(store.gate)
	cache := newConfigCache(newMapEngine(), store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, found, err := cache.Get(ctx, "acme")
	assert.False(t, found)
	assert.True(t, errors.IsKind(err, errors.KindUpstreamTimeout))
}

func TestClientConfigurationCache_StoreTimeoutIsUpstreamTimeout(t *testing.T) {
	store := newCountingStore(testConfig("acme", "a"))
	store.gate = make(chan struct{})
	defer close(store.gate)
	cache := service.NewClientConfigurationCache(newMapEngine(), store, logger.NewNoopLogger(),
		service.ClientConfigurationCacheOptions{LoadTimeout: 20 * time.Millisecond})

	_, _, err := cache.Get(context.Background(), "acme")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUpstreamTimeout))
	assert.True(t, errors.As(err, new(errors.AuthError)))
}

func TestClientConfigurationCache_InvalidStoredRecord(t *testing.T) {
	bad := testConfig("acme", "a")
	bad.SigningSecret = "short"
	cache := newConfigCache(newMapEngine(), newCountingStore(bad))

	_, _, err := cache.Get(context.Background(), "acme")
	assert.True(t, errors.IsKind(err, errors.KindInternal))
}

func TestClientConfigurationCache_Invalidate(t *testing.T) {
	store := newCountingStore(testConfig("acme", "a"))
	cache := newConfigCache(newMapEngine(), store)
	ctx := context.Background()

	_, _, err := cache.Get(ctx, "acme")
	require.NoError(t, err)

	updated := testConfig("acme", "z")
	require.NoError(t, store.Save(ctx, &updated))

	removed, err := cache.Invalidate(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, removed)

	got, _, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, updated.SigningSecret, got.SigningSecret)
	assert.Equal(t, int32(2), store.reads.Load())
}

// stallingStore reads its snapshot and then holds the first call until released.
type stallingStore struct {
	*countingStore
	calls   atomic.Int32
	read    chan struct{}
	release chan struct{}
}

func (s *stallingStore) FindByClientID(ctx context.Context, clientID string) (*models.ClientConfiguration, error) {
	cfg, err := s.countingStore.FindByClientID(ctx, clientID)
	if s.calls.Add(1) == 1 {
		close(s.read)
		<-s.release
	}
	return cfg, err
}

func TestClientConfigurationCache_InvalidateDuringFill(t *testing.T) {
	store := &stallingStore{
		countingStore: newCountingStore(testConfig("acme", "a")),
		read:          make(chan struct{}),
		release:       make(chan struct{}),
	}
	cache := service.NewClientConfigurationCache(newMapEngine(), store, logger.NewNoopLogger(),
		service.ClientConfigurationCacheOptions{TTL: time.Minute, LoadTimeout: 5 * time.Second})
	ctx := context.Background()

	first := make(chan *models.ClientConfiguration, 1)
	go func() {
		cfg, _, err := cache.Get(ctx, "acme")
		assert.NoError(t, err)
		first <- cfg
	}()
	<-store.read

	rotated := testConfig("acme", "b")
	require.NoError(t, store.Save(ctx, &rotated))
	_, err := cache.Invalidate(ctx, "acme")
	require.NoError(t, err)

	// a caller arriving after the invalidation does not join the stalled fill
	got, found, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rotated.SigningSecret, got.SigningSecret)

	close(store.release)
	old := <-first
	assert.Equal(t, testConfig("acme", "a").SigningSecret, old.SigningSecret)

	got, _, err = cache.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, rotated.SigningSecret, got.SigningSecret, "stalled fill must not overwrite the rotated entry")
	assert.Equal(t, int32(2), store.reads.Load())
}

func TestClientConfigurationCache_UndecodableEntryIsDropped(t *testing.T) {
	engine := newMapEngine()
	store := newCountingStore(testConfig("acme", "a"))
	cache := newConfigCache(engine, store)
	ctx := context.Background()

	require.NoError(t, engine.Put(ctx, "cc:acme", []byte("{not json"), 0))

	cfg, found, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "acme", cfg.ClientID)
	assert.Equal(t, int32(1), store.reads.Load())
}

func ptr[T any](v T) *T { return &v }
