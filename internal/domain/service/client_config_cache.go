package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

const cacheTypeClientConfig = "client_config"

// ClientConfigurationCache is a cache-aside layer over the client configuration store.
// Concurrent misses for the same client are coalesced into one store read, and
// absence is never cached so late provisioning is picked up on the next request.
// ClientConfigurationCache 是客户端配置存储之上的旁路缓存。
// 同一客户端的并发未命中合并为一次存储读取，且不缓存"不存在"的结果。
type ClientConfigurationCache struct {
	engine      CacheEngine
	store       repository.ClientConfigurationRepository
	ttl         time.Duration
	loadTimeout time.Duration
	sf          singleflight.Group
	metrics     Metrics
	log         logger.Logger

	// generations is bumped by Invalidate. A fill only populates the engine when
	// the generation it started under is still current.
	genMu       sync.Mutex
	generations map[string]uint64
}

// ClientConfigurationCacheOptions tunes a ClientConfigurationCache.
type ClientConfigurationCacheOptions struct {
	// TTL is passed to the engine on every Put. Zero uses the engine default.
	TTL time.Duration
	// LoadTimeout bounds a store read performed on behalf of waiting callers.
	LoadTimeout time.Duration
	Metrics     Metrics
}

// NewClientConfigurationCache creates the cache.
func NewClientConfigurationCache(
	engine CacheEngine,
	store repository.ClientConfigurationRepository,
	log logger.Logger,
	opts ClientConfigurationCacheOptions,
) *ClientConfigurationCache {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = constants.DefaultLookupTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	return &ClientConfigurationCache{
		engine:      engine,
		store:       store,
		ttl:         opts.TTL,
		loadTimeout: opts.LoadTimeout,
		metrics:     opts.Metrics,
		log:         log.WithComponent("client_config_cache"),
		generations: make(map[string]uint64),
	}
}

func clientConfigKey(clientID string) string {
	return constants.CacheKeyPrefixClientConfig + clientID
}

// Get returns the configuration for clientID, loading it from the store on a miss.
// found is false when the store has no such client. A context deadline while waiting
// on the store surfaces as an UpstreamTimeout error.
func (c *ClientConfigurationCache) Get(ctx context.Context, clientID string) (cfg *models.ClientConfiguration, found bool, err error) {
	if cfg, ok := c.lookup(ctx, clientID); ok {
		c.metrics.RecordCacheAccess(cacheTypeClientConfig, true)
		return cfg, true, nil
	}
	c.metrics.RecordCacheAccess(cacheTypeClientConfig, false)

	// The load runs detached from any single caller so a cancelled request does not
	// fail the others waiting on the same flight. Each caller still honors its own ctx.
	ch := c.sf.DoChan(clientID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		return c.load(loadCtx, clientID)
	})

	select {
	case <-ctx.Done():
		return nil, false, errors.FromContext(ctx.Err(), "client configuration store")
	case res := <-ch:
		if res.Err != nil {
			return nil, false, errors.FromContext(res.Err, "client configuration store")
		}
		loaded, _ := res.Val.(*models.ClientConfiguration)
		if loaded == nil {
			return nil, false, nil
		}
		cp := *loaded
		return &cp, true, nil
	}
}

// load runs inside the single flight.
func (c *ClientConfigurationCache) load(ctx context.Context, clientID string) (*models.ClientConfiguration, error) {
	// a flight that started just after another one finished finds the value here
	if cfg, ok := c.lookup(ctx, clientID); ok {
		return cfg, nil
	}

	gen := c.generation(clientID)
	start := time.Now()
	cfg, err := c.store.FindByClientID(ctx, clientID)
	if errors.Is(err, errors.ErrRecordNotFound) {
		err = nil
		cfg = nil
	}
	c.metrics.RecordStoreRead(cacheTypeClientConfig, time.Since(start), err)
	if err != nil {
		c.log.Warn(ctx, "client configuration store read failed",
			logger.String("client_id", clientID), logger.Err(err))
		return nil, err
	}
	if cfg == nil {
		c.log.Debug(ctx, "client configuration not found", logger.String("client_id", clientID))
		return nil, nil
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.ErrInternal("stored client configuration is invalid").WithCause(err)
	}

	if err := c.fill(ctx, clientID, gen, cfg); err != nil {
		// the value is still correct for this request, the next one will retry the fill
		c.log.Warn(ctx, "failed to populate client configuration cache",
			logger.String("client_id", clientID), logger.Err(err))
	}
	return cfg, nil
}

func (c *ClientConfigurationCache) generation(clientID string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.generations[clientID]
}

// fill stores cfg unless clientID was invalidated after the store read began.
func (c *ClientConfigurationCache) fill(ctx context.Context, clientID string, gen uint64, cfg *models.ClientConfiguration) error {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.generations[clientID] != gen {
		c.log.Debug(ctx, "discarding fill superseded by invalidation", logger.String("client_id", clientID))
		return nil
	}
	return c.Put(ctx, clientID, cfg)
}

// lookup reads the engine only. Undecodable entries are dropped and treated as a miss.
func (c *ClientConfigurationCache) lookup(ctx context.Context, clientID string) (*models.ClientConfiguration, bool) {
	key := clientConfigKey(clientID)
	raw, ok, err := c.engine.Get(ctx, key)
	if err != nil {
		c.log.Warn(ctx, "client configuration cache read failed", logger.String("client_id", clientID), logger.Err(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var cfg models.ClientConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		c.log.Warn(ctx, "dropping undecodable client configuration entry", logger.String("client_id", clientID), logger.Err(err))
		_, _ = c.engine.Remove(ctx, key)
		return nil, false
	}
	return &cfg, true
}

// Put stores cfg for clientID, replacing any existing entry as a whole.
func (c *ClientConfigurationCache) Put(ctx context.Context, clientID string, cfg *models.ClientConfiguration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode client configuration")
	}
	return c.engine.Put(ctx, clientConfigKey(clientID), raw, c.ttl)
}

// Contains reports whether clientID is currently cached. It never reads the store.
func (c *ClientConfigurationCache) Contains(ctx context.Context, clientID string) (bool, error) {
	return c.engine.Contains(ctx, clientConfigKey(clientID))
}

// Invalidate drops the cached entry so the next Get reloads from the store.
// A fill already in flight neither repopulates the entry nor serves later callers.
func (c *ClientConfigurationCache) Invalidate(ctx context.Context, clientID string) (bool, error) {
	c.genMu.Lock()
	c.generations[clientID]++
	c.sf.Forget(clientID)
	removed, err := c.engine.Remove(ctx, clientConfigKey(clientID))
	c.genMu.Unlock()
	if err == nil && removed {
		c.log.Info(ctx, "client configuration invalidated", logger.String("client_id", clientID))
	}
	return removed, err
}
