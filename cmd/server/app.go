package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	appservice "github.com/turtacn/tenantjwt/internal/application/service"
	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	domainservice "github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/internal/infrastructure/audit"
	"github.com/turtacn/tenantjwt/internal/infrastructure/cache"
	"github.com/turtacn/tenantjwt/internal/infrastructure/consumers"
	"github.com/turtacn/tenantjwt/internal/infrastructure/crypto"
	"github.com/turtacn/tenantjwt/internal/infrastructure/monitoring"
	"github.com/turtacn/tenantjwt/internal/infrastructure/persistence/memory"
	"github.com/turtacn/tenantjwt/internal/infrastructure/persistence/postgres"
	redisstore "github.com/turtacn/tenantjwt/internal/infrastructure/persistence/redis"
	"github.com/turtacn/tenantjwt/internal/infrastructure/ratelimit"
	httpapi "github.com/turtacn/tenantjwt/internal/interfaces/http"
	"github.com/turtacn/tenantjwt/internal/interfaces/http/handlers"
	"github.com/turtacn/tenantjwt/internal/interfaces/http/middleware"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// application holds every long-lived component of the server.
type application struct {
	cfg *config.Config
	log logger.Logger

	tracing *monitoring.TracingManager
	metrics *monitoring.Metrics
	db      *postgres.DBConnection
	redis   *redisstore.RedisConnection

	clientStore repository.ClientConfigurationRepository
	memClients  *memory.ClientStore
	memUsers    map[string]*memory.UserStore
	dbUsers     map[string]*postgres.UserRepoImpl

	configs   *domainservice.ClientConfigurationCache
	blacklist *domainservice.UserBlacklistCache
	vaultKeys *crypto.VaultKeyProvider
	producer  *audit.KafkaProducer
	consumer  *consumers.BlacklistConsumer

	authApp appservice.AuthAppService
	router  *httpapi.Router
}

// newApplication builds the object graph from cfg. Optional backends are only
// contacted when enabled.
func newApplication(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*application, error) {
	app := &application{cfg: cfg, log: log, memUsers: map[string]*memory.UserStore{}, dbUsers: map[string]*postgres.UserRepoImpl{}}
	if cfg.Kafka.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.Kafka.InstanceID = host
	}

	// 1. Observability
	var err error
	app.tracing, err = monitoring.NewTracingManager(cfg.Tracing, cfg.Server.Environment, log)
	if err != nil {
		return nil, err
	}
	app.metrics = monitoring.NewMetrics(reg)

	// 2. Backends
	if cfg.Database.Enabled {
		app.db, err = postgres.NewDBConnection(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, app.db.Gorm()); err != nil {
				return nil, err
			}
		}
	}
	var redisClient goredis.UniversalClient
	if cfg.Redis.Enabled {
		app.redis = redisstore.NewRedisConnection(cfg.Redis, log)
		if err := app.redis.Connect(ctx); err != nil {
			return nil, err
		}
		redisClient = app.redis.GetClient()
	}

	// 3. Client configurations and users
	if err := app.buildStores(ctx); err != nil {
		return nil, err
	}

	// 4. Caches
	configEngine, err := cache.NewEngine(cfg.Cache.ClientConfig, redisClient)
	if err != nil {
		return nil, fmt.Errorf("client_config cache: %w", err)
	}
	if configEngine, err = app.sealShared(ctx, configEngine); err != nil {
		return nil, err
	}
	blacklistEngine, err := cache.NewEngine(cfg.Cache.Blacklist, redisClient)
	if err != nil {
		return nil, fmt.Errorf("blacklist cache: %w", err)
	}
	app.configs = domainservice.NewClientConfigurationCache(configEngine, app.clientStore, log,
		domainservice.ClientConfigurationCacheOptions{
			TTL:         cfg.Cache.ClientConfig.TTL,
			LoadTimeout: cfg.Tokens.LookupTimeout,
			Metrics:     app.metrics,
		})
	app.blacklist = domainservice.NewUserBlacklistCache(blacklistEngine, cfg.Cache.Blacklist.TTL, log)

	// 5. Strategies
	registry, err := app.buildRegistry()
	if err != nil {
		return nil, err
	}

	// 6. Codec
	keys, err := app.buildKeyProvider()
	if err != nil {
		return nil, err
	}
	codec := crypto.NewJWTCodec(keys, log)
	tokens := domainservice.NewTokenDomainService(registry, app.configs, app.blacklist, codec, crypto.BcryptVerifier{}, log)

	// 7. Audit and replication
	sinks := audit.MultiAuditService{audit.NewLogAuditService(log)}
	if app.db != nil {
		sinks = append(sinks, audit.NewGormAuditService(app.db.Gorm()))
	}
	var publisher domainservice.BlacklistPublisher
	if cfg.Kafka.Enabled {
		app.producer = audit.NewKafkaProducer(cfg.Kafka, log)
		sinks = append(sinks, app.producer)
		publisher = app.producer
		app.consumer = consumers.NewBlacklistConsumer(cfg.Kafka, app.blacklist, log)
	}

	app.authApp = appservice.NewAuthAppService(appservice.AuthAppServiceDeps{
		Tokens:        tokens,
		Configs:       app.configs,
		Blacklist:     app.blacklist,
		Audit:         sinks,
		Publisher:     publisher,
		Metrics:       app.metrics,
		LookupTimeout: cfg.Tokens.LookupTimeout,
		InstanceID:    cfg.Kafka.InstanceID,
	}, log)

	// 8. HTTP
	var opts []httpapi.RouterOption
	if cfg.Server.AdminClientID != "" {
		guard := middleware.RequireAuthority(app.authApp, cfg.Server.AdminClientID, cfg.Server.AdminAuthority, log)
		opts = append(opts, httpapi.WithAdmin(handlers.NewAdminHandler(app.authApp), guard))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, httpapi.WithRateLimit(middleware.RateLimit(app.rateLimiter(redisClient), log)))
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		opts = append(opts, httpapi.WithGatherer(g))
	}
	app.router = httpapi.NewRouter(cfg.Server, log, app.metrics,
		handlers.NewHealthHandler(app.healthChecks(), log),
		handlers.NewAuthHandler(app.authApp, log),
		opts...)

	return app, nil
}

// buildStores selects the client configuration store and seeds it.
func (app *application) buildStores(ctx context.Context) error {
	seeds, err := memory.ClientsFromSeeds(app.cfg.Clients)
	if err != nil {
		return err
	}

	if app.db != nil {
		app.clientStore = postgres.NewClientConfigurationRepository(app.db.Gorm(), app.log)
		for _, c := range seeds {
			if err := app.clientStore.Save(ctx, c); err != nil {
				return fmt.Errorf("seed client %s: %w", c.ClientID, err)
			}
		}
	} else {
		app.memClients = memory.NewClientStore(seeds...)
		app.clientStore = app.memClients
	}

	app.memUsers = memory.UserStoresFromSeeds(app.cfg.Users)
	return nil
}

// strategies returns the configured strategy table, or one stock strategy per
// seeded client when none is configured.
func (app *application) strategies() []config.StrategyConfig {
	if len(app.cfg.Strategies) > 0 {
		return app.cfg.Strategies
	}
	out := make([]config.StrategyConfig, 0, len(app.cfg.Clients))
	for _, c := range app.cfg.Clients {
		out = append(out, config.StrategyConfig{ClientID: c.ClientID, UserLookup: "memory"})
	}
	return out
}

func (app *application) buildRegistry() (*domainservice.StrategyRegistry, error) {
	catalog := domainservice.DefaultClaimsGeneratorCatalog()
	records := memory.UserRecordsFromSeeds(app.cfg.Users)

	var table []domainservice.AuthenticationStrategy
	for _, sc := range app.strategies() {
		var users repository.UserRepository
		switch sc.UserLookup {
		case "database":
			repo := postgres.NewUserRepository(app.db.Gorm(), sc.ClientID, app.log)
			for _, u := range records[sc.ClientID] {
				if err := repo.Save(context.Background(), u); err != nil {
					return nil, fmt.Errorf("seed user %s/%s: %w", sc.ClientID, u.Username, err)
				}
			}
			app.dbUsers[sc.ClientID] = repo
			users = repo
		default:
			store, ok := app.memUsers[sc.ClientID]
			if !ok {
				store = memory.NewUserStore(sc.ClientID)
				app.memUsers[sc.ClientID] = store
			}
			users = store
		}

		gen, err := catalog.Build(sc.ClaimsGenerator, sc.ClientID, users, sc.DefaultAuthorities)
		if err != nil {
			return nil, err
		}
		table = append(table, domainservice.AuthenticationStrategy{
			ClientID:        sc.ClientID,
			ClaimsGenerator: gen,
			UserLookup:      users,
		})
	}
	return domainservice.NewStrategyRegistry(table...)
}

func (app *application) buildKeyProvider() (domainservice.EncryptionKeyProvider, error) {
	if app.cfg.Tokens.EncryptionSource == "vault" {
		p, err := crypto.NewVaultKeyProvider(app.cfg.Vault, app.log)
		if err != nil {
			return nil, err
		}
		app.vaultKeys = p
		return p, nil
	}
	if app.cfg.Tokens.EncryptionSecret == "" {
		for _, c := range app.cfg.Clients {
			if c.UseEncryption {
				return nil, fmt.Errorf("client %s uses encryption but tokens.encryption_secret is empty", c.ClientID)
			}
		}
		return nil, nil
	}
	p, err := crypto.NewStaticKeyProvider(app.cfg.Tokens.EncryptionSecret)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// sealShared encrypts client configurations, signing secrets included, before they
// are written to Redis. Without tokens.encryption_secret they are stored as is.
func (app *application) sealShared(ctx context.Context, engine domainservice.CacheEngine) (domainservice.CacheEngine, error) {
	if app.cfg.Cache.ClientConfig.Engine != string(constants.CacheEngineRedis) {
		return engine, nil
	}
	if app.cfg.Tokens.EncryptionSecret == "" {
		app.log.Warn(ctx, "client configurations are cached in redis without encryption; set tokens.encryption_secret to seal them")
		return engine, nil
	}
	sealed, err := crypto.NewSealedEngine(engine, app.cfg.Tokens.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("client_config cache: %w", err)
	}
	return sealed, nil
}

// rateLimiter shares buckets through Redis when it is enabled.
func (app *application) rateLimiter(client goredis.UniversalClient) ratelimit.Limiter {
	rl := ratelimit.Config{
		Capacity: int64(app.cfg.RateLimit.Burst),
		Rate:     float64(app.cfg.RateLimit.RequestsPerMinute) / 60,
	}
	if client != nil {
		return ratelimit.NewRedisRateLimiter(client, rl, app.log)
	}
	return ratelimit.NewLocalRateLimiter(rl, nil)
}

func (app *application) healthChecks() map[string]handlers.HealthCheckFunc {
	checks := map[string]handlers.HealthCheckFunc{}
	if app.db != nil {
		checks["database"] = app.db.Ping
	}
	if app.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			_, err := app.redis.HealthCheck(ctx)
			return err
		}
	}
	return checks
}

// reload applies a new configuration revision. Client configurations and users
// are swapped; every changed client is invalidated from the cache. The strategy
// table is fixed at startup.
func (app *application) reload(ctx context.Context, next *config.Config) {
	err := monitoring.TraceOperation(ctx, app.tracing, "config.reload", func(ctx context.Context) error {
		return app.applyRevision(ctx, next)
	})
	if err != nil {
		app.log.Error(ctx, "Rejected client configuration reload", err)
	}
}

func (app *application) applyRevision(ctx context.Context, next *config.Config) error {
	seeds, err := memory.ClientsFromSeeds(next.Clients)
	if err != nil {
		return err
	}

	var changed []string
	if app.memClients != nil {
		changed = app.memClients.Replace(seeds)
	} else {
		changed = memory.DiffClients(seedMap(app.cfg.Clients), seedMap(next.Clients))
		for _, c := range seeds {
			if err := app.clientStore.Save(ctx, c); err != nil {
				app.log.Error(ctx, "Failed to upsert client configuration", err)
			}
		}
	}

	for _, id := range changed {
		if _, err := app.authApp.InvalidateClient(ctx, id); err != nil {
			app.log.Warn(ctx, "Failed to invalidate client", logger.String("client_id", id), logger.Err(err))
		}
		if app.vaultKeys != nil {
			app.vaultKeys.Forget(id)
		}
	}

	records := memory.UserRecordsFromSeeds(next.Users)
	for clientID, store := range app.memUsers {
		store.Replace(records[clientID])
	}
	for clientID, repo := range app.dbUsers {
		for _, u := range records[clientID] {
			if err := repo.Save(ctx, u); err != nil {
				app.log.Error(ctx, "Failed to upsert user", err, logger.String("client_id", clientID))
			}
		}
	}

	app.cfg.Clients = next.Clients
	app.cfg.Users = next.Users
	app.log.Info(ctx, "Configuration reloaded", logger.Int("invalidated_clients", len(changed)))
	return nil
}

func seedMap(seeds []config.ClientSeed) map[string]models.ClientConfiguration {
	out := make(map[string]models.ClientConfiguration, len(seeds))
	for _, s := range seeds {
		c := memory.ClientFromSeed(s)
		out[c.ClientID] = *c
	}
	return out
}

// start launches background workers.
func (app *application) start(ctx context.Context) {
	if app.consumer != nil {
		go app.consumer.Start(ctx)
	}
}

// shutdown stops the server and releases every backend.
func (app *application) shutdown(ctx context.Context) {
	if err := app.router.Stop(ctx); err != nil {
		app.log.Error(ctx, "HTTP server shutdown failed", err)
	}
	if app.consumer != nil {
		app.consumer.Stop()
	}
	if app.producer != nil {
		if err := app.producer.Close(); err != nil {
			app.log.Error(ctx, "Kafka producer close failed", err)
		}
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		app.db.Close()
	}
	_ = app.tracing.Shutdown(ctx)
}
