package cache

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/internal/infrastructure/persistence/redis"
	"github.com/turtacn/tenantjwt/pkg/constants"
)

// RedisKeyPrefix namespaces every key this service writes to Redis.
const RedisKeyPrefix = "tenantjwt:"

// NewEngine builds the engine selected by settings. client is only used by the redis engine.
func NewEngine(settings config.CacheSettings, client goredis.UniversalClient) (service.CacheEngine, error) {
	switch constants.CacheEngineType(settings.Engine) {
	case constants.CacheEngineLRU, "":
		return NewLRUEngine(settings.Capacity, settings.TTL), nil
	case constants.CacheEngineTTL:
		return NewTTLEngine(settings.TTL, sweepInterval(settings.TTL)), nil
	case constants.CacheEngineRedis:
		if client == nil {
			return nil, fmt.Errorf("cache engine redis selected but no redis client is configured")
		}
		return redis.NewCacheEngine(client, RedisKeyPrefix, settings.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache engine %q", settings.Engine)
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 10*time.Minute {
		return time.Minute
	}
	return ttl / 2
}
