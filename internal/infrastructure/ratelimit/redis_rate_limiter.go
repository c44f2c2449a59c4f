package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/tenantjwt/pkg/logger"
)

// Limiter checks and consumes one request of budget for a key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

var (
	_ Limiter = (*RedisRateLimiter)(nil)
	_ Limiter = (*LocalRateLimiter)(nil)
)

// RedisRateLimiter implements distributed rate limiting using Redis.
// When Redis fails it degrades to per-instance buckets.
type RedisRateLimiter struct {
	client   redis.UniversalClient
	cfg      Config
	fallback *LocalRateLimiter
	logger   logger.Logger
}

// tokenBucketScript refills and takes atomically.
// KEYS[1] bucket; ARGV capacity, rate per second, now in ms.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(tokens + elapsed * rate / 1000, capacity)

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
else
    retry_ms = math.ceil((1 - tokens) / rate * 1000)
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('PEXPIRE', key, math.ceil((capacity - tokens) / rate * 1000) + 60000)

return {allowed, math.floor(tokens), retry_ms}
`)

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client redis.UniversalClient, cfg Config, log logger.Logger) *RedisRateLimiter {
	cfg = cfg.withDefaults()
	return &RedisRateLimiter{
		client:   client,
		cfg:      cfg,
		fallback: NewLocalRateLimiter(cfg, nil),
		logger:   log.WithComponent("ratelimit"),
	}
}

// Allow takes one token from key's shared bucket.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (Result, error) {
	raw, err := tokenBucketScript.Run(ctx, rl.client, []string{rl.buildKey(key)},
		rl.cfg.Capacity, rl.cfg.Rate, time.Now().UnixMilli()).Int64Slice()
	if err != nil {
		rl.logger.Warn(ctx, "Redis rate limit check failed, using local bucket", logger.Err(err))
		return rl.fallback.Allow(ctx, key)
	}
	if len(raw) < 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script result %v", raw)
	}
	return Result{
		Allowed:    raw[0] == 1,
		Limit:      rl.cfg.Capacity,
		Remaining:  raw[1],
		RetryAfter: time.Duration(raw[2]) * time.Millisecond,
	}, nil
}

// Reset clears key's bucket.
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := rl.client.Del(ctx, rl.buildKey(key)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (rl *RedisRateLimiter) buildKey(key string) string {
	return rl.cfg.KeyPrefix + ":" + key
}
