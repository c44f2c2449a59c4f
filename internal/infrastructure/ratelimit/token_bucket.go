// Package ratelimit throttles the token endpoints with token buckets, either
// shared through Redis or kept in process.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	// Allowed indicates if the request may proceed
	Allowed bool
	// Limit is the bucket capacity
	Limit int64
	// Remaining is the number of whole tokens left
	Remaining int64
	// RetryAfter is how long until one token is available, zero when allowed
	RetryAfter time.Duration
}

// Config sizes every bucket.
type Config struct {
	// Capacity is the burst size
	Capacity int64
	// Rate is the number of tokens added per second
	Rate float64
	// KeyPrefix namespaces Redis keys
	KeyPrefix string
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 20
	}
	if c.Rate <= 0 {
		c.Rate = float64(c.Capacity) / 60
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "tenantjwt:ratelimit"
	}
	return c
}

// TokenBucket implements the token bucket algorithm for rate limiting.
// It is safe for concurrent use.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	rate       float64
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity, rate float64, now func() time.Time) *TokenBucket {
	if now == nil {
		now = time.Now
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		rate:       rate,
		lastRefill: now(),
		now:        now,
	}
}

// Take removes one token when available.
func (tb *TokenBucket) Take() Result {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	res := Result{Limit: int64(tb.capacity)}
	if tb.tokens >= 1 {
		tb.tokens--
		res.Allowed = true
	} else {
		missing := 1 - tb.tokens
		res.RetryAfter = time.Duration(math.Ceil(missing / tb.rate * float64(time.Second)))
	}
	res.Remaining = int64(tb.tokens)
	return res
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.rate)
	tb.lastRefill = now
}

// idleSince reports when the bucket was last touched.
func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// LocalRateLimiter keeps one bucket per key in process.
type LocalRateLimiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*TokenBucket
	now     func() time.Time
}

// NewLocalRateLimiter creates an in-process limiter. now may be nil.
func NewLocalRateLimiter(cfg Config, now func() time.Time) *LocalRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &LocalRateLimiter{cfg: cfg.withDefaults(), buckets: make(map[string]*TokenBucket), now: now}
}

// Allow takes one token from key's bucket.
func (l *LocalRateLimiter) Allow(_ context.Context, key string) (Result, error) {
	return l.bucket(key).Take(), nil
}

func (l *LocalRateLimiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = NewTokenBucket(float64(l.cfg.Capacity), l.cfg.Rate, l.now)
		l.buckets[key] = b
	}
	return b
}

// Cleanup drops buckets untouched for maxIdle and returns how many were removed.
func (l *LocalRateLimiter) Cleanup(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, b := range l.buckets {
		if b.idleSince().Before(cutoff) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked keys.
func (l *LocalRateLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
