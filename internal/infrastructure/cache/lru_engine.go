// Package cache provides the in-process cache engines behind the domain caches.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/turtacn/tenantjwt/internal/domain/service"
)

type lruEntry struct {
	value []byte
	// expiresAt is set when Put was given a ttl shorter than the engine default.
	expiresAt time.Time
}

// LRUEngine is a bounded in-process engine: least-recently-used eviction past
// capacity, plus a time-to-live per entry. Whichever fires first removes the entry.
type LRUEngine struct {
	lru        *expirable.LRU[string, lruEntry]
	defaultTTL time.Duration
	now        func() time.Time
}

var _ service.CacheEngine = (*LRUEngine)(nil)

// NewLRUEngine creates an engine holding at most capacity entries. A zero
// defaultTTL means entries only leave through eviction or Remove.
func NewLRUEngine(capacity int, defaultTTL time.Duration) *LRUEngine {
	return &LRUEngine{
		lru:        expirable.NewLRU[string, lruEntry](capacity, nil, defaultTTL),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// live reports whether an entry's own deadline has not passed. Stale entries are
// left for the LRU to evict or a later Put to overwrite.
func (e *LRUEngine) live(ent lruEntry) bool {
	return ent.expiresAt.IsZero() || e.now().Before(ent.expiresAt)
}

// Get returns a copy of the stored value.
func (e *LRUEngine) Get(_ context.Context, key string) ([]byte, bool, error) {
	ent, ok := e.lru.Get(key)
	if !ok || !e.live(ent) {
		return nil, false, nil
	}
	return append([]byte(nil), ent.value...), true, nil
}

// Put replaces the entry for key.
func (e *LRUEngine) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ent := lruEntry{value: append([]byte(nil), value...)}
	if ttl > 0 && (e.defaultTTL <= 0 || ttl < e.defaultTTL) {
		ent.expiresAt = e.now().Add(ttl)
	}
	e.lru.Add(key, ent)
	return nil
}

// Contains does not update recency.
func (e *LRUEngine) Contains(_ context.Context, key string) (bool, error) {
	ent, ok := e.lru.Peek(key)
	if !ok {
		return false, nil
	}
	return e.live(ent), nil
}

func (e *LRUEngine) Remove(_ context.Context, key string) (bool, error) {
	ent, ok := e.lru.Peek(key)
	present := ok && e.live(ent)
	e.lru.Remove(key)
	return present, nil
}

// Len returns the number of entries, including ones not yet swept.
func (e *LRUEngine) Len() int {
	return e.lru.Len()
}
