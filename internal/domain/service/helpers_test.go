package service_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
)

// mapEngine is a minimal CacheEngine for domain tests.
type mapEngine struct {
	mu   sync.RWMutex
	data map[string][]byte
	puts atomic.Int32
}

func newMapEngine() *mapEngine {
	return &mapEngine{data: make(map[string][]byte)}
}

func (e *mapEngine) Get(_ context.Context, key string) ([]byte, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[key]
	return v, ok, nil
}

func (e *mapEngine) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.puts.Add(1)
	e.data[key] = append([]byte(nil), value...)
	return nil
}

func (e *mapEngine) Contains(_ context.Context, key string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.data[key]
	return ok, nil
}

func (e *mapEngine) Remove(_ context.Context, key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.data[key]
	delete(e.data, key)
	return ok, nil
}

// countingStore counts reads and can hold them until released.
type countingStore struct {
	mu      sync.Mutex
	records map[string]models.ClientConfiguration
	reads   atomic.Int32
	gate    chan struct{}
}

func newCountingStore(cfgs ...models.ClientConfiguration) *countingStore {
	s := &countingStore{records: make(map[string]models.ClientConfiguration)}
	for _, c := range cfgs {
		s.records[c.ClientID] = c
	}
	return s
}

func (s *countingStore) FindByClientID(ctx context.Context, clientID string) (*models.ClientConfiguration, error) {
	s.reads.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[clientID]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return &c, nil
}

func (s *countingStore) Save(_ context.Context, cfg *models.ClientConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[cfg.ClientID] = *cfg
	return nil
}

func (s *countingStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, clientID)
	return nil
}

func testConfig(clientID string, secretChar string) models.ClientConfiguration {
	return models.ClientConfiguration{
		ClientID:                    clientID,
		SigningSecret:               strings.Repeat(secretChar, 32),
		SignatureAlgorithm:          constants.AlgorithmHS256,
		TokenType:                   constants.TokenTypeBearer,
		AccessTokenValiditySeconds:  300,
		RefreshTokenValiditySeconds: 3600,
	}
}
