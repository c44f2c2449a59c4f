// Package memory provides in-process stores seeded from configuration.
// They back tenants that are declared in the config file instead of the database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
)

var _ repository.ClientConfigurationRepository = (*ClientStore)(nil)

// ClientStore holds client configurations in memory. Reads return copies.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]models.ClientConfiguration
}

// NewClientStore creates a store holding cfgs.
func NewClientStore(cfgs ...*models.ClientConfiguration) *ClientStore {
	s := &ClientStore{clients: make(map[string]models.ClientConfiguration, len(cfgs))}
	for _, c := range cfgs {
		s.clients[c.ClientID] = *c
	}
	return s
}

// ClientFromSeed converts a config file entry into a client configuration.
func ClientFromSeed(seed config.ClientSeed) *models.ClientConfiguration {
	return &models.ClientConfiguration{
		ClientID:                    seed.ClientID,
		SigningSecret:               seed.SigningSecret,
		SignatureAlgorithm:          constants.SignatureAlgorithm(seed.SignatureAlgorithm),
		TokenType:                   seed.TokenType,
		UseEncryption:               seed.UseEncryption,
		AccessTokenValiditySeconds:  seed.AccessTokenValiditySeconds,
		RefreshTokenValiditySeconds: seed.RefreshTokenValiditySeconds,
	}
}

// ClientsFromSeeds converts and validates every seed.
func ClientsFromSeeds(seeds []config.ClientSeed) ([]*models.ClientConfiguration, error) {
	out := make([]*models.ClientConfiguration, 0, len(seeds))
	for _, seed := range seeds {
		c := ClientFromSeed(seed)
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FindByClientID implements repository.ClientConfigurationRepository.
func (s *ClientStore) FindByClientID(ctx context.Context, clientID string) (*models.ClientConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return &c, nil
}

// Save implements repository.ClientConfigurationRepository.
func (s *ClientStore) Save(ctx context.Context, cfg *models.ClientConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[cfg.ClientID] = *cfg
	return nil
}

// Delete implements repository.ClientConfigurationRepository.
func (s *ClientStore) Delete(ctx context.Context, clientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
	return nil
}

// Replace swaps the whole content for cfgs and returns the ids that were
// added, changed or removed, in sorted order.
func (s *ClientStore) Replace(cfgs []*models.ClientConfiguration) []string {
	next := make(map[string]models.ClientConfiguration, len(cfgs))
	for _, c := range cfgs {
		next[c.ClientID] = *c
	}

	s.mu.Lock()
	prev := s.clients
	s.clients = next
	s.mu.Unlock()

	return DiffClients(prev, next)
}

// DiffClients lists the ids whose configuration differs between prev and next.
func DiffClients(prev, next map[string]models.ClientConfiguration) []string {
	var changed []string
	for id, p := range prev {
		n, ok := next[id]
		if !ok || !p.Equal(&n) {
			changed = append(changed, id)
		}
	}
	for id := range next {
		if _, ok := prev[id]; !ok {
			changed = append(changed, id)
		}
	}
	sort.Strings(changed)
	return changed
}

// ClientIDs lists the stored tenants.
func (s *ClientStore) ClientIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
