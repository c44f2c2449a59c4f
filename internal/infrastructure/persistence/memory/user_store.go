package memory

import (
	"context"
	"sync"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/pkg/errors"
)

var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the user lookup of one tenant.
type UserStore struct {
	clientID string

	mu    sync.RWMutex
	users map[string]models.UserRecord
}

// NewUserStore creates an empty lookup for clientID.
func NewUserStore(clientID string) *UserStore {
	return &UserStore{clientID: clientID, users: make(map[string]models.UserRecord)}
}

// UserRecordsFromSeeds groups seeded users by tenant.
func UserRecordsFromSeeds(seeds []config.UserSeed) map[string][]*models.UserRecord {
	out := make(map[string][]*models.UserRecord)
	for _, seed := range seeds {
		out[seed.ClientID] = append(out[seed.ClientID], &models.UserRecord{
			ClientID:     seed.ClientID,
			Username:     seed.Username,
			Name:         seed.Name,
			PasswordHash: seed.PasswordHash,
			Enabled:      !seed.Disabled,
			Roles:        seed.Roles,
		})
	}
	return out
}

// UserStoresFromSeeds groups seeds by tenant. Tenants without seeds get no entry.
func UserStoresFromSeeds(seeds []config.UserSeed) map[string]*UserStore {
	stores := make(map[string]*UserStore)
	for clientID, records := range UserRecordsFromSeeds(seeds) {
		s := NewUserStore(clientID)
		s.Replace(records)
		stores[clientID] = s
	}
	return stores
}

// Put adds or replaces a user.
func (s *UserStore) Put(u *models.UserRecord) {
	rec := *u
	rec.ClientID = s.clientID
	rec.Roles = append([]string(nil), u.Roles...)
	s.mu.Lock()
	s.users[rec.Username] = rec
	s.mu.Unlock()
}

// Replace swaps all users for records.
func (s *UserStore) Replace(records []*models.UserRecord) {
	next := make(map[string]models.UserRecord, len(records))
	for _, u := range records {
		rec := *u
		rec.ClientID = s.clientID
		rec.Roles = append([]string(nil), u.Roles...)
		next[rec.Username] = rec
	}
	s.mu.Lock()
	s.users = next
	s.mu.Unlock()
}

// FindByUsername implements repository.UserRepository.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	u.Roles = append([]string(nil), u.Roles...)
	return &u, nil
}
