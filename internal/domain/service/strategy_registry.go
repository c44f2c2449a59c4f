package service

import (
	"fmt"
	"sort"

	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/pkg/errors"
)

// AuthenticationStrategy binds a tenant to its claims generator and user lookup.
// AuthenticationStrategy 将租户与其声明生成器和用户查询绑定。
type AuthenticationStrategy struct {
	ClientID        string
	ClaimsGenerator ClaimsGenerator
	UserLookup      repository.UserRepository
}

// StrategyRegistry maps client ids to strategies. It is built once and never
// mutated, so lookups need no locking.
// StrategyRegistry 在启动时构建一次，之后只读，查询无需加锁。
type StrategyRegistry struct {
	strategies map[string]AuthenticationStrategy
}

// NewStrategyRegistry builds the registry from a fixed table.
func NewStrategyRegistry(strategies ...AuthenticationStrategy) (*StrategyRegistry, error) {
	m := make(map[string]AuthenticationStrategy, len(strategies))
	for _, s := range strategies {
		if !clientIDPattern.MatchString(s.ClientID) {
			return nil, fmt.Errorf("strategy registry: invalid client id %q", s.ClientID)
		}
		if s.ClaimsGenerator == nil || s.UserLookup == nil {
			return nil, fmt.Errorf("strategy registry: client %q needs both a claims generator and a user lookup", s.ClientID)
		}
		if _, dup := m[s.ClientID]; dup {
			return nil, fmt.Errorf("strategy registry: client %q registered twice", s.ClientID)
		}
		m[s.ClientID] = s
	}
	return &StrategyRegistry{strategies: m}, nil
}

// Resolve returns the strategy for clientID or a ClientNotFound error.
func (r *StrategyRegistry) Resolve(clientID string) (AuthenticationStrategy, error) {
	if clientID == "" {
		return AuthenticationStrategy{}, errors.ErrClientNotFound(clientID)
	}
	s, ok := r.strategies[clientID]
	if !ok {
		return AuthenticationStrategy{}, errors.ErrClientNotFound(clientID)
	}
	return s, nil
}

// ClientIDs lists the registered tenants in sorted order.
func (r *StrategyRegistry) ClientIDs() []string {
	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
