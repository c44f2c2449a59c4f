package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
)

// ClaimsGeneratorFactory builds a claims generator variant for one tenant.
type ClaimsGeneratorFactory func(clientID string, users repository.UserRepository, defaultAuthorities []string) ClaimsGenerator

// ClaimsGeneratorStandard is the name of the stock variant.
const ClaimsGeneratorStandard = "standard"

// ClaimsGeneratorCatalog maps variant names to factories. New variants are added
// as new entries; existing ones are not modified.
type ClaimsGeneratorCatalog map[string]ClaimsGeneratorFactory

// DefaultClaimsGeneratorCatalog returns a catalog holding the stock variant.
func DefaultClaimsGeneratorCatalog() ClaimsGeneratorCatalog {
	return ClaimsGeneratorCatalog{
		ClaimsGeneratorStandard: func(clientID string, users repository.UserRepository, defaults []string) ClaimsGenerator {
			return NewStandardClaimsGenerator(clientID, users, defaults)
		},
	}
}

// Build resolves a variant by name. An empty name selects the stock variant.
func (c ClaimsGeneratorCatalog) Build(name, clientID string, users repository.UserRepository, defaults []string) (ClaimsGenerator, error) {
	if name == "" {
		name = ClaimsGeneratorStandard
	}
	f, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown claims generator %q for client %q", name, clientID)
	}
	return f(clientID, users, defaults), nil
}

// StandardClaimsGenerator derives claims from the tenant's user record.
// StandardClaimsGenerator 根据租户的用户记录生成声明。
type StandardClaimsGenerator struct {
	clientID           string
	users              repository.UserRepository
	defaultAuthorities []string
}

// NewStandardClaimsGenerator creates the stock generator.
func NewStandardClaimsGenerator(clientID string, users repository.UserRepository, defaultAuthorities []string) *StandardClaimsGenerator {
	return &StandardClaimsGenerator{
		clientID:           clientID,
		users:              users,
		defaultAuthorities: defaultAuthorities,
	}
}

// GetRawClaims builds fresh claim maps for username on every call.
func (g *StandardClaimsGenerator) GetRawClaims(ctx context.Context, username string) (*models.RawClaims, error) {
	user, err := g.users.FindByUsername(ctx, username)
	if errors.Is(err, errors.ErrRecordNotFound) || (err == nil && user == nil) {
		return nil, errors.ErrUserNotFound(g.clientID, username)
	}
	if err != nil {
		return nil, errors.FromContext(err, "user")
	}
	return g.RawClaimsFor(ctx, user)
}

// RawClaimsFor builds claims from an already loaded user record.
func (g *StandardClaimsGenerator) RawClaimsFor(_ context.Context, user *models.UserRecord) (*models.RawClaims, error) {
	name := user.Name
	if name == "" {
		name = user.Username
	}

	return &models.RawClaims{
		Access: models.Claims{
			constants.ClaimUsername:    user.Username,
			constants.ClaimName:        name,
			constants.ClaimAuthorities: authorities(user.Roles, g.defaultAuthorities),
			constants.ClaimClientID:    g.clientID,
		},
		Refresh: models.Claims{
			constants.ClaimUsername: user.Username,
			constants.ClaimClientID: g.clientID,
		},
		Additional: models.Claims{
			"display_name": name,
			"roles":        append([]string(nil), user.Roles...),
		},
	}, nil
}

// authorities merges roles and defaults into a sorted, de-duplicated list.
func authorities(roles, defaults []string) []string {
	seen := make(map[string]struct{}, len(roles)+len(defaults))
	out := make([]string, 0, len(roles)+len(defaults))
	for _, list := range [][]string{roles, defaults} {
		for _, r := range list {
			if r == "" {
				continue
			}
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}
