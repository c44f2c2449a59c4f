package crypto

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/tenantjwt/internal/domain/service"
)

var _ service.PasswordVerifier = BcryptVerifier{}

// BcryptVerifier checks passwords against bcrypt hashes.
type BcryptVerifier struct{}

// Verify returns nil when password matches hash.
func (BcryptVerifier) Verify(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// HashPassword produces a bcrypt hash. A cost of 0 selects bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
