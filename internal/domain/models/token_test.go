package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/pkg/constants"
)

func TestIssuedToken_IsExpiredAt(t *testing.T) {
	exp := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before", exp.Add(-time.Hour), false},
		{"one second before", exp.Add(-time.Second), false},
		{"sub-second before is same second", exp.Add(-500 * time.Millisecond), false},
		{"exactly at expiry", exp, true},
		{"within the expiry second", exp.Add(500 * time.Millisecond), true},
		{"after", exp.Add(time.Hour), true},
		{"other timezone same instant", exp.In(time.FixedZone("X", 3600)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &models.IssuedToken{ExpiresAt: exp}
			assert.Equal(t, tt.want, token.IsExpiredAt(tt.now))
		})
	}
}

func TestIssuedToken_TimeUntilExpiry(t *testing.T) {
	now := time.Now()
	token := &models.IssuedToken{ExpiresAt: now.Add(time.Minute)}
	assert.Equal(t, time.Minute, token.TimeUntilExpiry(now))
	assert.Zero(t, token.TimeUntilExpiry(now.Add(2*time.Minute)))
}

func TestTokenBundle_ExpiresInSeconds(t *testing.T) {
	iat := time.Unix(1700000000, 0)
	b := &models.TokenBundle{Access: models.IssuedToken{IssuedAt: iat, ExpiresAt: iat.Add(300 * time.Second)}}
	assert.Equal(t, int64(300), b.ExpiresInSeconds())
}

func validConfig() models.ClientConfiguration {
	return models.ClientConfiguration{
		ClientID:                    "acme",
		SigningSecret:               strings.Repeat("s", 32),
		SignatureAlgorithm:          constants.AlgorithmHS256,
		TokenType:                   "Bearer",
		AccessTokenValiditySeconds:  300,
		RefreshTokenValiditySeconds: 3600,
	}
}

func TestClientConfiguration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *models.ClientConfiguration)
		wantErr bool
	}{
		{"valid", func(c *models.ClientConfiguration) {}, false},
		{"empty client id", func(c *models.ClientConfiguration) { c.ClientID = "" }, true},
		{"client id too long", func(c *models.ClientConfiguration) { c.ClientID = strings.Repeat("a", 65) }, true},
		{"client id with separator", func(c *models.ClientConfiguration) { c.ClientID = "ac:me" }, true},
		{"unknown algorithm", func(c *models.ClientConfiguration) { c.SignatureAlgorithm = "RS256" }, true},
		{"short HS256 secret", func(c *models.ClientConfiguration) { c.SigningSecret = strings.Repeat("s", 31) }, true},
		{"HS384 needs 48 bytes", func(c *models.ClientConfiguration) { c.SignatureAlgorithm = constants.AlgorithmHS384 }, true},
		{"HS512 with 64 bytes", func(c *models.ClientConfiguration) {
			c.SignatureAlgorithm = constants.AlgorithmHS512
			c.SigningSecret = strings.Repeat("s", 64)
		}, false},
		{"zero access validity", func(c *models.ClientConfiguration) { c.AccessTokenValiditySeconds = 0 }, true},
		{"negative refresh validity", func(c *models.ClientConfiguration) { c.RefreshTokenValiditySeconds = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientConfiguration_ApplyDefaults(t *testing.T) {
	c := models.ClientConfiguration{ClientID: "acme"}
	c.ApplyDefaults()
	assert.Equal(t, constants.AlgorithmHS256, c.SignatureAlgorithm)
	assert.Equal(t, constants.TokenTypeBearer, c.TokenType)
}

func TestClaims_CloneIsIndependent(t *testing.T) {
	src := models.Claims{"username": "alice"}
	cp := src.Clone()
	cp["extra"] = 1
	assert.NotContains(t, src, "extra")
	assert.Equal(t, "alice", cp.Username())
}
