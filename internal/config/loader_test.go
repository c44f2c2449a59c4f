package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/tenantjwt/pkg/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
cache:
  client_config:
    capacity: 16
    ttl: 30s
tokens:
  lookup_timeout: 500ms
clients:
  - client_id: acme
    signing_secret: 0123456789abcdef0123456789abcdef
    signature_algorithm: HS256
    access_token_validity_seconds: 300
    refresh_token_validity_seconds: 3600
users:
  - client_id: acme
    username: alice
    name: Alice
    password_hash: "$2a$04$abc"
    roles: [ROLE_USER]
strategies:
  - client_id: acme
    user_lookup: memory
`)

	cfg, err := NewLoader(logger.NewNoopLogger(), path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "lru", cfg.Cache.ClientConfig.Engine)
	assert.Equal(t, 16, cfg.Cache.ClientConfig.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Cache.ClientConfig.TTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Tokens.LookupTimeout)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "acme", cfg.Clients[0].ClientID)
	assert.Equal(t, int64(300), cfg.Clients[0].AccessTokenValiditySeconds)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, []string{"ROLE_USER"}, cfg.Users[0].Roles)
	require.Len(t, cfg.Strategies, 1)
	assert.Equal(t, "memory", cfg.Strategies[0].UserLookup)
}

func TestLoader_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("TENANTJWT_SERVER_PORT", "7070")

	cfg, err := NewLoader(logger.NewNoopLogger(), path).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown cache engine", "cache:\n  client_config:\n    engine: memcached\n"},
		{"redis engine without redis", "cache:\n  blacklist:\n    engine: redis\n"},
		{"vault source without vault", "tokens:\n  encryption_source: vault\n"},
		{"bad client id", "strategies:\n  - client_id: \"a:b\"\n"},
		{"duplicate strategy", "strategies:\n  - client_id: acme\n  - client_id: acme\n"},
		{"database lookup without database", "strategies:\n  - client_id: acme\n    user_lookup: database\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(logger.NewNoopLogger(), writeConfig(t, tt.body)).Load()
			assert.Error(t, err)
		})
	}
}
