package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSecretGen(t *testing.T) {
	for _, alg := range []constants.SignatureAlgorithm{constants.AlgorithmHS256, constants.AlgorithmHS384, constants.AlgorithmHS512} {
		t.Run(string(alg), func(t *testing.T) {
			out, err := run(t, "", "secret", "gen", "--alg", strings.ToLower(string(alg)))
			require.NoError(t, err)

			secret := strings.TrimSpace(out)
			raw, err := base64.RawURLEncoding.DecodeString(secret)
			require.NoError(t, err)
			assert.Len(t, raw, alg.MinSecretLength())
			assert.GreaterOrEqual(t, len(secret), alg.MinSecretLength())
		})
	}

	_, err := run(t, "", "secret", "gen", "--alg", "RS256")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	out, err := run(t, "s3cret\n", "password", "hash", "--cost", fmt.Sprint(bcrypt.MinCost))
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("s3cret")))

	out, err = run(t, "", "password", "hash", "--cost", fmt.Sprint(bcrypt.MinCost), "inline")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("inline")))

	_, err = run(t, "\n", "password", "hash")
	assert.Error(t, err)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestClientCheck(t *testing.T) {
	path := writeConfig(t, `
clients:
  - client_id: acme
    signing_secret: acme-secret-0123456789abcdef0123456789
    access_token_validity_seconds: 300
    refresh_token_validity_seconds: 3600
`)
	out, err := run(t, "", "--config", path, "client", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "HS256")

	path = writeConfig(t, `
clients:
  - client_id: acme
    signing_secret: short
    access_token_validity_seconds: 300
    refresh_token_validity_seconds: 3600
`)
	_, err = run(t, "", "--config", path, "client", "check")
	assert.Error(t, err)
}

func TestClientPut_NeedsDatabase(t *testing.T) {
	path := writeConfig(t, "database:\n  enabled: false\n")
	_, err := run(t, "", "--config", path, "client", "put", "--client-id", "acme", "--secret", strings.Repeat("a", 32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is disabled")
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := postgres.OpenGorm(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestPutClient(t *testing.T) {
	db := setupDB(t)
	repo := postgres.NewClientConfigurationRepository(db, logger.NewNoopLogger())
	ctx := context.Background()

	err := putClient(ctx, repo, &models.ClientConfiguration{
		ClientID: "acme", SigningSecret: strings.Repeat("a", 32),
		AccessTokenValiditySeconds: 300, RefreshTokenValiditySeconds: 3600,
	})
	require.NoError(t, err)

	got, err := repo.FindByClientID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, constants.AlgorithmHS256, got.SignatureAlgorithm)
	assert.Equal(t, constants.TokenTypeBearer, got.TokenType)

	err = putClient(ctx, repo, &models.ClientConfiguration{
		ClientID: "weak", SigningSecret: strings.Repeat("a", 32), SignatureAlgorithm: constants.AlgorithmHS512,
		AccessTokenValiditySeconds: 300, RefreshTokenValiditySeconds: 3600,
	})
	assert.Error(t, err, "HS512 needs a 64 byte secret")
}

func TestQueryAudit(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	old := models.NewAuditEvent(constants.AuditEventTokenIssued, "acme", "alice", true)
	old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	events := []*models.AuditEvent{
		old,
		models.NewAuditEvent(constants.AuditEventTokenIssued, "acme", "alice", true),
		models.NewAuditEvent(constants.AuditEventLoginFailed, "acme", "bob", false).WithReason("invalid_credentials"),
		models.NewAuditEvent(constants.AuditEventTokenIssued, "ops", "root", true),
	}
	for _, e := range events {
		require.NoError(t, db.Create(e).Error)
	}

	got, err := queryAudit(ctx, db, auditFilter{ClientID: "acme", Since: 24 * time.Hour})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = queryAudit(ctx, db, auditFilter{FailuresOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Username)

	got, err = queryAudit(ctx, db, auditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
