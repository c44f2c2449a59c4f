package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/tenantjwt/internal/application/dto"
	appService "github.com/turtacn/tenantjwt/internal/application/service"
	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/models"
	domainService "github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/internal/infrastructure/audit"
	"github.com/turtacn/tenantjwt/internal/infrastructure/cache"
	"github.com/turtacn/tenantjwt/internal/infrastructure/crypto"
	"github.com/turtacn/tenantjwt/internal/infrastructure/monitoring"
	"github.com/turtacn/tenantjwt/internal/infrastructure/persistence/memory"
	"github.com/turtacn/tenantjwt/internal/interfaces/http/handlers"
	"github.com/turtacn/tenantjwt/internal/interfaces/http/middleware"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNoopLogger()

	hash, err := crypto.HashPassword("correct", bcrypt.MinCost)
	require.NoError(t, err)

	clients := memory.NewClientStore(
		&models.ClientConfiguration{
			ClientID: "acme", SigningSecret: "acme-secret-0123456789abcdef0123456789",
			SignatureAlgorithm: constants.AlgorithmHS256, TokenType: constants.TokenTypeBearer,
			AccessTokenValiditySeconds: 300, RefreshTokenValiditySeconds: 3600,
		},
		&models.ClientConfiguration{
			ClientID: "ops", SigningSecret: "ops-secret-0123456789abcdef0123456789abcdef0123456789",
			SignatureAlgorithm: constants.AlgorithmHS384, TokenType: constants.TokenTypeBearer,
			AccessTokenValiditySeconds: 60, RefreshTokenValiditySeconds: 600,
		},
	)
	users := memory.UserStoresFromSeeds([]config.UserSeed{
		{ClientID: "acme", Username: "alice", PasswordHash: hash},
		{ClientID: "ops", Username: "root", PasswordHash: hash, Roles: []string{"tenantjwt:admin"}},
	})

	catalog := domainService.DefaultClaimsGeneratorCatalog()
	var strategies []domainService.AuthenticationStrategy
	for _, id := range []string{"acme", "ops"} {
		gen, err := catalog.Build("", id, users[id], nil)
		require.NoError(t, err)
		strategies = append(strategies, domainService.AuthenticationStrategy{ClientID: id, ClaimsGenerator: gen, UserLookup: users[id]})
	}
	registry, err := domainService.NewStrategyRegistry(strategies...)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	configs := domainService.NewClientConfigurationCache(cache.NewLRUEngine(16, time.Minute), clients, log,
		domainService.ClientConfigurationCacheOptions{TTL: time.Minute, Metrics: metrics})
	blacklist := domainService.NewUserBlacklistCache(cache.NewTTLEngine(0, 0), 0, log)
	tokens := domainService.NewTokenDomainService(registry, configs, blacklist, crypto.NewJWTCodec(nil, log), crypto.BcryptVerifier{}, log)

	app := appService.NewAuthAppService(appService.AuthAppServiceDeps{
		Tokens:    tokens,
		Configs:   configs,
		Blacklist: blacklist,
		Audit:     audit.NewLogAuditService(log),
		Metrics:   metrics,
	}, log)

	return NewRouter(
		config.ServerConfig{Environment: "production"},
		log,
		metrics,
		handlers.NewHealthHandler(nil, log),
		handlers.NewAuthHandler(app, log),
		WithAdmin(handlers.NewAdminHandler(app), middleware.RequireAuthority(app, "ops", "tenantjwt:admin", log)),
	)
}

func do(t *testing.T, r *Router, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(context.Background())
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	r.Engine().ServeHTTP(rr, req)
	return rr
}

func issue(t *testing.T, r *Router, clientID, username string) dto.TokenResponse {
	t.Helper()
	rr := do(t, r, http.MethodPost, "/api/v1/token", "", map[string]string{
		"clientId": clientID, "username": username, "password": "correct",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tok dto.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	return tok
}

func TestRouter_IssueVerifyRefresh(t *testing.T) {
	r := newTestRouter(t)

	tok := issue(t, r, "acme", "alice")
	assert.Equal(t, int64(300), tok.ExpiresInSeconds)
	assert.NotEmpty(t, liveRequestID(t, r))

	rr := do(t, r, http.MethodPost, "/api/v1/token/verify", "", map[string]string{"clientId": "acme", "token": tok.AccessToken})
	require.Equal(t, http.StatusOK, rr.Code)
	var verified dto.VerifyTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &verified))
	assert.True(t, verified.Valid)
	assert.Equal(t, "alice", verified.Claims[constants.ClaimUsername])

	// another tenant's configuration does not verify the token
	rr = do(t, r, http.MethodPost, "/api/v1/token/verify", "", map[string]string{"clientId": "ops", "token": tok.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/v1/token/refresh", "", map[string]string{"clientId": "acme", "refreshToken": tok.RefreshToken})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func liveRequestID(t *testing.T, r *Router) string {
	t.Helper()
	rr := do(t, r, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Header().Get(constants.HeaderRequestID)
}

func TestRouter_AdminBlacklist(t *testing.T) {
	r := newTestRouter(t)
	alice := issue(t, r, "acme", "alice")

	rr := do(t, r, http.MethodPost, "/api/v1/admin/blacklist", "", map[string]string{"clientId": "acme", "username": "alice"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "admin API needs a token")

	rr = do(t, r, http.MethodPost, "/api/v1/admin/blacklist", alice.AccessToken, map[string]string{"clientId": "acme", "username": "alice"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "tokens of other tenants are not accepted")

	admin := issue(t, r, "ops", "root")
	rr = do(t, r, http.MethodPost, "/api/v1/admin/blacklist", admin.AccessToken, map[string]string{"clientId": "acme", "username": "alice"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, r, http.MethodPost, "/api/v1/token/verify", "", map[string]string{"clientId": "acme", "token": alice.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "blacklisted user")

	rr = do(t, r, http.MethodDelete, "/api/v1/admin/blacklist/acme/alice", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/v1/token/verify", "", map[string]string{"clientId": "acme", "token": alice.AccessToken})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/v1/admin/clients/acme/invalidate", admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_NotFound(t *testing.T) {
	r := newTestRouter(t)
	rr := do(t, r, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_found")
}
