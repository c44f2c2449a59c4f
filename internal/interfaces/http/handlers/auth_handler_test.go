package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/tenantjwt/internal/application/dto"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// MockAuthAppService is a mock for the AuthAppService
type MockAuthAppService struct {
	mock.Mock
}

func (m *MockAuthAppService) IssueToken(ctx context.Context, req *dto.IssueTokenRequest) (*dto.TokenResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TokenResponse), args.Error(1)
}

func (m *MockAuthAppService) VerifyToken(ctx context.Context, req *dto.VerifyTokenRequest) (*dto.VerifyTokenResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.VerifyTokenResponse), args.Error(1)
}

func (m *MockAuthAppService) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TokenResponse), args.Error(1)
}

func (m *MockAuthAppService) BlockUser(ctx context.Context, req *dto.BlacklistRequest) (*dto.BlacklistResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.BlacklistResponse), args.Error(1)
}

func (m *MockAuthAppService) UnblockUser(ctx context.Context, req *dto.BlacklistRequest) (*dto.BlacklistResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.BlacklistResponse), args.Error(1)
}

func (m *MockAuthAppService) InvalidateClient(ctx context.Context, clientID string) (*dto.InvalidateClientResponse, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.InvalidateClientResponse), args.Error(1)
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAuthHandler_IssueToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockAppService := new(MockAuthAppService)
	handler := NewAuthHandler(mockAppService, logger.NewNoopLogger())

	router := gin.New()
	router.POST("/token", handler.IssueToken)

	t.Run("Successfully issue token", func(t *testing.T) {
		mockResponse := &dto.TokenResponse{AccessToken: "test-token", ExpiresInSeconds: 300, AdditionalInfo: map[string]interface{}{}}
		mockAppService.On("IssueToken", mock.Anything, mock.MatchedBy(func(r *dto.IssueTokenRequest) bool {
			return r.ClientID == "acme" && r.Username == "alice" && r.Password == "correct"
		})).Return(mockResponse, nil).Once()

		rr := postJSON(t, router, "/token", map[string]string{"clientId": "acme", "username": "alice", "password": "correct"})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		var respBody dto.TokenResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &respBody))
		assert.Equal(t, "test-token", respBody.AccessToken)
		assert.Equal(t, int64(300), respBody.ExpiresInSeconds)
	})

	t.Run("Wrong password maps to invalid_grant", func(t *testing.T) {
		mockAppService.On("IssueToken", mock.Anything, mock.MatchedBy(func(r *dto.IssueTokenRequest) bool {
			return r.Password == "wrong"
		})).Return(nil, errors.ErrInvalidCredentials("password mismatch").WithCause(stderrors.New("bcrypt: mismatch"))).Once()

		rr := postJSON(t, router, "/token", map[string]string{"clientId": "acme", "username": "alice", "password": "wrong"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var body errors.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, errors.OAuthInvalidGrant, body.Error)
		assert.Equal(t, string(errors.KindInvalidCredentials), body.Kind)
		assert.NotContains(t, rr.Body.String(), "bcrypt")
	})

	t.Run("Malformed body", func(t *testing.T) {
		rr := postJSON(t, router, "/token", "{not json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), string(errors.KindInvalidRequest))
	})

	mockAppService.AssertExpectations(t)
}

func TestAuthHandler_VerifyAndRefresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockAppService := new(MockAuthAppService)
	handler := NewAuthHandler(mockAppService, logger.NewNoopLogger())

	router := gin.New()
	router.POST("/verify", handler.VerifyToken)
	router.POST("/refresh", handler.RefreshToken)

	mockAppService.On("VerifyToken", mock.Anything, &dto.VerifyTokenRequest{ClientID: "acme", Token: "good"}).
		Return(&dto.VerifyTokenResponse{Valid: true, Claims: map[string]interface{}{"username": "alice"}}, nil)
	mockAppService.On("VerifyToken", mock.Anything, &dto.VerifyTokenRequest{ClientID: "acme", Token: "old"}).
		Return(nil, errors.ErrTokenExpired())
	mockAppService.On("RefreshToken", mock.Anything, &dto.RefreshTokenRequest{ClientID: "acme", RefreshToken: "r1"}).
		Return(nil, errors.ErrUpstreamTimeout("user"))

	rr := postJSON(t, router, "/verify", map[string]string{"clientId": "acme", "token": "good"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"valid":true,"claims":{"username":"alice"}}`, rr.Body.String())

	rr = postJSON(t, router, "/verify", map[string]string{"clientId": "acme", "token": "old"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), string(errors.KindTokenExpired))

	rr = postJSON(t, router, "/refresh", map[string]string{"clientId": "acme", "refreshToken": "r1"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Retryable)
}

func TestAdminHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockAppService := new(MockAuthAppService)
	handler := NewAdminHandler(mockAppService)

	router := gin.New()
	router.POST("/blacklist", handler.BlockUser)
	router.DELETE("/blacklist/:client_id/:username", handler.UnblockUser)
	router.POST("/clients/:client_id/invalidate", handler.InvalidateClient)

	mockAppService.On("BlockUser", mock.Anything, &dto.BlacklistRequest{ClientID: "acme", Username: "alice"}).
		Return(&dto.BlacklistResponse{ClientID: "acme", Username: "alice", Blocked: true, Changed: true}, nil)
	mockAppService.On("UnblockUser", mock.Anything, &dto.BlacklistRequest{ClientID: "acme", Username: "alice"}).
		Return(&dto.BlacklistResponse{ClientID: "acme", Username: "alice"}, nil)
	mockAppService.On("InvalidateClient", mock.Anything, "acme").
		Return(&dto.InvalidateClientResponse{ClientID: "acme", Invalidated: true}, nil)

	rr := postJSON(t, router, "/blacklist", map[string]string{"clientId": "acme", "username": "alice"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"blocked":true`)

	req, _ := http.NewRequest(http.MethodDelete, "/blacklist/acme/alice", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, router, "/clients/acme/invalidate", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"invalidated":true`)

	mockAppService.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := NewHealthHandler(map[string]HealthCheckFunc{
		"database": func(context.Context) error { return nil },
	}, logger.NewNoopLogger())
	broken := NewHealthHandler(map[string]HealthCheckFunc{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return stderrors.New("connection refused") },
	}, logger.NewNoopLogger())

	router := gin.New()
	router.GET("/live", broken.LivenessCheck)
	router.GET("/ready", healthy.ReadinessCheck)
	router.GET("/ready-broken", broken.ReadinessCheck)

	for path, want := range map[string]int{
		"/live":         http.StatusOK,
		"/ready":        http.StatusOK,
		"/ready-broken": http.StatusServiceUnavailable,
	} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, path)
	}
}
