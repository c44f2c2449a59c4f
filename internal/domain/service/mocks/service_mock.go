package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/constants"
)

type MockPasswordVerifier struct {
	mock.Mock
}

func (m *MockPasswordVerifier) Verify(hash, password string) error {
	args := m.Called(hash, password)
	return args.Error(0)
}

type MockTokenCodec struct {
	mock.Mock
}

func (m *MockTokenCodec) Encode(ctx context.Context, claims models.Claims, cfg *models.ClientConfiguration, tokenType constants.TokenType) (*models.IssuedToken, error) {
	args := m.Called(ctx, claims, cfg, tokenType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IssuedToken), args.Error(1)
}

func (m *MockTokenCodec) Decode(ctx context.Context, token string, cfg *models.ClientConfiguration) models.DecodeResult {
	args := m.Called(ctx, token, cfg)
	return args.Get(0).(models.DecodeResult)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockBlacklistPublisher struct {
	mock.Mock
}

func (m *MockBlacklistPublisher) PublishBlacklistChange(ctx context.Context, change service.BlacklistChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

var (
	_ service.PasswordVerifier   = (*MockPasswordVerifier)(nil)
	_ service.TokenCodec         = (*MockTokenCodec)(nil)
	_ service.AuditService       = (*MockAuditService)(nil)
	_ service.BlacklistPublisher = (*MockBlacklistPublisher)(nil)
)
