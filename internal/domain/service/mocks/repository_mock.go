package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/tenantjwt/internal/domain/models"
)

type MockClientConfigurationRepository struct {
	mock.Mock
}

func (m *MockClientConfigurationRepository) FindByClientID(ctx context.Context, clientID string) (*models.ClientConfiguration, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy, callers may normalize the record
	cfg := *args.Get(0).(*models.ClientConfiguration)
	return &cfg, args.Error(1)
}

func (m *MockClientConfigurationRepository) Save(ctx context.Context, cfg *models.ClientConfiguration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockClientConfigurationRepository) Delete(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.UserRecord, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserRecord), args.Error(1)
}
