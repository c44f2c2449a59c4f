package repository

import (
	"context"

	"github.com/turtacn/tenantjwt/internal/domain/models"
)

//go:generate mockery --name ClientConfigurationRepository --output ../service/mocks --outpkg mocks
// ClientConfigurationRepository is the durable source of truth for tenant signing configuration.
// ClientConfigurationRepository 是租户签名配置的持久化数据源。
type ClientConfigurationRepository interface {
	// FindByClientID returns the configuration, or errors.ErrRecordNotFound when none exists.
	// Implementations must honor ctx so a slow store surfaces as a deadline error.
	// FindByClientID 返回配置；不存在时返回 errors.ErrRecordNotFound。
	FindByClientID(ctx context.Context, clientID string) (*models.ClientConfiguration, error)

	// Save inserts or replaces a configuration.
	// Save 插入或替换配置。
	Save(ctx context.Context, cfg *models.ClientConfiguration) error

	// Delete removes a configuration. Deleting a missing record is not an error.
	// Delete 删除配置，删除不存在的记录不视为错误。
	Delete(ctx context.Context, clientID string) error
}
