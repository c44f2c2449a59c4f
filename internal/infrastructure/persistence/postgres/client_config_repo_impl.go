package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// ClientConfigRepoImpl implements ClientConfigurationRepository using gorm.
type ClientConfigRepoImpl struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewClientConfigurationRepository creates a gorm-backed client configuration store.
func NewClientConfigurationRepository(db *gorm.DB, log logger.Logger) repository.ClientConfigurationRepository {
	return &ClientConfigRepoImpl{
		db:     db,
		logger: log.WithComponent("client_config_repo"),
	}
}

// FindByClientID retrieves a tenant's signing configuration.
func (r *ClientConfigRepoImpl) FindByClientID(ctx context.Context, clientID string) (*models.ClientConfiguration, error) {
	var cfg models.ClientConfiguration
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&cfg).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Debug(ctx, "Client configuration not found", logger.String("client_id", clientID))
			return nil, errors.ErrRecordNotFound
		}
		r.logger.Error(ctx, "Failed to retrieve client configuration", err, logger.String("client_id", clientID))
		return nil, fmt.Errorf("find client configuration: %w", err)
	}
	return &cfg, nil
}

// Save inserts the configuration or replaces every column of an existing row.
func (r *ClientConfigRepoImpl) Save(ctx context.Context, cfg *models.ClientConfiguration) error {
	start := time.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			DoUpdates: clause.AssignmentColumns(clientConfigColumns),
		}).
		Create(cfg).Error
	if err != nil {
		r.logger.Error(ctx, "Failed to save client configuration", err, logger.String("client_id", cfg.ClientID))
		return fmt.Errorf("save client configuration: %w", err)
	}
	r.logger.Info(ctx, "Client configuration saved",
		logger.String("client_id", cfg.ClientID),
		logger.String("algorithm", string(cfg.SignatureAlgorithm)),
		logger.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

var clientConfigColumns = []string{
	"signing_secret",
	"signature_algorithm",
	"token_type",
	"use_encryption",
	"access_token_validity_seconds",
	"refresh_token_validity_seconds",
	"updated_at",
}

// Delete removes a tenant's configuration.
func (r *ClientConfigRepoImpl) Delete(ctx context.Context, clientID string) error {
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Delete(&models.ClientConfiguration{}).Error
	if err != nil {
		r.logger.Error(ctx, "Failed to delete client configuration", err, logger.String("client_id", clientID))
		return fmt.Errorf("delete client configuration: %w", err)
	}
	return nil
}
