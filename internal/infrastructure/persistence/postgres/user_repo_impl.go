package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// UserRepoImpl is a tenant-scoped user lookup over the users table.
type UserRepoImpl struct {
	db       *gorm.DB
	clientID string
	logger   logger.Logger
}

var _ repository.UserRepository = (*UserRepoImpl)(nil)

// NewUserRepository creates a user lookup bound to clientID.
func NewUserRepository(db *gorm.DB, clientID string, log logger.Logger) *UserRepoImpl {
	return &UserRepoImpl{
		db:       db,
		clientID: clientID,
		logger:   log.WithComponent("user_repo").WithFields(logger.String("client_id", clientID)),
	}
}

// FindByUsername looks the user up within the bound tenant only.
func (r *UserRepoImpl) FindByUsername(ctx context.Context, username string) (*models.UserRecord, error) {
	var user models.UserRecord
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND username = ?", r.clientID, username).
		First(&user).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRecordNotFound
		}
		r.logger.Error(ctx, "Failed to retrieve user", err)
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// Save inserts or updates a user of the bound tenant.
func (r *UserRepoImpl) Save(ctx context.Context, user *models.UserRecord) error {
	user.ClientID = r.clientID
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash", "enabled", "roles", "updated_at"}),
		}).
		Create(user).Error
	if err != nil {
		r.logger.Error(ctx, "Failed to save user", err, logger.String("username", user.Username))
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
