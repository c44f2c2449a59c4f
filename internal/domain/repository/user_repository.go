package repository

import (
	"context"

	"github.com/turtacn/tenantjwt/internal/domain/models"
)

//go:generate mockery --name UserRepository --output ../service/mocks --outpkg mocks
// UserRepository is a tenant's user-lookup collaborator.
// Each implementation is bound to one client, so lookups are scoped to that tenant.
// UserRepository 是租户的用户查询协作者，每个实现只绑定一个客户端。
type UserRepository interface {
	// FindByUsername returns the user, or errors.ErrRecordNotFound when none exists.
	// FindByUsername 返回用户；不存在时返回 errors.ErrRecordNotFound。
	FindByUsername(ctx context.Context, username string) (*models.UserRecord, error)
}
