package models

import (
	"time"

	"github.com/turtacn/tenantjwt/pkg/constants"
)

// UserRecord is what a tenant's user lookup returns.
// UserRecord 是租户用户查询返回的用户记录。
type UserRecord struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	ClientID     string    `json:"client_id" gorm:"size:64;uniqueIndex:idx_users_client_username;not null"`
	Username     string    `json:"username" gorm:"size:255;uniqueIndex:idx_users_client_username;not null"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Enabled      bool      `json:"enabled" gorm:"not null"`
	Roles        []string  `json:"roles" gorm:"serializer:json"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName binds the model to its table for gorm.
func (UserRecord) TableName() string {
	return constants.TableUsers
}
