// Package models defines the domain models of the tenant token engine.
// This file contains the ClientConfiguration domain model with its validation rules.
package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/turtacn/tenantjwt/pkg/constants"
)

var clientIDPattern = regexp.MustCompile(constants.ClientIDPattern)

// ClientConfiguration is the per-tenant signing configuration.
// A loaded value is treated as immutable; changing a tenant means invalidating its cache entry.
// ClientConfiguration 是每个租户的签名配置。
// 加载后的值视为不可变；修改租户配置需要使缓存条目失效。
type ClientConfiguration struct {
	// ClientID is the unique tenant identifier.
	// ClientID 是租户的唯一标识符。
	ClientID string `json:"client_id" gorm:"primaryKey;size:64"`

	// SigningSecret is the HMAC key. Its minimum length depends on SignatureAlgorithm.
	// SigningSecret 是 HMAC 密钥，其最小长度取决于签名算法。
	SigningSecret string `json:"signing_secret" gorm:"not null"`

	// SignatureAlgorithm is one of HS256, HS384, HS512.
	// SignatureAlgorithm 为 HS256、HS384 或 HS512 之一。
	SignatureAlgorithm constants.SignatureAlgorithm `json:"signature_algorithm" gorm:"size:8;not null"`

	// TokenType is the label returned to callers, e.g. "Bearer".
	// TokenType 是返回给调用方的标签，例如 "Bearer"。
	TokenType string `json:"token_type" gorm:"size:32"`

	// UseEncryption wraps signed tokens in a JWE envelope.
	// UseEncryption 表示是否将已签名令牌封装在 JWE 中。
	UseEncryption bool `json:"use_encryption"`

	// AccessTokenValiditySeconds is the access token lifetime.
	// AccessTokenValiditySeconds 是访问令牌的有效期（秒）。
	AccessTokenValiditySeconds int64 `json:"access_token_validity_seconds" gorm:"not null"`

	// RefreshTokenValiditySeconds is the refresh token lifetime.
	// RefreshTokenValiditySeconds 是刷新令牌的有效期（秒）。
	RefreshTokenValiditySeconds int64 `json:"refresh_token_validity_seconds" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName binds the model to its table for gorm.
func (ClientConfiguration) TableName() string {
	return constants.TableClientConfigurations
}

// Validate enforces the configuration invariants.
func (c *ClientConfiguration) Validate() error {
	if !clientIDPattern.MatchString(c.ClientID) {
		return fmt.Errorf("client_id %q must match %s", c.ClientID, constants.ClientIDPattern)
	}
	if !c.SignatureAlgorithm.Valid() {
		return fmt.Errorf("client %s: unsupported signature algorithm %q", c.ClientID, c.SignatureAlgorithm)
	}
	if minLen := c.SignatureAlgorithm.MinSecretLength(); len(c.SigningSecret) < minLen {
		return fmt.Errorf("client %s: %s requires a signing secret of at least %d bytes, got %d",
			c.ClientID, c.SignatureAlgorithm, minLen, len(c.SigningSecret))
	}
	if c.AccessTokenValiditySeconds <= 0 {
		return fmt.Errorf("client %s: access token validity must be positive", c.ClientID)
	}
	if c.RefreshTokenValiditySeconds <= 0 {
		return fmt.Errorf("client %s: refresh token validity must be positive", c.ClientID)
	}
	return nil
}

// ApplyDefaults fills optional fields left empty.
func (c *ClientConfiguration) ApplyDefaults() {
	if c.SignatureAlgorithm == "" {
		c.SignatureAlgorithm = constants.DefaultSignatureAlgorithm
	}
	if c.TokenType == "" {
		c.TokenType = constants.TokenTypeBearer
	}
}

// ValidityFor returns the lifetime of the given token type.
func (c *ClientConfiguration) ValidityFor(tokenType constants.TokenType) time.Duration {
	if tokenType == constants.TokenTypeRefresh {
		return time.Duration(c.RefreshTokenValiditySeconds) * time.Second
	}
	return time.Duration(c.AccessTokenValiditySeconds) * time.Second
}

// Equal reports whether two configurations would sign identically.
func (c *ClientConfiguration) Equal(o *ClientConfiguration) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.ClientID == o.ClientID &&
		c.SigningSecret == o.SigningSecret &&
		c.SignatureAlgorithm == o.SignatureAlgorithm &&
		c.TokenType == o.TokenType &&
		c.UseEncryption == o.UseEncryption &&
		c.AccessTokenValiditySeconds == o.AccessTokenValiditySeconds &&
		c.RefreshTokenValiditySeconds == o.RefreshTokenValiditySeconds
}
