package service

import (
	"context"
	"time"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/pkg/constants"
)

//go:generate mockery --name CacheEngine --output mocks --outpkg mocks
// CacheEngine is the narrow key-value contract both domain caches are built on.
// Any conforming engine (in-process LRU, TTL map, Redis) can be substituted.
// CacheEngine 是两个领域缓存所依赖的最小键值契约，可替换为任意符合约定的实现。
type CacheEngine interface {
	// Get returns the stored value and whether it was present.
	// Get 返回存储的值以及是否存在。
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value atomically.
	// A zero ttl uses the engine's default expiry.
	// Put 以原子方式替换 key 对应的值；ttl 为零时使用引擎默认过期时间。
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Contains reports whether key is present.
	// Contains 判断 key 是否存在。
	Contains(ctx context.Context, key string) (bool, error)

	// Remove deletes key and reports whether it was present.
	// Remove 删除 key 并返回其是否存在。
	Remove(ctx context.Context, key string) (bool, error)
}

//go:generate mockery --name PasswordVerifier --output mocks --outpkg mocks
// PasswordVerifier compares a plaintext password with a stored hash.
// PasswordVerifier 比较明文密码与存储的哈希值。
type PasswordVerifier interface {
	// Verify returns nil when password matches hash.
	Verify(hash, password string) error
}

//go:generate mockery --name ClaimsGenerator --output mocks --outpkg mocks
// ClaimsGenerator produces the raw claim sets for one user of one tenant.
// ClaimsGenerator 为某个租户的单个用户生成原始声明集合。
type ClaimsGenerator interface {
	// GetRawClaims fails with UserNotFound when the username does not resolve.
	// GetRawClaims 在用户名无法解析时返回 UserNotFound。
	GetRawClaims(ctx context.Context, username string) (*models.RawClaims, error)
}

// UserClaimsGenerator is implemented by generators that can build claims from
// a user record the caller already loaded.
type UserClaimsGenerator interface {
	RawClaimsFor(ctx context.Context, user *models.UserRecord) (*models.RawClaims, error)
}

// ClaimsGeneratorFunc adapts a function to ClaimsGenerator.
type ClaimsGeneratorFunc func(ctx context.Context, username string) (*models.RawClaims, error)

// GetRawClaims calls f.
func (f ClaimsGeneratorFunc) GetRawClaims(ctx context.Context, username string) (*models.RawClaims, error) {
	return f(ctx, username)
}

//go:generate mockery --name TokenCodec --output mocks --outpkg mocks
// TokenCodec signs claims into tokens and verifies tokens back into claims.
// TokenCodec 将声明签名为令牌，并将令牌验证还原为声明。
type TokenCodec interface {
	// Encode adds iat, exp and a fresh jti to a copy of claims and signs it with cfg.
	// Encode 在声明副本中加入 iat、exp 和新的 jti，并使用 cfg 签名。
	Encode(ctx context.Context, claims models.Claims, cfg *models.ClientConfiguration, tokenType constants.TokenType) (*models.IssuedToken, error)

	// Decode verifies token against cfg and classifies the result. It never panics on bad input.
	// Decode 使用 cfg 验证令牌并对结果分类，对非法输入不会 panic。
	Decode(ctx context.Context, token string, cfg *models.ClientConfiguration) models.DecodeResult
}

//go:generate mockery --name EncryptionKeyProvider --output mocks --outpkg mocks
// EncryptionKeyProvider supplies the key used for the JWE envelope of a tenant's tokens.
// EncryptionKeyProvider 提供租户令牌 JWE 封装所用的密钥。
type EncryptionKeyProvider interface {
	// EncryptionKey returns a 32-byte key for clientID.
	EncryptionKey(ctx context.Context, clientID string) ([]byte, error)
}

//go:generate mockery --name AuditService --output mocks --outpkg mocks
// AuditService records security-relevant events.
// AuditService 记录与安全相关的事件。
type AuditService interface {
	LogEvent(ctx context.Context, event *models.AuditEvent) error
}

// BlacklistChange is a blacklist mutation replicated between instances.
type BlacklistChange struct {
	ClientID string    `json:"client_id"`
	Username string    `json:"username"`
	Blocked  bool      `json:"blocked"`
	Origin   string    `json:"origin"`
	At       time.Time `json:"at"`
}

//go:generate mockery --name BlacklistPublisher --output mocks --outpkg mocks
// BlacklistPublisher broadcasts blacklist mutations to peer instances.
// BlacklistPublisher 将黑名单变更广播给其他实例。
type BlacklistPublisher interface {
	PublishBlacklistChange(ctx context.Context, change BlacklistChange) error
}
