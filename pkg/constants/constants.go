// Package constants defines system-wide constants for the tenant token engine.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Token Type Constants
// ================================================================================

// TokenType represents the kind of token produced by the codec
type TokenType string

const (
	// TokenTypeAccess represents a short-lived access token
	TokenTypeAccess TokenType = "access_token"

	// TokenTypeRefresh represents a longer-lived refresh token
	TokenTypeRefresh TokenType = "refresh_token"

	// TokenTypeBearer is the default token type label returned to callers
	TokenTypeBearer = "Bearer"
)

// ================================================================================
// Signature Algorithm Constants
// ================================================================================

// SignatureAlgorithm represents the HMAC family used to sign a tenant's tokens
type SignatureAlgorithm string

const (
	// AlgorithmHS256 represents HMAC with SHA-256
	AlgorithmHS256 SignatureAlgorithm = "HS256"

	// AlgorithmHS384 represents HMAC with SHA-384
	AlgorithmHS384 SignatureAlgorithm = "HS384"

	// AlgorithmHS512 represents HMAC with SHA-512
	AlgorithmHS512 SignatureAlgorithm = "HS512"
)

// DefaultSignatureAlgorithm is used when a client record leaves the algorithm empty
const DefaultSignatureAlgorithm = AlgorithmHS256

// MinSecretLength returns the minimum signing secret length in bytes for an algorithm.
// The minimum matches the digest size of the hash. Unknown algorithms return 0.
func (a SignatureAlgorithm) MinSecretLength() int {
	switch a {
	case AlgorithmHS256:
		return 32
	case AlgorithmHS384:
		return 48
	case AlgorithmHS512:
		return 64
	default:
		return 0
	}
}

// Valid reports whether the algorithm is supported
func (a SignatureAlgorithm) Valid() bool {
	return a.MinSecretLength() > 0
}

// ================================================================================
// Claim Key Constants
// ================================================================================

const (
	// ClaimUsername is the reserved key carrying the subject's username
	ClaimUsername = "username"

	// ClaimName is the reserved key carrying the subject's display name
	ClaimName = "name"

	// ClaimAuthorities is the reserved key carrying role/permission strings
	ClaimAuthorities = "authorities"

	// ClaimJWTID is the unique token identifier
	ClaimJWTID = "jti"

	// ClaimIssuedAt is the issue timestamp in seconds since epoch
	ClaimIssuedAt = "iat"

	// ClaimExpiresAt is the expiry timestamp in seconds since epoch
	ClaimExpiresAt = "exp"

	// ClaimAccessTokenID links a refresh token to the access token it was issued with
	ClaimAccessTokenID = "ati"

	// ClaimClientID identifies the tenant that issued the token
	ClaimClientID = "client_id"
)

// ================================================================================
// Client Identifier Constants
// ================================================================================

const (
	// ClientIDMaxLength is the maximum client identifier length
	ClientIDMaxLength = 64

	// ClientIDPattern restricts client identifiers to a charset that excludes BlacklistKeySeparator
	ClientIDPattern = `^[A-Za-z0-9._-]{1,64}$`

	// BlacklistKeySeparator joins clientId and username in blacklist keys
	BlacklistKeySeparator = ":"
)

// ================================================================================
// Cache Constants
// ================================================================================

const (
	// CacheKeyPrefixClientConfig namespaces client configuration entries
	CacheKeyPrefixClientConfig = "cc:"

	// CacheKeyPrefixBlacklist namespaces blacklist entries
	CacheKeyPrefixBlacklist = "bl:"

	// DefaultClientConfigCacheCapacity is the LRU bound for client configuration entries
	DefaultClientConfigCacheCapacity = 1024

	// DefaultClientConfigCacheTTL is the time-to-live of a client configuration entry
	DefaultClientConfigCacheTTL = 10 * time.Minute

	// DefaultBlacklistCacheCapacity is the LRU bound for blacklist entries
	DefaultBlacklistCacheCapacity = 100000

	// DefaultLookupTimeout bounds store and user lookups per request
	DefaultLookupTimeout = 3 * time.Second
)

// CacheEngineType selects the backing implementation for a cache
type CacheEngineType string

const (
	// CacheEngineLRU is an in-process LRU with per-entry TTL
	CacheEngineLRU CacheEngineType = "lru"

	// CacheEngineTTL is an in-process TTL map with a janitor sweep
	CacheEngineTTL CacheEngineType = "ttl"

	// CacheEngineRedis is a distributed cache backed by Redis
	CacheEngineRedis CacheEngineType = "redis"
)

// ================================================================================
// Audit Event Type Constants
// ================================================================================

// AuditEventType represents different types of auditable events
type AuditEventType string

const (
	AuditEventTokenIssued      AuditEventType = "token.issued"
	AuditEventTokenRefreshed   AuditEventType = "token.refreshed"
	AuditEventTokenRejected    AuditEventType = "token.rejected"
	AuditEventLoginFailed      AuditEventType = "auth.login_failed"
	AuditEventUserBlocked      AuditEventType = "blacklist.user_blocked"
	AuditEventUserUnblocked    AuditEventType = "blacklist.user_unblocked"
	AuditEventClientInvalidate AuditEventType = "client.invalidated"
)

// ================================================================================
// Database Table Name Constants
// ================================================================================

const (
	// TableClientConfigurations stores per-tenant signing configuration
	TableClientConfigurations = "client_configurations"

	// TableUsers stores user records for tenants using the database lookup
	TableUsers = "users"

	// TableAuditEvents stores audit events when the database sink is enabled
	TableAuditEvents = "audit_events"
)

// ================================================================================
// Context Keys
// ================================================================================

type contextKey string

const (
	// ContextKeyRequestID carries the per-request correlation id
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyClientID carries the tenant id being served
	ContextKeyClientID contextKey = "client_id"
)

// HeaderRequestID is the HTTP header used to propagate request ids
const HeaderRequestID = "X-Request-ID"
