package config

import (
	"fmt"
	"regexp"
	"time"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Tokens     TokensConfig     `mapstructure:"tokens"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Clients    []ClientSeed     `mapstructure:"clients"`
	Users      []UserSeed       `mapstructure:"users"`
	Strategies []StrategyConfig `mapstructure:"strategies"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AdminClientID names the tenant whose access tokens may call the admin API.
	// The admin API is not mounted when empty.
	AdminClientID string `mapstructure:"admin_client_id"`
	// AdminAuthority must appear in the caller's authorities claim.
	AdminAuthority string `mapstructure:"admin_authority"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
	// KeyPath is the KVv2 path prefix; the client id is appended to it.
	KeyPath string `mapstructure:"key_path"`
}

type KafkaConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Brokers        []string `mapstructure:"brokers"`
	AuditTopic     string   `mapstructure:"audit_topic"`
	BlacklistTopic string   `mapstructure:"blacklist_topic"`
	GroupID        string   `mapstructure:"group_id"`
	// SigningKey signs audit events with HMAC-SHA256 when set.
	SigningKey string `mapstructure:"signing_key"`
	// InstanceID tags published blacklist changes so an instance skips its own; defaults to the hostname.
	InstanceID string `mapstructure:"instance_id"`
}

// CacheSettings configures one cache instance.
type CacheSettings struct {
	// Engine is one of lru, ttl or redis.
	Engine   string        `mapstructure:"engine"`
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CacheConfig struct {
	ClientConfig CacheSettings `mapstructure:"client_config"`
	Blacklist    CacheSettings `mapstructure:"blacklist"`
}

type TokensConfig struct {
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	// EncryptionSecret keys the JWE envelope for clients that set use_encryption.
	EncryptionSecret string `mapstructure:"encryption_secret"`
	// EncryptionSource is static or vault.
	EncryptionSource string `mapstructure:"encryption_source"`
}

// RateLimitConfig throttles the token endpoints per client IP.
// Buckets are shared through Redis when it is enabled.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

// ClientSeed is a client configuration supplied through the config file.
type ClientSeed struct {
	ClientID                    string `mapstructure:"client_id"`
	SigningSecret               string `mapstructure:"signing_secret"`
	SignatureAlgorithm          string `mapstructure:"signature_algorithm"`
	TokenType                   string `mapstructure:"token_type"`
	UseEncryption               bool   `mapstructure:"use_encryption"`
	AccessTokenValiditySeconds  int64  `mapstructure:"access_token_validity_seconds"`
	RefreshTokenValiditySeconds int64  `mapstructure:"refresh_token_validity_seconds"`
}

// UserSeed is a user record supplied through the config file.
type UserSeed struct {
	ClientID     string   `mapstructure:"client_id"`
	Username     string   `mapstructure:"username"`
	Name         string   `mapstructure:"name"`
	PasswordHash string   `mapstructure:"password_hash"`
	Disabled     bool     `mapstructure:"disabled"`
	Roles        []string `mapstructure:"roles"`
}

// StrategyConfig registers one tenant in the authentication strategy table.
type StrategyConfig struct {
	ClientID string `mapstructure:"client_id"`
	// UserLookup is memory or database.
	UserLookup string `mapstructure:"user_lookup"`
	// ClaimsGenerator names a registered generator variant, standard by default.
	ClaimsGenerator string `mapstructure:"claims_generator"`
	// DefaultAuthorities are granted to every user of the tenant in addition to their roles.
	DefaultAuthorities []string `mapstructure:"default_authorities"`
}

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Tokens.LookupTimeout <= 0 {
		return fmt.Errorf("tokens.lookup_timeout must be positive")
	}
	for name, s := range map[string]CacheSettings{"client_config": c.Cache.ClientConfig, "blacklist": c.Cache.Blacklist} {
		switch s.Engine {
		case "lru", "ttl", "redis":
		default:
			return fmt.Errorf("cache.%s.engine %q is not one of lru, ttl, redis", name, s.Engine)
		}
		if s.Engine == "redis" && !c.Redis.Enabled {
			return fmt.Errorf("cache.%s.engine is redis but redis is disabled", name)
		}
		if s.TTL < 0 {
			return fmt.Errorf("cache.%s.ttl must not be negative", name)
		}
	}
	if c.Cache.ClientConfig.TTL == 0 {
		return fmt.Errorf("cache.client_config.ttl must be positive")
	}
	switch c.Tokens.EncryptionSource {
	case "static", "":
	case "vault":
		if !c.Vault.Enabled {
			return fmt.Errorf("tokens.encryption_source is vault but vault is disabled")
		}
	default:
		return fmt.Errorf("tokens.encryption_source %q is not one of static, vault", c.Tokens.EncryptionSource)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit.requests_per_minute and rate_limit.burst must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	seen := make(map[string]struct{}, len(c.Strategies))
	for _, s := range c.Strategies {
		if !clientIDPattern.MatchString(s.ClientID) {
			return fmt.Errorf("strategies: invalid client_id %q", s.ClientID)
		}
		if _, dup := seen[s.ClientID]; dup {
			return fmt.Errorf("strategies: client_id %q registered twice", s.ClientID)
		}
		seen[s.ClientID] = struct{}{}
		if s.UserLookup == "database" && !c.Database.Enabled {
			return fmt.Errorf("strategies: client %q uses database lookup but database is disabled", s.ClientID)
		}
	}
	return nil
}
