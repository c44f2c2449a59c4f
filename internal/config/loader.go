package config

import (
	"context"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// Loader reads configuration from file, .env and environment, and can watch the file for changes.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
	mu  sync.Mutex
}

// NewLoader creates a loader. When configFile is empty the default search paths are used.
func NewLoader(log logger.Logger, configFile string) *Loader {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/tenantjwt/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TENANTJWT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log.WithComponent("config")}
}

// LoadConfig loads the configuration from the default locations.
func LoadConfig(log logger.Logger) (*Config, error) {
	return NewLoader(log, "").Load()
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	// a missing .env is normal outside development
	if err := godotenv.Load(); err == nil {
		l.log.Debug(context.Background(), "loaded .env file")
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "failed to read config")
		}
		l.log.Warn(context.Background(), "no config file found, using defaults and environment")
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// Watch calls onChange with the re-read configuration each time the file changes.
// Invalid revisions are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		ctx := context.Background()
		cfg, err := l.decode()
		if err != nil {
			l.log.Error(ctx, "config reload rejected", err, logger.String("file", e.Name))
			return
		}
		l.log.Info(ctx, "config reloaded", logger.String("file", e.Name), logger.String("op", e.Op.String()))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.admin_authority", "tenantjwt:admin")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.key_path", "tenantjwt/encryption")

	v.SetDefault("kafka.audit_topic", "tenantjwt.audit")
	v.SetDefault("kafka.blacklist_topic", "tenantjwt.blacklist")
	v.SetDefault("kafka.group_id", "tenantjwt")

	v.SetDefault("cache.client_config.engine", "lru")
	v.SetDefault("cache.client_config.capacity", 1024)
	v.SetDefault("cache.client_config.ttl", "10m")
	v.SetDefault("cache.blacklist.engine", "lru")
	v.SetDefault("cache.blacklist.capacity", 100000)
	v.SetDefault("cache.blacklist.ttl", "0s")

	v.SetDefault("tokens.lookup_timeout", "3s")
	v.SetDefault("tokens.encryption_source", "static")

	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.service_name", "tenantjwt")
	v.SetDefault("tracing.sample_rate", 1.0)
}
