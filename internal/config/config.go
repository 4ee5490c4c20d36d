// Package config defines all configuration structures for the
// market-intelligence engine.  No I/O or parsing logic lives here — only
// plain data types, defaults, and validation.
package config

import (
	"fmt"
	"time"

	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the field store.
// The store is optional: when Enabled is false the engine runs against the
// in-memory field store (CLI fixtures, tests).
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"db_name"`
	SSLMode        string        `mapstructure:"ssl_mode"`
	MaxConns       int           `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// DSN renders the pgx/golang-migrate compatible connection URL.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters, used only when the analysis
// cache backend is "redis".
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

// CacheConfig holds analysis-cache parameters.
type CacheConfig struct {
	// Backend selects the cache implementation: "memory" (per-process,
	// default) or "redis" (shared across replicas).
	Backend string `mapstructure:"backend"`

	// TTL is the lifetime of a cached field analysis.
	TTL time.Duration `mapstructure:"ttl"`

	// MaxEntries bounds the number of cached analyses; the oldest entry is
	// evicted when the bound is exceeded.
	MaxEntries int `mapstructure:"max_entries"`
}

// RulesConfig holds rule-engine parameters.
type RulesConfig struct {
	// Path to a JSON rules document.  Empty means the embedded default set.
	Path string `mapstructure:"path"`

	// Watch enables hot reload of the rules file on change.
	Watch bool `mapstructure:"watch"`
}

// CollaboratorConfig holds parameters for one external HTTP collaborator
// (weather forecast service, disease-detection service).
type CollaboratorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config is the root configuration structure for the engine.
type Config struct {
	Server   ServerConfig       `mapstructure:"server"`
	Log      logging.Config     `mapstructure:"log"`
	Database DatabaseConfig     `mapstructure:"database"`
	Redis    RedisConfig        `mapstructure:"redis"`
	Cache    CacheConfig        `mapstructure:"cache"`
	Rules    RulesConfig        `mapstructure:"rules"`
	Weather  CollaboratorConfig `mapstructure:"weather"`
	Disease  CollaboratorConfig `mapstructure:"disease"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.backend %q is invalid; expected memory|redis", c.Cache.Backend)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("config: cache.max_entries must be >= 1, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when cache.backend is redis")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}

	return nil
}
