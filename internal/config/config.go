// Package config holds the link-router service configuration.
package config

import (
	"fmt"
	"time"

	platformconfig "github.com/jonesrussell/link-router/internal/platform/config"
	platformredis "github.com/jonesrussell/link-router/internal/platform/redis"
)

// Default configuration values.
const (
	defaultServiceName  = "link-router"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultBufferSize   = 1000
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "link_router"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"

	defaultGuardMaxPerDay = 10
	defaultGuardWindowH   = 24
	defaultDedupWindowMin = 60
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig        `yaml:"service"`
	Database  DatabaseConfig       `yaml:"database"`
	Redis     platformredis.Config `yaml:"redis"`
	Analytics AnalyticsConfig      `yaml:"analytics"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	Logging   LoggingConfig        `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"LINK_ROUTER_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"        yaml:"debug"`

	// FallbackURL is where unresolvable requests and empty root links land.
	FallbackURL string `env:"LINK_ROUTER_FALLBACK_URL" yaml:"fallback_url"`
	// BannedProjectID is the reserved tenant id for taken-down links.
	BannedProjectID string `env:"LINK_ROUTER_BANNED_PROJECT" yaml:"banned_project_id"`
	// BufferSize is the click recorder's channel capacity.
	BufferSize int `yaml:"buffer_size"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_LINK_ROUTER_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_LINK_ROUTER_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_LINK_ROUTER_USER"     yaml:"user"`
	Password string `env:"POSTGRES_LINK_ROUTER_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_LINK_ROUTER_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_LINK_ROUTER_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// AnalyticsConfig holds the analytics sink configuration. An empty URL
// disables emission entirely.
type AnalyticsConfig struct {
	SinkURL   string `env:"ANALYTICS_SINK_URL"   yaml:"sink_url"`
	SinkToken string `env:"ANALYTICS_SINK_TOKEN" yaml:"sink_token"`
}

// RateLimitConfig holds the abuse guard and click dedup settings.
type RateLimitConfig struct {
	// HighValueKeys are the link keys the abuse guard applies to.
	HighValueKeys []string `env:"LINK_ROUTER_HIGH_VALUE_KEYS" yaml:"high_value_keys"`
	// GuardMaxPerWindow caps clicks per (ip, domain, key) on guarded keys.
	GuardMaxPerWindow int           `yaml:"guard_max_per_window"`
	GuardWindow       time.Duration `yaml:"guard_window"`
	// DedupWindow is how long repeat clicks from one visitor count as one.
	DedupWindow time.Duration `yaml:"dedup_window"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return platformconfig.LoadWithDefaults[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRateLimitDefaults(&cfg.RateLimit)
	setLoggingDefaults(&cfg.Logging)
}

// setServiceDefaults applies default values to ServiceConfig.
func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.BufferSize == 0 {
		svc.BufferSize = defaultBufferSize
	}
}

// setDatabaseDefaults applies default values to DatabaseConfig.
func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

// setRateLimitDefaults applies default values to RateLimitConfig.
func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.GuardMaxPerWindow == 0 {
		rl.GuardMaxPerWindow = defaultGuardMaxPerDay
	}
	if rl.GuardWindow == 0 {
		rl.GuardWindow = defaultGuardWindowH * time.Hour
	}
	if rl.DedupWindow == 0 {
		rl.DedupWindow = defaultDedupWindowMin * time.Minute
	}
}

// setLoggingDefaults applies default values to LoggingConfig.
func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := platformconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if c.Service.FallbackURL == "" {
		return &platformconfig.ValidationError{
			Field:   "service.fallback_url",
			Message: "is required",
		}
	}
	if c.Redis.Address == "" {
		return &platformconfig.ValidationError{
			Field:   "redis.address",
			Message: "is required",
		}
	}
	return nil
}
