// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Backend       BackendConfig      `mapstructure:"backend"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Retry         RetryConfig        `mapstructure:"retry"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Dashboard     DashboardConfig    `mapstructure:"dashboard"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// Location resolves the configured timezone; day and week boundaries are computed in it.
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

// BackendConfig points at the REST backend that owns clients, enquiries and users.
type BackendConfig struct {
	BaseURL                string `mapstructure:"base_url"`
	Timeout                int    `mapstructure:"timeout"` // milliseconds
	ServiceAccountEmail    string `mapstructure:"service_account_email"`
	ServiceAccountPassword string `mapstructure:"service_account_password"`
}

type AuthConfig struct {
	// JWTSecret enables signature verification of viewer tokens. Empty means claims are
	// read without verification and the backend remains the authority.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RetryConfig drives the linear backoff used for flaky backend endpoints.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelay   int `mapstructure:"base_delay"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	ConnLifetime   int    `mapstructure:"conn_lifetime"` // seconds
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Watermark store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// NotificationConfig holds settings for notification windowing.
type NotificationConfig struct {
	Store           string `mapstructure:"store"`
	UpdateGuard     int    `mapstructure:"update_guard"`     // seconds
	DefaultLookback int    `mapstructure:"default_lookback"` // hours
	KeyPrefix       string `mapstructure:"key_prefix"`
}

type DashboardConfig struct {
	CompactLegend   bool `mapstructure:"compact_legend"`
	RefreshInterval int  `mapstructure:"refresh_interval"` // milliseconds, 0 disables background refresh
	TopStaff        int  `mapstructure:"top_staff"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
