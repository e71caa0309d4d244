// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sync     SyncConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Events   EventsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxBodySize caps request bodies in bytes (default: 10MB)
	MaxBodySize int64 `env:"SERVER_MAX_BODY_SIZE" default:"10485760"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the store backend: postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the connection string (required).
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	// For sqlite this is a file path or DSN such as "file:menus.db?_foreign_keys=on".
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema on startup (default: false)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"false"`
}

// SyncConfig holds bulk synchronization settings.
type SyncConfig struct {
	// Mode is the commit policy for a batch with failed rows (default: partial).
	//   partial: failed rows are undone, every other row commits
	//   atomic:  any failed row rolls back the whole batch
	Mode string `env:"SYNC_MODE" default:"partial"`

	// MaxRows is the largest batch accepted (default: 5000)
	MaxRows int `env:"SYNC_MAX_ROWS" default:"5000"`

	// MaxConcurrent is the maximum number of batches applied in parallel (default: 5)
	MaxConcurrent int `env:"SYNC_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a batch waits for a free slot (default: 10s)
	MaxWaitTime time.Duration `env:"SYNC_MAX_WAIT_TIME" default:"10s"`

	// Timeout is the maximum duration for applying one batch (default: 30s)
	Timeout time.Duration `env:"SYNC_TIMEOUT" default:"30s"`

	// ValidateParents checks that a row's restaurant or menu exists before
	// applying it (default: true). When false, only parents that failed or
	// were deleted earlier in the same batch are rejected, so an item listed
	// before its menu is written against a menu that does not exist yet.
	// The schema has no foreign key on items.menu_id, so that item is an
	// orphan unless a later row creates the menu.
	ValidateParents bool `env:"SYNC_VALIDATE_PARENTS" default:"true"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SyncLimit is requests per minute for sync endpoints (default: 30)
	SyncLimit int `env:"RATE_LIMIT_SYNC" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on write endpoints (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// JWTSecret enables bearer token checks with HS256 when set
	JWTSecret string `env:"JWT_SECRET"`

	// JWTPublicKey enables bearer token checks with RS256 when set (PEM)
	JWTPublicKey string `env:"JWT_PUBLIC_KEY"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// EventsConfig holds change event publishing settings.
type EventsConfig struct {
	// KafkaBrokers is a comma-separated broker list. Empty disables publishing.
	KafkaBrokers []string `env:"EVENTS_KAFKA_BROKERS" envAlt:"KAFKA_BROKERS"`

	// Topic receives one message per committed batch (default: menus.synced)
	Topic string `env:"EVENTS_TOPIC" default:"menus.synced"`

	// WriteTimeout bounds a single publish (default: 5s)
	WriteTimeout time.Duration `env:"EVENTS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether change events should be published.
func (c *EventsConfig) Enabled() bool {
	return len(c.KafkaBrokers) > 0
}

// BearerEnabled reports whether JWT bearer checks are configured.
func (c *SecurityConfig) BearerEnabled() bool {
	return c.JWTSecret != "" || c.JWTPublicKey != ""
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
