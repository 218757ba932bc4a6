// Package config provides centralized configuration management for the
// sync service. Settings load from environment variables with defaults
// and are validated on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	ObjectStore ObjectStoreConfig
	Mongo       MongoConfig
	Sync        SyncConfig
	Rate        RateLimitConfig
	CORS        CORSConfig
	Reconcile   ReconcileConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout per request (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// ObjectStoreConfig holds settings for the Postgres-backed object store
// carrying the snapshots and the raw archive.
type ObjectStoreConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// Container is the logical container for all snapshot and archive
	// objects (default: scouting)
	Container string `env:"STORE_CONTAINER" default:"scouting"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of pooled connections (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// MongoConfig holds document mirror settings.
type MongoConfig struct {
	// URI is the MongoDB connection string (required)
	URI string `env:"MONGO_URI" required:"true"`

	// Database is the mirror database name (default: scouting)
	Database string `env:"MONGO_DATABASE" default:"scouting"`

	// ConnectTimeout bounds the startup connection check (default: 10s)
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" default:"10s"`
}

// SyncConfig tunes the upsert pipeline.
type SyncConfig struct {
	// MaxRetries is how many times a snapshot write retries after a
	// version conflict (default: 5)
	MaxRetries int `env:"SYNC_MAX_RETRIES" default:"5"`

	// RetryBackoff is the base delay between conflict retries (default: 50ms)
	RetryBackoff time.Duration `env:"SYNC_RETRY_BACKOFF" default:"50ms"`

	// OpTimeout bounds one submission's store work end to end (default: 20s)
	OpTimeout time.Duration `env:"SYNC_OP_TIMEOUT" default:"20s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the per-IP limit (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	// AllowOrigins is a comma-separated origin allowlist (default: *)
	AllowOrigins []string `env:"CORS_ALLOW_ORIGINS" default:"*"`
}

// ReconcileConfig holds snapshot/mirror drift detection settings.
type ReconcileConfig struct {
	// Enabled controls whether the reconciler runs (default: true)
	Enabled bool `env:"RECONCILE_ENABLED" default:"true"`

	// Schedule is a cron expression for drift checks (default: every 15m)
	Schedule string `env:"RECONCILE_SCHEDULE" default:"*/15 * * * *"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a safe representation for logging. Connection strings
// are masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: {Addr: %q}, ObjectStore: {URL: [MASKED], Container: %q, MaxConns: %d}, "+
			"Mongo: {URI: [MASKED], Database: %q}, Sync: {MaxRetries: %d, OpTimeout: %s}, "+
			"Rate: {Enabled: %v, RequestsPerMinute: %d}, Reconcile: {Enabled: %v, Schedule: %q}, "+
			"Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), c.ObjectStore.Container, c.ObjectStore.MaxConns,
		c.Mongo.Database, c.Sync.MaxRetries, c.Sync.OpTimeout,
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Reconcile.Enabled, c.Reconcile.Schedule,
		c.Logging.Level, c.Logging.Format,
	)
}
