// Package config provides centralized configuration for the sheetq server and
// CLI. Settings come from environment variables with defaults, and are
// validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Cursor   CursorConfig
	Query    QueryConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxBodyBytes caps JSON request bodies (default: 1MB)
	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" default:"1048576"`
}

// StoreConfig selects and locates the sheet backend.
type StoreConfig struct {
	// Backend is one of memory, csv, postgres (default: memory)
	Backend string `env:"STORE_BACKEND" default:"memory"`

	// Dir is the workbook directory for the csv backend
	Dir string `env:"STORE_DIR" default:"./data"`

	// Snapshot is an optional file the memory backend loads on start and
	// saves on shutdown
	Snapshot string `env:"STORE_SNAPSHOT"`
}

// DatabaseConfig holds database connection settings for the postgres backend.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Required when
	// STORE_BACKEND=postgres. DB_URL is accepted for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// CursorConfig bounds server-side query cursors.
type CursorConfig struct {
	// TTL is how long an idle cursor survives (default: 15m)
	TTL time.Duration `env:"CURSOR_TTL" default:"15m"`

	// SweepInterval is how often expired cursors are dropped (default: 1m)
	SweepInterval time.Duration `env:"CURSOR_SWEEP_INTERVAL" default:"1m"`

	// Max is the number of live cursors allowed at once (default: 1000)
	Max int `env:"CURSOR_MAX" default:"1000"`
}

// QueryConfig bounds filter scans, which cost one cell read per candidate
// row per column.
type QueryConfig struct {
	// MaxConcurrent is the number of scans allowed to run at once (default: 8)
	MaxConcurrent int `env:"QUERY_MAX_CONCURRENT" default:"8"`

	// MaxWait is how long a scan waits for a slot (default: 5s)
	MaxWait time.Duration `env:"QUERY_MAX_WAIT" default:"5s"`

	// Timeout caps a single service operation (default: 30s)
	Timeout time.Duration `env:"QUERY_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the sustained rate per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// Burst is the number of requests allowed above the rate (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For header is believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}
