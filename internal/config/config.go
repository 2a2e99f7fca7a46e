package config

import (
	"strings"
	"time"

	"github.com/gstcheck/gstcheck/internal/core/checker"
)

// Config represents the complete application configuration. Values are
// layered: built-in defaults, then the config file, then environment
// variables, then runtime overrides (command-line flags).
type Config struct {
	Environment string            `mapstructure:"environment"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Lookup      LookupConfig      `mapstructure:"lookup"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Throttle    ThrottleConfig    `mapstructure:"throttle"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Health      HealthConfig      `mapstructure:"health"`
}

// CredentialsConfig holds the static API credentials sent with every lookup.
type CredentialsConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// LookupConfig controls outbound lookups.
type LookupConfig struct {
	// Timeout bounds a single call, connection and response body included.
	Timeout time.Duration `mapstructure:"timeout"`

	// Concurrency is the number of lookups in flight during a batch.
	Concurrency int `mapstructure:"concurrency"`

	// BaseURL overrides the environment endpoint (proxies, tests).
	BaseURL string `mapstructure:"base_url"`
}

// RateLimitConfig mirrors the remote quota.
type RateLimitConfig struct {
	MaxCalls int           `mapstructure:"max_calls"`
	Window   time.Duration `mapstructure:"window"`
}

// ThrottleConfig limits inbound API requests in serve mode. RPS of zero disables it.
type ThrottleConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxUploadBytes caps batch uploads.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level: simple or structured.
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Endpoint returns the lookup URL: the explicit base URL when set, else the
// URL for the configured environment.
func (c *Config) Endpoint() (string, error) {
	if c != nil && strings.TrimSpace(c.Lookup.BaseURL) != "" {
		return strings.TrimSpace(c.Lookup.BaseURL), nil
	}
	env := checker.EnvProduction
	if c != nil && strings.TrimSpace(c.Environment) != "" {
		env = c.Environment
	}
	return checker.ResolveEndpoint(env)
}
