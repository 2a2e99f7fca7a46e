// Package config loads gstcheck configuration from defaults, an optional
// YAML file, and environment variables.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/gstcheck/gstcheck/internal/appid"
	"github.com/gstcheck/gstcheck/internal/core/checker"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Credential variables read without the application prefix.
const (
	EnvClientID     = "IRAS_CLIENT_ID"
	EnvClientSecret = "IRAS_CLIENT_SECRET"
)

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", checker.EnvProduction)

	v.SetDefault("credentials.client_id", "")
	v.SetDefault("credentials.client_secret", "")

	v.SetDefault("lookup.timeout", "30s")
	v.SetDefault("lookup.concurrency", 10)
	v.SetDefault("lookup.base_url", "")

	v.SetDefault("rate_limit.max_calls", 100)
	v.SetDefault("rate_limit.window", "1h")

	v.SetDefault("throttle.rps", 5.0)
	v.SetDefault("throttle.burst", 10)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "simple")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)
}

// Load decodes the settings held by v, applies environment and runtime
// overrides, validates the result, and stores it as the current config.
// A nil v loads defaults only.
func Load(v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(EnvSpecs())
	if err != nil {
		return nil, apperrors.WrapConfigInvalid(context.Background(), err, "failed to load environment overrides")
	}

	merged := v.AllSettings()
	for _, overrides := range append([]map[string]any{envOverrides}, runtimeOverrides...) {
		mergeMaps(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, apperrors.WrapConfigInvalid(context.Background(), err, "failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.WrapConfigInvalid(context.Background(), err, "invalid configuration: "+err.Error())
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	if strings.TrimSpace(c.Lookup.BaseURL) == "" {
		if _, envErr := checker.ResolveEndpoint(c.Environment); envErr != nil {
			err = multierr.Append(err, envErr)
		}
	}
	if c.Lookup.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("lookup.timeout must be positive, got %s", c.Lookup.Timeout))
	}
	if c.Lookup.Concurrency < 1 {
		err = multierr.Append(err, fmt.Errorf("lookup.concurrency must be at least 1, got %d", c.Lookup.Concurrency))
	}
	if c.RateLimit.MaxCalls < 1 {
		err = multierr.Append(err, fmt.Errorf("rate_limit.max_calls must be at least 1, got %d", c.RateLimit.MaxCalls))
	}
	if c.RateLimit.Window <= 0 {
		err = multierr.Append(err, fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window))
	}
	if c.Throttle.RPS < 0 {
		err = multierr.Append(err, fmt.Errorf("throttle.rps must not be negative, got %g", c.Throttle.RPS))
	}
	if c.Throttle.RPS > 0 && c.Throttle.Burst < 1 {
		err = multierr.Append(err, fmt.Errorf("throttle.burst must be at least 1 when throttling, got %d", c.Throttle.Burst))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", c.Logging.Level))
	}

	return err
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// EnvSpecs maps environment variables to config paths. Application settings
// use the GSTCHECK_ prefix; the API credentials keep their upstream names.
func EnvSpecs() []EnvVarSpec {
	prefix := appid.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	return []EnvVarSpec{
		{Name: EnvClientID, Path: []string{"credentials", "client_id"}, Type: EnvString},
		{Name: EnvClientSecret, Path: []string{"credentials", "client_secret"}, Type: EnvString},

		{Name: prefix + "ENVIRONMENT", Path: []string{"environment"}, Type: EnvString},

		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "LOOKUP_TIMEOUT", Path: []string{"lookup", "timeout"}, Type: EnvString},
		{Name: prefix + "LOOKUP_CONCURRENCY", Path: []string{"lookup", "concurrency"}, Type: EnvInt},
		{Name: prefix + "LOOKUP_BASE_URL", Path: []string{"lookup", "base_url"}, Type: EnvString},

		{Name: prefix + "RATE_LIMIT_MAX_CALLS", Path: []string{"rate_limit", "max_calls"}, Type: EnvInt},
		{Name: prefix + "RATE_LIMIT_WINDOW", Path: []string{"rate_limit", "window"}, Type: EnvString},

		{Name: prefix + "THROTTLE_RPS", Path: []string{"throttle", "rps"}, Type: EnvString},
		{Name: prefix + "THROTTLE_BURST", Path: []string{"throttle", "burst"}, Type: EnvInt},

		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
	}
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(appid.ConfigName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// mergeMaps folds src into dst, descending into nested maps. Keys are
// lowercased to match viper's normalization.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		if nested, ok := value.(map[string]any); ok {
			existing, ok := dst[key].(map[string]any)
			if !ok {
				existing = map[string]any{}
				dst[key] = existing
			}
			mergeMaps(existing, nested)
			continue
		}
		dst[key] = value
	}
}
