package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/gstcheck/gstcheck/internal/core/checker"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
)

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(nil)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, 30*time.Second, cfg.Lookup.Timeout)
		assert.Equal(t, 10, cfg.Lookup.Concurrency)
		assert.Equal(t, 100, cfg.RateLimit.MaxCalls)
		assert.Equal(t, time.Hour, cfg.RateLimit.Window)
		assert.Equal(t, 5.0, cfg.Throttle.RPS)
		assert.Equal(t, 10, cfg.Throttle.Burst)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)

		endpoint, err := cfg.Endpoint()
		require.NoError(t, err)
		assert.Equal(t, checker.Endpoints[checker.EnvProduction], endpoint)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"environment": "SANDBOX",
			"lookup": map[string]any{
				"concurrency": 3,
			},
		}

		cfg, err := Load(nil, overrides)
		require.NoError(t, err)

		assert.Equal(t, 3, cfg.Lookup.Concurrency)
		assert.Equal(t, 30*time.Second, cfg.Lookup.Timeout)
		endpoint, err := cfg.Endpoint()
		require.NoError(t, err)
		assert.Equal(t, checker.Endpoints[checker.EnvSandbox], endpoint)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("IRAS_CLIENT_ID", "env-id")
		t.Setenv("IRAS_CLIENT_SECRET", "env-secret")
		t.Setenv("GSTCHECK_PORT", "3000")
		t.Setenv("GSTCHECK_LOG_LEVEL", "warn")
		t.Setenv("GSTCHECK_METRICS_ENABLED", "false")
		t.Setenv("GSTCHECK_RATE_LIMIT_WINDOW", "30m")
		t.Setenv("GSTCHECK_THROTTLE_RPS", "2.5")

		cfg, err := Load(nil)
		require.NoError(t, err)

		assert.Equal(t, "env-id", cfg.Credentials.ClientID)
		assert.Equal(t, "env-secret", cfg.Credentials.ClientSecret)
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 30*time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 2.5, cfg.Throttle.RPS)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("GSTCHECK_PORT", "4000")

		cfg, err := Load(nil, map[string]any{"server": map[string]any{"port": 5000}})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
environment: sandbox
credentials:
  client_id: file-id
lookup:
  base_url: http://127.0.0.1:9999/search
rate_limit:
  max_calls: 25
`), 0o600))

		v := viper.New()
		SetDefaults(v)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)

		assert.Equal(t, "sandbox", cfg.Environment)
		assert.Equal(t, "file-id", cfg.Credentials.ClientID)
		assert.Equal(t, 25, cfg.RateLimit.MaxCalls)
		assert.Equal(t, time.Hour, cfg.RateLimit.Window)
		endpoint, err := cfg.Endpoint()
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:9999/search", endpoint)
	})
}

func TestEndpointDefaultsToProduction(t *testing.T) {
	for _, cfg := range []*Config{nil, {}, {Environment: "  "}} {
		endpoint, err := cfg.Endpoint()
		require.NoError(t, err)
		assert.Equal(t, checker.Endpoints[checker.EnvProduction], endpoint)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	_, err := Load(nil, map[string]any{
		"environment": "staging",
		"lookup":      map[string]any{"concurrency": 0},
		"rate_limit":  map[string]any{"max_calls": -1},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.Code(err))

	message := apperrors.EnsureEnvelope(err).Message
	assert.Contains(t, message, "unknown environment")
	assert.Contains(t, message, "lookup.concurrency")
	assert.Contains(t, message, "rate_limit.max_calls")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := &Config{Environment: "sandbox", Logging: LoggingConfig{Level: "loud"}}
	err := cfg.Validate()
	require.Error(t, err)
	// timeout, concurrency, max_calls, window, log level
	assert.Len(t, multierr.Errors(err), 5)
}

func TestGetConfig(t *testing.T) {
	cfg, err := Load(nil, map[string]any{"server": map[string]any{"port": 8181}})
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
}

func TestEnvSpecs(t *testing.T) {
	names := make(map[string]bool)
	for _, spec := range EnvSpecs() {
		names[spec.Name] = true
	}

	assert.True(t, names["IRAS_CLIENT_ID"])
	assert.True(t, names["IRAS_CLIENT_SECRET"])
	assert.True(t, names["GSTCHECK_ENVIRONMENT"])
	assert.True(t, names["GSTCHECK_LOG_LEVEL"])
	assert.True(t, names["GSTCHECK_PORT"])
	assert.True(t, names["GSTCHECK_METRICS_PORT"])
}
