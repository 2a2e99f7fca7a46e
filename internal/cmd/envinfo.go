package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/appid"
	"github.com/gstcheck/gstcheck/internal/config"
	"github.com/gstcheck/gstcheck/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. Secrets are never printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		version := crucible.GetVersion()

		logger.Info("=== " + appid.BinaryName + " environment ===")
		logger.Info("Application:")
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("  Go:         "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  Platform:   " + runtime.GOOS + "/" + runtime.GOARCH)
		logger.Info("")

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		endpoint, endpointErr := cfg.Endpoint()
		if endpointErr != nil {
			endpoint = "(invalid: " + endpointErr.Error() + ")"
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = config.DefaultConfigPath() + " (not found)"
		}

		logger.Info("Lookup:")
		logger.Info("  Environment:    "+cfg.Environment, zap.String("environment", cfg.Environment))
		logger.Info("  Endpoint:       "+endpoint, zap.String("endpoint", endpoint))
		logger.Info("  Client ID:      " + secretState(cfg.Credentials.ClientID))
		logger.Info("  Client Secret:  " + secretState(cfg.Credentials.ClientSecret))
		logger.Info("  Timeout:        " + cfg.Lookup.Timeout.String())
		logger.Info(fmt.Sprintf("  Concurrency:    %d", cfg.Lookup.Concurrency))
		logger.Info(fmt.Sprintf("  Quota:          %d per %s", cfg.RateLimit.MaxCalls, cfg.RateLimit.Window))
		logger.Info("")

		logger.Info("Server:")
		logger.Info(fmt.Sprintf("  Address:        %s:%d", cfg.Server.Host, cfg.Server.Port))
		logger.Info(fmt.Sprintf("  Throttle:       %.2f rps, burst %d", cfg.Throttle.RPS, cfg.Throttle.Burst))
		logger.Info(fmt.Sprintf("  Metrics Port:   %d (enabled: %t)", cfg.Metrics.Port, cfg.Metrics.Enabled))
		logger.Info("  Log Level:      " + cfg.Logging.Level)
		logger.Info("  Config File:    "+configFile, zap.String("config_file", configFile))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

func secretState(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}
