package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify that the configuration loads, the environment resolves to an
endpoint, and API credentials are present. No lookups are made.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			return apperrors.NewConfigurationError("version information missing")
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		logger.Info("✅ Configuration valid")

		var problems error
		if _, err := newBatchDeps(cfg); err != nil {
			problems = multierr.Append(problems, err)
		}
		if problems != nil {
			for _, problem := range multierr.Errors(problems) {
				logger.Error("❌ " + apperrors.EnsureEnvelope(problem).Message)
			}
			return apperrors.NewConfigurationError("health check failed")
		}
		logger.Info("✅ Endpoint and credentials configured", zap.String("environment", cfg.Environment))
		logger.Info("✅ All health checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
