package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/appid"
	"github.com/gstcheck/gstcheck/internal/config"
	"github.com/gstcheck/gstcheck/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   appid.BinaryName,
	Short: appid.Description,
	Long: fmt.Sprintf(`%s - %s

Reads identifiers from the first column of an xlsx or csv table, looks each
one up against the IRAS GST registration API, and writes the table back with
response-status, response-registrationId and json-response columns.

Credentials are read from IRAS_CLIENT_ID and IRAS_CLIENT_SECRET.`, appid.BinaryName, appid.Description),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep config loading from emitting metrics; serve installs real telemetry.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", appid.ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig sets up the CLI logger and reads the config file, if any.
func initConfig() {
	if err := observability.InitCLILogger(appid.BinaryName, verbose); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	logger := observability.CLILogger

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if dir := config.DefaultConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
		} else {
			logger.Debug("Could not resolve XDG config directory")
		}
		viper.AddConfigPath("./config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			logger.Debug("No config file found, using defaults and environment variables")
		case cfgFile != "":
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to read config file", err)
		default:
			logger.Warn("Error reading config file", zap.Error(err))
		}
		return
	}
	logger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
}

// loadConfig decodes the layered configuration with flag overrides applied last.
func loadConfig(overrides map[string]any) (*config.Config, error) {
	if len(overrides) == 0 {
		return config.Load(viper.GetViper())
	}
	return config.Load(viper.GetViper(), overrides)
}

// flagOverrides collects the flags the user set explicitly, keyed by config path.
func flagOverrides(cmd *cobra.Command, bindings map[string]string) map[string]any {
	out := map[string]any{}
	for flag, path := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		setPath(out, path, f.Value.String())
	}
	return out
}

func setPath(m map[string]any, path string, value any) {
	key, rest, nested := strings.Cut(path, ".")
	if !nested {
		m[key] = value
		return
	}
	child, ok := m[key].(map[string]any)
	if !ok {
		child = map[string]any{}
		m[key] = child
	}
	setPath(child, rest, value)
}
