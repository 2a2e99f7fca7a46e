package observability

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used by CLI commands (SIMPLE profile).
	CLILogger *logging.Logger

	// ServerLogger is used by the HTTP server and batch jobs (STRUCTURED profile).
	ServerLogger *logging.Logger
)

// ServerLoggerOptions configures the structured logger.
type ServerLoggerOptions struct {
	Service     string
	Level       string
	Environment string
	// Namespace is attached to every entry when set.
	Namespace string
}

// InitCLILogger initializes the CLI logger. Verbose lowers the level to DEBUG.
func InitCLILogger(service string, verbose bool) error {
	logger, err := logging.NewCLI(service)
	if err != nil {
		return fmt.Errorf("init CLI logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
	return nil
}

// InitServerLogger initializes the JSON logger written to stderr.
func InitServerLogger(opts ServerLoggerOptions) error {
	staticFields := make(map[string]any)
	if opts.Namespace != "" {
		staticFields["namespace"] = opts.Namespace
	}
	environment := opts.Environment
	if environment == "" {
		environment = "production"
	}

	config := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: levelName(opts.Level),
		Service:      opts.Service,
		Environment:  environment,
		StaticFields: staticFields,
		Middleware: []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "json",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	logger, err := logging.New(config)
	if err != nil {
		return fmt.Errorf("init server logger: %w", err)
	}
	ServerLogger = logger
	return nil
}

// Logger returns the server logger when serving, else the CLI logger.
// It may return nil before initialization.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

// levelName maps a config level to the severity names gofulmen expects.
func levelName(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}
