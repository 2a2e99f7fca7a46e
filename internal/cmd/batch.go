package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/gstcheck/gstcheck/internal/config"
	"github.com/gstcheck/gstcheck/internal/core/checker"
	"github.com/gstcheck/gstcheck/internal/core/engine"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/observability"
	"github.com/gstcheck/gstcheck/internal/output"
	"github.com/gstcheck/gstcheck/internal/table"
	"github.com/gstcheck/gstcheck/internal/ui/live"
)

// Progress display modes for batch.
const (
	uiAuto  = "auto"
	uiLive  = "live"
	uiPlain = "plain"
	uiNone  = "none"
)

var batchCmd = &cobra.Command{
	Use:   "batch <input.xlsx|input.csv>",
	Short: "Validate every identifier in a table",
	Long: `Read identifiers from the first column of an xlsx or csv table, look each
one up, and write the table with three appended columns:

  response-status          returnCode of the response
  response-registrationId  data.registrationId of the response
  json-response            the full response, or the error captured locally

Rows beyond the remaining rate-limit quota are not looked up and carry
{"skipped":"rate limit reached"}. Blank identifiers are left empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("output", "o", "", "output table (default <input>_results.<ext>)")
	batchCmd.Flags().StringP("environment", "e", "", "API environment: sandbox or production")
	batchCmd.Flags().IntP("concurrency", "c", 0, "lookups in flight (default from config)")
	batchCmd.Flags().String("ui", uiAuto, "progress display: auto, live, plain, none")
	batchCmd.Flags().String("output-format", string(output.FormatTable), "summary format: table, json, markdown, yaml")
}

// batchDeps is what a batch run needs once configuration is resolved.
type batchDeps struct {
	cfg      *config.Config
	lookuper engine.Lookuper
	limiter  *engine.RateLimiter
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]

	formatValue, _ := cmd.Flags().GetString("output-format")
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}
	uiMode, _ := cmd.Flags().GetString("ui")
	uiMode, err = parseUIMode(uiMode)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("concurrency"); f.Changed {
		if n, _ := cmd.Flags().GetInt("concurrency"); n < 1 {
			return apperrors.NewInputError("concurrency must be at least 1")
		}
	}

	outPath, _ := cmd.Flags().GetString("output")
	outPath = strings.TrimSpace(outPath)
	if outPath == "" {
		outPath = table.DefaultOutputPath(input)
	}
	if _, err := table.FormatFromPath(outPath); err != nil {
		return apperrors.NewInputError(err.Error())
	}

	cfg, err := loadConfig(flagOverrides(cmd, map[string]string{
		"environment": "environment",
		"concurrency": "lookup.concurrency",
	}))
	if err != nil {
		return err
	}
	deps, err := newBatchDeps(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return executeBatch(ctx, deps, batchRequest{
		Input:  input,
		Output: outPath,
		UIMode: uiMode,
		Format: format,
		Stdout: cmd.OutOrStdout(),
		Cancel: cancel,
	})
}

func newBatchDeps(cfg *config.Config) (*batchDeps, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, apperrors.NewConfigurationError(err.Error())
	}
	client, err := checker.NewGSTChecker(endpoint, cfg.Credentials.ClientID, cfg.Credentials.ClientSecret)
	if err != nil {
		return nil, err
	}
	client.Timeout = cfg.Lookup.Timeout
	client.ToolVersion = versionInfo.Version

	return &batchDeps{
		cfg:      cfg,
		lookuper: client,
		limiter:  engine.NewRateLimiter(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window),
	}, nil
}

type batchRequest struct {
	Input  string
	Output string
	UIMode string
	Format output.Format
	Stdout io.Writer
	// Cancel stops the run; the live UI calls it on ctrl+c.
	Cancel context.CancelFunc
}

// executeBatch reads the input, runs the batch, writes the output table, and
// prints the summary. An interrupted run still writes the rows completed so
// far and then returns the context error.
func executeBatch(ctx context.Context, deps *batchDeps, req batchRequest) error {
	logger := observability.CLILogger

	t, err := table.ReadFile(req.Input)
	if err != nil {
		return err
	}

	runner := &engine.Runner{Limiter: deps.limiter, Client: deps.lookuper, Logger: logger}
	plan, err := runner.Plan(t)
	if err != nil {
		return err
	}

	progress, finish := startProgress(req, deps.cfg.Environment, len(plan.Dispatch))
	result, runErr := runner.Run(ctx, t, engine.RunOptions{
		Concurrency: deps.cfg.Lookup.Concurrency,
		Progress:    progress,
	})
	finish()
	if result == nil {
		return runErr
	}

	if err := table.WriteFile(req.Output, result.Table); err != nil {
		return apperrors.WrapInternal(ctx, err, "failed to write output table "+req.Output)
	}
	if logger != nil {
		logger.Info("Wrote output table", zap.String("path", req.Output))
	}

	report := &output.Report{
		Input:          req.Input,
		Output:         req.Output,
		Environment:    deps.cfg.Environment,
		Summary:        result.Summary,
		QuotaRemaining: deps.limiter.Remaining(deps.limiter.Now()),
		Interrupted:    runErr != nil,
	}
	rendered, err := output.NewFormatter(req.Format).FormatReport(report)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		_, _ = fmt.Fprintln(req.Stdout, rendered)
	}
	return runErr
}

// startProgress picks the progress sink for mode. finish must be called once
// dispatch returns.
func startProgress(req batchRequest, environment string, total int) (engine.ProgressSink, func()) {
	mode := req.UIMode
	if mode == uiAuto {
		mode = uiPlain
		if isTerminal(req.Stdout) {
			mode = uiLive
		}
	}

	switch mode {
	case uiLive:
		controller := live.Start(req.Stdout, live.Options{
			NoColor:     os.Getenv("NO_COLOR") != "",
			OnInterrupt: req.Cancel,
		})
		controller.OnRunStart(req.Input, environment, total)
		return controller, func() {
			controller.OnRunEnd()
			controller.Wait()
		}
	case uiPlain:
		return live.NewPrinter(os.Stderr), func() {}
	default:
		return nil, func() {}
	}
}

func parseUIMode(value string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(value))
	switch mode {
	case "", uiAuto:
		return uiAuto, nil
	case uiLive, uiPlain, uiNone:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported ui mode %q (expected auto, live, plain, or none)", value)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
