package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gstcheck/gstcheck/internal/core"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/metrics"
	"github.com/gstcheck/gstcheck/internal/output"
)

var checkCmd = &cobra.Command{
	Use:   "check <regID>",
	Short: "Look up a single UEN or GST registration number",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("environment", "e", "", "API environment: sandbox or production")
	checkCmd.Flags().String("output-format", string(output.FormatTable), "output format: table, json, markdown, yaml")
}

func runCheck(cmd *cobra.Command, args []string) error {
	id := core.NormalizeIdentifier(args[0])
	if id == "" {
		return apperrors.NewInputError("registration id is empty")
	}

	formatValue, _ := cmd.Flags().GetString("output-format")
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flagOverrides(cmd, map[string]string{"environment": "environment"}))
	if err != nil {
		return err
	}
	deps, err := newBatchDeps(cfg)
	if err != nil {
		return err
	}

	return executeCheck(cmd.Context(), deps, id, output.NewFormatter(format), cmd.OutOrStdout())
}

// executeCheck runs one lookup against the shared quota and prints it.
func executeCheck(ctx context.Context, deps *batchDeps, id string, formatter output.Formatter, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !deps.limiter.TryRecord(deps.limiter.Now()) {
		metrics.RecordQuotaRejection(metrics.SurfaceCheck)
		return apperrors.NewRateLimitExceededError("rate limit reached: no lookups remaining in the current window")
	}

	result := deps.lookuper.Lookup(ctx, id)
	result.Identifier = id

	rendered, err := formatter.FormatLookup(result)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		_, _ = fmt.Fprintln(w, rendered)
	}
	return nil
}
