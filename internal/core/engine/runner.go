package engine

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/core"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/metrics"
	"github.com/gstcheck/gstcheck/internal/table"
)

// DefaultConcurrency is the number of lookups in flight for a batch.
const DefaultConcurrency = 10

// Runner drives one batch: extract identifiers, cap them to the remaining
// quota, dispatch, and project results back onto the table.
type Runner struct {
	Limiter *RateLimiter
	Client  Lookuper
	Logger  *logging.Logger
}

// RunOptions tunes a single run.
type RunOptions struct {
	Concurrency int
	Progress    ProgressSink
}

// Plan is the dispatch list for a table after filtering and quota capping.
type Plan struct {
	Rows        int
	Identifiers []string
	Dispatch    []string
	Skipped     []string
	Remaining   int
}

// Truncated reports whether the quota cut identifiers from the run.
func (p Plan) Truncated() bool {
	return len(p.Skipped) > 0
}

// RunResult is the outcome of a run.
type RunResult struct {
	Plan    Plan
	Table   *table.Table
	Results []core.LookupResult
	Summary core.Summary
}

// Plan validates the table and computes what a run would dispatch. It makes
// no network calls and does not touch the rate window.
func (r *Runner) Plan(t *table.Table) (Plan, error) {
	if t.Columns() == 0 {
		return Plan{}, apperrors.NewInputError("input table has no columns")
	}

	ids := core.Identifiers(t.Column(table.KeyColumn))
	plan := Plan{Rows: len(t.Rows), Identifiers: ids}

	remaining := r.Limiter.Remaining(r.Limiter.Now())
	plan.Remaining = remaining
	metrics.SetQuotaRemaining(remaining)
	if remaining <= 0 {
		metrics.RecordQuotaRejection(metrics.SurfaceBatch)
		return plan, apperrors.NewRateLimitExceededError("rate limit reached: no lookups remaining in the current window")
	}

	plan.Dispatch = ids
	if len(ids) > remaining {
		plan.Dispatch = ids[:remaining]
		plan.Skipped = ids[remaining:]
	}
	return plan, nil
}

// Run executes a batch over t. On cancellation the partial result is returned
// together with the context error; completed lookups are kept.
func (r *Runner) Run(ctx context.Context, t *table.Table, opts RunOptions) (*RunResult, error) {
	if r == nil || r.Client == nil {
		return nil, fmt.Errorf("runner has no lookup client")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	plan, err := r.Plan(t)
	if err != nil {
		return nil, err
	}

	if plan.Truncated() {
		r.warn("rate limit would be exceeded; truncating batch",
			zap.Int("identifiers", len(plan.Identifiers)),
			zap.Int("remaining", plan.Remaining),
			zap.Int("skipped", len(plan.Skipped)))
	}

	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}

	r.info("dispatching lookups",
		zap.Int("rows", plan.Rows),
		zap.Int("identifiers", len(plan.Dispatch)),
		zap.Int("concurrency", concurrency))

	dispatcher := &Dispatcher{Client: r.Client, Limiter: r.Limiter, Progress: opts.Progress}
	results, dispatchErr := dispatcher.Dispatch(ctx, plan.Dispatch, concurrency)
	if results == nil && dispatchErr != nil {
		return nil, dispatchErr
	}

	metrics.SetQuotaRemaining(r.Limiter.Remaining(r.Limiter.Now()))

	summary := core.Summarize(results)
	summary.Rows = plan.Rows
	summary.Identifiers = len(plan.Identifiers)
	summary.Skipped = len(plan.Skipped)

	out := &RunResult{
		Plan:    plan,
		Table:   table.Project(t, results, plan.Skipped),
		Results: results,
		Summary: summary,
	}

	if dispatchErr != nil {
		r.warn("batch interrupted",
			zap.Int("completed", len(results)),
			zap.Int("planned", len(plan.Dispatch)),
			zap.Error(dispatchErr))
		return out, dispatchErr
	}

	r.info("batch complete",
		zap.Int("successful", summary.Successful),
		zap.Int("errors", summary.Errors),
		zap.Int("others", summary.Others))
	return out, nil
}

func (r *Runner) info(msg string, fields ...zap.Field) {
	if r.Logger != nil {
		r.Logger.Info(msg, fields...)
	}
}

func (r *Runner) warn(msg string, fields ...zap.Field) {
	if r.Logger != nil {
		r.Logger.Warn(msg, fields...)
	}
}
