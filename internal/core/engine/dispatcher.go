package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/gstcheck/gstcheck/internal/core"
)

// Lookuper performs a single identifier lookup. Implementations report
// failures inside the result rather than returning errors.
type Lookuper interface {
	Lookup(ctx context.Context, identifier string) core.LookupResult
}

// ProgressSink receives completion notifications. Calls are serialized and
// done increases by one on every call.
type ProgressSink interface {
	OnProgress(done, total int, result core.LookupResult)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(done, total int, result core.LookupResult)

// OnProgress calls f.
func (f ProgressFunc) OnProgress(done, total int, result core.LookupResult) {
	f(done, total, result)
}

// ErrInvalidConcurrency is returned when the concurrency bound is below one.
var ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

// Dispatcher runs lookups under a concurrency cap, recording every call
// against the shared limiter.
type Dispatcher struct {
	Client   Lookuper
	Limiter  *RateLimiter
	Progress ProgressSink
}

// Dispatch looks up every identifier exactly once and waits for all started
// lookups to finish. Result order follows completion, not input. When ctx is
// cancelled, identifiers that have not started are skipped and the results
// gathered so far are returned with the context error.
func (d *Dispatcher) Dispatch(ctx context.Context, identifiers []string, concurrency int) ([]core.LookupResult, error) {
	if concurrency < 1 {
		return nil, ErrInvalidConcurrency
	}
	if d == nil || d.Client == nil {
		return nil, errors.New("dispatcher has no lookup client")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	total := len(identifiers)
	if total == 0 {
		return []core.LookupResult{}, nil
	}
	if concurrency > total {
		concurrency = total
	}

	var (
		progressMu sync.Mutex
		done       int
	)
	report := func(result core.LookupResult) {
		progressMu.Lock()
		defer progressMu.Unlock()
		done++
		if d.Progress != nil {
			d.Progress.OnProgress(done, total, result)
		}
	}

	p := pool.NewWithResults[core.LookupResult]().
		WithContext(ctx).
		WithMaxGoroutines(concurrency)

	for _, identifier := range identifiers {
		p.Go(func(ctx context.Context) (core.LookupResult, error) {
			if err := ctx.Err(); err != nil {
				return core.LookupResult{}, err
			}
			d.Limiter.Record(d.Limiter.Now())
			result := d.Client.Lookup(ctx, identifier)
			result.Identifier = identifier
			report(result)
			return result, nil
		})
	}

	results, _ := p.Wait()
	if results == nil {
		results = []core.LookupResult{}
	}
	if len(results) < total {
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}
