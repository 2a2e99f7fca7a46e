package live

import (
	"time"

	"github.com/gstcheck/gstcheck/internal/core"
)

// recentLimit bounds the rows kept for the recent-results table.
const recentLimit = 8

// Counts aggregates outcomes seen so far.
type Counts struct {
	Successful int
	Errors     int
	Others     int
}

// Add tallies result the same way the run summary does.
func (c Counts) Add(result core.LookupResult) Counts {
	switch {
	case result.Succeeded():
		c.Successful++
	case result.Errored():
		c.Errors++
	default:
		c.Others++
	}
	return c
}

// ResultRow is one line of the recent-results table.
type ResultRow struct {
	Identifier string
	Outcome    string
	Detail     string
}

// State captures the live UI state for a batch.
type State struct {
	Input       string
	Environment string
	StartedAt   time.Time
	FinishedAt  time.Time
	Done        int
	Total       int
	Counts      Counts
	Recent      []ResultRow
	Interrupted bool
}

// Reduce folds an event into state.
func Reduce(state State, event Event) State {
	switch event.Kind {
	case EventRunStart:
		state.Input = event.Input
		state.Environment = event.Environment
		state.Total = event.Total
		if state.StartedAt.IsZero() {
			state.StartedAt = time.Now()
		}
	case EventResult:
		if event.Done > state.Done {
			state.Done = event.Done
		}
		if event.Total > 0 {
			state.Total = event.Total
		}
		state.Counts = event.Counts
		row := ResultRow{
			Identifier: event.Result.Identifier,
			Outcome:    outcomeLabel(event.Result),
			Detail:     resultDetail(event.Result),
		}
		state.Recent = append([]ResultRow{row}, state.Recent...)
		if len(state.Recent) > recentLimit {
			state.Recent = state.Recent[:recentLimit]
		}
	case EventRunEnd:
		state.FinishedAt = time.Now()
	}
	return state
}

// Fraction returns completion in [0, 1].
func (s State) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	f := float64(s.Done) / float64(s.Total)
	if f > 1 {
		return 1
	}
	return f
}
