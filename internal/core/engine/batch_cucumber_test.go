package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/gstcheck/gstcheck/internal/core/checker"
	"github.com/gstcheck/gstcheck/internal/table"
)

// TestBatchFeatures executes the batch feature scenarios via godog.
func TestBatchFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "batch",
		ScenarioInitializer: initializeBatchScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "batch.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

func initializeBatchScenario(ctx *godog.ScenarioContext) {
	state := &batchState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		state.close()
		return ctx, nil
	})

	ctx.Step(`^a registry that registers identifiers starting with "([^"]+)"$`, state.givenRegistry)
	ctx.Step(`^a quota of (\d+) calls? per hour$`, state.givenQuota)
	ctx.Step(`^(\d+) calls? (?:was|were) made (\d+) minutes ago$`, state.givenPastCalls)
	ctx.Step(`^a table with identifiers "([^"]*)"$`, state.givenTable)
	ctx.Step(`^the batch runs$`, state.runBatch)
	ctx.Step(`^row (\d+) has response-status "([^"]*)"$`, state.rowHasStatus)
	ctx.Step(`^row (\d+) has response-registrationId "([^"]*)"$`, state.rowHasRegistrationID)
	ctx.Step(`^row (\d+) has no derived values$`, state.rowHasNoDerivedValues)
	ctx.Step(`^row (\d+) is marked skipped$`, state.rowIsSkipped)
	ctx.Step(`^row (\d+) json-response mentions "([^"]+)"$`, state.rowResponseMentions)
	ctx.Step(`^the summary counts (\d+) successful, (\d+) errors and (\d+) other$`, state.summaryCounts)
	ctx.Step(`^(\d+) calls remain in the window$`, state.callsRemain)
	ctx.Step(`^the registry received (\d+) requests?$`, state.registryReceived)
}

// batchState holds one scenario's registry, limiter, and run outcome.
type batchState struct {
	registry *httptest.Server
	requests atomic.Int32
	now      time.Time
	limiter  *RateLimiter
	input    *table.Table
	result   *RunResult
}

func (s *batchState) reset() {
	s.close()
	s.requests.Store(0)
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.limiter = nil
	s.input = nil
	s.result = nil
}

func (s *batchState) close() {
	if s.registry != nil {
		s.registry.Close()
		s.registry = nil
	}
}

func (s *batchState) givenRegistry(prefix string) error {
	s.registry = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		var payload struct {
			RegID string `json:"regID"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if payload.RegID == "DROP" {
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				_ = conn.Close()
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(payload.RegID, prefix) {
			_, _ = fmt.Fprintf(w, `{"returnCode":"10","data":{"registrationId":%q}}`, payload.RegID)
			return
		}
		_, _ = w.Write([]byte(`{"returnCode":"30","info":{"message":"no match"}}`))
	}))
	return nil
}

func (s *batchState) givenQuota(calls int) error {
	s.limiter = NewRateLimiter(calls, time.Hour)
	s.limiter.Clock = func() time.Time { return s.now }
	return nil
}

func (s *batchState) givenPastCalls(calls, minutesAgo int) error {
	at := s.now.Add(-time.Duration(minutesAgo) * time.Minute)
	for i := 0; i < calls; i++ {
		s.limiter.Record(at)
	}
	return nil
}

func (s *batchState) givenTable(ids string) error {
	rows := [][]string{}
	for _, id := range strings.Split(ids, ",") {
		rows = append(rows, []string{id, "row"})
	}
	s.input = table.New([]string{"uen", "note"}, rows)
	return nil
}

func (s *batchState) runBatch() error {
	client, err := checker.NewGSTChecker(s.registry.URL, "id", "secret")
	if err != nil {
		return err
	}
	client.Timeout = 2 * time.Second

	runner := &Runner{Limiter: s.limiter, Client: client}
	s.result, err = runner.Run(context.Background(), s.input, RunOptions{Concurrency: 2})
	return err
}

func (s *batchState) cell(row int, column string) (string, error) {
	if s.result == nil {
		return "", fmt.Errorf("batch has not run")
	}
	out := s.result.Table
	if row < 1 || row > len(out.Rows) {
		return "", fmt.Errorf("row %d out of range (%d rows)", row, len(out.Rows))
	}
	idx := out.ColumnIndex(column)
	if idx < 0 {
		return "", fmt.Errorf("column %q missing", column)
	}
	return out.Rows[row-1][idx], nil
}

func (s *batchState) expectCell(row int, column, want string) error {
	got, err := s.cell(row, column)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("row %d %s: expected %q, got %q", row, column, want, got)
	}
	return nil
}

func (s *batchState) rowHasStatus(row int, want string) error {
	return s.expectCell(row, table.ColumnReturnCode, want)
}

func (s *batchState) rowHasRegistrationID(row int, want string) error {
	return s.expectCell(row, table.ColumnRegistrationID, want)
}

func (s *batchState) rowHasNoDerivedValues(row int) error {
	for _, column := range table.DerivedColumns() {
		if err := s.expectCell(row, column, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *batchState) rowIsSkipped(row int) error {
	return s.expectCell(row, table.ColumnJSONResponse, table.SkippedMarker)
}

func (s *batchState) rowResponseMentions(row int, fragment string) error {
	got, err := s.cell(row, table.ColumnJSONResponse)
	if err != nil {
		return err
	}
	if !strings.Contains(got, fragment) {
		return fmt.Errorf("row %d json-response %q does not mention %q", row, got, fragment)
	}
	return nil
}

func (s *batchState) summaryCounts(successful, errs, others int) error {
	summary := s.result.Summary
	if summary.Successful != successful || summary.Errors != errs || summary.Others != others {
		return fmt.Errorf("expected %d/%d/%d successful/errors/others, got %d/%d/%d",
			successful, errs, others, summary.Successful, summary.Errors, summary.Others)
	}
	return nil
}

func (s *batchState) callsRemain(want int) error {
	if got := s.limiter.Remaining(s.now); got != want {
		return fmt.Errorf("expected %d calls remaining, got %d", want, got)
	}
	return nil
}

func (s *batchState) registryReceived(want int) error {
	if got := int(s.requests.Load()); got != want {
		return fmt.Errorf("expected %d registry requests, got %d", want, got)
	}
	return nil
}
