// Package jobs runs uploaded batches one at a time in the background.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/core"
	"github.com/gstcheck/gstcheck/internal/core/engine"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/metrics"
	"github.com/gstcheck/gstcheck/internal/table"
)

// State is the lifecycle stage of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the job will not change again.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var (
	// ErrQueueFull is returned when the pending queue has no room.
	ErrQueueFull = errors.New("batch queue is full")
	// ErrQueueClosed is returned after Shutdown.
	ErrQueueClosed = errors.New("batch queue is shut down")
)

// Runner executes a batch. engine.Runner satisfies it.
type Runner interface {
	Plan(t *table.Table) (engine.Plan, error)
	Run(ctx context.Context, t *table.Table, opts engine.RunOptions) (*engine.RunResult, error)
}

// Snapshot is the externally visible view of a job.
type Snapshot struct {
	ID          string        `json:"id"`
	State       State         `json:"state"`
	Input       string        `json:"input"`
	Format      table.Format  `json:"format"`
	Concurrency int           `json:"concurrency"`
	Done        int           `json:"done"`
	Total       int           `json:"total"`
	Summary     *core.Summary `json:"summary,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorCode   string        `json:"error_code,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

type job struct {
	snapshot Snapshot
	input    *table.Table
	output   *table.Table
}

// Queue owns submitted jobs and a single worker that runs them in order, so
// each batch sees the quota left by the previous one.
type Queue struct {
	runner Runner
	logger *logging.Logger
	clock  func() time.Time

	mu      sync.RWMutex
	jobs    map[string]*job
	pending chan *job
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// NewQueue creates a queue holding up to capacity pending jobs.
func NewQueue(runner Runner, capacity int, logger *logging.Logger) *Queue {
	if capacity < 1 {
		capacity = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		runner:  runner,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
		jobs:    make(map[string]*job),
		pending: make(chan *job, capacity),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker.
func (q *Queue) Start() {
	q.wg.Go(q.work)
}

// Submit validates t and enqueues it. Tables without columns are rejected
// immediately; the quota is checked when the job runs.
func (q *Queue) Submit(input string, format table.Format, t *table.Table, concurrency int) (Snapshot, error) {
	if _, err := q.runner.Plan(t); err != nil && apperrors.Code(err) == apperrors.CodeInvalidInput {
		return Snapshot{}, err
	}
	if concurrency < 1 {
		concurrency = engine.DefaultConcurrency
	}

	j := &job{
		snapshot: Snapshot{
			ID:          uuid.New().String(),
			State:       StateQueued,
			Input:       input,
			Format:      format,
			Concurrency: concurrency,
			CreatedAt:   q.clock(),
		},
		input: t,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Snapshot{}, ErrQueueClosed
	}
	select {
	case q.pending <- j:
	default:
		return Snapshot{}, ErrQueueFull
	}
	q.jobs[j.snapshot.ID] = j
	return j.snapshot, nil
}

// Get returns the job snapshot for id.
func (q *Queue) Get(id string) (Snapshot, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return j.snapshot, true
}

// Result returns the augmented table of a finished job. Cancelled jobs
// return their partial table.
func (q *Queue) Result(id string) (*table.Table, Snapshot, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, Snapshot{}, apperrors.NewNotFoundError("batch not found")
	}
	if j.output == nil {
		return nil, j.snapshot, apperrors.NewConflictError("batch has no result yet (state: " + string(j.snapshot.State) + ")")
	}
	return j.output, j.snapshot, nil
}

// Shutdown stops accepting jobs, cancels the running one, and waits for the
// worker to exit or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	q.mu.Unlock()
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckHealth reports an error once the queue is shut down.
func (q *Queue) CheckHealth(_ context.Context) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

func (q *Queue) work() {
	for j := range q.pending {
		if q.ctx.Err() != nil {
			q.finish(j, nil, q.ctx.Err())
			continue
		}
		q.run(j)
	}
}

func (q *Queue) run(j *job) {
	q.update(j, func(s *Snapshot) {
		now := q.clock()
		s.State = StateRunning
		s.StartedAt = &now
	})

	progress := engine.ProgressFunc(func(done, total int, _ core.LookupResult) {
		q.update(j, func(s *Snapshot) {
			s.Done = done
			s.Total = total
		})
	})

	result, err := q.runner.Run(q.ctx, j.input, engine.RunOptions{
		Concurrency: j.snapshot.Concurrency,
		Progress:    progress,
	})
	q.finish(j, result, err)
}

func (q *Queue) finish(j *job, result *engine.RunResult, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	s := &j.snapshot
	s.FinishedAt = &now
	if result != nil {
		j.output = result.Table
		summary := result.Summary
		s.Summary = &summary
		s.Total = len(result.Plan.Dispatch)
	}

	switch {
	case err == nil:
		s.State = StateCompleted
	case errors.Is(err, context.Canceled):
		s.State = StateCancelled
		s.Error = err.Error()
	default:
		s.State = StateFailed
		envelope := apperrors.EnsureEnvelope(err)
		s.Error = envelope.Message
		s.ErrorCode = envelope.Code
	}
	j.input = nil

	metrics.RecordBatch(string(s.State))
	if q.logger != nil {
		q.logger.Info("batch finished",
			zap.String("batch_id", s.ID),
			zap.String("state", string(s.State)),
			zap.Int("done", s.Done),
			zap.Int("total", s.Total))
	}
}

func (q *Queue) update(j *job, fn func(*Snapshot)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(&j.snapshot)
}
