// Package live renders batch progress in the terminal.
package live

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gstcheck/gstcheck/internal/core"
)

// Controller runs the live UI and implements engine.ProgressSink. Events are
// queued on a buffered channel and dropped when it is full, so lookups never
// wait on rendering.
type Controller struct {
	events    chan Event
	program   *tea.Program
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	counts Counts
	closed bool
}

// Start launches a live UI controller that writes to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan Event, 256)
	model := NewModel(events, opts)
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Close signals the UI to stop.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
	})
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}

// OnRunStart announces a batch of total identifiers.
func (c *Controller) OnRunStart(input, environment string, total int) {
	c.send(Event{Kind: EventRunStart, Input: input, Environment: environment, Total: total})
}

// OnProgress forwards a completed lookup to the UI.
func (c *Controller) OnProgress(done, total int, result core.LookupResult) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counts = c.counts.Add(result)
	counts := c.counts
	c.mu.Unlock()

	c.send(Event{Kind: EventResult, Done: done, Total: total, Counts: counts, Result: result})
}

// OnRunEnd marks dispatch finished and closes the UI.
func (c *Controller) OnRunEnd() {
	c.send(Event{Kind: EventRunEnd})
	c.Close()
}

// send enqueues an event without blocking the caller.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}
