package live

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model renders batch progress using Bubble Tea.
type Model struct {
	state        State
	bar          progress.Model
	table        table.Model
	events       <-chan Event
	tickInterval time.Duration
	now          time.Time
	noColor      bool
	onInterrupt  func()
}

// Options configures the live UI model.
type Options struct {
	NoColor      bool
	TickInterval time.Duration

	// OnInterrupt is called once when the user presses ctrl+c. The terminal
	// is in raw mode while the UI runs, so SIGINT is not delivered.
	OnInterrupt func()
}

// NewModel constructs a live UI model for an event stream.
func NewModel(events <-chan Event, opts Options) Model {
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = 200 * time.Millisecond
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(50))
	if opts.NoColor {
		bar = progress.New(progress.WithSolidFill("#ffffff"), progress.WithWidth(50))
	}

	t := table.New(
		table.WithColumns(defaultColumns(80)),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(recentLimit+1),
	)
	t.SetStyles(tableStyles(opts.NoColor))

	return Model{
		bar:          bar,
		table:        t,
		events:       events,
		tickInterval: tickInterval,
		now:          time.Now(),
		noColor:      opts.NoColor,
		onInterrupt:  opts.OnInterrupt,
	}
}

// Init starts ticking and waits for the first event.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(m.tickInterval))
}

// Update consumes UI events, key presses, and timer ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(typed.Width)
		m.table.SetColumns(defaultColumns(typed.Width))
		m.bar.Width = min(max(typed.Width-20, 10), 80)
		return m, nil
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" && !m.state.Interrupted {
			m.state.Interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
		}
		return m, nil
	case EventMsg:
		m.state = Reduce(m.state, typed.Event)
		m.table.SetRows(rowsForState(m.state, m.noColor))
		return m, waitForEvent(m.events)
	case tickMsg:
		m.now = time.Time(typed)
		return m, tick(m.tickInterval)
	}
	return m, nil
}

// View renders the live UI.
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(m.state, m.now, m.noColor),
		m.bar.ViewAs(m.state.Fraction())+" "+strconv.Itoa(m.state.Done)+"/"+strconv.Itoa(m.state.Total),
		renderCounts(m.state, m.noColor),
		m.table.View(),
		renderFooter(m.state, m.noColor),
	)
}

// State returns the current UI state.
func (m Model) State() State {
	return m.state
}

// EventMsg wraps a UI event for Bubble Tea.
type EventMsg struct {
	Event Event
}

// tickMsg carries a clock tick for updates.
type tickMsg time.Time

// waitForEvent blocks until a UI event is available.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		event, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return EventMsg{Event: event}
	}
}

// tick emits a periodic tick message.
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
