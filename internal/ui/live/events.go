package live

import "github.com/gstcheck/gstcheck/internal/core"

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventRunStart signals the start of a batch.
	EventRunStart EventKind = iota
	// EventResult delivers one completed lookup.
	EventResult
	// EventRunEnd signals that dispatch has finished.
	EventRunEnd
)

// Event carries a UI update payload. Counts are cumulative so a dropped
// event never skews the totals.
type Event struct {
	Kind        EventKind
	Input       string
	Environment string
	Done        int
	Total       int
	Counts      Counts
	Result      core.LookupResult
}
