package live

import (
	"fmt"
	"io"
	"sync"

	"github.com/gstcheck/gstcheck/internal/core"
)

// Printer writes one progress line per completed lookup. It is used when
// stdout is not a terminal.
type Printer struct {
	W io.Writer

	mu sync.Mutex
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{W: w}
}

// OnProgress prints "[done/total] identifier outcome".
func (p *Printer) OnProgress(done, total int, result core.LookupResult) {
	if p == nil || p.W == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.W, "[%d/%d] %s %s\n", done, total, result.Identifier, outcomeLabel(result))
}

func fmtInt(value int) string {
	return fmt.Sprint(value)
}
