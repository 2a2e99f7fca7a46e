package engine

import (
	"sync"
	"time"
)

// Default quota of the GST registration API.
const (
	DefaultMaxCalls = 100
	DefaultWindow   = time.Hour
)

// RateLimiter tracks recent calls in a bounded sliding window. It is advisory:
// the remote service enforces its own quota.
type RateLimiter struct {
	MaxCalls int
	Window   time.Duration
	Clock    func() time.Time

	mu    sync.Mutex
	calls []time.Time
}

// Quota is a point-in-time view of the limiter.
type Quota struct {
	Limit     int           `json:"limit"`
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	Window    time.Duration `json:"window"`
	ResetAt   *time.Time    `json:"reset_at,omitempty"`
}

// NewRateLimiter creates a limiter; non-positive values fall back to the defaults.
func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	return &RateLimiter{MaxCalls: maxCalls, Window: window}
}

// Remaining evicts expired calls and returns how many calls are still allowed at now.
func (r *RateLimiter) Remaining(now time.Time) int {
	if r == nil {
		return DefaultMaxCalls
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evict(now)
	return r.maxCalls() - len(r.calls)
}

// Record appends a call at now, dropping the oldest entry once the window is full.
func (r *RateLimiter) Record(now time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record(now)
}

// TryRecord records a call only if the window still has room.
func (r *RateLimiter) TryRecord(now time.Time) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evict(now)
	if len(r.calls) >= r.maxCalls() {
		return false
	}
	r.record(now)
	return true
}

// Snapshot reports usage at now.
func (r *RateLimiter) Snapshot(now time.Time) Quota {
	if r == nil {
		return Quota{Limit: DefaultMaxCalls, Remaining: DefaultMaxCalls, Window: DefaultWindow}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evict(now)
	quota := Quota{
		Limit:     r.maxCalls(),
		Used:      len(r.calls),
		Remaining: r.maxCalls() - len(r.calls),
		Window:    r.window(),
	}
	if len(r.calls) > 0 {
		reset := r.calls[0].Add(r.window())
		quota.ResetAt = &reset
	}
	return quota
}

// Now returns the limiter clock.
func (r *RateLimiter) Now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

// evict drops calls older than the window. Caller holds mu.
func (r *RateLimiter) evict(now time.Time) {
	window := r.window()
	drop := 0
	for drop < len(r.calls) && now.Sub(r.calls[drop]) > window {
		drop++
	}
	if drop > 0 {
		r.calls = append(r.calls[:0], r.calls[drop:]...)
	}
}

// record appends a call and enforces capacity. Caller holds mu.
func (r *RateLimiter) record(now time.Time) {
	r.calls = append(r.calls, now)
	if excess := len(r.calls) - r.maxCalls(); excess > 0 {
		r.calls = append(r.calls[:0], r.calls[excess:]...)
	}
}

func (r *RateLimiter) maxCalls() int {
	if r.MaxCalls <= 0 {
		return DefaultMaxCalls
	}
	return r.MaxCalls
}

func (r *RateLimiter) window() time.Duration {
	if r.Window <= 0 {
		return DefaultWindow
	}
	return r.Window
}
