package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/gstcheck/gstcheck/internal/metrics"
)

// Check results.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// ErrDegraded marks a checker failure that should not fail the probe.
var ErrDegraded = stderrors.New("degraded")

// HealthResponse is the aggregate /health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the individual probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is implemented by components that can report health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthManager runs registered checks for the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager creates a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker adds or replaces a named check.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// Check runs every registered check and returns per-check results plus the
// aggregate status.
func (hm *HealthManager) Check(ctx context.Context) (string, map[string]string) {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = StatusTimeout
			continue
		}
		start := time.Now()
		err := checkers[name].CheckHealth(ctx)
		switch {
		case err == nil:
			checks[name] = StatusHealthy
		case stderrors.Is(err, ErrDegraded):
			checks[name] = StatusDegraded
		default:
			checks[name] = StatusUnhealthy
		}
		metrics.RecordHealthCheck(name, err == nil, time.Since(start))
	}
	return overallStatus(checks), checks
}

func overallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		switch status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// HealthHandler serves GET /health.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, checks, ok := hm.probe(w, r, "", 5*time.Second)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler serves GET /health/live. The process answering is enough.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: StatusHealthy, Timestamp: time.Now().UTC()})
}

// ReadinessHandler serves GET /health/ready.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probeHandler(w, r, "ready", 5*time.Second)
}

// StartupHandler serves GET /health/startup.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probeHandler(w, r, "startup", 3*time.Second)
}

func (hm *HealthManager) probeHandler(w http.ResponseWriter, r *http.Request, probe string, timeout time.Duration) {
	status, _, ok := hm.probe(w, r, probe, timeout)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
}

// probe runs the checks and writes a 503 envelope when unhealthy.
func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, probe string, timeout time.Duration) (string, map[string]string, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	status, checks := hm.Check(ctx)
	if status != StatusUnhealthy {
		return status, checks, true
	}

	message := "aggregate health check failed"
	if probe != "" {
		message = probe + " probe failed"
	}
	envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", message)
	respondWithError(w, r, enrichHealthEnvelope(envelope, probe, status, checks))
	return status, checks, false
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{"status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	var unhealthy []string
	for name, result := range checks {
		if result != StatusHealthy {
			unhealthy = append(unhealthy, name)
		}
	}
	sort.Strings(unhealthy)

	contextData := map[string]interface{}{"status": status}
	if len(unhealthy) > 0 {
		contextData["unhealthy_checks"] = unhealthy
	}
	envelope, _ = envelope.WithContext(contextData)
	return envelope
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
