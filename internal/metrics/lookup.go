package metrics

import (
	"time"

	"github.com/gstcheck/gstcheck/internal/observability"
)

// Lookup and quota metrics. Names follow Prometheus conventions; the exporter
// adds the service namespace prefix.
const (
	LookupsTotalName     = "gst_lookups_total"
	LookupDurationName   = "gst_lookup_duration_ms"
	QuotaRemainingName   = "gst_quota_remaining"
	BatchesTotalName     = "gst_batches_total"
	HealthCheckTotalName = "app_health_check_total"
	HealthCheckDurName   = "app_health_check_duration_ms"
	ServerStartTimeName  = "app_server_start_time_seconds"
)

// Status classes attached to gst_lookups_total.
const (
	StatusClassSuccess   = "success"
	StatusClassError     = "error"
	StatusClassTransport = "transport"
	StatusClassOther     = "other"
)

// RecordLookup counts one upstream lookup and observes its latency.
func RecordLookup(statusClass string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		LookupsTotalName,
		1,
		map[string]string{"status_class": statusClass},
	)
	_ = observability.TelemetrySystem.Histogram(
		LookupDurationName,
		duration,
		nil,
	)
}

// SetQuotaRemaining publishes the calls left in the current window.
func SetQuotaRemaining(remaining int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			QuotaRemainingName,
			float64(remaining),
			nil,
		)
	}
}

// RecordBatch counts a batch job reaching a terminal state.
func RecordBatch(state string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BatchesTotalName,
			1,
			map[string]string{"state": state},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	_ = observability.TelemetrySystem.Counter(
		HealthCheckTotalName,
		1,
		map[string]string{
			"check":  checkName,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		HealthCheckDurName,
		duration,
		map[string]string{"check": checkName},
	)
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTimeName,
			float64(timestamp),
			nil,
		)
	}
}
