package metrics

import (
	"strconv"

	"github.com/gstcheck/gstcheck/internal/observability"
)

// Error metric names.
const (
	ErrorsTotalName      = "gst_errors_total"
	PanicsTotalName      = "gst_panics_total"
	ErrorsByEndpointName = "gst_errors_by_endpoint"
	QuotaRejectionsName  = "gst_quota_rejections_total"
)

// rateLimitExceededCode mirrors the envelope code; internal/errors imports
// this package.
const rateLimitExceededCode = "RATE_LIMIT_EXCEEDED"

const (
	errorClassQuota  = "quota"
	errorClassClient = "client"
	errorClassServer = "server"
)

// Surfaces that can refuse a lookup because the window is full.
const (
	SurfaceLookup = "lookup"
	SurfaceCheck  = "check"
	SurfaceBatch  = "batch"
)

// ErrorClass buckets an error response: quota refusals apart from other
// client errors, everything 5xx as server.
func ErrorClass(errorCode string, httpStatus int) string {
	switch {
	case errorCode == rateLimitExceededCode:
		return errorClassQuota
	case httpStatus >= 500:
		return errorClassServer
	default:
		return errorClassClient
	}
}

// RecordError counts an error response by envelope code, status and class.
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		ErrorsTotalName,
		1,
		map[string]string{
			"error_code":  errorCode,
			"http_status": strconv.Itoa(httpStatus),
			"class":       ErrorClass(errorCode, httpStatus),
		},
	)
}

// RecordPanic counts a recovered handler panic on endpoint.
func RecordPanic(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PanicsTotalName,
			1,
			map[string]string{"endpoint": endpoint},
		)
	}
}

// RecordErrorByEndpoint counts an error on a route pattern. Callers pass the
// pattern, never the raw path, so batch ids stay out of the labels.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorsByEndpointName,
			1,
			map[string]string{
				"endpoint":   endpoint,
				"error_code": errorCode,
			},
		)
	}
}

// RecordQuotaRejection counts a lookup or batch refused because the rate
// window had no calls left.
func RecordQuotaRejection(surface string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			QuotaRejectionsName,
			1,
			map[string]string{"surface": surface},
		)
	}
}
