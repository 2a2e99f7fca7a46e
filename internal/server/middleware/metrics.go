package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/observability"
)

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// EndpointPattern returns a low-cardinality label for r. Batch ids never
// reach the label.
func EndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/version", path == "/metrics", path == "/":
		return path
	case path == "/v1/lookup", path == "/v1/quota", path == "/v1/batches":
		return path
	case strings.HasPrefix(path, "/v1/batches/"):
		if strings.HasSuffix(path, "/result") {
			return "/v1/batches/{id}/result"
		}
		return "/v1/batches/{id}"
	default:
		return "/unknown"
	}
}

// RequestMetrics emits request count, latency, and size metrics and logs
// each completed request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sys := observability.TelemetrySystem
		if sys == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		requestSize := r.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		endpoint := EndpointPattern(r)
		status := strconv.Itoa(recorder.statusCode)
		labels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
			"status":   status,
		}
		sizeLabels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
		}

		_ = sys.Counter("http_requests_total", 1, labels)
		_ = sys.Histogram("http_request_duration_ms", duration, labels)
		_ = sys.Gauge("http_request_size_bytes", float64(requestSize), sizeLabels)
		_ = sys.Gauge("http_response_size_bytes", float64(recorder.bytesWritten), sizeLabels)

		if recorder.statusCode >= 400 {
			errorType := "client_error"
			if recorder.statusCode >= 500 {
				errorType = "server_error"
			}
			_ = sys.Counter("http_errors_total", 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorType,
			})
		}

		if logger := observability.ServerLogger; logger != nil {
			logger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", recorder.statusCode),
				zap.Duration("duration", duration),
				zap.Int64("request_size", requestSize),
				zap.Int64("response_size", recorder.bytesWritten),
				zap.String("requestID", GetRequestID(r.Context())))
		}
	})
}
