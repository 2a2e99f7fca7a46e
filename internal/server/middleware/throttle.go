package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"
)

// ThrottleConfig sizes the shared token bucket. A non-positive RPS disables
// throttling.
type ThrottleConfig struct {
	RPS   float64
	Burst int
}

// Throttle rejects requests beyond the configured rate with a 429 envelope.
// It protects the service itself; the remote API quota is tracked
// separately by the lookup rate limiter.
func Throttle(cfg ThrottleConfig) func(http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = int(math.Ceil(cfg.RPS))
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / cfg.RPS)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				envelope := errors.NewErrorEnvelope("RATE_LIMIT_EXCEEDED", "too many requests").
					WithCorrelationID(GetRequestID(r.Context()))
				envelope = envelope.WithDetails(map[string]interface{}{
					"rps":   cfg.RPS,
					"burst": burst,
				})
				w.Header().Set("Retry-After", retryAfter)
				writeErrorResponse(w, envelope, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
