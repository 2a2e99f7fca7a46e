package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gstcheck/gstcheck/internal/observability"
)

func TestRecordersAreNoopsWithoutTelemetry(t *testing.T) {
	saved := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = saved })

	require.NotPanics(t, func() {
		RecordLookup(StatusClassSuccess, 20*time.Millisecond)
		SetQuotaRemaining(42)
		RecordBatch("completed")
		RecordHealthCheck("rate_limiter", true, time.Millisecond)
		SetServerStartTime(time.Now().Unix())
		RecordError("INVALID_INPUT", 400)
		RecordPanic("/v1/lookup")
		RecordQuotaRejection(SurfaceLookup)
		RecordErrorByEndpoint("/v1/lookup", "INVALID_INPUT")
	})
}
