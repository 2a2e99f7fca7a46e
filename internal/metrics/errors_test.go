package metrics

import (
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstcheck/gstcheck/internal/observability"
)

func setupCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	saved := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = saved })
	return collector
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		code   string
		status int
		want   string
	}{
		{"RATE_LIMIT_EXCEEDED", 429, "quota"},
		{"INVALID_INPUT", 400, "client"},
		{"NOT_FOUND", 404, "client"},
		{"SERVICE_UNAVAILABLE", 503, "server"},
		{"INTERNAL_ERROR", 500, "server"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorClass(tt.code, tt.status), tt.code)
	}
}

func TestErrorRecordersEmitUnderServiceNames(t *testing.T) {
	collector := setupCollector(t)

	RecordError("INVALID_INPUT", 400)
	RecordError("RATE_LIMIT_EXCEEDED", 429)
	RecordPanic("/v1/batches/{id}")
	RecordErrorByEndpoint("/v1/lookup", "INVALID_INPUT")
	RecordQuotaRejection(SurfaceBatch)
	RecordQuotaRejection(SurfaceLookup)

	assert.Equal(t, 2, collector.CountMetricsByName(ErrorsTotalName))
	assert.Equal(t, 1, collector.CountMetricsByName(PanicsTotalName))
	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsByEndpointName))
	assert.Equal(t, 2, collector.CountMetricsByName(QuotaRejectionsName))
	assert.Zero(t, collector.CountMetricsByName("errors_total"))
}

func TestLookupRecordersEmit(t *testing.T) {
	collector := setupCollector(t)

	RecordLookup(StatusClassTransport, 0)
	SetQuotaRemaining(7)
	RecordBatch("completed")

	assert.Equal(t, 1, collector.CountMetricsByName(LookupsTotalName))
	assert.Equal(t, 1, collector.CountMetricsByName(LookupDurationName))
	assert.Equal(t, 1, collector.CountMetricsByName(QuotaRemainingName))
	assert.Equal(t, 1, collector.CountMetricsByName(BatchesTotalName))
}
