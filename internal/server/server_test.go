package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstcheck/gstcheck/internal/core"
	"github.com/gstcheck/gstcheck/internal/core/engine"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/server/handlers"
	"github.com/gstcheck/gstcheck/internal/server/jobs"
	servermw "github.com/gstcheck/gstcheck/internal/server/middleware"
	"github.com/gstcheck/gstcheck/internal/table"
)

type stubLookuper struct{}

// orderedPayload lists members out of alphabetical order.
const orderedPayload = `{"returnCode":"10","data":{"registrationId":"M2","name":"A & B <Pte>"},"info":{}}`

func (stubLookuper) Lookup(_ context.Context, identifier string) core.LookupResult {
	if identifier == "ORDERED" {
		body, _ := core.DecodeJSON([]byte(orderedPayload))
		return core.LookupResult{Identifier: identifier, Status: 200, Body: body}
	}
	if identifier == "BAD" {
		return core.LookupResult{
			Identifier: identifier,
			Status:     200,
			Body:       core.StructuredBody(map[string]any{"returnCode": "30", "info": map[string]any{"message": "invalid"}}),
		}
	}
	return core.LookupResult{
		Identifier: identifier,
		Status:     200,
		Body: core.StructuredBody(map[string]any{
			"returnCode": "10",
			"data":       map[string]any{"registrationId": "M9" + identifier},
		}),
	}
}

type fixture struct {
	server  *Server
	limiter *engine.RateLimiter
	queue   *jobs.Queue
}

func newFixture(t *testing.T, maxCalls int, throttle servermw.ThrottleConfig) *fixture {
	t.Helper()
	limiter := engine.NewRateLimiter(maxCalls, time.Hour)
	queue := jobs.NewQueue(&engine.Runner{Limiter: limiter, Client: stubLookuper{}}, 4, nil)
	queue.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue.Shutdown(ctx)
	})

	srv := New(Options{
		Host:        "127.0.0.1",
		Port:        0,
		Throttle:    throttle,
		Limiter:     limiter,
		Lookuper:    stubLookuper{},
		Queue:       queue,
		Build:       handlers.BuildInfo{Version: "1.2.3"},
		Environment: "sandbox",
	})
	return &fixture{server: srv, limiter: limiter, queue: queue}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func uploadRequest(t *testing.T, filename string, content []byte, concurrency string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if concurrency != "" {
		require.NoError(t, mw.WriteField("concurrency", concurrency))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	f := newFixture(t, 10, servermw.ThrottleConfig{})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeErrorCode(t, rec))

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/v1/quota", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLookupBodyKeepsUpstreamDocument(t *testing.T) {
	f := newFixture(t, 5, servermw.ThrottleConfig{})

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/v1/lookup", bytes.NewBufferString(`{"regID":"ORDERED"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Body     json.RawMessage `json:"body"`
		Response string          `json:"response"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, orderedPayload, body.Response)

	var compacted bytes.Buffer
	require.NoError(t, json.Compact(&compacted, body.Body))
	assert.Contains(t, compacted.String(), `{"returnCode":"10","data":{"registrationId":"M2"`)
}

func TestLookupRecordsQuotaAndRejectsWhenExhausted(t *testing.T) {
	f := newFixture(t, 1, servermw.ThrottleConfig{})

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/v1/lookup", bytes.NewBufferString(`{"regID":" 200012345A "}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "200012345A", body["identifier"])
	assert.Equal(t, "registered", body["outcome"])
	assert.Equal(t, "M9200012345A", body["registration_id"])
	assert.Equal(t, 0, f.limiter.Remaining(f.limiter.Now()))

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/v1/lookup", bytes.NewBufferString(`{"regID":"200012345A"}`)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, apperrors.CodeRateLimitExceeded, decodeErrorCode(t, rec))
}

func TestLookupValidatesBody(t *testing.T) {
	f := newFixture(t, 10, servermw.ThrottleConfig{})

	for _, payload := range []string{`not json`, `{"regID":"   "}`} {
		rec := f.do(t, httptest.NewRequest(http.MethodPost, "/v1/lookup", bytes.NewBufferString(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
	assert.Equal(t, 10, f.limiter.Remaining(f.limiter.Now()))
}

func TestQuotaReportsSnapshot(t *testing.T) {
	f := newFixture(t, 5, servermw.ThrottleConfig{})
	f.limiter.Record(f.limiter.Now())

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var quota engine.Quota
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&quota))
	assert.Equal(t, 5, quota.Limit)
	assert.Equal(t, 1, quota.Used)
	assert.Equal(t, 4, quota.Remaining)
	assert.NotNil(t, quota.ResetAt)
}

func TestBatchLifecycle(t *testing.T) {
	f := newFixture(t, 10, servermw.ThrottleConfig{})

	csvInput := []byte("UEN,Name\n200012345A,Acme\nBAD,Broken\n,Blank\n")
	rec := f.do(t, uploadRequest(t, "clients.csv", csvInput, "2"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted jobs.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&submitted))
	require.NotEmpty(t, submitted.ID)
	assert.Equal(t, "/v1/batches/"+submitted.ID, rec.Header().Get("Location"))
	assert.Equal(t, 2, submitted.Concurrency)

	require.Eventually(t, func() bool {
		rec := f.do(t, httptest.NewRequest(http.MethodGet, "/v1/batches/"+submitted.ID, nil))
		var snap jobs.Snapshot
		_ = json.NewDecoder(rec.Body).Decode(&snap)
		return snap.State == jobs.StateCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/v1/batches/"+submitted.ID+"/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "clients_results.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"UEN", "Name", table.ColumnReturnCode, table.ColumnRegistrationID, table.ColumnJSONResponse}, records[0])
	assert.Equal(t, "10", records[1][2])
	assert.Equal(t, "M9200012345A", records[1][3])
	assert.Equal(t, "30", records[2][2])
	assert.Equal(t, []string{"", "Blank", "", "", ""}, records[3])

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/v1/batches/"+submitted.ID+"/result?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, table.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
	downloaded, err := table.Read(rec.Body, table.FormatXLSX)
	require.NoError(t, err)
	assert.Len(t, downloaded.Rows, 3)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/v1/batches/"+submitted.ID+"/result?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchSubmitValidation(t *testing.T) {
	f := newFixture(t, 10, servermw.ThrottleConfig{})

	rec := f.do(t, uploadRequest(t, "clients.txt", []byte("UEN\nA\n"), ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, uploadRequest(t, "clients.csv", []byte("UEN\nA\n"), "zero"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, uploadRequest(t, "empty.csv", []byte(""), ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, decodeErrorCode(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewBufferString("plain"))
	rec = f.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUnknownID(t *testing.T) {
	f := newFixture(t, 10, servermw.ThrottleConfig{})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/v1/batches/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/v1/batches/nope/result", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThrottleAppliesToAPIOnly(t *testing.T) {
	f := newFixture(t, 10, servermw.ThrottleConfig{RPS: 0.001, Burst: 1})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	for i := 0; i < 3; i++ {
		rec = f.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestHealthReportsQuotaAndQueue(t *testing.T) {
	f := newFixture(t, 1, servermw.ThrottleConfig{})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.2.3", health.Version)
	assert.Equal(t, "healthy", health.Checks["quota"])
	assert.Equal(t, "healthy", health.Checks["batch_queue"])

	f.limiter.Record(f.limiter.Now())
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "degraded", health.Status)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.queue.Shutdown(ctx))
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersionEndpoint(t *testing.T) {
	f := newFixture(t, 1, servermw.ThrottleConfig{})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body handlers.VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "gstcheck", body.App.Name)
	assert.Equal(t, "1.2.3", body.App.Version)
	assert.Equal(t, "sandbox", body.App.Environment)
}
