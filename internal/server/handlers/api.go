package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gstcheck/gstcheck/internal/core"
	"github.com/gstcheck/gstcheck/internal/core/engine"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/metrics"
	"github.com/gstcheck/gstcheck/internal/output"
	"github.com/gstcheck/gstcheck/internal/server/jobs"
	"github.com/gstcheck/gstcheck/internal/table"
)

// DefaultMaxUploadBytes bounds batch uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// API serves the /v1 routes. All handlers share one RateLimiter so single
// lookups and batches draw from the same quota.
type API struct {
	Limiter        *engine.RateLimiter
	Lookuper       engine.Lookuper
	Queue          *jobs.Queue
	MaxUploadBytes int64
}

// LookupRequest is the POST /v1/lookup body.
type LookupRequest struct {
	RegID string `json:"regID"`
}

// Lookup serves POST /v1/lookup.
func (a *API) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, 4096))
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be JSON with a regID field"))
		return
	}
	id := strings.TrimSpace(req.RegID)
	if id == "" {
		respondWithError(w, r, apperrors.NewInputError("regID is required"))
		return
	}

	if !a.Limiter.TryRecord(a.Limiter.Now()) {
		a.rateLimited(w, r)
		return
	}

	result := a.Lookuper.Lookup(r.Context(), id)
	result.Identifier = id
	writeJSON(w, http.StatusOK, lookupResponse{
		LookupView: output.NewLookupView(result),
		Body:       result.Body,
	})
}

type lookupResponse struct {
	output.LookupView
	Body core.Body `json:"body"`
}

// Quota serves GET /v1/quota.
func (a *API) Quota(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Limiter.Snapshot(a.Limiter.Now()))
}

// SubmitBatch serves POST /v1/batches with a multipart "file" part and an
// optional "concurrency" field.
func (a *API) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			respondWithError(w, r, apperrors.NewInputError(fmt.Sprintf("upload exceeds %d bytes", limit)))
			return
		}
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "expected a multipart form upload"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	concurrency := 0
	if raw := strings.TrimSpace(r.FormValue("concurrency")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, r, apperrors.NewInputError("concurrency must be a positive integer"))
			return
		}
		concurrency = n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "missing file part"))
		return
	}
	defer func() { _ = file.Close() }()

	format, err := table.FormatFromPath(header.Filename)
	if err != nil {
		respondWithError(w, r, apperrors.NewInputError(err.Error()))
		return
	}
	t, err := table.Read(file, format)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	snapshot, err := a.Queue.Submit(header.Filename, format, t, concurrency)
	switch {
	case err == nil:
	case stderrors.Is(err, jobs.ErrQueueFull), stderrors.Is(err, jobs.ErrQueueClosed):
		respondWithError(w, r, apperrors.NewUnavailableError(err.Error()))
		return
	default:
		respondWithError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/batches/"+snapshot.ID)
	writeJSON(w, http.StatusAccepted, snapshot)
}

// GetBatch serves GET /v1/batches/{id}.
func (a *API) GetBatch(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := a.Queue.Get(chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, r, apperrors.NewNotFoundError("batch not found"))
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// BatchResult serves GET /v1/batches/{id}/result. The format query picks
// xlsx or csv and defaults to the uploaded format.
func (a *API) BatchResult(w http.ResponseWriter, r *http.Request) {
	out, snapshot, err := a.Queue.Result(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	format := snapshot.Format
	if raw := r.URL.Query().Get("format"); raw != "" {
		if format, err = table.ParseFormat(raw); err != nil {
			respondWithError(w, r, apperrors.NewInputError(err.Error()))
			return
		}
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename=%q`, table.DefaultOutputPath(baseName(snapshot.Input, format))))
	w.WriteHeader(http.StatusOK)
	_ = table.Write(w, out, format)
}

// QuotaHealth reports degraded while the lookup quota is exhausted.
func QuotaHealth(limiter *engine.RateLimiter) HealthChecker {
	return HealthCheckFunc(func(context.Context) error {
		if limiter.Remaining(limiter.Now()) <= 0 {
			return fmt.Errorf("lookup quota exhausted: %w", ErrDegraded)
		}
		return nil
	})
}

func (a *API) rateLimited(w http.ResponseWriter, r *http.Request) {
	quota := a.Limiter.Snapshot(a.Limiter.Now())
	if quota.ResetAt != nil {
		wait := time.Until(*quota.ResetAt)
		if wait < time.Second {
			wait = time.Second
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
	}
	metrics.RecordQuotaRejection(metrics.SurfaceLookup)
	envelope := apperrors.NewRateLimitExceededError("rate limit reached: no lookups remaining in the current window")
	envelope = envelope.WithDetails(map[string]interface{}{
		"limit":     quota.Limit,
		"remaining": quota.Remaining,
	})
	respondWithError(w, r, envelope)
}

// baseName strips directories and forces the extension of format.
func baseName(input string, format table.Format) string {
	name := input
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}
	if name == "" {
		name = "batch"
	}
	return name + "." + string(format)
}
