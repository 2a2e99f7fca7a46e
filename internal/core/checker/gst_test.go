package checker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gstcheck/gstcheck/internal/core"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
)

func newTestChecker(t *testing.T, url string) *GSTChecker {
	t.Helper()
	c, err := NewGSTChecker(url, "client-id", "client-secret")
	require.NoError(t, err)
	c.Client = &http.Client{}
	c.ToolVersion = "test"
	c.Clock = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestGSTCheckerSendsCredentialsAndPayload(t *testing.T) {
	var gotHeaders http.Header
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"returnCode":10,"data":{"registrationId":"M90312345X","Status":"Registered"}}`))
	}))
	t.Cleanup(srv.Close)

	result := newTestChecker(t, srv.URL).Lookup(context.Background(), "200312345A")

	require.Equal(t, "client-id", gotHeaders.Get("X-IBM-Client-Id"))
	require.Equal(t, "client-secret", gotHeaders.Get("X-IBM-Client-Secret"))
	require.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	require.Equal(t, "application/json", gotHeaders.Get("Accept"))
	require.Equal(t, "gstcheck/test", gotHeaders.Get("User-Agent"))
	require.Equal(t, map[string]string{"clientID": "client-id", "regID": "200312345A"}, gotPayload)

	require.Equal(t, "200312345A", result.Identifier)
	require.Equal(t, http.StatusOK, result.Status)
	require.Equal(t, core.BodyStructured, result.Body.Kind)
	code, ok := result.Body.ReturnCode()
	require.True(t, ok)
	require.Equal(t, "10", code)
	regID, ok := result.Body.RegistrationID()
	require.True(t, ok)
	require.Equal(t, "M90312345X", regID)
	require.True(t, result.Succeeded())
	require.Equal(t, gstSource, result.Provenance.Source)
	require.NotEmpty(t, result.Provenance.CheckID)
}

func TestGSTCheckerWrapsNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>gateway down</html>"))
	}))
	t.Cleanup(srv.Close)

	result := newTestChecker(t, srv.URL).Lookup(context.Background(), "201912345B")

	require.Equal(t, http.StatusBadGateway, result.Status)
	require.Equal(t, core.BodyRaw, result.Body.Kind)
	require.Equal(t, `{"raw":"<html>gateway down</html>"}`, result.Body.Serialize())
	require.False(t, result.Errored())
}

func TestGSTCheckerKeepsErrorStatusWithJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"httpCode":"401","moreInformation":"Client id not registered."}`))
	}))
	t.Cleanup(srv.Close)

	result := newTestChecker(t, srv.URL).Lookup(context.Background(), "X")
	require.Equal(t, http.StatusUnauthorized, result.Status)
	require.Equal(t, core.BodyStructured, result.Body.Kind)
	_, ok := result.Body.ReturnCode()
	require.False(t, ok)
}

func TestGSTCheckerMalformedJSONIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"returnCode":`))
	}))
	t.Cleanup(srv.Close)

	result := newTestChecker(t, srv.URL).Lookup(context.Background(), "X")
	require.Equal(t, core.StatusTransportFailure, result.Status)
	require.Equal(t, core.BodyError, result.Body.Kind)
	require.True(t, strings.HasPrefix(result.Body.Error, "DecodeError: "))
}

func TestGSTCheckerRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	result := newTestChecker(t, url).Lookup(context.Background(), "201912345B")

	require.Equal(t, core.StatusTransportFailure, result.Status)
	require.True(t, result.TransportFailed())
	require.True(t, result.Errored())
	require.NotEmpty(t, result.Body.Error)
	require.Contains(t, result.Body.Serialize(), `"error":`)
}

func TestGSTCheckerTimeoutFailsFast(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := newTestChecker(t, srv.URL)
	c.Timeout = 50 * time.Millisecond

	start := time.Now()
	result := c.Lookup(context.Background(), "X")

	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, core.StatusTransportFailure, result.Status)
	require.True(t, strings.HasPrefix(result.Body.Error, "Timeout: "), result.Body.Error)
}

func TestGSTCheckerCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestChecker(t, srv.URL).Lookup(ctx, "X")
	require.Equal(t, core.StatusTransportFailure, result.Status)
	require.True(t, strings.HasPrefix(result.Body.Error, "Cancelled: "), result.Body.Error)
}

func TestNewGSTCheckerRequiresCredentials(t *testing.T) {
	_, err := NewGSTChecker(Endpoints[EnvSandbox], "", "secret")
	require.Error(t, err)
	require.Equal(t, apperrors.CodeConfigInvalid, apperrors.Code(err))
	require.Contains(t, apperrors.EnsureEnvelope(err).Message, "IRAS_CLIENT_ID")

	_, err = NewGSTChecker(Endpoints[EnvSandbox], "id", " ")
	require.Error(t, err)
	require.Contains(t, apperrors.EnsureEnvelope(err).Message, "IRAS_CLIENT_SECRET")
}

func TestResolveEndpoint(t *testing.T) {
	url, err := ResolveEndpoint(" Sandbox ")
	require.NoError(t, err)
	require.Equal(t, Endpoints[EnvSandbox], url)

	url, err = ResolveEndpoint("PRODUCTION")
	require.NoError(t, err)
	require.Equal(t, Endpoints[EnvProduction], url)

	_, err = ResolveEndpoint("staging")
	require.Error(t, err)
	require.Equal(t, []string{"production", "sandbox"}, Environments())
}
