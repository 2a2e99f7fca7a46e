package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gstcheck/gstcheck/internal/core"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/metrics"
)

const (
	gstSource = "iras-gst"

	// DefaultTimeout bounds a single lookup, connection and body included.
	DefaultTimeout = 30 * time.Second

	headerClientID     = "X-IBM-Client-Id"
	headerClientSecret = "X-IBM-Client-Secret"
)

// GSTChecker looks up GST registrations against the IRAS search endpoint.
// Failures never escape Lookup; they come back as status 0 results.
type GSTChecker struct {
	Client       *http.Client
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	ToolVersion  string
	Clock        func() time.Time
}

// NewGSTChecker builds a checker for baseURL. Both credentials are required.
func NewGSTChecker(baseURL, clientID, clientSecret string) (*GSTChecker, error) {
	var missing []string
	if strings.TrimSpace(clientID) == "" {
		missing = append(missing, "IRAS_CLIENT_ID")
	}
	if strings.TrimSpace(clientSecret) == "" {
		missing = append(missing, "IRAS_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewConfigurationError("missing API credentials: " + strings.Join(missing, ", "))
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, apperrors.NewConfigurationError("lookup endpoint is not configured")
	}

	return &GSTChecker{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Timeout:      DefaultTimeout,
	}, nil
}

type searchRequest struct {
	ClientID string `json:"clientID"`
	RegID    string `json:"regID"`
}

// Lookup sends one search request for identifier.
func (c *GSTChecker) Lookup(ctx context.Context, identifier string) core.LookupResult {
	if ctx == nil {
		ctx = context.Background()
	}
	requestedAt := c.now()

	status, body := c.do(ctx, identifier)

	resolvedAt := c.now()
	metrics.RecordLookup(statusClass(status, body), resolvedAt.Sub(requestedAt))

	return core.LookupResult{
		Identifier: identifier,
		Status:     status,
		Body:       body,
		Provenance: core.Provenance{
			CheckID:     uuid.New().String(),
			RequestedAt: requestedAt,
			ResolvedAt:  resolvedAt,
			Source:      gstSource,
			Server:      c.BaseURL,
			ToolVersion: c.ToolVersion,
		},
	}
}

func (c *GSTChecker) do(ctx context.Context, identifier string) (int, core.Body) {
	if c == nil || c.BaseURL == "" {
		return core.StatusTransportFailure, core.ErrorBody("ConfigurationError: lookup endpoint is not configured")
	}

	payload, err := json.Marshal(searchRequest{ClientID: c.ClientID, RegID: identifier})
	if err != nil {
		return failure(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return failure(err)
	}
	req.Header.Set(headerClientID, c.ClientID)
	req.Header.Set(headerClientSecret, c.ClientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.client().Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(err)
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		body, err := core.DecodeJSON(data)
		if err != nil {
			return core.StatusTransportFailure, core.ErrorBody("DecodeError: " + err.Error())
		}
		return resp.StatusCode, body
	}
	return resp.StatusCode, core.RawBody(string(data))
}

func (c *GSTChecker) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *GSTChecker) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *GSTChecker) userAgent() string {
	if c.ToolVersion == "" {
		return "gstcheck"
	}
	return "gstcheck/" + c.ToolVersion
}

func (c *GSTChecker) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json")
}

func failure(err error) (int, core.Body) {
	return core.StatusTransportFailure, core.ErrorBody(fmt.Sprintf("%s: %s", errorKind(err), err.Error()))
}

// errorKind names the failure class shown in the error body.
func errorKind(err error) string {
	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Timeout"
	case errors.As(err, &dnsErr):
		return "DNSError"
	case errors.As(err, &opErr):
		return "ConnectionError"
	default:
		return "RequestError"
	}
}

func statusClass(status int, body core.Body) string {
	result := core.LookupResult{Status: status, Body: body}
	switch {
	case result.TransportFailed():
		return metrics.StatusClassTransport
	case result.Errored():
		return metrics.StatusClassError
	case result.Succeeded():
		return metrics.StatusClassSuccess
	default:
		return metrics.StatusClassOther
	}
}
