package core

import (
	"strings"
	"time"
)

// Return codes reported by the GST registration API.
const (
	ReturnCodeSuccess = "10"
	ReturnCodeWarning = "20"
	ReturnCodeFailure = "30"
)

// StatusTransportFailure marks a lookup that never produced a server response.
const StatusTransportFailure = 0

// Provenance captures metadata about how a lookup was resolved.
type Provenance struct {
	CheckID     string    `json:"check_id"`
	RequestedAt time.Time `json:"requested_at"`
	ResolvedAt  time.Time `json:"resolved_at"`
	Source      string    `json:"source"`
	Server      string    `json:"server,omitempty"`
	ToolVersion string    `json:"tool_version,omitempty"`
}

// LookupResult is the outcome of one identifier lookup.
type LookupResult struct {
	Identifier string     `json:"identifier"`
	Status     int        `json:"status"`
	Body       Body       `json:"body"`
	Provenance Provenance `json:"provenance"`
}

// TransportFailed reports whether the lookup failed before a response arrived.
func (r LookupResult) TransportFailed() bool {
	return r.Status == StatusTransportFailure
}

// Succeeded reports whether the remote service answered with returnCode 10.
func (r LookupResult) Succeeded() bool {
	code, ok := r.Body.ReturnCode()
	return ok && code == ReturnCodeSuccess
}

// Errored reports whether the lookup failed locally or the body carries an error.
func (r LookupResult) Errored() bool {
	return r.TransportFailed() || r.Body.HasError()
}

// NormalizeIdentifier trims surrounding whitespace from a raw cell value.
func NormalizeIdentifier(raw string) string {
	return strings.TrimSpace(raw)
}

// Identifiers normalizes raw values and drops empty ones, preserving order and duplicates.
func Identifiers(raw []string) []string {
	ids := make([]string, 0, len(raw))
	for _, value := range raw {
		id := NormalizeIdentifier(value)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
