package output

import (
	"fmt"
	"strings"

	"github.com/gstcheck/gstcheck/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// Report describes a finished (or interrupted) batch run.
type Report struct {
	Input          string       `json:"input" yaml:"input"`
	Output         string       `json:"output,omitempty" yaml:"output,omitempty"`
	Environment    string       `json:"environment" yaml:"environment"`
	Summary        core.Summary `json:"summary" yaml:"summary"`
	QuotaRemaining int          `json:"quota_remaining" yaml:"quota_remaining"`
	Interrupted    bool         `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// Formatter renders run reports and single lookups.
type Formatter interface {
	FormatReport(report *Report) (string, error)
	FormatLookup(result core.LookupResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// LookupView is the flattened form of a lookup used by every formatter.
type LookupView struct {
	Identifier     string `json:"identifier" yaml:"identifier"`
	Status         int    `json:"status" yaml:"status"`
	Outcome        string `json:"outcome" yaml:"outcome"`
	ReturnCode     string `json:"return_code,omitempty" yaml:"return_code,omitempty"`
	RegistrationID string `json:"registration_id,omitempty" yaml:"registration_id,omitempty"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	GSTStatus      string `json:"gst_status,omitempty" yaml:"gst_status,omitempty"`
	Response       string `json:"response" yaml:"response"`
}

// NewLookupView flattens result.
func NewLookupView(result core.LookupResult) LookupView {
	code, _ := result.Body.ReturnCode()
	regID, _ := result.Body.RegistrationID()
	name, _ := result.Body.DataField("name")
	status, _ := result.Body.DataField("Status")

	return LookupView{
		Identifier:     result.Identifier,
		Status:         result.Status,
		Outcome:        Outcome(result),
		ReturnCode:     code,
		RegistrationID: regID,
		Name:           name,
		GSTStatus:      status,
		Response:       result.Body.Serialize(),
	}
}

// Outcome labels a lookup the way the run summary counts it.
func Outcome(result core.LookupResult) string {
	switch {
	case result.Succeeded():
		return "registered"
	case result.TransportFailed():
		return "transport error"
	case result.Errored():
		return "error"
	default:
		if code, ok := result.Body.ReturnCode(); ok {
			switch code {
			case core.ReturnCodeWarning:
				return "warning"
			case core.ReturnCodeFailure:
				return "not found"
			}
		}
		return "other"
	}
}
