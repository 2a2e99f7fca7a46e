package output

import (
	"encoding/json"

	"github.com/gstcheck/gstcheck/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders the run summary as JSON.
func (f *JSONFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatLookup renders a lookup as JSON, embedding the response body as a document.
func (f *JSONFormatter) FormatLookup(result core.LookupResult) (string, error) {
	return f.marshal(struct {
		LookupView
		Response core.Body `json:"response"`
	}{NewLookupView(result), result.Body})
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
