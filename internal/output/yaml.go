package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gstcheck/gstcheck/internal/core"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatReport renders the run summary as YAML.
func (f *YAMLFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return marshalYAML(report)
}

// FormatLookup renders a lookup as YAML.
func (f *YAMLFormatter) FormatLookup(result core.LookupResult) (string, error) {
	return marshalYAML(NewLookupView(result))
}

func marshalYAML(value any) (string, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
