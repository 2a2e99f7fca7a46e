package output

import (
	"fmt"
	"strings"

	"github.com/gstcheck/gstcheck/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders the run summary as Markdown.
func (f *MarkdownFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Batch summary: %s\n\n", escapeMarkdownCell(report.Input)))
	if report.Output != "" {
		sb.WriteString(fmt.Sprintf("Results written to `%s` (%s).\n\n", report.Output, report.Environment))
	}
	sb.WriteString("| Metric | Count |\n")
	sb.WriteString("|--------|-------|\n")
	for _, row := range summaryRows(report) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", escapeMarkdownCell(row[0]), escapeMarkdownCell(row[1])))
	}
	if report.Interrupted {
		sb.WriteString("\n**Interrupted**: partial results only.\n")
	}
	return sb.String(), nil
}

// FormatLookup renders a lookup as Markdown.
func (f *MarkdownFormatter) FormatLookup(result core.LookupResult) (string, error) {
	view := NewLookupView(result)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(view.Identifier)))
	sb.WriteString("| HTTP | Outcome | Return code | Registration ID | Name |\n")
	sb.WriteString("|------|---------|-------------|-----------------|------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
		view.Status,
		escapeMarkdownCell(view.Outcome),
		escapeMarkdownCell(view.ReturnCode),
		escapeMarkdownCell(view.RegistrationID),
		escapeMarkdownCell(view.Name),
	))
	sb.WriteString(fmt.Sprintf("\n```json\n%s\n```\n", view.Response))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
