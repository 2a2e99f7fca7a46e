package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gstcheck/gstcheck/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatReport renders the run summary.
func (f *TableFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Batch summary")
	t.AppendRow(table.Row{"Input", report.Input})
	if report.Output != "" {
		t.AppendRow(table.Row{"Output", report.Output})
	}
	t.AppendRow(table.Row{"Environment", report.Environment})
	t.AppendSeparator()
	for _, row := range summaryRows(report) {
		t.AppendRow(table.Row{row[0], row[1]})
	}
	if report.Interrupted {
		t.AppendFooter(table.Row{"", "interrupted: partial results"})
	}
	return t.Render(), nil
}

// FormatLookup renders a single lookup.
func (f *TableFormatter) FormatLookup(result core.LookupResult) (string, error) {
	view := NewLookupView(result)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Identifier", "HTTP", "Outcome", "Return code", "Registration ID", "Name"})
	t.AppendRow(table.Row{
		view.Identifier,
		view.Status,
		view.Outcome,
		view.ReturnCode,
		view.RegistrationID,
		view.Name,
	})
	if result.Errored() {
		t.AppendFooter(table.Row{"", "", "", "", "", truncate(view.Response, 60)})
	}
	return t.Render(), nil
}

func summaryRows(report *Report) [][2]string {
	s := report.Summary
	return [][2]string{
		{"Rows", fmt.Sprint(s.Rows)},
		{"Identifiers", fmt.Sprint(s.Identifiers)},
		{"Dispatched", fmt.Sprint(s.Dispatched)},
		{"Skipped (rate limit)", fmt.Sprint(s.Skipped)},
		{"Successful", fmt.Sprint(s.Successful)},
		{"Errors", fmt.Sprint(s.Errors)},
		{"Other responses", fmt.Sprint(s.Others)},
		{"Quota remaining", fmt.Sprint(report.QuotaRemaining)},
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
