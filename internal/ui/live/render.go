package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the batch header line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := "GST lookup"
	if state.Input != "" {
		line += " | " + state.Input
	}
	if state.Environment != "" {
		line += " | " + state.Environment
	}
	if elapsed := formatElapsed(state, now); elapsed != "" {
		line += " | Elapsed: " + elapsed
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderCounts renders the outcome counts line.
func renderCounts(state State, noColor bool) string {
	line := "Successful: " + fmtInt(state.Counts.Successful) +
		" Errors: " + fmtInt(state.Counts.Errors) +
		" Other: " + fmtInt(state.Counts.Others)
	return stylize(line, noColor, lipgloss.Color("242"))
}

// renderFooter renders interrupt and completion hints.
func renderFooter(state State, noColor bool) string {
	switch {
	case state.Interrupted:
		return stylize("Interrupted: waiting for in-flight lookups...", noColor, lipgloss.Color("196"))
	case !state.FinishedAt.IsZero():
		return stylize("Done.", noColor, lipgloss.Color("42"))
	default:
		return stylize("ctrl+c to stop", noColor, lipgloss.Color("240"))
	}
}

// defaultColumns sizes the recent-results table for width.
func defaultColumns(width int) []table.Column {
	detail := width - 14 - 16 - 6
	if detail < 20 {
		detail = 20
	}
	return []table.Column{
		{Title: "Identifier", Width: 14},
		{Title: "Outcome", Width: 16},
		{Title: "Detail", Width: detail},
	}
}

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	styles := table.DefaultStyles()
	if noColor {
		return styles
	}
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// rowsForState converts UI state into table rows.
func rowsForState(state State, noColor bool) []table.Row {
	rows := make([]table.Row, 0, len(state.Recent))
	for _, row := range state.Recent {
		outcome := row.Outcome
		if !noColor {
			outcome = outcomeStyle(row.Outcome).Render(outcome)
		}
		rows = append(rows, table.Row{row.Identifier, outcome, row.Detail})
	}
	return rows
}
