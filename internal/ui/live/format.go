package live

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gstcheck/gstcheck/internal/core"
	"github.com/gstcheck/gstcheck/internal/output"
)

// outcomeLabel maps a result to its display label.
func outcomeLabel(result core.LookupResult) string {
	return output.Outcome(result)
}

// resultDetail picks the most useful short detail for a row.
func resultDetail(result core.LookupResult) string {
	if result.Body.Kind == core.BodyError {
		return truncate(result.Body.Error, 60)
	}
	if name, ok := result.Body.DataField("name"); ok && name != "" {
		return truncate(name, 60)
	}
	if regID, ok := result.Body.RegistrationID(); ok {
		return regID
	}
	return "HTTP " + strconv.Itoa(result.Status)
}

// truncate shortens text for display.
func truncate(text string, limit int) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if len(normalized) <= limit {
		return normalized
	}
	return normalized[:limit-3] + "..."
}

// formatElapsed renders elapsed run time.
func formatElapsed(state State, now time.Time) string {
	if state.StartedAt.IsZero() {
		return ""
	}
	end := now
	if !state.FinishedAt.IsZero() {
		end = state.FinishedAt
	}
	return end.Sub(state.StartedAt).Round(100 * time.Millisecond).String()
}

// outcomeStyle selects a style for an outcome label.
func outcomeStyle(outcome string) lipgloss.Style {
	color := lipgloss.Color("244")
	switch outcome {
	case "registered":
		color = lipgloss.Color("42")
	case "warning", "not found":
		color = lipgloss.Color("220")
	case "error", "transport error":
		color = lipgloss.Color("196")
	}
	return lipgloss.NewStyle().Foreground(color)
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
