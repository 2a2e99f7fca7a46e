package table

import (
	"github.com/gstcheck/gstcheck/internal/core"
)

// Derived column names, in the order they are appended.
const (
	ColumnReturnCode     = "response-status"
	ColumnRegistrationID = "response-registrationId"
	ColumnJSONResponse   = "json-response"
)

// KeyColumn is the column holding identifiers.
const KeyColumn = 0

// SkippedMarker fills json-response for rows whose identifier was cut by the
// rate limit before dispatch.
const SkippedMarker = `{"skipped":"rate limit reached"}`

// DerivedColumns lists the projected columns in order.
func DerivedColumns() []string {
	return []string{ColumnReturnCode, ColumnRegistrationID, ColumnJSONResponse}
}

// Project returns a copy of t with the three derived columns filled from
// results. Rows are matched on the trimmed first column; when an identifier
// has several results the first one wins. Identifiers listed in skipped that
// have no result carry SkippedMarker. Existing derived columns are
// overwritten in place so re-projecting an output file does not duplicate them.
func Project(t *Table, results []core.LookupResult, skipped []string) *Table {
	out := t.Clone()
	if out == nil {
		out = &Table{}
	}

	byID := make(map[string]core.LookupResult, len(results))
	for _, result := range results {
		id := core.NormalizeIdentifier(result.Identifier)
		if _, seen := byID[id]; seen {
			continue
		}
		byID[id] = result
	}

	skippedSet := make(map[string]struct{}, len(skipped))
	for _, id := range skipped {
		skippedSet[core.NormalizeIdentifier(id)] = struct{}{}
	}

	columns := make([]int, 0, 3)
	for _, name := range DerivedColumns() {
		columns = append(columns, out.ensureColumn(name))
	}

	for _, row := range out.Rows {
		var id string
		if len(row) > KeyColumn {
			id = core.NormalizeIdentifier(row[KeyColumn])
		}

		values := [3]string{}
		if result, ok := byID[id]; ok && id != "" {
			values = derive(result)
		} else if _, ok := skippedSet[id]; ok && id != "" {
			values[2] = SkippedMarker
		}

		for i, col := range columns {
			row[col] = values[i]
		}
	}
	return out
}

func derive(result core.LookupResult) [3]string {
	code, _ := result.Body.ReturnCode()
	regID, _ := result.Body.RegistrationID()
	return [3]string{code, regID, result.Body.Serialize()}
}

// ensureColumn returns the index of name, appending an empty column if absent.
func (t *Table) ensureColumn(name string) int {
	if idx := t.ColumnIndex(name); idx >= 0 {
		return idx
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}
