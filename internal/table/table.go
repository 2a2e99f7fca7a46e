// Package table holds the tabular model read from and written to
// spreadsheets, and projects lookup results onto it.
package table

// Table is a header row plus data rows. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// New builds a table, padding ragged rows to a common width.
func New(header []string, rows [][]string) *Table {
	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	t := &Table{
		Header: pad(header, width),
		Rows:   make([][]string, len(rows)),
	}
	for i, row := range rows {
		t.Rows[i] = pad(row, width)
	}
	return t
}

// Columns returns the number of columns.
func (t *Table) Columns() int {
	if t == nil {
		return 0
	}
	return len(t.Header)
}

// Column returns the cells of column idx in row order.
func (t *Table) Column(idx int) []string {
	if t == nil || idx < 0 || idx >= len(t.Header) {
		return nil
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

func pad(cells []string, width int) []string {
	out := make([]string, width)
	copy(out, cells)
	return out
}
