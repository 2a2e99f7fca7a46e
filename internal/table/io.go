package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/gstcheck/gstcheck/internal/errors"
)

// Format identifies a spreadsheet encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ResultsSheet names the worksheet written to xlsx output.
const ResultsSheet = "Results"

// ParseFormat accepts a format name or file extension, with or without the dot.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")) {
	case "xlsx", "":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported table format %q (expected xlsx or csv)", value)
	}
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("cannot infer table format from %q", path)
	}
	return ParseFormat(ext)
}

// ContentType returns the MIME type for downloads.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// DefaultOutputPath returns <dir>/<stem>_results<ext> for input.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	return stem + "_results" + ext
}

// ReadFile loads the first sheet of an xlsx file or a csv file. The first
// row is the header.
func ReadFile(path string) (*Table, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, apperrors.NewInputError(err.Error())
	}

	f, err := os.Open(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return nil, apperrors.NewInputError(fmt.Sprintf("cannot open input table %s: %v", path, err))
	}
	defer f.Close() // nolint:errcheck // read-only handle

	return Read(f, format)
}

// Read decodes a table from r.
func Read(r io.Reader, format Format) (*Table, error) {
	var rows [][]string
	var err error
	switch format {
	case FormatCSV:
		rows, err = readCSV(r)
	case FormatXLSX:
		rows, err = readXLSX(r)
	default:
		return nil, apperrors.NewInputError(fmt.Sprintf("unsupported table format %q", format))
	}
	if err != nil {
		return nil, apperrors.NewInputError(fmt.Sprintf("cannot read %s table: %v", format, err))
	}

	if len(rows) == 0 {
		return &Table{}, nil
	}
	return New(rows[0], rows[1:]), nil
}

// WriteFile encodes t to path using the format implied by its extension.
func WriteFile(path string, t *Table) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return err
	}
	if err := Write(f, t, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write encodes t to w.
func Write(w io.Writer, t *Table, format Format) error {
	if t == nil {
		t = &Table{}
	}
	switch format {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatXLSX:
		return writeXLSX(w, t)
	default:
		return fmt.Errorf("unsupported table format %q", format)
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func writeCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint:errcheck // in-memory workbook

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func writeXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close() // nolint:errcheck // in-memory workbook

	if err := f.SetSheetName(f.GetSheetName(0), ResultsSheet); err != nil {
		return err
	}

	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &values); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}
