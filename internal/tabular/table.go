// Package tabular parses uploaded recipient files into an in-memory table.
// It knows nothing about emails or names; column heuristics live in the
// recipients package.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFormat is returned for file extensions other than
// .csv, .xlsx and .xls.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ProcessingError wraps a parse failure of an otherwise supported file
type ProcessingError struct {
	Filename string
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("error processing file %s: %v", e.Filename, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Table is an immutable tabular structure with named columns and string
// cell values. Missing cells are empty strings.
type Table struct {
	columns []string
	rows    [][]string
}

// Parse reads a tabular file, choosing the parser by file extension.
// CSV input is decoded as UTF-8 first and retried as Latin-1 when the
// bytes are not valid UTF-8.
func Parse(filename string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		t, err := parseCSV(r)
		if err != nil {
			return nil, &ProcessingError{Filename: filename, Err: err}
		}
		return t, nil
	case ".xlsx", ".xls":
		t, err := parseExcel(r)
		if err != nil {
			return nil, &ProcessingError{Filename: filename, Err: err}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func parseCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode input: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	return newTable(records[0], records[1:]), nil
}

func parseExcel(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	return newTable(rows[0], rows[1:]), nil
}

func newTable(header []string, records [][]string) *Table {
	columns := make([]string, len(header))
	copy(columns, header)

	// Pad short rows so every row has one cell per column.
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		copy(row, rec)
		rows[i] = row
	}

	return &Table{columns: columns, rows: rows}
}

// Columns returns the column names in their original order
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// NumRows returns the number of data rows
func (t *Table) NumRows() int {
	return len(t.rows)
}

// Cell returns the value at the given row and column index,
// or an empty string when out of range
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.columns) {
		return ""
	}
	return t.rows[row][col]
}

// ColumnValues returns all cell values of one column, top to bottom
func (t *Table) ColumnValues(col int) []string {
	if col < 0 || col >= len(t.columns) {
		return nil
	}
	out := make([]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.rows[i][col]
	}
	return out
}
