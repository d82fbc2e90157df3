// Package dataset reads and writes labelled training tables in CSV or XLSX
// form. The first row is a header naming the attribute fields and a label
// column; extra columns are ignored.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/fencerpulse/internal/domain/attributes"
	"github.com/okian/fencerpulse/internal/domain/model"
)

// LabelColumn is the header of the target column.
const LabelColumn = "label"

// Table is a labelled set of records.
type Table struct {
	Records []attributes.Record
	Labels  []int
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Records) }

// ReadFile loads a table, choosing the codec from the file extension.
func ReadFile(ctx context.Context, path string, classes []model.Class) (Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return Table{}, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		return ReadCSV(ctx, f, classes)
	case ".xlsx":
		return readXLSX(ctx, path, classes)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ReadCSV parses a CSV table.
func ReadCSV(ctx context.Context, r io.Reader, classes []model.Class) (Table, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	return parseRows(ctx, rows, classes)
}

func readXLSX(ctx context.Context, path string, classes []model.Class) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return parseRows(ctx, rows, classes)
}

func parseRows(ctx context.Context, rows [][]string, classes []model.Class) (Table, error) {
	if len(rows) < 2 {
		return Table{}, ErrNoRows
	}
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.TrimSpace(h)] = i
	}
	want := append(attributes.Names(), LabelColumn)
	for _, name := range want {
		if _, ok := index[name]; !ok {
			return Table{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	t := Table{
		Records: make([]attributes.Record, 0, len(rows)-1),
		Labels:  make([]int, 0, len(rows)-1),
	}
	fields := make(map[string]string, len(want))
	for n, row := range rows[1:] {
		line := n + 2
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Table{}, err
			}
		}
		if blank(row) {
			continue
		}
		for _, name := range want {
			i := index[name]
			if i >= len(row) {
				return Table{}, fmt.Errorf("%w: line %d: missing %s", ErrBadRow, line, name)
			}
			fields[name] = row[i]
		}
		label, err := ParseLabel(fields[LabelColumn], classes)
		if err != nil {
			return Table{}, fmt.Errorf("%w: line %d: %w", ErrBadRow, line, err)
		}
		delete(fields, LabelColumn)
		rec, err := attributes.FromStrings(fields)
		if err != nil {
			return Table{}, fmt.Errorf("%w: line %d: %w", ErrBadRow, line, err)
		}
		t.Records = append(t.Records, rec)
		t.Labels = append(t.Labels, label)
	}
	if t.Len() == 0 {
		return Table{}, ErrNoRows
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseLabel accepts a class index or a class name or display label,
// case-insensitively.
func ParseLabel(s string, classes []model.Class) (int, error) {
	s = strings.TrimSpace(s)
	if k, err := strconv.Atoi(s); err == nil {
		if k < 0 || k >= len(classes) {
			return 0, fmt.Errorf("%w: %d out of range", ErrBadLabel, k)
		}
		return k, nil
	}
	for i, c := range classes {
		if strings.EqualFold(s, c.Name) || strings.EqualFold(s, c.Label) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadLabel, s)
}

func header() []string {
	return append(attributes.Names(), LabelColumn)
}

func cells(r attributes.Record, label int, classes []model.Class) ([]string, error) {
	if label < 0 || label >= len(classes) {
		return nil, fmt.Errorf("%w: %d out of range", ErrBadLabel, label)
	}
	m := r.ToMap()
	out := make([]string, 0, len(m)+1)
	for _, name := range attributes.Names() {
		switch v := m[name].(type) {
		case float64:
			out = append(out, strconv.FormatFloat(v, 'g', -1, 64))
		case string:
			out = append(out, v)
		}
	}
	return append(out, classes[label].Name), nil
}

// WriteCSV writes the table with a header row; labels are written as class
// names.
func WriteCSV(w io.Writer, t Table, classes []model.Class) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header()); err != nil {
		return err
	}
	for i, r := range t.Records {
		row, err := cells(r, t.Labels[i], classes)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table as CSV or XLSX depending on the extension.
func WriteFile(path string, t Table, classes []model.Class) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create csv: %w", err)
		}
		if err := WriteCSV(f, t, classes); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	case ".xlsx":
		return writeXLSX(path, t, classes)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func writeXLSX(path string, t Table, classes []model.Class) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for c, h := range header() {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for i, r := range t.Records {
		row, err := cells(r, t.Labels[i], classes)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
