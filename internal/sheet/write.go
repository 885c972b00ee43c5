package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
)

// Style describes how a table is laid out when written.
type Style struct {
	// BoldHeader renders the first row in bold.
	BoldHeader bool
	// Widths maps a column letter to its width in characters.
	Widths map[string]float64
	// NumericColumns are written as integers when the cell parses as a
	// quantity. Rows before NumericFromRow are left as text.
	NumericColumns []int
	NumericFromRow int
}

// Writer accumulates sheets and saves them as one .xlsx workbook.
type Writer struct {
	file   *excelize.File
	sheets int
	styles map[bool]int
}

// NewWriter creates an empty workbook.
func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile(), styles: make(map[bool]int)}
}

// Close releases the workbook.
func (w *Writer) Close() error {
	return w.file.Close()
}

// cellStyle returns the thin-border Calibri 11 style, bold or regular.
func (w *Writer) cellStyle(bold bool) (int, error) {
	if id, ok := w.styles[bold]; ok {
		return id, nil
	}
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	id, err := w.file.NewStyle(&excelize.Style{
		Border: border,
		Font:   &excelize.Font{Family: "Calibri", Size: 11, Bold: bold},
	})
	if err != nil {
		return 0, err
	}
	w.styles[bold] = id
	return id, nil
}

// AddSheet writes t as a new sheet named t.Name.
func (w *Writer) AddSheet(t *Table, st Style) error {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("Sheet%d", w.sheets+1)
	}

	// The first sheet reuses the default one excelize creates.
	if w.sheets == 0 {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), name); err != nil {
			return fmt.Errorf("name sheet %q: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}
	w.sheets++

	numeric := make(map[int]bool, len(st.NumericColumns))
	for _, c := range st.NumericColumns {
		numeric[c] = true
	}

	regular, err := w.cellStyle(false)
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	bold, err := w.cellStyle(true)
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for r, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = v
			if numeric[c] && r >= st.NumericFromRow {
				if n, ok := ParseQuantity(v); ok {
					values[c] = n
				}
			}
		}
		start, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(name, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
		end, err := excelize.CoordinatesToCellName(len(row), r+1)
		if err != nil {
			return err
		}
		style := regular
		if st.BoldHeader && r == 0 {
			style = bold
		}
		if err := w.file.SetCellStyle(name, start, end, style); err != nil {
			return fmt.Errorf("style row %d: %w", r+1, err)
		}
	}

	cols := make([]string, 0, len(st.Widths))
	for col := range st.Widths {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if err := w.file.SetColWidth(name, col, col, st.Widths[col]); err != nil {
			return fmt.Errorf("set width of %s: %w", col, err)
		}
	}
	return nil
}

// SaveAs writes the workbook, creating the parent directory if needed.
func (w *Writer) SaveAs(path string) error {
	if w.sheets == 0 {
		return fmt.Errorf("save %s: workbook has no sheets", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteFile saves tables as a single workbook at path.
func WriteFile(path string, st Style, tables ...*Table) error {
	w := NewWriter()
	defer w.Close()
	for _, t := range tables {
		if err := w.AddSheet(t, st); err != nil {
			return err
		}
	}
	return w.SaveAs(path)
}
