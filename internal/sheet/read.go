package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are not Excel workbooks.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Supported input extensions, lower case.
const (
	ExtXLS  = ".xls"
	ExtXLSX = ".xlsx"
	ExtXLSM = ".xlsm"
)

// IsWorkbook reports whether path has a readable workbook extension.
func IsWorkbook(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXLS, ExtXLSX, ExtXLSM:
		return true
	}
	return false
}

// Read loads the first sheet of the workbook at path.
func Read(path string) (*Table, error) {
	tables, err := read(path, 1)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	return tables[0], nil
}

// ReadAll loads every sheet of the workbook at path in workbook order.
func ReadAll(path string) ([]*Table, error) {
	return read(path, -1)
}

func read(path string, limit int) ([]*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXLS:
		return readXLS(path, limit)
	case ExtXLSX, ExtXLSM:
		return readXLSX(path, limit)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
}

func readXLSX(path string, limit int) ([]*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		t := &Table{Name: name, Rows: make([]Row, len(rows))}
		for i, r := range rows {
			t.Rows[i] = Row(r)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func readXLS(path string, limit int) ([]*Table, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	count := wb.NumSheets()
	if limit > 0 && count > limit {
		count = limit
	}

	tables := make([]*Table, 0, count)
	for i := 0; i < count; i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		t := &Table{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			src := ws.Row(r)
			if src == nil {
				t.Rows = append(t.Rows, Row{})
				continue
			}
			row := make(Row, src.LastCol())
			for c := src.FirstCol(); c < src.LastCol(); c++ {
				row[c] = src.Col(c)
			}
			t.Rows = append(t.Rows, row)
		}
		t.Rows = trimTrailingEmpty(t.Rows)
		tables = append(tables, t)
	}
	return tables, nil
}

// trimTrailingEmpty drops blank rows at the end of a sheet so both readers
// agree on the sheet length.
func trimTrailingEmpty(rows []Row) []Row {
	end := len(rows)
	for end > 0 && rowBlank(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func rowBlank(r Row) bool {
	for _, v := range r {
		if !IsEmpty(v) {
			return false
		}
	}
	return true
}
