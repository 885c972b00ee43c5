// Package processor implements step 1 of the pipeline: it drops rows with
// no quantity data, merges duplicate parts and keeps the columns the
// nesting step needs.
package processor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"xlsconv/internal/config"
	"xlsconv/internal/logging"
	"xlsconv/internal/sheet"
)

// ErrNoRows is returned when no data row survives filtering.
var ErrNoRows = errors.New("no data rows left after filtering")

// Options holds zero-based column indexes of the source workbook.
type Options struct {
	Required []int
	Key      int
	Sum      int
	Keep     []int
	Widths   map[string]float64
}

// DefaultOptions matches the BOM export: D/E required, key I, sum J,
// keep A,D,E,G,H,I,J.
func DefaultOptions() Options {
	opts, err := OptionsFromConfig(config.DefaultColumnsConfig())
	if err != nil {
		panic(err)
	}
	return opts
}

// OptionsFromConfig resolves the column letters of cfg.
func OptionsFromConfig(cfg config.ColumnsConfig) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("columns: %w", err)
	}
	required, _ := sheet.ColumnIndexes(cfg.Required)
	key, _ := sheet.ColumnIndex(cfg.Key)
	sum, _ := sheet.ColumnIndex(cfg.Sum)
	keep, _ := sheet.ColumnIndexes(cfg.Keep)
	return Options{
		Required: required,
		Key:      key,
		Sum:      sum,
		Keep:     keep,
		Widths:   cfg.Widths,
	}, nil
}

// SumOutputColumn returns the position of the sum column in the output,
// or -1 when it is not kept.
func (o Options) SumOutputColumn() int {
	for i, c := range o.Keep {
		if c == o.Sum {
			return i
		}
	}
	return -1
}

// Stats summarises what step 1 did to a table.
type Stats struct {
	InputRows    int
	EmptyRemoved int
	KeyMissing   int
	Merged       int
	OutputRows   int
	QuantityIn   int
	QuantityOut  int
}

func (s Stats) String() string {
	return fmt.Sprintf("rows %d -> %d (empty %d, no key %d, merged %d), quantity %d -> %d",
		s.InputRows, s.OutputRows, s.EmptyRemoved, s.KeyMissing, s.Merged, s.QuantityIn, s.QuantityOut)
}

func checkColumns(t *sheet.Table, cols ...int) error {
	width := t.Width()
	for _, c := range cols {
		if c < 0 || c >= width {
			return fmt.Errorf("column %s is outside the table (%d columns)", sheet.ColumnName(c), width)
		}
	}
	return nil
}

// RemoveEmptyRows keeps the rows where at least one of cols is non-empty.
// It returns the filtered copy and the number of removed rows.
func RemoveEmptyRows(t *sheet.Table, cols ...int) (*sheet.Table, int, error) {
	if len(cols) == 0 {
		return nil, 0, fmt.Errorf("no columns to check")
	}
	if err := checkColumns(t, cols...); err != nil {
		return nil, 0, err
	}

	out := &sheet.Table{Name: t.Name, Rows: make([]sheet.Row, 0, t.Len())}
	for _, row := range t.Rows {
		for _, c := range cols {
			if !row.Empty(c) {
				out.Rows = append(out.Rows, row.Clone())
				break
			}
		}
	}

	removed := t.Len() - out.Len()
	logging.Processor("Removed %d empty rows, %d left", removed, out.Len())
	return out, removed, nil
}

type mergedRow struct {
	row sheet.Row
	sum int
}

// MergeDuplicates collapses rows sharing the key column. The first row is
// a header and passes through. Each key keeps the cells and position of its
// first occurrence, and the sum column becomes the total over all
// occurrences. Only opts.Keep columns are returned.
func MergeDuplicates(t *sheet.Table, opts Options) (*sheet.Table, Stats, error) {
	stats := Stats{InputRows: t.Len()}

	cols := append([]int{opts.Key, opts.Sum}, opts.Keep...)
	if err := checkColumns(t, cols...); err != nil {
		return nil, stats, err
	}

	var (
		order  []string
		merged = make(map[string]*mergedRow)
	)
	for i, row := range t.Data() {
		q := sheet.Quantity(row.Cell(opts.Sum))
		key := strings.TrimSpace(row.Cell(opts.Key))
		if key == "" {
			stats.KeyMissing++
			logging.ProcessorDebug("Row %d has no key, dropped", i+2)
			continue
		}
		stats.QuantityIn += q

		if m, ok := merged[key]; ok {
			m.sum += q
			stats.Merged++
			logging.ProcessorDebug("Duplicate %q: +%d = %d", key, q, m.sum)
			continue
		}
		merged[key] = &mergedRow{row: row, sum: q}
		order = append(order, key)
	}

	if len(order) == 0 {
		return nil, stats, ErrNoRows
	}

	out := &sheet.Table{Name: t.Name, Rows: make([]sheet.Row, 0, len(order)+1)}
	out.Rows = append(out.Rows, t.Header().Project(opts.Keep))
	for _, key := range order {
		m := merged[key]
		row := m.row.Clone()
		for len(row) <= opts.Sum {
			row = append(row, "")
		}
		row[opts.Sum] = strconv.Itoa(m.sum)
		out.Rows = append(out.Rows, row.Project(opts.Keep))
		stats.QuantityOut += m.sum
	}
	stats.OutputRows = out.Len()

	logging.Processor("Merged duplicates: %d unique keys, %d duplicates", len(order), stats.Merged)
	return out, stats, nil
}

// Process runs empty-row removal and duplicate merging.
func Process(t *sheet.Table, opts Options) (*sheet.Table, Stats, error) {
	cleaned, removed, err := RemoveEmptyRows(t, opts.Required...)
	if err != nil {
		return nil, Stats{InputRows: t.Len()}, fmt.Errorf("remove empty rows: %w", err)
	}
	out, stats, err := MergeDuplicates(cleaned, opts)
	stats.InputRows = t.Len()
	stats.EmptyRemoved = removed
	if err != nil {
		return nil, stats, fmt.Errorf("merge duplicates: %w", err)
	}
	logging.Processor("Step 1 done: %s", stats)
	return out, stats, nil
}
