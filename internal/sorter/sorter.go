// Package sorter implements step 2 of the pipeline: it groups processed
// rows by sheet thickness and lays every group out as a nesting job sheet.
package sorter

import (
	"fmt"
	"strings"

	"xlsconv/internal/config"
	"xlsconv/internal/logging"
	"xlsconv/internal/sheet"
)

// Options holds the resolved nesting layout.
type Options struct {
	MaterialCol    int
	PriorityCol    int
	VersionCol     int
	DesignationCol int
	QuantityCol    int

	Thicknesses    []string
	Machines       map[string]string
	DrawingBase    string
	Material       string
	UnmatchedSheet string
	HeaderMarkers  []string
	Replacements   map[string]string
}

// DefaultOptions returns the shop floor layout.
func DefaultOptions() Options {
	opts, err := OptionsFromConfig(config.DefaultNestingConfig())
	if err != nil {
		panic(err)
	}
	return opts
}

// OptionsFromConfig resolves the column letters of cfg.
func OptionsFromConfig(cfg config.NestingConfig) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("nesting: %w", err)
	}
	col := func(s string) int {
		i, _ := sheet.ColumnIndex(s)
		return i
	}
	return Options{
		MaterialCol:    col(cfg.MaterialColumn),
		PriorityCol:    col(cfg.PriorityColumn),
		VersionCol:     col(cfg.VersionColumn),
		DesignationCol: col(cfg.DesignationColumn),
		QuantityCol:    col(cfg.QuantityColumn),
		Thicknesses:    cfg.Thicknesses,
		Machines:       cfg.Machines,
		DrawingBase:    cfg.DrawingBase,
		Material:       cfg.Material,
		UnmatchedSheet: cfg.UnmatchedSheet,
		HeaderMarkers:  cfg.HeaderMarkers,
		Replacements:   cfg.Replacements,
	}, nil
}

func (o Options) preferred(thickness string) bool {
	for _, t := range o.Thicknesses {
		if t == thickness {
			return true
		}
	}
	return false
}

// IsHeaderLike reports whether a row repeats a header instead of holding
// a part.
func (o Options) IsHeaderLike(row sheet.Row) bool {
	first := strings.TrimSpace(row.Cell(0))
	for _, m := range o.HeaderMarkers {
		if first == m {
			return true
		}
	}
	return false
}

// SheetGroup is the rows of one output sheet.
type SheetGroup struct {
	Name      string // thickness label or the unmatched sheet name
	Unmatched bool
	Rows      []sheet.Row
	Quantity  int
}

// Report compares the quantity read with the quantity grouped.
type Report struct {
	Input     int
	Grouped   int
	Unmatched int
}

// Balanced reports whether no quantity was lost.
func (r Report) Balanced() bool {
	return r.Input == r.Grouped+r.Unmatched
}

func (r Report) String() string {
	return fmt.Sprintf("input %d, grouped %d, unmatched %d", r.Input, r.Grouped, r.Unmatched)
}

// Result is the outcome of grouping a processed table.
type Result struct {
	// Groups in sheet order: preferred thicknesses, other thicknesses in
	// first-seen order, then the unmatched sheet when it has real rows.
	Groups    []SheetGroup
	// Unmatched holds every row without a thickness, header-like rows
	// included.
	Unmatched []sheet.Row
	Report    Report
}

// Group skips the header row and groups the rest by the thickness found
// in the material column.
func Group(t *sheet.Table, opts Options) *Result {
	res := &Result{}

	var seen []string
	byThickness := make(map[string]*SheetGroup)

	for i, row := range t.Data() {
		q := sheet.Quantity(row.Cell(opts.QuantityCol))
		res.Report.Input += q

		thk, ok := ExtractThickness(row.Cell(opts.MaterialCol))
		if !ok {
			res.Unmatched = append(res.Unmatched, row)
			res.Report.Unmatched += q
			logging.SorterWarn("Row %d: no thickness in %q", i+2, row.Cell(opts.MaterialCol))
			continue
		}
		g, ok := byThickness[thk]
		if !ok {
			g = &SheetGroup{Name: thk}
			byThickness[thk] = g
			seen = append(seen, thk)
		}
		g.Rows = append(g.Rows, row)
		g.Quantity += q
		res.Report.Grouped += q
		logging.SorterDebug("Row %d: %q -> %s", i+2, row.Cell(opts.MaterialCol), thk)
	}

	for _, thk := range opts.Thicknesses {
		if g, ok := byThickness[thk]; ok {
			res.Groups = append(res.Groups, *g)
		}
	}
	for _, thk := range seen {
		if !opts.preferred(thk) {
			res.Groups = append(res.Groups, *byThickness[thk])
		}
	}

	var parts []sheet.Row
	for _, row := range res.Unmatched {
		if !opts.IsHeaderLike(row) {
			parts = append(parts, row)
		}
	}
	if len(parts) > 0 {
		res.Groups = append(res.Groups, SheetGroup{
			Name:      opts.UnmatchedSheet,
			Unmatched: true,
			Rows:      parts,
			Quantity:  sheet.SumQuantity(parts, opts.QuantityCol),
		})
	}

	for _, g := range res.Groups {
		logging.Sorter("  %s: %d rows, quantity %d", g.Name, len(g.Rows), g.Quantity)
	}
	if res.Report.Balanced() {
		logging.Sorter("Quantity conserved: %s", res.Report)
	} else {
		logging.Get(logging.CategorySorter).Error("Quantity lost: %s", res.Report)
	}
	return res
}
