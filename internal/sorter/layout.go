package sorter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"xlsconv/internal/logging"
	"xlsconv/internal/sheet"
)

// Columns is the header of a nesting job sheet.
var Columns = []string{
	"OrderID",
	"PartName",
	"QuantityOrdered",
	"QuantityNested",
	"QuantityCompleted",
	"ExtraAllowed",
	"Machine",
	"AssemblyID",
	"DueDate",
	"DateWindow",
	"Priority",
	"ForcedPriority",
	"NextPhase",
	"Status",
	"Material",
	"Thickness",
	"AutoTooling",
	"ScriptTooling",
	"ScriptName",
	"ManualNesting",
	"Drawing",
	"Turret",
	"ProductionLabel",
	"Revision",
	"BendingMode",
	"BendingParameters",
	"Parameters",
}

// Column positions used when filling a row.
const (
	colOrderID = iota
	colPartName
	colQuantityOrdered
	colQuantityNested
	colQuantityCompleted
	colExtraAllowed
	colMachine
	colAssemblyID
	colDueDate
	colDateWindow
	colPriority
	colForcedPriority
	colNextPhase
	colStatus
	colMaterial
	colThickness
	colAutoTooling
	colScriptTooling
	colScriptName
	colManualNesting
	colDrawing
	colTurret
	colProductionLabel
	colRevision
	colBendingMode
	colBendingParameters
	colParameters
)

// Suffix is appended to the OrderID to name the step 2 workbook.
const Suffix = "_by_thickness"

// Style is the layout of the step 2 workbook.
var Style = sheet.Style{
	BoldHeader: true,
	Widths: map[string]float64{
		"A": 25, "B": 25, "C": 12, "D": 12, "E": 12, "F": 10, "G": 15,
		"H": 12, "I": 12, "J": 12, "K": 10, "L": 10, "M": 10, "N": 8,
		"O": 10, "P": 10, "Q": 10, "R": 10, "S": 15, "T": 20, "U": 15,
		"V": 10, "W": 15, "X": 10, "Y": 10, "Z": 15, "AA": 15,
	},
	NumericColumns: []int{
		colQuantityOrdered, colQuantityNested, colQuantityCompleted, colExtraAllowed,
		colDateWindow, colForcedPriority, colNextPhase, colStatus,
		colAutoTooling, colScriptTooling, colManualNesting, colBendingMode,
	},
	NumericFromRow: 1,
}

var firstDigits = regexp.MustCompile(`\d+`)

// DueDate formats t as M/D/YYYY.
func DueDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
}

// PartName builds the nesting part name for a row of the given sheet.
// It returns "" when the designation is empty.
func PartName(row sheet.Row, sheetName string, opts Options) string {
	designation := row.Cell(opts.DesignationCol)
	if sheet.IsEmpty(designation) {
		return ""
	}

	keys := make([]string, 0, len(opts.Replacements))
	for k := range opts.Replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		designation = strings.ReplaceAll(designation, k, opts.Replacements[k])
	}
	designation = strings.TrimSpace(strings.TrimSuffix(designation, " DXF"))

	version := "_V0"
	if m := firstDigits.FindString(row.Cell(opts.VersionCol)); m != "" {
		version = "_V" + m
	}

	var thickness string
	if opts.preferred(sheetName) {
		thickness = "_" + sheetName + "Zn"
	}
	return designation + version + thickness
}

// Layout turns a group into a nesting job table: header row then one row
// per part. Header-like rows are dropped.
func Layout(g SheetGroup, orderID string, now time.Time, opts Options) *sheet.Table {
	t := &sheet.Table{Name: g.Name, Rows: make([]sheet.Row, 0, len(g.Rows)+1)}
	header := make(sheet.Row, len(Columns))
	copy(header, Columns)
	t.Rows = append(t.Rows, header)

	due := DueDate(now)
	machine := opts.Machines[g.Name]
	thickness := "0.000000"
	if !g.Unmatched {
		thickness = strconv.FormatFloat(ThicknessValue(g.Name), 'f', 6, 64)
	}

	for _, src := range g.Rows {
		if opts.IsHeaderLike(src) {
			logging.SorterDebug("Skipping header-like row %q", src.Cell(0))
			continue
		}

		part := PartName(src, g.Name, opts)
		drawing := ""
		if part != "" {
			drawing = strings.TrimRight(opts.DrawingBase, `\`) + `\` + part
		}

		row := make(sheet.Row, len(Columns))
		for _, c := range Style.NumericColumns {
			row[c] = "0"
		}
		row[colOrderID] = orderID
		row[colPartName] = part
		row[colQuantityOrdered] = strconv.Itoa(sheet.Quantity(src.Cell(opts.QuantityCol)))
		row[colMachine] = machine
		row[colDueDate] = due
		row[colPriority] = strings.TrimSpace(src.Cell(opts.PriorityCol))
		row[colMaterial] = opts.Material
		row[colThickness] = thickness
		row[colDrawing] = drawing
		row[colBendingMode] = "-1"
		t.Rows = append(t.Rows, row)
	}
	return t
}

// OutputPath returns <dir>/<OrderID>_by_thickness.xlsx.
func OutputPath(dir, orderID string) string {
	return filepath.Join(dir, orderID+Suffix+sheet.ExtXLSX)
}

// WriteWorkbook lays out every group and saves them as one workbook.
func WriteWorkbook(groups []SheetGroup, orderID, path string, now time.Time, opts Options) error {
	if len(groups) == 0 {
		return fmt.Errorf("no rows to write")
	}
	w := sheet.NewWriter()
	defer w.Close()

	for _, g := range groups {
		t := Layout(g, orderID, now, opts)
		if err := w.AddSheet(t, Style); err != nil {
			return err
		}
		logging.Sorter("Sheet %q: %d rows", g.Name, t.Len()-1)
	}
	if err := w.SaveAs(path); err != nil {
		return err
	}
	logging.Sorter("Saved %s", path)
	return nil
}

// Sort groups the processed table and writes <dir>/<OrderID>_by_thickness.xlsx.
func Sort(t *sheet.Table, orderID, dir string, now time.Time, opts Options) (string, *Result, error) {
	res := Group(t, opts)
	path := OutputPath(dir, orderID)
	if err := WriteWorkbook(res.Groups, orderID, path, now, opts); err != nil {
		return "", res, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return path, res, nil
}
