package sorter

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xlsconv/internal/config"
	"xlsconv/internal/sheet"
)

var today = time.Date(2025, time.July, 24, 9, 30, 0, 0, time.UTC)

// processedRow builds a step 1 row: A num, B material, C version text,
// D priority, E version, F designation, G quantity.
func processedRow(num, material, priority, version, designation, qty string) sheet.Row {
	return sheet.Row{num, material, "", priority, version, designation, qty}
}

func processedTable() *sheet.Table {
	return sheet.NewTable("Sheet1",
		sheet.Row{"№", "Материал", "C", "Приоритет", "Версия", "Обозначение", "Кол-во"},
		processedRow("1", "Лист 08пс-2 ГОСТ 19904", "1", "3", "ДСМК.001.002 DXF", "4"),
		processedRow("2", "Лист 08пс-1,5 ГОСТ 19904", "2", "v2.0", "ДСМК.001.003", "2"),
		processedRow("3", "Круг 20", "1", "", "ДСМК.001.004", "7"),
		processedRow("4", "Лист-0,8 ГОСТ", "1", "1", "ДСМК.001.005", "1"),
		processedRow("5", "Лист-1,0 ГОСТ", "3", "", "", "5"),
		processedRow("№", "", "", "", "", "0"),
		processedRow("6", "Лист-2 ГОСТ", "1", "1", "X.9", "3"),
	)
}

// ===== THICKNESS =====

func TestExtractThickness(t *testing.T) {
	tests := []struct {
		desc   string
		want   string
		wantOK bool
	}{
		{"Лист 08пс-1,5 ГОСТ", "1.5mm", true},
		{"Лист-2 ГОСТ", "2mm", true},
		{"Лист-1,0 ГОСТ", "1mm", true},
		{"Лист-3,00 x", "3mm", true},
		{"Лист-0,8 x", "0.8mm", true},
		{"Лист-12 x", "12mm", true},
		{"Лист-1,25\tx", "1.25mm", true},
		{"Лист-2,50 x", "2.5mm", true},
		{"Лист-02 x", "2mm", true},
		{"Круг 20", "", false},
		{"Лист-2", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, ok := ExtractThickness(tt.desc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThicknessValue(t *testing.T) {
	assert.Equal(t, 1.5, ThicknessValue("1.5mm"))
	assert.Equal(t, 2.0, ThicknessValue("2mm"))
	assert.Equal(t, 0.0, ThicknessValue("Неопределенные"))
	assert.Equal(t, 0.0, ThicknessValue("mm"))
}

// ===== GROUPING =====

func TestGroupOrderAndReport(t *testing.T) {
	res := Group(processedTable(), DefaultOptions())

	var names []string
	for _, g := range res.Groups {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"1mm", "1.5mm", "2mm", "0.8mm", "Неопределенные"}, names)

	assert.Equal(t, 22, res.Report.Input)
	assert.Equal(t, 15, res.Report.Grouped)
	assert.Equal(t, 7, res.Report.Unmatched)
	assert.True(t, res.Report.Balanced())

	// Header-like rows stay in Unmatched but never get a sheet row.
	assert.Len(t, res.Unmatched, 2)
	last := res.Groups[len(res.Groups)-1]
	assert.True(t, last.Unmatched)
	assert.Len(t, last.Rows, 1)
	assert.Equal(t, 7, last.Quantity)
}

func TestGroupOnlyHeaderLikeUnmatched(t *testing.T) {
	tbl := sheet.NewTable("s",
		sheet.Row{"№"},
		processedRow("1", "Лист-2 ГОСТ", "1", "1", "A", "1"),
		processedRow("PartName", "", "", "", "", ""),
	)
	res := Group(tbl, DefaultOptions())
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "2mm", res.Groups[0].Name)
}

func TestGroupTrailingZerosShareSheet(t *testing.T) {
	tbl := sheet.NewTable("s",
		sheet.Row{"№"},
		processedRow("1", "Лист-2,50 ГОСТ", "1", "1", "A", "2"),
		processedRow("2", "Лист-2,5 ГОСТ", "1", "1", "B", "3"),
	)
	res := Group(tbl, DefaultOptions())
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "2.5mm", res.Groups[0].Name)
	assert.Len(t, res.Groups[0].Rows, 2)
	assert.Equal(t, 5, res.Groups[0].Quantity)
}

func TestGroupConservesQuantity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	materials := []string{"Лист-1 x", "Лист-1,5 x", "Лист-2,0 x", "Лист-4 x", "Круг 20", ""}
	properties := gopter.NewProperties(parameters)

	properties.Property("input quantity equals grouped plus unmatched", prop.ForAll(
		func(kinds []int, qtys []int) bool {
			n := len(kinds)
			if len(qtys) < n {
				n = len(qtys)
			}
			tbl := sheet.NewTable("p", sheet.Row{"h"})
			want := 0
			for i := 0; i < n; i++ {
				want += qtys[i]
				tbl.Rows = append(tbl.Rows, processedRow(strconv.Itoa(i+1), materials[kinds[i]], "", "", "P", strconv.Itoa(qtys[i])))
			}
			res := Group(tbl, DefaultOptions())
			sheets := 0
			for _, g := range res.Groups {
				sheets += g.Quantity
			}
			return res.Report.Balanced() && res.Report.Input == want && sheets == want
		},
		gen.SliceOf(gen.IntRange(0, len(materials)-1)),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}

// ===== LAYOUT =====

func TestPartName(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		name  string
		row   sheet.Row
		sheet string
		want  string
	}{
		{"dxf suffix and version", processedRow("1", "", "", "3", "ДСМК.001.002 DXF", "1"), "2mm", "DSMK.001.002_V3_2mmZn"},
		{"version with text", processedRow("1", "", "", "v2.0", "ДСМК.001.003", "1"), "1.5mm", "DSMK.001.003_V2_1.5mmZn"},
		{"default version", processedRow("1", "", "", "", "A.1 ", "1"), "3mm", "A.1_V0_3mmZn"},
		{"other thickness has no suffix", processedRow("1", "", "", "1", "A.1", "1"), "0.8mm", "A.1_V1"},
		{"empty designation", processedRow("1", "", "", "1", "  ", "1"), "1mm", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartName(tt.row, tt.sheet, opts))
		})
	}
}

func TestDueDate(t *testing.T) {
	assert.Equal(t, "7/24/2025", DueDate(today))
	assert.Equal(t, "1/5/2026", DueDate(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestLayout(t *testing.T) {
	opts := DefaultOptions()
	g := SheetGroup{
		Name: "1.5mm",
		Rows: []sheet.Row{
			processedRow("2", "Лист-1,5 x", "2", "v2.0", "ДСМК.001.003", "2,4"),
			processedRow("Приоритет", "", "", "", "", ""),
			processedRow("7", "Лист-1,5 x", "1", "", "", "1"),
		},
	}

	tbl := Layout(g, "25-066", today, opts)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, "1.5mm", tbl.Name)
	assert.Equal(t, sheet.Row(Columns), tbl.Rows[0])

	want := sheet.Row{
		"25-066", "DSMK.001.003_V2_1.5mmZn", "2", "0", "0", "0", "E5_TOPAZ", "", "7/24/2025", "0",
		"2", "0", "0", "0", "DC01", "1.500000", "0", "0", "", "0",
		`\\srvdata\FMS\ncexpress\E5_TOPAZ\PARTDIR\DSMK.001.003_V2_1.5mmZn`, "", "", "", "-1", "", "",
	}
	if diff := cmp.Diff(want, tbl.Rows[1]); diff != "" {
		t.Errorf("nesting row mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "", tbl.Rows[2][colPartName])
	assert.Equal(t, "", tbl.Rows[2][colDrawing])
	assert.Len(t, tbl.Rows[2], 27)
}

func TestLayoutUnmatched(t *testing.T) {
	opts := DefaultOptions()
	g := SheetGroup{Name: opts.UnmatchedSheet, Unmatched: true, Rows: []sheet.Row{
		processedRow("3", "Круг 20", "1", "", "B.2", "7"),
	}}
	tbl := Layout(g, "25-066", today, opts)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "0.000000", tbl.Rows[1][colThickness])
	assert.Equal(t, "", tbl.Rows[1][colMachine])
	assert.Equal(t, "B.2_V0", tbl.Rows[1][colPartName])
}

func TestCustomDrawingBaseAndMachines(t *testing.T) {
	cfg := config.DefaultNestingConfig()
	cfg.DrawingBase = `D:\parts\`
	cfg.Machines = map[string]string{"2mm": "TRUMPF"}
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)

	tbl := Layout(SheetGroup{Name: "2mm", Rows: []sheet.Row{processedRow("1", "", "", "1", "A", "1")}}, "25-001", today, opts)
	assert.Equal(t, `D:\parts\A_V1_2mmZn`, tbl.Rows[1][colDrawing])
	assert.Equal(t, "TRUMPF", tbl.Rows[1][colMachine])
}

// ===== WORKBOOK =====

func TestSortWritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	path, res, err := Sort(processedTable(), "25-066", dir, today, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "25-066_by_thickness.xlsx"), path)

	sheets, err := sheet.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, sheets, len(res.Groups))

	var names []string
	for _, s := range sheets {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"1mm", "1.5mm", "2mm", "0.8mm", "Неопределенные"}, names)

	twoMM := sheets[2]
	require.Equal(t, 3, twoMM.Len())
	assert.Equal(t, "DSMK.001.002_V3_2mmZn", twoMM.Rows[1][colPartName])
	assert.Equal(t, "4", twoMM.Rows[1][colQuantityOrdered])
	assert.Equal(t, "-1", twoMM.Rows[1][colBendingMode])
	assert.Equal(t, "2.000000", twoMM.Rows[1][colThickness])
}

func TestWriteWorkbookEmpty(t *testing.T) {
	err := WriteWorkbook(nil, "25-066", filepath.Join(t.TempDir(), "x.xlsx"), today, DefaultOptions())
	assert.Error(t, err)
}
