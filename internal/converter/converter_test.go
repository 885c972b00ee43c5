package converter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"xlsconv/internal/sheet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixedNow() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

func TestFileName(t *testing.T) {
	assert.Equal(t, "25-066_15mm.txt", FileName("25-066", "1.5mm"))
	assert.Equal(t, "25-066_2mm.txt", FileName("25-066", "2mm"))
	assert.Equal(t, "25-066_08mm.txt", FileName("25-066", "0.8mm"))
	assert.Equal(t, "UNKNOWN_Неопределенные.txt", FileName("UNKNOWN", "Неопределенные"))
}

func TestConvertSheet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tbl := sheet.NewTable("1.5mm",
		sheet.Row{"OrderID", "PartName", "Qty"},
		sheet.Row{"25-066", "Деталь"},
		sheet.Row{"25-066", "", "3"},
	)

	path, err := ConvertSheet(tbl, "25-066", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "25-066_15mm.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "OrderID\tPartName\tQty\n25-066\tДеталь\t\n25-066\t\t3\n", string(data))
}

func writeWorkbook(t *testing.T, path string, tables ...*sheet.Table) {
	t.Helper()
	require.NoError(t, sheet.WriteFile(path, sheet.Style{}, tables...))
}

func TestConvertAll(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "25-113_by_thickness.xlsx")
	writeWorkbook(t, input,
		sheet.NewTable("1mm", sheet.Row{"a", "b"}, sheet.Row{"1", "2"}),
		sheet.NewTable("1.5mm", sheet.Row{"c"}),
		sheet.NewTable("2mm", sheet.Row{"d", "e", "f"}),
	)

	out := filepath.Join(dir, "txt")
	files, err := ConvertAll(context.Background(), input, out, Options{Workers: 2, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "25-113_1mm.txt"),
		filepath.Join(out, "25-113_15mm.txt"),
		filepath.Join(out, "25-113_2mm.txt"),
	}, files)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n1\t2\n", string(data))
}

func TestConvertAllOrderFromLeadingDigits(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "66_x.xlsx")
	writeWorkbook(t, input, sheet.NewTable("3mm", sheet.Row{"x"}))

	files, err := ConvertAll(context.Background(), input, dir, Options{Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "25-066_3mm.txt", filepath.Base(files[0]))
}

func TestConvertAllUnknownOrder(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "nesting.xlsx")
	writeWorkbook(t, input, sheet.NewTable("3mm", sheet.Row{"x"}))

	files, err := ConvertAll(context.Background(), input, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN_3mm.txt", filepath.Base(files[0]))

	files, err = ConvertAll(context.Background(), input, dir, Options{OrderID: "25-001"})
	require.NoError(t, err)
	assert.Equal(t, "25-001_3mm.txt", filepath.Base(files[0]))
}

func TestConvertAllNameCollision(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "25-001.xlsx")
	writeWorkbook(t, input, sheet.NewTable("1.5mm", sheet.Row{"x"}), sheet.NewTable("15mm", sheet.Row{"y"}))

	_, err := ConvertAll(context.Background(), input, dir, Options{})
	assert.Error(t, err)
}

func TestConvertAllErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ConvertAll(context.Background(), filepath.Join(dir, "missing.xlsx"), dir, Options{})
	assert.Error(t, err)

	input := filepath.Join(dir, "25-001.xlsx")
	writeWorkbook(t, input, sheet.NewTable("1mm", sheet.Row{"x"}))

	// Output directory blocked by a regular file.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	_, err = ConvertAll(context.Background(), input, filepath.Join(blocker, "out"), Options{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ConvertAll(ctx, input, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
