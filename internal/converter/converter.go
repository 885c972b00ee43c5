// Package converter implements step 3 of the pipeline: every sheet of the
// nesting workbook becomes a tab-separated text file the nesting software
// imports.
package converter

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"xlsconv/internal/logging"
	"xlsconv/internal/order"
	"xlsconv/internal/sheet"
)

// Ext is the extension of the converted files.
const Ext = ".txt"

// DefaultWorkers bounds parallel sheet conversion.
const DefaultWorkers = 4

// FileName returns <OrderID>_<sheet>.txt with dots removed from the sheet
// name, so "1.5mm" becomes "15mm".
func FileName(orderID, sheetName string) string {
	return orderID + "_" + strings.ReplaceAll(sheetName, ".", "") + Ext
}

// ConvertSheet writes t to dir and returns the file path. Every line holds
// one row with cells joined by TAB, padded to the widest row.
func ConvertSheet(t *sheet.Table, orderID, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(orderID, t.Name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	w := bufio.NewWriter(f)
	for _, row := range t.Padded() {
		w.WriteString(strings.Join(row, "\t"))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	logging.Converter("Sheet %q -> %s (%d rows)", t.Name, filepath.Base(path), t.Len())
	return path, nil
}

// Options configures ConvertAll.
type Options struct {
	Workers int
	// OrderID overrides the one derived from the file name.
	OrderID string
	Now     func() time.Time
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return DefaultWorkers
	}
	return o.Workers
}

// ConvertAll converts every sheet of the workbook at path into dir. The
// OrderID comes from the file name, UNKNOWN when it has none. Files are
// returned in sheet order; any failing sheet fails the call.
func ConvertAll(ctx context.Context, path, dir string, opts Options) ([]string, error) {
	tables, err := sheet.ReadAll(path)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%s has no sheets", filepath.Base(path))
	}

	orderID := opts.OrderID
	if orderID == "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		var ok bool
		orderID, ok = order.FromFilename(path, now())
		if !ok {
			logging.Get(logging.CategoryConverter).Warn("No OrderID in %s, using %s", filepath.Base(path), orderID)
		}
	}

	names := make(map[string]string, len(tables))
	for _, t := range tables {
		name := FileName(orderID, t.Name)
		if prev, ok := names[name]; ok {
			return nil, fmt.Errorf("sheets %q and %q both map to %s", prev, t.Name, name)
		}
		names[name] = t.Name
	}

	files := make([]string, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, t := range tables {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := ConvertSheet(t, orderID, dir)
			if err != nil {
				logging.ConverterError("Sheet %q failed: %v", t.Name, err)
				return fmt.Errorf("sheet %q: %w", t.Name, err)
			}
			files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.Converter("Converted %d sheets of %s", len(files), filepath.Base(path))
	return files, nil
}
