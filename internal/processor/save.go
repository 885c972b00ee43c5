package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"xlsconv/internal/logging"
	"xlsconv/internal/sheet"
)

// Suffix is appended to the input stem to name the step 1 workbook.
const Suffix = "_processed"

// fallbackDirs lists where Save retries when the input directory is not
// writable. Overridden in tests.
var fallbackDirs = func() []string {
	dirs := []string{os.TempDir()}
	if home, err := homedir.Dir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "Desktop"))
	}
	return dirs
}

// OutputPath returns a free <stem>_processed[_N].xlsx path in dir.
func OutputPath(input, dir string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	path := filepath.Join(dir, stem+Suffix+sheet.ExtXLSX)
	for n := 1; exists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s%s_%d%s", stem, Suffix, n, sheet.ExtXLSX))
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Style returns the layout of the processed workbook.
func (o Options) Style() sheet.Style {
	st := sheet.Style{Widths: o.Widths, NumericFromRow: 1}
	if c := o.SumOutputColumn(); c >= 0 {
		st.NumericColumns = []int{c}
	}
	return st
}

// Save writes the processed table next to input and returns the path it
// was written to. When that fails it tries the fallback directories in
// turn.
func Save(t *sheet.Table, input string, opts Options) (string, error) {
	dirs := append([]string{filepath.Dir(input)}, fallbackDirs()...)

	var lastErr error
	for i, dir := range dirs {
		path := OutputPath(input, dir)
		err := sheet.WriteFile(path, opts.Style(), t)
		if err == nil {
			if i > 0 {
				logging.ProcessorWarn("Input directory not writable, saved to %s", path)
			}
			logging.Processor("Saved %d rows to %s", t.Len(), path)
			return path, nil
		}
		logging.ProcessorWarn("Could not save to %s: %v", path, err)
		lastErr = err
	}
	return "", fmt.Errorf("save processed workbook: %w", lastErr)
}
