package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"xlsconv/internal/logging"
	"xlsconv/internal/processor"
	"xlsconv/internal/sheet"
	"xlsconv/internal/sorter"
)

// moveFile renames src to dst, copying when they sit on different volumes.
// An existing dst is replaced.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	in.Close()
	return os.Remove(src)
}

// IsOutput reports whether path is a workbook written by the pipeline
// itself.
func IsOutput(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if strings.HasSuffix(stem, sorter.Suffix) {
		return true
	}
	i := strings.LastIndex(stem, processor.Suffix)
	if i < 0 {
		return false
	}
	// <stem>_processed or <stem>_processed_<n>
	rest := stem[i+len(processor.Suffix):]
	if rest == "" {
		return true
	}
	if rest[0] != '_' || len(rest) == 1 {
		return false
	}
	for _, r := range rest[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Discover lists candidate input workbooks in dirs, skipping the
// pipeline's own outputs and Excel lock files. Each file appears once, in
// directory order.
func Discover(dirs ...string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				logging.PipelineDebug("Skipping missing directory %s", dir)
				continue
			}
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, "~$") || !sheet.IsWorkbook(name) {
				continue
			}
			path := filepath.Join(dir, name)
			if IsOutput(path) {
				continue
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			files = append(files, path)
		}
	}
	return files, nil
}
