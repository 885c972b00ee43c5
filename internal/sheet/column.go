package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnIndex converts a column letter ("A", "J", "AA") to a zero-based index.
func ColumnIndex(name string) (int, error) {
	n, err := excelize.ColumnNameToNumber(strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", name, err)
	}
	return n - 1, nil
}

// ColumnIndexes converts a list of column letters.
func ColumnIndexes(names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		i, err := ColumnIndex(n)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

// ColumnName converts a zero-based index to its column letter.
func ColumnName(idx int) string {
	name, err := excelize.ColumnNumberToName(idx + 1)
	if err != nil {
		return ""
	}
	return name
}
