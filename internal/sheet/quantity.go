package sheet

import (
	"math"
	"strconv"
	"strings"
)

// ParseQuantity reads a piece count from a cell. Spaces are dropped, a
// decimal comma is accepted and fractions round half to even. ok is false
// for blank or non-numeric cells.
func ParseQuantity(v string) (n int, ok bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(v), " ", "")
	clean = strings.ReplaceAll(clean, "\u00a0", "")
	clean = strings.ReplaceAll(clean, ",", ".")
	if clean == "" || clean == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.RoundToEven(f)), true
}

// Quantity is ParseQuantity with unreadable cells counted as zero.
func Quantity(v string) int {
	n, _ := ParseQuantity(v)
	return n
}

// SumQuantity adds up column c over rows.
func SumQuantity(rows []Row, c int) int {
	total := 0
	for _, r := range rows {
		total += Quantity(r.Cell(c))
	}
	return total
}
