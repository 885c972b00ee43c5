// Package order formats and recognises production order identifiers.
//
// An OrderID has the form YY-NNN: the two-digit year followed by the
// order number padded to three digits.
package order

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unknown is used when no OrderID can be derived from a file name.
const Unknown = "UNKNOWN"

// ErrInvalidOrderNumber is returned when the operator's input is not an
// integer order number.
var ErrInvalidOrderNumber = errors.New("order number must be an integer")

var (
	idPattern     = regexp.MustCompile(`\d{2}-\d{3}`)
	leadingDigits  = regexp.MustCompile(`^(\d+)`)
)

// Format returns the OrderID for order n in the year of now.
func Format(n int, now time.Time) string {
	return fmt.Sprintf("%02d-%03d", now.Year()%100, n)
}

// ParseNumber validates an order number typed by the operator.
func ParseNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidOrderNumber)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrderNumber, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidOrderNumber, n)
	}
	return n, nil
}

// FromFilename derives the OrderID from a file name. An explicit YY-NNN
// wins; otherwise leading digits are taken as the order number of the
// current year. ok is false when neither is present.
func FromFilename(name string, now time.Time) (id string, ok bool) {
	base := filepath.Base(name)
	if m := idPattern.FindString(base); m != "" {
		return m, true
	}
	if n, ok := LeadingNumber(base); ok {
		return Format(n, now), true
	}
	return Unknown, false
}

// LeadingNumber returns the integer the file name starts with.
func LeadingNumber(name string) (int, bool) {
	m := leadingDigits.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
