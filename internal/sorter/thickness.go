package sorter

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	decimalThickness = regexp.MustCompile(`-([0-9]+,[0-9]+)\s`)
	integerThickness = regexp.MustCompile(`-([0-9]+)\s`)
)

// ExtractThickness finds the sheet thickness in a material description
// such as "Лист 08пс-1,5 ГОСТ". A decimal match ("-1,5 ") wins over an
// integer one ("-2 "). The label drops trailing zeros: "1,0" gives "1mm".
func ExtractThickness(desc string) (string, bool) {
	if strings.TrimSpace(desc) == "" {
		return "", false
	}
	if m := decimalThickness.FindStringSubmatch(desc); m != nil {
		return label(strings.Replace(m[1], ",", ".", 1)), true
	}
	if m := integerThickness.FindStringSubmatch(desc); m != nil {
		return label(m[1]), true
	}
	return "", false
}

func label(num string) string {
	if strings.Contains(num, ".") {
		num = strings.TrimRight(num, "0")
		num = strings.TrimSuffix(num, ".")
	}
	if n, err := strconv.Atoi(num); err == nil {
		num = strconv.Itoa(n)
	}
	return num + "mm"
}

// ThicknessValue returns the numeric thickness of a label, or 0 when the
// label is not a thickness.
func ThicknessValue(lbl string) float64 {
	num := strings.TrimSuffix(lbl, "mm")
	if num == lbl || num == "" {
		return 0
	}
	for _, r := range num {
		if (r < '0' || r > '9') && r != '.' {
			return 0
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return v
}
