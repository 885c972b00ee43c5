package sheet

import "strings"

// Row is one worksheet row. Missing trailing cells read as empty.
type Row []string

// Cell returns the value at column c, or "" when the row is shorter.
func (r Row) Cell(c int) string {
	if c < 0 || c >= len(r) {
		return ""
	}
	return r[c]
}

// Empty reports whether column c holds no visible value.
func (r Row) Empty(c int) bool {
	return IsEmpty(r.Cell(c))
}

// Project returns a new row made of the given columns in order.
func (r Row) Project(cols []int) Row {
	out := make(Row, len(cols))
	for i, c := range cols {
		out[i] = r.Cell(c)
	}
	return out
}

// Clone returns a copy that does not share the backing array.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// IsEmpty reports whether a cell value is blank.
func IsEmpty(v string) bool {
	return strings.TrimSpace(v) == ""
}

// Table is a named sheet of rows.
type Table struct {
	Name string
	Rows []Row
}

// NewTable creates a table with the given rows.
func NewTable(name string, rows ...Row) *Table {
	return &Table{Name: name, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Width returns the length of the widest row.
func (t *Table) Width() int {
	w := 0
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Header returns the first row, or nil for an empty table.
func (t *Table) Header() Row {
	if t.Len() == 0 {
		return nil
	}
	return t.Rows[0]
}

// Data returns every row after the header.
func (t *Table) Data() []Row {
	if t.Len() < 2 {
		return nil
	}
	return t.Rows[1:]
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Padded returns the rows extended with empty cells to the table width.
func (t *Table) Padded() []Row {
	w := t.Width()
	out := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		p := make(Row, w)
		copy(p, r)
		out[i] = p
	}
	return out
}
