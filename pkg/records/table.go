// Package records defines the in-memory table that flows through the
// pipeline: an ordered list of named columns and an ordered list of rows.
//
// Cells are untyped. A nil cell is a missing value; everything else is
// normally a string straight from the source file. Tables are treated as
// values: every helper that changes shape returns a new *Table and leaves
// the receiver untouched, so stages can be tested and reused in isolation.
package records

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnMismatch is returned by Concat when tables disagree on columns.
var ErrColumnMismatch = errors.New("records: column sets differ")

// Row is one table row, aligned with Table.Columns.
type Row []any

// String returns the cell at i as text. ok is false when the index is out of
// range or the cell is missing (nil).
func (r Row) String(i int) (s string, ok bool) {
	if i < 0 || i >= len(r) || r[i] == nil {
		return "", false
	}
	switch v := r[i].(type) {
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

// Table is an ordered set of named columns and rows in insertion order.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with a copy of the given columns.
func New(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows; a nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the first column named name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. Short rows are padded with nil; long rows are an error.
func (t *Table) Append(r Row) error {
	if len(r) > len(t.Columns) {
		return fmt.Errorf("records: row has %d cells, table has %d columns", len(r), len(t.Columns))
	}
	row := make(Row, len(t.Columns))
	copy(row, r)
	t.Rows = append(t.Rows, row)
	return nil
}

// Clone returns a deep copy of the column list and every row slice.
func (t *Table) Clone() *Table {
	out := New(t.Columns)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// Select returns a table holding the named columns in the given order.
// Unknown names yield a column of missing cells.
func (t *Table) Select(names ...string) *Table {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = t.Index(n)
	}
	out := &Table{Columns: append([]string(nil), names...), Rows: make([]Row, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make(Row, len(idx))
		for j, i := range idx {
			if i >= 0 && i < len(row) {
				nr[j] = row[i]
			}
		}
		out.Rows[r] = nr
	}
	return out
}

// SelectIndexes returns a table holding only the columns at idx, in that order.
func (t *Table) SelectIndexes(idx []int) *Table {
	cols := make([]string, len(idx))
	for j, i := range idx {
		cols[j] = t.Columns[i]
	}
	out := &Table{Columns: cols, Rows: make([]Row, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make(Row, len(idx))
		for j, i := range idx {
			if i < len(row) {
				nr[j] = row[i]
			}
		}
		out.Rows[r] = nr
	}
	return out
}

// Filter returns a table with the rows for which keep reports true.
func (t *Table) Filter(keep func(i int, r Row) bool) *Table {
	out := New(t.Columns)
	for i, r := range t.Rows {
		if keep(i, r) {
			out.Rows = append(out.Rows, append(Row(nil), r...))
		}
	}
	return out
}

// WithColumn returns a copy of t with an extra column whose cells are
// computed from each row by fn.
func (t *Table) WithColumn(name string, fn func(Row) any) *Table {
	out := &Table{
		Columns: append(append([]string(nil), t.Columns...), name),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		nr := make(Row, len(t.Columns)+1)
		copy(nr, r)
		nr[len(t.Columns)] = fn(r)
		out.Rows[i] = nr
	}
	return out
}

// Rename returns a copy of t with every column name passed through fn.
func (t *Table) Rename(fn func(string) string) *Table {
	out := t.Clone()
	for i, c := range out.Columns {
		out.Columns[i] = fn(c)
	}
	return out
}

// Concat stacks tables in order. All tables must share the same columns in
// the same order. With no tables it returns an empty table with no columns.
func Concat(ts ...*Table) (*Table, error) {
	if len(ts) == 0 {
		return &Table{}, nil
	}
	out := New(ts[0].Columns)
	want := strings.Join(ts[0].Columns, "\x1f")
	for i, t := range ts {
		if got := strings.Join(t.Columns, "\x1f"); got != want || len(t.Columns) != len(out.Columns) {
			return nil, fmt.Errorf("%w: table %d has %v, want %v", ErrColumnMismatch, i, t.Columns, out.Columns)
		}
		for _, r := range t.Rows {
			out.Rows = append(out.Rows, append(Row(nil), r...))
		}
	}
	return out, nil
}
