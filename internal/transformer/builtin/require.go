// Package builtin contains the stages that turn a parsed file into an
// accepted, cleaned table.
package builtin

import "github.com/schrodingerkitkat/csv-processor/pkg/records"

// Require counts missing values in the specified fields.
type Require struct {
	Fields []string
}

// Count returns, for every field in r.Fields, how many rows have no value
// there. A field absent from the table counts every row. The map always has
// one entry per field.
func (r Require) Count(t *records.Table) map[string]int {
	out := make(map[string]int, len(r.Fields))
	for _, f := range r.Fields {
		idx := t.Index(f)
		n := 0
		for _, row := range t.Rows {
			if v, ok := row.String(idx); !ok || v == "" {
				n++
			}
		}
		out[f] = n
	}
	return out
}

// anyMissing reports whether counts holds a non-zero entry.
func anyMissing(counts map[string]int) bool {
	for _, n := range counts {
		if n > 0 {
			return true
		}
	}
	return false
}
