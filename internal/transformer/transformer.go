// Package transformer defines table-to-table stages and their composition.
package transformer

import "github.com/schrodingerkitkat/csv-processor/pkg/records"

// Transformer maps one table to another. Implementations must not mutate
// their input.
type Transformer interface {
	Apply(*records.Table) *records.Table
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in *records.Table) *records.Table {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
