package builtin

import (
	"github.com/schrodingerkitkat/csv-processor/internal/schema"
	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

// NormalizeHeaders renames every column to its canonical form
// (schema.NormalizeColumn). Cell values are untouched.
type NormalizeHeaders struct{}

func (NormalizeHeaders) Apply(in *records.Table) *records.Table {
	return in.Rename(schema.NormalizeColumn)
}
