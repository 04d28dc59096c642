package builtin

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/schrodingerkitkat/csv-processor/internal/schema"
	"github.com/schrodingerkitkat/csv-processor/internal/transformer"
	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

// FullName appends schema.FullName as "<first_name> <last_name>". The cell is
// missing when either part is missing.
type FullName struct{}

func (FullName) Apply(in *records.Table) *records.Table {
	fi, li := in.Index(schema.FirstName), in.Index(schema.LastName)
	return in.WithColumn(schema.FullName, func(r records.Row) any {
		f, ok := r.String(fi)
		if !ok {
			return nil
		}
		l, ok := r.String(li)
		if !ok {
			return nil
		}
		return f + " " + l
	})
}

// DisplayLabels renames columns to display labels (see DisplayLabel).
type DisplayLabels struct{}

func (DisplayLabels) Apply(in *records.Table) *records.Table {
	return in.Rename(DisplayLabel)
}

// DisplayLabel turns "first_name" into "First Name".
func DisplayLabel(name string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(name, "_", " "))
}

// Output is the chain applied to an accepted table before it is written.
func Output() transformer.Chain {
	return transformer.Chain{FullName{}, DisplayLabels{}}
}
