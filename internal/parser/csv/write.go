package csv

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

// Write renders t as CSV: a header line, then one line per row. Missing cells
// are written as empty fields. comma == 0 means ','.
func Write(w io.Writer, t *records.Table, comma rune) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	line := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		for j := range line {
			line[j], _ = r.String(j)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
