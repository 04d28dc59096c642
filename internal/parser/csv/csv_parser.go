// Package csv parses delimited text into a records.Table and writes tables
// back out. Parsing expects UTF-8 input; callers decode first (see probe).
//
// The first record is the header. Header names are kept verbatim apart from
// BOM removal; canonicalization happens later in the validator so that
// reports can still name columns exactly as the source spelled them.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

var (
	// ErrEmpty is returned for input with no header record.
	ErrEmpty = errors.New("csv: empty input")
	// ErrMalformed wraps quoting errors and, in strict mode, rows wider than
	// the header.
	ErrMalformed = errors.New("csv: malformed input")
)

// Options configures the CSV parser behavior. The zero value parses
// comma-separated input leniently.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing white space from each cell value.
	TrimSpace bool

	// Strict fails the whole parse on the first malformed row. When false,
	// malformed rows are skipped and counted.
	Strict bool

	// LazyQuotes relaxes quote handling (see encoding/csv.Reader).
	LazyQuotes bool

	// OnSkip, when set, is called for every row skipped in lenient mode.
	OnSkip func(line int, err error)
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs and holds no per-parse state.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse consumes CSV records from r and returns the table along with the
// number of rows skipped in lenient mode. Rows shorter than the header are
// padded with missing cells; empty cells become nil.
func (p *Parser) Parse(r io.Reader) (*records.Table, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = p.opt.LazyQuotes
	cr.ReuseRecord = false

	h, err := cr.Read()
	if err == io.EOF {
		return nil, 0, ErrEmpty
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read header: %w", ErrMalformed, err)
	}
	tbl := records.New(StripHeaderBOM(h))

	var skipped int
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if p.opt.Strict {
				return nil, skipped, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			skipped++
			p.skip(rowLine(err), err)
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(row) > len(tbl.Columns) {
			werr := fmt.Errorf("line %d: %d fields, header has %d", line, len(row), len(tbl.Columns))
			if p.opt.Strict {
				return nil, skipped, fmt.Errorf("%w: %w", ErrMalformed, werr)
			}
			skipped++
			p.skip(line, werr)
			continue
		}

		rec := make(records.Row, len(tbl.Columns))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[i] = emptyToNil(val)
		}
		tbl.Rows = append(tbl.Rows, rec)
	}

	return tbl, skipped, nil
}

func (p *Parser) skip(line int, err error) {
	if p.opt.OnSkip != nil {
		p.opt.OnSkip(line, err)
	}
}

// rowLine extracts the line recorded in a *csv.ParseError, or 0.
func rowLine(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
