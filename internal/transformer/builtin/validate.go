package builtin

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/schrodingerkitkat/csv-processor/internal/schema"
	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

// Verdict is the validator's decision for one file.
type Verdict struct {
	// Accepted is false only when required columns are missing.
	Accepted bool
	// Report lists every issue found; it is never nil.
	Report schema.Report
	// Table is the pruned, deduplicated table when Accepted. For a rejected
	// file it is the input with normalized headers.
	Table *records.Table
}

// Validator checks a parsed table against the schema contract and prunes it.
//
// Steps, in order: normalize headers; reject when a required column is
// missing; drop extra columns (first occurrence of a duplicated canonical
// name wins) and order the rest as schema.Required; count missing names; flag non-integer and out-of-range ages;
// drop duplicate rows. Only the missing-column check rejects. Everything else
// is recorded in the report and the file is still accepted.
type Validator struct {
	// AgeMin and AgeMax bound a plausible age, inclusive. A bound left at
	// zero means schema.AgeMin or schema.AgeMax.
	AgeMin, AgeMax float64
}

func (v Validator) bounds() (lo, hi float64) {
	lo, hi = v.AgeMin, v.AgeMax
	if lo == 0 {
		lo = schema.AgeMin
	}
	if hi == 0 {
		hi = schema.AgeMax
	}
	return lo, hi
}

// Validate never mutates in.
func (v Validator) Validate(in *records.Table) Verdict {
	report := schema.Report{}
	t := NormalizeHeaders{}.Apply(in)

	first := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := first[c]; !ok {
			first[c] = i
		}
	}

	var missing []string
	for _, req := range schema.Required {
		if _, ok := first[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		report[schema.MissingRequiredColumns] = missing
		return Verdict{Accepted: false, Report: report, Table: t}
	}

	// Output columns follow schema.Required whatever the source order.
	keep := make([]int, 0, len(schema.Required))
	for _, req := range schema.Required {
		keep = append(keep, first[req])
	}
	var extras []string
	for i, c := range t.Columns {
		if !schema.IsRequired(c) || first[c] != i {
			extras = append(extras, in.Columns[i])
		}
	}
	if len(extras) > 0 {
		report[schema.ExtraColumns] = extras
	}
	t = t.SelectIndexes(keep)

	if counts := (Require{Fields: schema.NonEmpty}).Count(t); anyMissing(counts) {
		report[schema.MissingValues] = counts
	}

	lo, hi := v.bounds()
	ageIdx := t.Index(schema.Age)
	var nonInt, outliers []any
	for _, r := range t.Rows {
		raw, ok := r.String(ageIdx)
		if !ok {
			nonInt = append(nonInt, nil)
			continue
		}
		s := strings.TrimSpace(raw)
		if !isDigits(s) {
			nonInt = append(nonInt, raw)
		}
		if n, f, ok := parseNumber(s); ok && (f < lo || f > hi) {
			outliers = append(outliers, n)
		}
	}
	if len(nonInt) > 0 {
		report[schema.NonIntegerAge] = nonInt
	}
	if len(outliers) > 0 {
		report[schema.AgeOutliers] = outliers
	}

	deduped, dropped := DeDup{}.Remove(t)
	if dropped > 0 {
		report[schema.Duplicates] = dropped
	}

	return Verdict{Accepted: true, Report: report, Table: deduped}
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseNumber parses s as an integer (int64) or, failing that, a finite
// float (float64). f is the value as float64 for range checks.
func parseNumber(s string) (n any, f float64, ok bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, float64(i), true
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return nil, 0, false
	}
	return x, x, true
}
