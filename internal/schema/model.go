// Package schema holds the contract every accepted input file must satisfy
// and the vocabulary of the validation report.
package schema

import (
	"sort"
	"strings"
	"unicode"
)

// Canonical column names.
const (
	FirstName = "first_name"
	LastName  = "last_name"
	Age       = "age"
	FullName  = "full_name"
)

// Inclusive bounds for a plausible age.
const (
	AgeMin = 0
	AgeMax = 120
)

// Required lists the canonical columns an accepted file must carry, in
// output order.
var Required = []string{FirstName, LastName, Age}

// NonEmpty lists the required columns whose missing values are counted.
var NonEmpty = []string{FirstName, LastName}

// IsRequired reports whether name is one of Required.
func IsRequired(name string) bool {
	for _, r := range Required {
		if r == name {
			return true
		}
	}
	return false
}

// IssueKind names one entry of a validation Report.
type IssueKind string

const (
	MissingRequiredColumns IssueKind = "missing_required_columns"
	ExtraColumns           IssueKind = "extra_columns"
	MissingValues          IssueKind = "missing_values"
	NonIntegerAge          IssueKind = "non_integer_age"
	AgeOutliers            IssueKind = "age_outliers"
	Duplicates             IssueKind = "duplicates"
)

// Report maps an issue kind to its detail. Only kinds that occurred are
// present; an empty Report means the file was clean.
//
// Detail types:
//
//	missing_required_columns  []string          sorted canonical names
//	extra_columns             []string          source spelling, source order
//	missing_values            map[string]int    per NonEmpty column
//	non_integer_age           []any             raw string, or nil when absent
//	age_outliers              []any             int64 or float64
//	duplicates                int               rows removed
type Report map[IssueKind]any

// Has reports whether k was recorded.
func (r Report) Has(k IssueKind) bool {
	_, ok := r[k]
	return ok
}

// Kinds returns the recorded kinds in lexical order.
func (r Report) Kinds() []IssueKind {
	out := make([]IssueKind, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NormalizeColumn canonicalizes a header name: trim, lowercase, and collapse
// every run of white space, '-', '.', or '_' into a single '_'.
func NormalizeColumn(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) || r == '-' || r == '.' || r == '_' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
