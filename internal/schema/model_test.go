package schema

import (
	"reflect"
	"testing"
)

func TestNormalizeColumn(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"first_name":    "first_name",
		"First Name":    "first_name",
		"  LAST-NAME ":  "last_name",
		"Age":           "age",
		"first  _ name": "first_name",
		"_age_":         "age",
		"e.mail":        "e_mail",
		"Ünïcode Col":   "ünïcode_col",
		"":              "",
	}
	for in, want := range cases {
		if got := NormalizeColumn(in); got != want {
			t.Errorf("NormalizeColumn(%q)=%q want %q", in, got, want)
		}
	}
}

func TestReportKindsSorted(t *testing.T) {
	t.Parallel()

	r := Report{Duplicates: 1, AgeOutliers: []any{int64(150)}, ExtraColumns: []string{"x"}}
	want := []IssueKind{AgeOutliers, Duplicates, ExtraColumns}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Kinds=%v want %v", got, want)
	}
	if !r.Has(Duplicates) || r.Has(MissingValues) {
		t.Fatal("Has mismatch")
	}
}

func TestIsRequired(t *testing.T) {
	t.Parallel()
	for _, c := range Required {
		if !IsRequired(c) {
			t.Fatalf("%s should be required", c)
		}
	}
	if IsRequired("email") {
		t.Fatal("email should not be required")
	}
}
