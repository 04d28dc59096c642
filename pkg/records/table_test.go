package records

import (
	"errors"
	"reflect"
	"testing"
)

func sample() *Table {
	return &Table{
		Columns: []string{"a", "b"},
		Rows: []Row{
			{"1", "x"},
			{nil, "y"},
		},
	}
}

func TestRowString(t *testing.T) {
	t.Parallel()
	r := Row{"a", nil, 7}
	cases := []struct {
		idx    int
		want   string
		wantOK bool
	}{
		{0, "a", true},
		{1, "", false},
		{2, "7", true},
		{3, "", false},
		{-1, "", false},
	}
	for _, c := range cases {
		got, ok := r.String(c.idx)
		if got != c.want || ok != c.wantOK {
			t.Fatalf("String(%d)=(%q,%v) want (%q,%v)", c.idx, got, ok, c.want, c.wantOK)
		}
	}
}

func TestAppendPadsShortRows(t *testing.T) {
	t.Parallel()
	tbl := New([]string{"a", "b", "c"})
	if err := tbl.Append(Row{"1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !reflect.DeepEqual(tbl.Rows[0], Row{"1", nil, nil}) {
		t.Fatalf("row=%v", tbl.Rows[0])
	}
	if err := tbl.Append(Row{"1", "2", "3", "4"}); err == nil {
		t.Fatal("expected error for wide row")
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	src := sample()
	cp := src.Clone()
	cp.Rows[0][0] = "changed"
	cp.Columns[0] = "z"
	if src.Rows[0][0] != "1" || src.Columns[0] != "a" {
		t.Fatalf("source mutated: %+v", src)
	}
}

func TestSelectIndexesAndWithColumn(t *testing.T) {
	t.Parallel()
	src := sample()

	sel := src.SelectIndexes([]int{1})
	if !reflect.DeepEqual(sel.Columns, []string{"b"}) {
		t.Fatalf("columns=%v", sel.Columns)
	}
	if !reflect.DeepEqual(sel.Rows, []Row{{"x"}, {"y"}}) {
		t.Fatalf("rows=%v", sel.Rows)
	}

	wc := src.WithColumn("c", func(r Row) any {
		s, _ := r.String(1)
		return s + s
	})
	if !reflect.DeepEqual(wc.Columns, []string{"a", "b", "c"}) {
		t.Fatalf("columns=%v", wc.Columns)
	}
	if wc.Rows[1][2] != "yy" {
		t.Fatalf("derived=%v", wc.Rows[1][2])
	}
	if len(src.Columns) != 2 || len(src.Rows[0]) != 2 {
		t.Fatalf("source mutated: %+v", src)
	}
}

func TestSelectByName(t *testing.T) {
	t.Parallel()
	got := sample().Select("b", "missing", "a")
	want := []Row{{"x", nil, "1"}, {"y", nil, nil}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Fatalf("rows=%v want %v", got.Rows, want)
	}
}

func TestFilterAndRename(t *testing.T) {
	t.Parallel()
	src := sample()
	f := src.Filter(func(_ int, r Row) bool { return r[0] != nil })
	if f.Len() != 1 || f.Rows[0][1] != "x" {
		t.Fatalf("filtered=%+v", f)
	}
	rn := src.Rename(func(s string) string { return s + "_" })
	if !reflect.DeepEqual(rn.Columns, []string{"a_", "b_"}) {
		t.Fatalf("renamed=%v", rn.Columns)
	}
}

func TestConcat(t *testing.T) {
	t.Parallel()

	got, err := Concat(sample(), sample())
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if got.Len() != 4 {
		t.Fatalf("len=%d want 4", got.Len())
	}

	empty, err := Concat()
	if err != nil || empty.Len() != 0 || len(empty.Columns) != 0 {
		t.Fatalf("empty concat=%+v err=%v", empty, err)
	}

	other := &Table{Columns: []string{"b", "a"}}
	if _, err := Concat(sample(), other); !errors.Is(err, ErrColumnMismatch) {
		t.Fatalf("err=%v want ErrColumnMismatch", err)
	}
}

func TestNilTableLen(t *testing.T) {
	t.Parallel()
	var tbl *Table
	if tbl.Len() != 0 {
		t.Fatal("nil table should have zero rows")
	}
}
