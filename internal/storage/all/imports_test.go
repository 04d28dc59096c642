package all

import (
	"reflect"
	"testing"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

func TestAllKindsRegistered(t *testing.T) {
	want := []string{"mssql", "mysql", "postgres", "sqlite"}
	if got := storage.ListKinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v want %v", got, want)
	}
}
