package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/schrodingerkitkat/csv-processor/internal/datasource"
)

func TestLocalReadsFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(p, []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewLocal(p)
	if src.Path() != p {
		t.Fatalf("Path=%q", src.Path())
	}
	got, err := datasource.ReadAll(context.Background(), src)
	if err != nil || string(got) != "a,b\n" {
		t.Fatalf("ReadAll=%q,%v", got, err)
	}
}

func TestLocalOpenErrors(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	present := filepath.Join(dir, "present.csv")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		ctx  context.Context
		path string
		want error
	}{
		{"missing", context.Background(), filepath.Join(dir, "missing.csv"), fs.ErrNotExist},
		{"canceled", canceled, present, context.Canceled},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			rc, err := NewLocal(c.path).Open(c.ctx)
			if !errors.Is(err, c.want) {
				t.Fatalf("err=%v want %v", err, c.want)
			}
			if rc != nil {
				t.Fatal("reader returned alongside error")
			}
		})
	}
}

func TestLocalOpenPermission(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file modes not enforced")
	}
	p := filepath.Join(t.TempDir(), "locked.csv")
	if err := os.WriteFile(p, []byte("x"), 0o000); err != nil {
		t.Fatal(err)
	}
	_, err := NewLocal(p).Open(context.Background())
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("err=%v want permission", err)
	}
}
