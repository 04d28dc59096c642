package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

func TestIdentQuoting(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"csv_file_audit", `"csv_file_audit"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, c := range cases {
		if got := pgIdent(c.in); got != c.want {
			t.Errorf("pgIdent(%q)=%s want %s", c.in, got, c.want)
		}
	}
	if got := pgFQN("audit.files"); got != `"audit"."files"` {
		t.Fatalf("pgFQN=%s", got)
	}
	if got := qualify("", "t"); got != `"t"` {
		t.Fatalf("qualify=%s", got)
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	got := insertSQL(`"t"`, []string{"a", "b", "c"})
	if want := `INSERT INTO "t" ("a", "b", "c") VALUES ($1, $2, $3)`; got != want {
		t.Fatalf("insertSQL=%q want %q", got, want)
	}
}

func TestFactoryPassesConfig(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	boom := errors.New("no database in unit tests")
	var got Config
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return nil, nil, boom
	}
	_, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x", TablePrefix: "csv_"})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want hook error", err)
	}
	if got.DSN != "postgres://x" || got.TablePrefix != "csv_" {
		t.Fatalf("hook saw %+v", got)
	}
}

func TestNewRepositoryRejectsBadPrefix(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{DSN: "postgres://x", TablePrefix: "a b"}); err == nil {
		t.Fatal("expected prefix error")
	}
}
