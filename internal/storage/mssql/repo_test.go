package mssql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
	"github.com/schrodingerkitkat/csv-processor/internal/storage/sqldb"
)

func TestMsIdent(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"csv_file_audit", "[csv_file_audit]"},
		{"we]ird", "[we]]ird]"},
	}
	for _, c := range cases {
		if got := msIdent(c.in); got != c.want {
			t.Errorf("msIdent(%q)=%s want %s", c.in, got, c.want)
		}
	}
}

func TestDialectDDL(t *testing.T) {
	t.Parallel()

	q := fmt.Sprintf(Dialect.CreateFiles, msIdent("csv_file_audit"), "csv_file_audit")
	if !strings.HasPrefix(q, "IF OBJECT_ID(N'csv_file_audit', N'U') IS NULL") {
		t.Fatalf("ddl=%q", q)
	}
	if !strings.Contains(q, "CREATE TABLE [csv_file_audit]") {
		t.Fatalf("ddl=%q", q)
	}
	if got := Dialect.Placeholder(2); got != "@p2" {
		t.Fatalf("placeholder=%s", got)
	}
}

func TestNewRepositoryBadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "sqlserver://host:notaport"})
	if err == nil || !strings.Contains(err.Error(), "mssql dsn") {
		t.Fatalf("err=%v want dsn error", err)
	}
}

func TestFactoryUsesHook(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	boom := errors.New("no database in unit tests")
	newRepository = func(context.Context, Config) (*sqldb.Repository, func(), error) {
		return nil, nil, boom
	}
	if _, err := storage.New(context.Background(), storage.Config{Kind: "mssql"}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want hook error", err)
	}
}
