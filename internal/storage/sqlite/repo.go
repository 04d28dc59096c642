package sqlite

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/schrodingerkitkat/csv-processor/internal/storage/sqldb"
)

// Dialect is the SQLite flavor of the audit tables.
var Dialect = sqldb.Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	Quote:       func(s string) string { return `"` + s + `"` },
	CreateFiles: `CREATE TABLE IF NOT EXISTS %[1]s (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT    NOT NULL,
	source_path   TEXT    NOT NULL,
	archived_path TEXT    NOT NULL,
	outcome       TEXT    NOT NULL,
	processed_at  TIMESTAMP NOT NULL,
	record_count  INTEGER NOT NULL,
	report        TEXT    NOT NULL
)`,
	CreateBatches: `CREATE TABLE IF NOT EXISTS %[1]s (
	run_id      TEXT    PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	files       INTEGER NOT NULL,
	failures    INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	summary     TEXT    NOT NULL
)`,
}

// NewRepository opens a SQLite database and returns a repository plus a
// Close function for cleanup.
//
// SQLite allows one writer; the pool is capped at a single connection,
// which also keeps ":memory:" databases shared across calls.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	db, err := sqldb.Open(ctx, "sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(1)

	repo, err := sqldb.New(db, Dialect, cfg.TablePrefix)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return repo, closeFn, nil
}
