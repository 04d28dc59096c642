// Package sqldb is the database/sql implementation of storage.Repository
// shared by the sqlite, mysql and mssql backends. Backends differ only in
// their Dialect.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Quote quotes an identifier.
	Quote func(ident string) string
	// CreateFiles and CreateBatches are DDL templates. %[1]s is the quoted
	// table name and %[2]s the bare one.
	CreateFiles   string
	CreateBatches string
}

// Repository writes audit rows through database/sql.
type Repository struct {
	db      *sql.DB
	d       Dialect
	files   string
	batches string
}

var _ storage.Repository = (*Repository)(nil)

// Open opens driver/dsn and pings it with a 5s timeout.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	return db, nil
}

// New wraps db. The table names come from storage.TableNames(prefix).
func New(db *sql.DB, d Dialect, prefix string) (*Repository, error) {
	files, batches, err := storage.TableNames(prefix)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db, d: d, files: files, batches: batches}, nil
}

// DB exposes the underlying handle.
func (r *Repository) DB() *sql.DB { return r.db }

// Tables returns the file and batch table names.
func (r *Repository) Tables() (files, batches string) { return r.files, r.batches }

func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{
		fmt.Sprintf(r.d.CreateFiles, r.d.Quote(r.files), r.files),
		fmt.Sprintf(r.d.CreateBatches, r.d.Quote(r.batches), r.batches),
	} {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: ensure schema: %w", r.d.Name, err)
		}
	}
	return nil
}

var (
	fileCols  = []string{"run_id", "source_path", "archived_path", "outcome", "processed_at", "record_count", "report"}
	batchCols = []string{"run_id", "started_at", "finished_at", "files", "failures", "records", "summary"}
)

func (r *Repository) InsertFile(ctx context.Context, row storage.FileRow) error {
	_, err := r.db.ExecContext(ctx, r.insertSQL(r.files, fileCols),
		row.RunID, row.SourcePath, row.ArchivedPath, row.Outcome,
		row.ProcessedAt.UTC(), row.RecordCount, string(row.Report))
	if err != nil {
		return fmt.Errorf("%s: insert file: %w", r.d.Name, err)
	}
	return nil
}

func (r *Repository) InsertBatch(ctx context.Context, row storage.BatchRow) error {
	_, err := r.db.ExecContext(ctx, r.insertSQL(r.batches, batchCols),
		row.RunID, row.StartedAt.UTC(), row.FinishedAt.UTC(),
		row.Files, row.Failures, row.Records, string(row.Summary))
	if err != nil {
		return fmt.Errorf("%s: insert batch: %w", r.d.Name, err)
	}
	return nil
}

func (r *Repository) Close() { _ = r.db.Close() }

func (r *Repository) insertSQL(table string, cols []string) string {
	quoted := make([]string, len(cols))
	ph := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = r.d.Quote(c)
		ph[i] = r.d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.d.Quote(table), strings.Join(quoted, ", "), strings.Join(ph, ", "))
}
