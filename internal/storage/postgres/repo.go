// Package postgres implements the Postgres audit store using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN         string // connection string for pgxpool
	Schema      string // optional schema, e.g. "audit"; empty uses search_path
	TablePrefix string
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool    *pgxpool.Pool
	files   string // quoted, schema-qualified
	batches string
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	files, batches, err := storage.TableNames(cfg.TablePrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	r := &Repository{
		pool:    pool,
		files:   qualify(cfg.Schema, files),
		batches: qualify(cfg.Schema, batches),
	}
	return r, func() { pool.Close() }, nil
}

func qualify(schema, table string) string {
	if schema == "" {
		return pgIdent(table)
	}
	return pgFQN(schema + "." + table)
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id            BIGSERIAL PRIMARY KEY,
	run_id        TEXT        NOT NULL,
	source_path   TEXT        NOT NULL,
	archived_path TEXT        NOT NULL,
	outcome       TEXT        NOT NULL,
	processed_at  TIMESTAMPTZ NOT NULL,
	record_count  INTEGER     NOT NULL,
	report        JSONB       NOT NULL
)`, r.files),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT        PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	files       INTEGER     NOT NULL,
	failures    INTEGER     NOT NULL,
	records     INTEGER     NOT NULL,
	summary     JSONB       NOT NULL
)`, r.batches),
	}
	for _, q := range stmts {
		if _, err := r.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

var (
	fileCols  = []string{"run_id", "source_path", "archived_path", "outcome", "processed_at", "record_count", "report"}
	batchCols = []string{"run_id", "started_at", "finished_at", "files", "failures", "records", "summary"}
)

func (r *Repository) InsertFile(ctx context.Context, row storage.FileRow) error {
	_, err := r.pool.Exec(ctx, insertSQL(r.files, fileCols),
		row.RunID, row.SourcePath, row.ArchivedPath, row.Outcome,
		row.ProcessedAt, row.RecordCount, string(row.Report))
	if err != nil {
		return fmt.Errorf("postgres: insert file: %w", err)
	}
	return nil
}

func (r *Repository) InsertBatch(ctx context.Context, row storage.BatchRow) error {
	_, err := r.pool.Exec(ctx, insertSQL(r.batches, batchCols),
		row.RunID, row.StartedAt, row.FinishedAt,
		row.Files, row.Failures, row.Records, string(row.Summary))
	if err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// insertSQL renders INSERT INTO <table> (<cols>) VALUES ($1, ...).
func insertSQL(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(mapIdent(cols), ", "), strings.Join(ph, ", "))
}

// pgIdent quotes a single identifier, doubling embedded quotes.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "audit.csv_file_audit" to
// "audit"."csv_file_audit". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
