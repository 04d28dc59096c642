package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
	"github.com/schrodingerkitkat/csv-processor/internal/storage/sqldb"
)

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

// TestFactoryRoundTrip opens the registered backend through storage.New and
// writes one file row and one batch row.
func TestFactoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:", TablePrefix: "csv_"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	now := time.Now()
	if err := repo.InsertFile(ctx, storage.FileRow{
		RunID: "r1", SourcePath: "a.csv", ArchivedPath: "p/a.csv", Outcome: "accepted",
		ProcessedAt: now, RecordCount: 2, Report: []byte(`{"duplicates":1}`),
	}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := repo.InsertBatch(ctx, storage.BatchRow{
		RunID: "r1", StartedAt: now, FinishedAt: now, Files: 1, Records: 2, Summary: []byte(`{}`),
	}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	w, ok := repo.(*wrappedRepo)
	if !ok {
		t.Fatalf("repo type %T", repo)
	}
	var report string
	if err := w.DB().QueryRowContext(ctx, `SELECT report FROM csv_file_audit WHERE run_id = ?`, "r1").Scan(&report); err != nil {
		t.Fatalf("query: %v", err)
	}
	if report != `{"duplicates":1}` {
		t.Fatalf("report=%q", report)
	}
}

func TestFactoryUsesHook(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var got Config
	newRepository = func(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
		got = cfg
		return orig(ctx, Config{DSN: ":memory:"})
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "file:x.db", TablePrefix: "p_"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	repo.Close()
	if got.DSN != "file:x.db" || got.TablePrefix != "p_" {
		t.Fatalf("hook saw %+v", got)
	}
}
