//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

// getTestDSN reads POSTGRES_TEST_DSN; the test is skipped when it is unset.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping Postgres integration tests")
	}
	return dsn
}

func TestRepositoryIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn, TablePrefix: "it_"})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	runID := uuid.NewString()
	now := time.Now()
	if err := repo.InsertFile(ctx, storage.FileRow{
		RunID: runID, SourcePath: "a.csv", ArchivedPath: "p/a.csv", Outcome: "accepted",
		ProcessedAt: now, RecordCount: 1, Report: []byte(`{}`),
	}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := repo.InsertBatch(ctx, storage.BatchRow{
		RunID: runID, StartedAt: now, FinishedAt: now, Files: 1, Records: 1, Summary: []byte(`{}`),
	}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
}
