//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

// TestRepositoryIntegration creates the audit tables twice (idempotent DDL)
// and writes one row into each.
func TestRepositoryIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn, TablePrefix: "it_"})
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}
	defer closeFn()

	for i := 0; i < 2; i++ {
		if err := repo.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema #%d: %v", i, err)
		}
	}
	runID := uuid.NewString()
	now := time.Now()
	if err := repo.InsertFile(ctx, storage.FileRow{
		RunID: runID, SourcePath: "a.csv", ArchivedPath: "e/a.csv", Outcome: "rejected",
		ProcessedAt: now, Report: []byte(`{"missing_required_columns":["age"]}`),
	}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := repo.InsertBatch(ctx, storage.BatchRow{
		RunID: runID, StartedAt: now, FinishedAt: now, Files: 1, Summary: []byte(`{}`),
	}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
}
