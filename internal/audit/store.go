package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/schrodingerkitkat/csv-processor/internal/schema"
	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

// StoreRecorder mirrors records into a SQL audit store.
type StoreRecorder struct {
	repo storage.Repository
}

// NewStoreRecorder ensures the audit tables exist and returns a recorder
// writing to repo. The caller owns repo and closes it.
func NewStoreRecorder(ctx context.Context, repo storage.Repository) (*StoreRecorder, error) {
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return &StoreRecorder{repo: repo}, nil
}

func (s *StoreRecorder) Record(ctx context.Context, r FileRecord) error {
	rep := r.Report
	if rep == nil {
		rep = schema.Report{}
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("%w: encode report: %w", ErrWrite, err)
	}
	err = s.repo.InsertFile(ctx, storage.FileRow{
		RunID:        r.RunID,
		SourcePath:   r.SourcePath,
		ArchivedPath: r.ArchivedPath,
		Outcome:      r.Outcome,
		ProcessedAt:  r.ProcessedAt,
		RecordCount:  r.RecordCount,
		Report:       raw,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (s *StoreRecorder) RecordBatch(ctx context.Context, b BatchRecord) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("%w: encode batch: %w", ErrWrite, err)
	}
	err = s.repo.InsertBatch(ctx, storage.BatchRow{
		RunID:      b.RunID,
		StartedAt:  b.StartedAt,
		FinishedAt: b.FinishedAt,
		Files:      len(b.Files),
		Failures:   len(b.Failures),
		Records:    b.NumRecords(),
		Summary:    raw,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
