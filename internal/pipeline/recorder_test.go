package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/schrodingerkitkat/csv-processor/internal/audit"
	"github.com/schrodingerkitkat/csv-processor/internal/transformer"
	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

type stubRecorder struct {
	fileErr, batchErr error
	files             []audit.FileRecord
	batches           []audit.BatchRecord
}

func (s *stubRecorder) Record(_ context.Context, r audit.FileRecord) error {
	s.files = append(s.files, r)
	return s.fileErr
}

func (s *stubRecorder) RecordBatch(_ context.Context, b audit.BatchRecord) error {
	s.batches = append(s.batches, b)
	return s.batchErr
}

// TestRecordFailureIsPerFile: the file is archived but its record could not
// be written, so it is reported as a failure with its archived path.
func TestRecordFailureIsPerFile(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeInput(t, d, "a.csv", "first_name,last_name,age\nAnn,Lee,30\n")
	rec := &stubRecorder{fileErr: audit.ErrWrite}
	p := newProcessor(t, d.config(), WithRecorder(rec))

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures=%v", res.Failures)
	}
	f := res.Failures[0]
	if f.Stage != StageRecord || f.ArchivedPath == "" || !errors.Is(f, audit.ErrWrite) {
		t.Fatalf("failure=%+v", f)
	}
	if len(rec.batches) != 1 || len(rec.batches[0].Failures) != 1 || rec.batches[0].Failures[0].ArchivedPath != f.ArchivedPath {
		t.Fatalf("batch=%+v", rec.batches)
	}
}

func TestBatchRecordFailureIsRunLevel(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	boom := errors.New("disk full")
	p := newProcessor(t, d.config(), WithRecorder(&stubRecorder{batchErr: boom}))

	res, err := p.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want batch error", err)
	}
	if res == nil || p.Last() != res {
		t.Fatal("result should still be returned and kept")
	}
}

// TestAuditMirrorReceivesRecords: the mirror sees the same records as the
// JSON artifacts.
func TestAuditMirrorReceivesRecords(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeInput(t, d, "a.csv", "first_name,last_name,age\nAnn,Lee,30\n")
	mirror := &stubRecorder{}
	p := newProcessor(t, d.config(), WithAuditMirror(mirror))

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mirror.files) != 1 || len(mirror.batches) != 1 {
		t.Fatalf("mirror files=%d batches=%d", len(mirror.files), len(mirror.batches))
	}
	if mirror.files[0].RunID != "0123456789abcdef" {
		t.Fatalf("run id=%q", mirror.files[0].RunID)
	}
	if !exists(jsonPath(d.meta, "a.csv")) {
		t.Fatal("JSON artifact missing next to mirror")
	}
}

// jsonPath mirrors audit.JSONRecorder naming for assertions.
func jsonPath(dir, source string) string { return audit.JSONRecorder{Dir: dir}.FilePath(source) }

// tagByFirstCell appends a column named after the first cell, so every file
// ends up with its own column set.
type tagByFirstCell struct{}

func (tagByFirstCell) Apply(in *records.Table) *records.Table {
	name, _ := in.Rows[0].String(0)
	return in.WithColumn(name, func(records.Row) any { return "x" })
}

// TestCombineFailureStillRecordsBatch: when accepted tables cannot be
// combined the run fails, but the batch is still recorded and kept.
func TestCombineFailureStillRecordsBatch(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeInput(t, d, "a.csv", "first_name,last_name,age\nAnn,Lee,30\n")
	writeInput(t, d, "b.csv", "first_name,last_name,age\nBob,Kim,41\n")
	rec := &stubRecorder{}
	p := newProcessor(t, d.config(), WithRecorder(rec))
	p.output = transformer.Chain{tagByFirstCell{}}

	res, err := p.Run(context.Background())
	if !errors.Is(err, records.ErrColumnMismatch) {
		t.Fatalf("err=%v want ErrColumnMismatch", err)
	}
	if res == nil || p.Last() != res {
		t.Fatal("result should be returned and kept")
	}
	if res.Table == nil || res.Table.Len() != 0 {
		t.Fatalf("table=%+v want empty", res.Table)
	}
	if len(rec.batches) != 1 || len(rec.batches[0].Files) != 2 {
		t.Fatalf("batches=%+v", rec.batches)
	}
}
