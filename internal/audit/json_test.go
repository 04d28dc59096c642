package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schrodingerkitkat/csv-processor/internal/schema"
)

func TestJSONRecorderWritesFileArtifact(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "metadata")
	j := JSONRecorder{Dir: dir}
	r := FileRecord{
		SourcePath:   "/in/people.v2.csv",
		ArchivedPath: "/error/20240309140507_people.v2.csv",
		ProcessedAt:  at,
		Report:       schema.Report{schema.MissingRequiredColumns: []string{"age"}},
		Outcome:      OutcomeRejected,
	}
	if err := j.Record(context.Background(), r); err != nil {
		t.Fatalf("Record: %v", err)
	}

	path := filepath.Join(dir, "people.v2_metadata.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(raw), "\n    \"file_name\"") {
		t.Fatalf("artifact not indented with 4 spaces:\n%s", raw)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	rep := got["validation_report"].(map[string]any)
	if cols := rep["missing_required_columns"].([]any); len(cols) != 1 || cols[0] != "age" {
		t.Fatalf("report=%v", rep)
	}
}

func TestJSONRecorderBatchName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j := JSONRecorder{Dir: dir}
	b := BatchRecord{RunID: "0123456789abcdef", StartedAt: at, FinishedAt: at}
	if err := j.RecordBatch(context.Background(), b); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	want := filepath.Join(dir, "batch_20240309140507_01234567_metadata.json")
	if j.BatchPath(b) != want {
		t.Fatalf("BatchPath=%s want %s", j.BatchPath(b), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("batch artifact missing: %v", err)
	}
}

func TestJSONRecorderWriteFailure(t *testing.T) {
	t.Parallel()

	// Dir is a regular file, so MkdirAll fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	j := JSONRecorder{Dir: blocker}
	err := j.Record(context.Background(), FileRecord{SourcePath: "a.csv", ProcessedAt: at})
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("err=%v want ErrWrite", err)
	}
}

func TestJSONRecorderCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := JSONRecorder{Dir: t.TempDir()}.RecordBatch(ctx, BatchRecord{})
	if !errors.Is(err, ErrWrite) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}
