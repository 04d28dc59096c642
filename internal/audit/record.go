// Package audit records what happened to every file and every batch run.
//
// A FileRecord is written for each file that reached a terminal outcome
// (accepted or rejected). A BatchRecord closes every run and also lists the
// files that failed before they could be settled.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/schrodingerkitkat/csv-processor/internal/schema"
)

// ErrWrite wraps every failure to persist a record.
var ErrWrite = errors.New("audit: write failed")

// TimeLayout is the processed_time format in artifacts.
const TimeLayout = "2006-01-02 15:04:05"

// Outcome values carried on FileRecord.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// FileRecord is the audit entry for one settled file.
type FileRecord struct {
	RunID        string
	SourcePath   string
	ArchivedPath string
	ProcessedAt  time.Time
	// RecordCount is the number of rows written for an accepted file, or
	// the number of parsed rows for a rejected one.
	RecordCount int
	Report      schema.Report
	Outcome     string
}

type fileJSON struct {
	FileName         string        `json:"file_name"`
	ProcessedTime    string        `json:"processed_time"`
	NumRecords       int           `json:"num_records"`
	ValidationReport schema.Report `json:"validation_report"`
	SourceFile       string        `json:"source_file,omitempty"`
	Outcome          string        `json:"outcome,omitempty"`
}

func (r FileRecord) toJSON(full bool) fileJSON {
	rep := r.Report
	if rep == nil {
		rep = schema.Report{}
	}
	out := fileJSON{
		FileName:         r.ArchivedPath,
		ProcessedTime:    r.ProcessedAt.Format(TimeLayout),
		NumRecords:       r.RecordCount,
		ValidationReport: rep,
	}
	if full {
		out.SourceFile = r.SourcePath
		out.Outcome = r.Outcome
	}
	return out
}

// MarshalJSON renders the per-file artifact: file_name (archived path),
// processed_time, num_records and validation_report.
func (r FileRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON(false))
}

// FileFailure is a file that produced no FileRecord.
type FileFailure struct {
	SourcePath string
	Stage      string
	Err        string
	// ArchivedPath is set when the file was moved before the failure (for
	// example the per-file record could not be written).
	ArchivedPath string
}

type failureJSON struct {
	SourceFile   string `json:"source_file"`
	Stage        string `json:"stage"`
	Error        string `json:"error"`
	ArchivedPath string `json:"archived_path,omitempty"`
}

// BatchRecord summarizes one run.
type BatchRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Files are in discovery order.
	Files    []FileRecord
	Failures []FileFailure
}

// NumRecords sums RecordCount over accepted files.
func (b BatchRecord) NumRecords() int {
	n := 0
	for _, f := range b.Files {
		if f.Outcome == OutcomeAccepted {
			n += f.RecordCount
		}
	}
	return n
}

// Counts returns accepted and rejected file totals.
func (b BatchRecord) Counts() (accepted, rejected int) {
	for _, f := range b.Files {
		if f.Outcome == OutcomeAccepted {
			accepted++
		} else {
			rejected++
		}
	}
	return accepted, rejected
}

type batchJSON struct {
	RunID        string        `json:"run_id"`
	StartedTime  string        `json:"started_time"`
	FinishedTime string        `json:"finished_time"`
	NumFiles     int           `json:"num_files"`
	NumRecords   int           `json:"num_records"`
	Files        []fileJSON    `json:"files"`
	Failures     []failureJSON `json:"failures"`
}

func (b BatchRecord) MarshalJSON() ([]byte, error) {
	out := batchJSON{
		RunID:        b.RunID,
		StartedTime:  b.StartedAt.Format(TimeLayout),
		FinishedTime: b.FinishedAt.Format(TimeLayout),
		NumFiles:     len(b.Files),
		NumRecords:   b.NumRecords(),
		Files:        make([]fileJSON, 0, len(b.Files)),
		Failures:     make([]failureJSON, 0, len(b.Failures)),
	}
	for _, f := range b.Files {
		out.Files = append(out.Files, f.toJSON(true))
	}
	for _, f := range b.Failures {
		out.Failures = append(out.Failures, failureJSON{
			SourceFile:   f.SourcePath,
			Stage:        f.Stage,
			Error:        f.Err,
			ArchivedPath: f.ArchivedPath,
		})
	}
	return json.Marshal(out)
}

// Recorder persists audit records.
type Recorder interface {
	Record(ctx context.Context, r FileRecord) error
	RecordBatch(ctx context.Context, b BatchRecord) error
}

// Multi fans out to every recorder in order. All recorders are called; the
// first error is returned.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, r FileRecord) error {
	var first error
	for _, rec := range m {
		if err := rec.Record(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) RecordBatch(ctx context.Context, b BatchRecord) error {
	var first error
	for _, rec := range m {
		if err := rec.RecordBatch(ctx, b); err != nil && first == nil {
			first = err
		}
	}
	return first
}
