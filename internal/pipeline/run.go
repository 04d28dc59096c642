package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schrodingerkitkat/csv-processor/internal/archive"
	"github.com/schrodingerkitkat/csv-processor/internal/audit"
	"github.com/schrodingerkitkat/csv-processor/internal/datasource"
	"github.com/schrodingerkitkat/csv-processor/internal/datasource/file"
	"github.com/schrodingerkitkat/csv-processor/internal/metrics"
	csvparser "github.com/schrodingerkitkat/csv-processor/internal/parser/csv"
	"github.com/schrodingerkitkat/csv-processor/internal/probe"
	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

// Run processes every eligible file in the input directory once.
//
// The returned error is non-nil only for run-level faults: a canceled
// context, discovery failure, accepted tables that cannot be combined, or a
// batch record that could not be written. Per-file problems are reported in
// Result.Failures. The Result is non-nil and the batch record is attempted
// whenever discovery succeeded.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	if !p.mu.TryLock() {
		return nil, ErrBusy
	}
	defer p.mu.Unlock()

	start := time.Now()
	res, err := p.run(ctx)
	metrics.RecordRun(p.cfg.Job, err, time.Since(start))
	if ferr := metrics.Flush(); ferr != nil {
		p.log.Warn("pipeline: metrics flush failed", "err", ferr)
	}
	if res != nil {
		p.lastMu.Lock()
		p.last = res
		p.lastMu.Unlock()
	}
	return res, err
}

// fileOutcome is what one worker hands back for one path.
type fileOutcome struct {
	record *audit.FileRecord
	table  *records.Table // accepted only
	err    *FileError
}

func (p *Processor) run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := file.Discover(p.cfg.InputDir, p.cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	runID := p.newRunID()
	log := p.log.With("run_id", runID)
	batch := audit.BatchRecord{RunID: runID, StartedAt: p.now()}
	log.Info("pipeline: run started", "job", p.cfg.Job, "input", p.cfg.InputDir, "files", len(paths))

	c := &counters{}
	outcomes := make([]fileOutcome, len(paths))
	done := make([]bool, len(paths))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = p.processFile(ctx, runID, path, c)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, path := range paths {
		if !done[i] {
			c.unstarted.Add(1)
			log.Warn("pipeline: file not started", "file", filepath.Base(path), "path", path)
		}
	}

	res := &Result{RunID: runID}
	agg := newErrAgg(5)
	var tables []*records.Table
	for i, o := range outcomes {
		if !done[i] {
			continue
		}
		if o.err != nil {
			res.Failures = append(res.Failures, o.err)
			batch.Failures = append(batch.Failures, audit.FileFailure{
				SourcePath:   o.err.Path,
				Stage:        string(o.err.Stage),
				Err:          o.err.Err.Error(),
				ArchivedPath: o.err.ArchivedPath,
			})
			agg.add(string(o.err.Stage) + ": " + o.err.Err.Error())
			continue
		}
		batch.Files = append(batch.Files, *o.record)
		if o.table != nil {
			tables = append(tables, o.table)
		}
	}

	var errs []error
	res.Table, err = records.Concat(tables...)
	if err != nil {
		res.Table = &records.Table{}
		errs = append(errs, fmt.Errorf("pipeline: combine results: %w", err))
	}

	batch.FinishedAt = p.now()
	res.Batch = batch
	logSummary(log, batch, c, agg)

	runErr := ctx.Err()
	recCtx := ctx
	if runErr != nil {
		// Still close out the batch that was started.
		recCtx = context.WithoutCancel(ctx)
	}
	if err := p.rec.RecordBatch(recCtx, batch); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: batch record: %w", err))
	}
	if runErr != nil {
		errs = append(errs, fmt.Errorf("pipeline: run interrupted: %w", runErr))
	}
	return res, errors.Join(errs...)
}

// processFile takes one file through parse, validate, transform, settle and
// record. Panics are turned into a FileError for the current stage.
func (p *Processor) processFile(ctx context.Context, runID, path string, c *counters) (out fileOutcome) {
	log := p.log.With("run_id", runID, "file", filepath.Base(path))
	stage := StageParse
	defer func() {
		if r := recover(); r != nil {
			out = fileOutcome{err: &FileError{Path: path, Stage: stage, Err: fmt.Errorf("panic: %v", r)}}
		}
		if out.err != nil {
			c.failed.Add(1)
			metrics.RecordFile(p.cfg.Job, "failed")
			log.Error("pipeline: file failed", "stage", out.err.Stage, "err", out.err.Err)
		}
	}()
	fail := func(err error) fileOutcome {
		return fileOutcome{err: &FileError{Path: path, Stage: stage, Err: err}}
	}
	log.Debug("pipeline: file discovered", "path", path)

	t0 := time.Now()
	table, enc, err := p.parse(ctx, path, log, c)
	metrics.RecordStep(p.cfg.Job, string(StageParse), err, time.Since(t0))
	if err != nil {
		return fail(err)
	}
	log.Info("pipeline: file parsed", "encoding", enc.Label, "confidence", enc.Confidence,
		"encoding_fallback", enc.Fallback, "rows", table.Len(), "columns", len(table.Columns))

	stage = StageValidate
	t0 = time.Now()
	verdict := p.validator.Validate(table)
	metrics.RecordStep(p.cfg.Job, string(StageValidate), nil, time.Since(t0))

	var (
		outcome  = archive.Rejected
		settled  *records.Table
		count    = table.Len()
		tag      = audit.OutcomeRejected
		archived string
	)
	if verdict.Accepted {
		stage = StageTransform
		settled = p.output.Apply(verdict.Table)
		outcome, count, tag = archive.Accepted, verdict.Table.Len(), audit.OutcomeAccepted
		if n, ok := verdict.Report[duplicatesKey].(int); ok {
			c.duplicates.Add(int64(n))
			metrics.RecordRows(p.cfg.Job, "duplicates", int64(n))
		}
	} else {
		log.Warn("pipeline: file rejected", "report", verdict.Report)
	}

	stage = StageSettle
	t0 = time.Now()
	archived, err = p.arch.Settle(ctx, settled, path, outcome)
	metrics.RecordStep(p.cfg.Job, string(StageSettle), err, time.Since(t0))
	if err != nil {
		return fail(err)
	}
	log.Info("pipeline: file settled", "outcome", tag, "archived", archived, "records", count)

	stage = StageRecord
	rec := audit.FileRecord{
		RunID:        runID,
		SourcePath:   path,
		ArchivedPath: archived,
		ProcessedAt:  p.now(),
		RecordCount:  count,
		Report:       verdict.Report,
		Outcome:      tag,
	}
	t0 = time.Now()
	err = p.rec.Record(ctx, rec)
	metrics.RecordStep(p.cfg.Job, string(StageRecord), err, time.Since(t0))
	if err != nil {
		o := fail(err)
		o.err.ArchivedPath = archived
		return o
	}

	if verdict.Accepted {
		c.accepted.Add(1)
		c.written.Add(int64(count))
		metrics.RecordRows(p.cfg.Job, "written", int64(count))
	} else {
		c.rejected.Add(1)
	}
	metrics.RecordFile(p.cfg.Job, tag)
	return fileOutcome{record: &rec, table: settled}
}

// parse reads the whole file, detects its encoding and parses it as CSV.
func (p *Processor) parse(ctx context.Context, path string, log *slog.Logger, c *counters) (*records.Table, probe.Result, error) {
	raw, err := datasource.ReadAll(ctx, openSource(path))
	if err != nil {
		return nil, probe.Result{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	enc := probe.DetectEncoding(probe.Sample(raw, p.cfg.SampleBytes))
	r, err := probe.NewReader(bytes.NewReader(raw), enc.Label)
	if err != nil {
		return nil, enc, fmt.Errorf("%w: %w", ErrParse, err)
	}

	parser := csvparser.NewParser(csvparser.Options{
		Comma:      p.cfg.Comma,
		TrimSpace:  p.cfg.TrimSpace,
		Strict:     p.cfg.Strict,
		LazyQuotes: p.cfg.LazyQuotes,
		OnSkip: func(line int, err error) {
			log.Warn("pipeline: row skipped", "line", line, "err", err)
		},
	})
	t, skipped, err := parser.Parse(r)
	if err != nil {
		return nil, enc, fmt.Errorf("%w: %w", ErrParse, err)
	}
	c.parsed.Add(int64(t.Len()))
	c.skipped.Add(int64(skipped))
	metrics.RecordRows(p.cfg.Job, "parsed", int64(t.Len()))
	metrics.RecordRows(p.cfg.Job, "skipped", int64(skipped))
	return t, enc, nil
}
