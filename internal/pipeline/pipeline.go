// Package pipeline runs one batch: it discovers input files, parses and
// validates each one, settles it into the processed or error archive, and
// records a per-file and per-batch audit trail.
//
// Failures are contained at the file boundary. A file that cannot be parsed
// stays in the input directory for the next run; the rest of the batch goes
// on.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schrodingerkitkat/csv-processor/internal/archive"
	"github.com/schrodingerkitkat/csv-processor/internal/audit"
	"github.com/schrodingerkitkat/csv-processor/internal/datasource"
	"github.com/schrodingerkitkat/csv-processor/internal/datasource/file"
	"github.com/schrodingerkitkat/csv-processor/internal/probe"
	"github.com/schrodingerkitkat/csv-processor/internal/transformer"
	"github.com/schrodingerkitkat/csv-processor/internal/transformer/builtin"
	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

var (
	// ErrConfig is returned by New for unusable directory settings.
	ErrConfig = errors.New("pipeline: invalid configuration")
	// ErrParse wraps read, decode and CSV errors for one file.
	ErrParse = errors.New("pipeline: parse failed")
	// ErrBusy is returned by Run while another run is in progress.
	ErrBusy = errors.New("pipeline: run already in progress")
)

// Config is everything a Processor needs. Zero values fall back to defaults
// where noted.
type Config struct {
	// Job labels logs and metrics (default "csv_processor").
	Job string

	InputDir     string
	OutputDir    string
	ProcessedDir string
	ErrorDir     string
	MetadataDir  string

	// Extensions lists eligible file extensions (default [".csv"]).
	Extensions []string
	// Comma is the input delimiter (default ',').
	Comma     rune
	TrimSpace bool
	// Strict fails a file on its first malformed row; otherwise such rows
	// are skipped and logged.
	Strict bool
	// LazyQuotes tolerates a quote inside an unquoted field.
	LazyQuotes bool
	// SampleBytes bounds the encoding-detection sample (default 10000).
	SampleBytes int

	// AgeMin and AgeMax bound plausible ages; a zero bound means its
	// default (0 and 120).
	AgeMin, AgeMax float64

	// Workers is how many files are processed at once (default 1).
	Workers int
}

// Option customizes a Processor.
type Option func(*Processor)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option { return func(p *Processor) { p.log = l } }

// WithRecorder replaces the audit recorder (default: JSON artifacts in
// MetadataDir).
func WithRecorder(r audit.Recorder) Option { return func(p *Processor) { p.rec = r } }

// WithAuditMirror adds a recorder next to the current one, for example a
// SQL audit store.
func WithAuditMirror(r audit.Recorder) Option {
	return func(p *Processor) { p.mirrors = append(p.mirrors, r) }
}

// WithClock overrides the time source for archive names and records.
func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option { return func(p *Processor) { p.newRunID = fn } }

// Processor runs batches. Runs are serialized; Run returns ErrBusy while one
// is in flight.
type Processor struct {
	cfg       Config
	log       *slog.Logger
	rec       audit.Recorder
	mirrors   []audit.Recorder
	arch      *archive.Archivist
	validator builtin.Validator
	output    transformer.Chain
	now       func() time.Time
	newRunID  func() string

	mu     sync.Mutex
	lastMu sync.RWMutex
	last   *Result
}

// openSource maps a discovered path to its byte source; tests replace it.
var openSource = func(path string) datasource.Source { return file.NewLocal(path) }

// New validates cfg, creates the output, archive and metadata directories,
// and returns a Processor. Nothing in the input directory is touched.
func New(cfg Config, opts ...Option) (*Processor, error) {
	if cfg.Job == "" {
		cfg.Job = "csv_processor"
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = file.DefaultExtensions
	}
	if cfg.SampleBytes <= 0 {
		cfg.SampleBytes = probe.SampleSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	p := &Processor{
		cfg:       cfg,
		log:       slog.Default(),
		validator: builtin.Validator{AgeMin: cfg.AgeMin, AgeMax: cfg.AgeMax},
		output:    builtin.Output(),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	if p.rec == nil {
		p.rec = audit.JSONRecorder{Dir: cfg.MetadataDir}
	}
	if len(p.mirrors) > 0 {
		p.rec = append(audit.Multi{p.rec}, p.mirrors...)
	}

	if err := p.checkDirs(); err != nil {
		return nil, err
	}
	p.arch = archive.New(archive.Config{
		OutputDir:    cfg.OutputDir,
		ProcessedDir: cfg.ProcessedDir,
		ErrorDir:     cfg.ErrorDir,
	}, archive.WithClock(p.now))
	return p, nil
}

func (p *Processor) checkDirs() error {
	c := p.cfg
	if c.InputDir == "" {
		return fmt.Errorf("%w: input directory not set", ErrConfig)
	}
	fi, err := os.Stat(c.InputDir)
	if err != nil {
		return fmt.Errorf("%w: input directory: %w", ErrConfig, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: input %s is not a directory", ErrConfig, c.InputDir)
	}

	in := filepath.Clean(c.InputDir)
	for _, d := range []struct{ name, path string }{
		{"output", c.OutputDir},
		{"processed", c.ProcessedDir},
		{"error", c.ErrorDir},
		{"metadata", c.MetadataDir},
	} {
		if d.path == "" {
			return fmt.Errorf("%w: %s directory not set", ErrConfig, d.name)
		}
		if filepath.Clean(d.path) == in {
			return fmt.Errorf("%w: %s directory equals the input directory", ErrConfig, d.name)
		}
		if err := os.MkdirAll(d.path, 0o755); err != nil {
			return fmt.Errorf("%w: %s directory: %w", ErrConfig, d.name, err)
		}
	}
	if filepath.Clean(c.ProcessedDir) == filepath.Clean(c.ErrorDir) {
		p.log.Warn("pipeline: processed and error directories are the same; outcomes share one archive",
			"dir", c.ProcessedDir)
	}
	return nil
}

// Result is the outcome of one run.
type Result struct {
	RunID string
	// Table concatenates the transformed tables of accepted files in
	// discovery order. With no accepted file it has no columns.
	Table *records.Table
	Batch audit.BatchRecord
	// Failures lists files that reached no terminal outcome, in discovery
	// order.
	Failures []*FileError
}

// OK reports whether every discovered file was settled and recorded.
func (r *Result) OK() bool { return r != nil && len(r.Failures) == 0 }

// Last returns the most recent completed run, or nil.
func (p *Processor) Last() *Result {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last
}
