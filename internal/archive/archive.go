// Package archive settles a processed input file: it writes the transformed
// output for accepted files and moves the source into the processed or error
// directory under a timestamped name.
//
// Moves never overwrite an existing archive. A name collision (two files with
// the same base name settled in the same second) gets a short random token.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/schrodingerkitkat/csv-processor/internal/fsutil"
	csvparser "github.com/schrodingerkitkat/csv-processor/internal/parser/csv"
	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

var (
	ErrSourceNotFound  = errors.New("archive: source file not found")
	ErrPermission      = errors.New("archive: permission denied")
	ErrMoveFailed      = errors.New("archive: move failed")
	ErrMoveUnconfirmed = errors.New("archive: move not confirmed")
	ErrOutputWrite     = errors.New("archive: output write failed")
)

// TimestampLayout prefixes archived file names (YYYYMMDDHHMMSS).
const TimestampLayout = "20060102150405"

// maxCollisions bounds the token retries for one move.
const maxCollisions = 8

// Outcome selects where a settled source file goes.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
)

// Config names the directories the archivist writes into.
type Config struct {
	OutputDir    string
	ProcessedDir string
	ErrorDir     string
	// Comma is the output delimiter; zero means ','.
	Comma rune
}

// Archivist performs settlement. It is safe for concurrent use.
type Archivist struct {
	cfg      Config
	now      func() time.Time
	newToken func() string
}

// Option customizes an Archivist.
type Option func(*Archivist)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(a *Archivist) { a.now = now } }

// New returns an Archivist for cfg.
func New(cfg Config, opts ...Option) *Archivist {
	a := &Archivist{
		cfg: cfg,
		now: time.Now,
		newToken: func() string {
			return uuid.NewString()[:8]
		},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Settle writes t to the output directory (Accepted only) and then moves src
// into the processed or error directory. It returns the archived path.
//
// For Accepted the output is written first; if that fails the source stays
// where it is. t is ignored for Rejected.
func (a *Archivist) Settle(ctx context.Context, t *records.Table, src string, outcome Outcome) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var dir string
	switch outcome {
	case Accepted:
		if t == nil {
			return "", fmt.Errorf("%w: no table for accepted file %s", ErrOutputWrite, src)
		}
		if _, err := a.WriteOutput(t, filepath.Base(src)); err != nil {
			return "", err
		}
		dir = a.cfg.ProcessedDir
	case Rejected:
		dir = a.cfg.ErrorDir
	default:
		return "", fmt.Errorf("%w: unknown outcome %q", ErrMoveFailed, outcome)
	}
	return a.Move(src, dir)
}

// WriteOutput writes t as CSV to OutputDir/name, replacing any earlier file.
func (a *Archivist) WriteOutput(t *records.Table, name string) (string, error) {
	dst := filepath.Join(a.cfg.OutputDir, filepath.Base(name))
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOutputWrite, dst, err)
	}
	err := fsutil.WriteFileAtomic(dst, 0o644, func(w io.Writer) error {
		return csvparser.Write(w, t, a.cfg.Comma)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOutputWrite, dst, err)
	}
	return dst, nil
}

// Move relocates src into destDir as "<timestamp>_<base>" and confirms the
// result. The source never ends up in both places.
func (a *Archivist) Move(src, destDir string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", classify(src, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s: not a regular file", ErrMoveFailed, src)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", classifyDest(destDir, err)
	}

	base := filepath.Base(src)
	ts := a.now().Format(TimestampLayout)
	dst := filepath.Join(destDir, ts+"_"+base)
	for attempt := 0; ; attempt++ {
		err = place(src, dst)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || attempt >= maxCollisions {
			return "", classify(src, err)
		}
		dst = filepath.Join(destDir, ts+"_"+a.newToken()+"_"+base)
	}

	fi, err := statDest(dst)
	if err != nil || !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s: %v", ErrMoveUnconfirmed, dst, err)
	}
	return dst, nil
}

// statDest confirms a move; tests replace it.
var statDest = os.Stat

// place moves src to dst without replacing an existing dst.
func place(src, dst string) error {
	err := os.Link(src, dst)
	switch {
	case err == nil:
		return removeSource(src, dst)
	case errors.Is(err, fs.ErrExist), errors.Is(err, fs.ErrNotExist):
		return err
	case crossDevice(err):
		return copyMove(src, dst)
	}
	// Hard links refused or unsupported by this filesystem.
	err = renameNoClobber(src, dst)
	if err != nil && crossDevice(err) {
		return copyMove(src, dst)
	}
	return err
}

// copyMove copies src into a temp file next to dst, links it into place and
// removes src.
func copyMove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".archive-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Link(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		if err := renameNoClobber(tmpName, dst); err != nil {
			return err
		}
	}
	return removeSource(src, dst)
}

// renameNoClobber renames unless newpath exists. The check and the rename are
// not atomic; it is only used where hard links are unavailable.
func renameNoClobber(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}

// removeSource deletes src after dst was created, undoing dst if that fails.
func removeSource(src, dst string) error {
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// classifyDest maps a destination directory failure. A missing path here is
// never the source's fault.
func classifyDest(dir string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %w", ErrPermission, dir, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrMoveFailed, dir, err)
}

func classify(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrPermission, path, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrMoveFailed, path, err)
	}
}
