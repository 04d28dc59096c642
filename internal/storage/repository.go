// Package storage is the backend-agnostic face of the SQL audit mirror.
//
// Concrete backends (sqlite, postgres, mysql, mssql) register a Factory in
// their init function; callers blank-import storage/all and open a
// Repository with New, never importing a backend directly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"
)

// ErrUnknownKind is returned by New for a kind nobody registered.
var ErrUnknownKind = errors.New("storage: unknown kind")

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
	// TablePrefix is prepended to the audit table names. Letters, digits and
	// '_' only.
	TablePrefix string
}

// FileRow is one settled file.
type FileRow struct {
	RunID        string
	SourcePath   string
	ArchivedPath string
	Outcome      string
	ProcessedAt  time.Time
	RecordCount  int
	// Report is the validation report as JSON.
	Report []byte
}

// BatchRow is one completed run.
type BatchRow struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Failures   int
	Records    int
	// Summary is the full batch record as JSON.
	Summary []byte
}

// Repository persists audit rows.
type Repository interface {
	// EnsureSchema creates the audit tables when missing.
	EnsureSchema(ctx context.Context) error
	InsertFile(ctx context.Context, row FileRow) error
	InsertBatch(ctx context.Context, row BatchRow) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// again replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported storage.kind=%s", ErrUnknownKind, cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var prefixRE = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// TableNames returns the file and batch audit table names for prefix.
func TableNames(prefix string) (files, batches string, err error) {
	if !prefixRE.MatchString(prefix) {
		return "", "", fmt.Errorf("storage: invalid table prefix %q", prefix)
	}
	return prefix + "file_audit", prefix + "batch_audit", nil
}
