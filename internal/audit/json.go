package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schrodingerkitkat/csv-processor/internal/fsutil"
)

// BatchTimeLayout stamps batch artifact names.
const BatchTimeLayout = "20060102150405"

// JSONRecorder writes indented JSON artifacts into Dir, atomically.
type JSONRecorder struct {
	Dir string
}

// FilePath is where the artifact for source lands: "{stem}_metadata.json".
func (j JSONRecorder) FilePath(source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(j.Dir, stem+"_metadata.json")
}

// BatchPath is "batch_{YYYYMMDDHHMMSS}_{run id prefix}_metadata.json".
func (j JSONRecorder) BatchPath(b BatchRecord) string {
	id := b.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(j.Dir, fmt.Sprintf("batch_%s_%s_metadata.json",
		b.StartedAt.Format(BatchTimeLayout), id))
}

func (j JSONRecorder) Record(ctx context.Context, r FileRecord) error {
	return j.write(ctx, j.FilePath(r.SourcePath), r)
}

func (j JSONRecorder) RecordBatch(ctx context.Context, b BatchRecord) error {
	return j.write(ctx, j.BatchPath(b), b)
}

func (j JSONRecorder) write(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	err := fsutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(v)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}
