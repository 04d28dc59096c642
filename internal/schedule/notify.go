package schedule

import (
	"context"
	"log/slog"

	"github.com/schrodingerkitkat/csv-processor/internal/pipeline"
)

type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Alert describes a run that needs attention.
type Alert struct {
	Level    Level
	RunID    string
	Message  string
	Err      error
	Failures []*pipeline.FileError
}

// Notifier delivers alerts. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, a Alert)
}

// LogNotifier writes alerts to a logger.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, a Alert) {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	lvl := slog.LevelWarn
	if a.Level == LevelError {
		lvl = slog.LevelError
	}
	log.Log(ctx, lvl, "schedule: alert", "run_id", a.RunID, "message", a.Message, "failed_files", len(a.Failures))
	for _, f := range a.Failures {
		log.Log(ctx, lvl, "schedule: alert file", "run_id", a.RunID, "path", f.Path, "stage", f.Stage, "err", f.Err)
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert)

func (f NotifierFunc) Notify(ctx context.Context, a Alert) { f(ctx, a) }
