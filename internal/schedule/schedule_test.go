package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/schrodingerkitkat/csv-processor/internal/pipeline"
)

type scriptedJob struct {
	mu    sync.Mutex
	calls int
	steps []step
}

type step struct {
	res *pipeline.Result
	err error
}

func (j *scriptedJob) Run(context.Context) (*pipeline.Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.steps[min(j.calls, len(j.steps)-1)]
	j.calls++
	return s.res, s.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Notify(_ context.Context, a Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// noSleep replaces the retry wait and records requested delays.
func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

func TestRunOnceRetries(t *testing.T) {
	boom := errors.New("batch record: disk full")
	ok := &pipeline.Result{RunID: "r2"}

	cases := []struct {
		name       string
		retries    int
		steps      []step
		wantCalls  int
		wantErr    bool
		wantAlerts []Level
	}{
		{"first try", 1, []step{{res: ok}}, 1, false, nil},
		{"retry succeeds", 1, []step{{err: boom}, {res: ok}}, 2, false, nil},
		{"retries exhausted", 2, []step{{err: boom}}, 3, true, []Level{LevelError}},
		{"no retries", 0, []step{{err: boom}}, 1, true, []Level{LevelError}},
		{"busy is not retried", 3, []step{{err: pipeline.ErrBusy}}, 1, true, []Level{LevelError}},
		{"file failures warn", 1, []step{{res: &pipeline.Result{
			RunID:    "r1",
			Failures: []*pipeline.FileError{{Path: "/in/b.csv", Stage: pipeline.StageParse, Err: boom}},
		}}}, 1, false, []Level{LevelWarning}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			delays := noSleep(t)
			job := &scriptedJob{steps: c.steps}
			n := &recordingNotifier{}
			r, err := NewRunner(job, Config{Retries: c.retries, RetryDelay: 5 * time.Minute},
				WithLogger(quiet()), WithNotifier(n))
			if err != nil {
				t.Fatalf("NewRunner: %v", err)
			}

			_, err = r.RunOnce(context.Background())
			if (err != nil) != c.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, c.wantErr)
			}
			if job.calls != c.wantCalls {
				t.Fatalf("calls=%d want %d", job.calls, c.wantCalls)
			}
			if len(*delays) != max(0, c.wantCalls-1) {
				t.Fatalf("sleeps=%v", *delays)
			}
			for _, d := range *delays {
				if d != 5*time.Minute {
					t.Fatalf("delay=%v", d)
				}
			}
			var levels []Level
			for _, a := range n.alerts {
				levels = append(levels, a.Level)
			}
			if len(levels) != len(c.wantAlerts) {
				t.Fatalf("alerts=%v want %v", levels, c.wantAlerts)
			}
			for i := range levels {
				if levels[i] != c.wantAlerts[i] {
					t.Fatalf("alerts=%v want %v", levels, c.wantAlerts)
				}
			}
		})
	}
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	noSleep(t)
	boom := errors.New("boom")
	job := &scriptedJob{steps: []step{{err: boom}}}
	r, _ := NewRunner(job, Config{Retries: 5}, WithLogger(quiet()), WithNotifier(&recordingNotifier{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RunOnce(ctx); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if job.calls != 1 {
		t.Fatalf("calls=%d want 1", job.calls)
	}
}

func TestNewRunnerRejectsBadCron(t *testing.T) {
	t.Parallel()
	if _, err := NewRunner(&scriptedJob{}, Config{Cron: "every day"}); err == nil {
		t.Fatal("expected cron error")
	}
	r, err := NewRunner(&scriptedJob{}, Config{})
	if err != nil || r.cfg.Cron != "0 0 * * *" {
		t.Fatalf("default cron=%q err=%v", r.cfg.Cron, err)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	job := jobFunc(func(context.Context) (*pipeline.Result, error) {
		runs.Add(1)
		return &pipeline.Result{}, nil
	})
	r, err := NewRunner(job, Config{Cron: "@every 1s"}, WithLogger(quiet()))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	r.Stop()
	r.Stop()
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
}

type jobFunc func(context.Context) (*pipeline.Result, error)

func (f jobFunc) Run(ctx context.Context) (*pipeline.Result, error) { return f(ctx) }

func TestLogNotifierLogsFailures(t *testing.T) {
	t.Parallel()
	LogNotifier{Log: quiet()}.Notify(context.Background(), Alert{
		Level:    LevelError,
		Message:  "x",
		Failures: []*pipeline.FileError{{Path: "p", Stage: pipeline.StageSettle, Err: errors.New("e")}},
	})
}
