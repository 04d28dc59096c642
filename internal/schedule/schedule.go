// Package schedule triggers pipeline runs on a cron cadence, retries a run
// that fails at run level and alerts when the retries are exhausted.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/schrodingerkitkat/csv-processor/internal/pipeline"
)

// Job is one triggerable run. *pipeline.Processor satisfies it.
type Job interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Config mirrors config.Schedule.
type Config struct {
	Cron       string
	Retries    int
	RetryDelay time.Duration
}

// Runner owns the retry policy and the cron loop for one Job.
type Runner struct {
	job    Job
	cfg    Config
	log    *slog.Logger
	notify Notifier

	mu   sync.Mutex
	cron *cron.Cron
	stop context.CancelFunc
}

// Option customizes a Runner.
type Option func(*Runner)

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

func WithNotifier(n Notifier) Option { return func(r *Runner) { r.notify = n } }

// sleep waits d or until ctx is done; tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewRunner validates the cron expression up front.
func NewRunner(job Job, cfg Config, opts ...Option) (*Runner, error) {
	if cfg.Cron == "" {
		cfg.Cron = "0 0 * * *"
	}
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("schedule: cron %q: %w", cfg.Cron, err)
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	r := &Runner{job: job, cfg: cfg, log: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	if r.notify == nil {
		r.notify = LogNotifier{Log: r.log}
	}
	return r, nil
}

// RunOnce runs the job, retrying run-level failures up to Retries times with
// RetryDelay between attempts. Per-file failures are reported but not
// retried; those files stay in the input directory for the next cadence.
//
// A run refused with pipeline.ErrBusy is not retried either.
func (r *Runner) RunOnce(ctx context.Context) (*pipeline.Result, error) {
	var (
		res *pipeline.Result
		err error
	)
	attempts := r.cfg.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err = r.job.Run(ctx)
		if err == nil {
			if res != nil && !res.OK() {
				r.notify.Notify(ctx, Alert{
					Level:    LevelWarning,
					RunID:    res.RunID,
					Message:  fmt.Sprintf("%d file(s) failed", len(res.Failures)),
					Failures: res.Failures,
				})
			}
			return res, nil
		}
		if errors.Is(err, pipeline.ErrBusy) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			r.log.Warn("schedule: run failed, retrying",
				"attempt", attempt, "of", attempts, "delay", r.cfg.RetryDelay, "err", err)
			if serr := sleep(ctx, r.cfg.RetryDelay); serr != nil {
				break
			}
		}
	}

	alert := Alert{Level: LevelError, Message: err.Error(), Err: err}
	if res != nil {
		alert.RunID = res.RunID
		alert.Failures = res.Failures
	}
	r.notify.Notify(ctx, alert)
	return res, err
}

// Start schedules RunOnce on the cron expression. A tick that fires while the
// previous one is still running is skipped.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("schedule: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.cfg.Cron, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Error("schedule: run failed", "err", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule: add %q: %w", r.cfg.Cron, err)
	}
	c.Start()
	r.cron, r.stop = c, cancel
	r.log.Info("schedule: started", "cron", r.cfg.Cron, "retries", r.cfg.Retries)
	return nil
}

// Stop cancels a pending retry and waits for a running job to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.stop
	r.cron, r.stop = nil, nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	r.log.Info("schedule: stopped")
}
