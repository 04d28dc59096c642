// Command csvprocessor moves CSV files from an input directory through
// validation and transformation into output, processed and error
// directories, recording an audit trail for every file and run.
//
// By default it runs once and exits. -schedule runs on the configured cron
// expression and -listen serves the manual trigger; both run until
// interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/schrodingerkitkat/csv-processor/internal/audit"
	"github.com/schrodingerkitkat/csv-processor/internal/config"
	"github.com/schrodingerkitkat/csv-processor/internal/metrics"
	"github.com/schrodingerkitkat/csv-processor/internal/metrics/datadog"
	"github.com/schrodingerkitkat/csv-processor/internal/metrics/prompush"
	"github.com/schrodingerkitkat/csv-processor/internal/pipeline"
	"github.com/schrodingerkitkat/csv-processor/internal/schedule"
	"github.com/schrodingerkitkat/csv-processor/internal/storage"
	"github.com/schrodingerkitkat/csv-processor/internal/webui"

	// register all backends with the storage factory; audit.kind picks one.
	_ "github.com/schrodingerkitkat/csv-processor/internal/storage/all"
)

const (
	exitOK           = 0
	exitFailure      = 1
	exitFileFailures = 2
)

type flags struct {
	cfgPath        string
	validate       bool
	once           bool
	onceSet        bool
	schedule       bool
	listen         string
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
	logFormat      string
	verbose        bool
}

func parseFlags(fs *flag.FlagSet, args []string) (flags, error) {
	var f flags
	fs.StringVar(&f.cfgPath, "config", "", "pipeline config JSON path (defaults only when empty)")
	fs.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&f.once, "once", true, "run once and exit (default unless -schedule or -listen)")
	fs.BoolVar(&f.schedule, "schedule", false, "run on the configured cron schedule until interrupted")
	fs.StringVar(&f.listen, "listen", "", "serve the manual trigger on this address (overrides http.addr)")
	fs.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none, prometheus or datadog (overrides config and METRICS_BACKEND)")
	fs.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides config and PUSHGATEWAY_URL)")
	fs.StringVar(&f.statsdAddr, "statsd-addr", "", "DogStatsD address (overrides config and DD_AGENT_ADDR)")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fs.BoolVar(&f.verbose, "v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "once" {
			f.onceSet = true
		}
	})
	if !f.onceSet && (f.schedule || f.listen != "") {
		f.once = false
	}
	return f, nil
}

// main loads .env and the pipeline config, validates it, wires metrics and
// the audit mirror, and then runs once, on a schedule, or behind HTTP.
func main() {
	f, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(exitFailure)
	}
	os.Exit(run(f, os.Stderr))
}

func run(f flags, stderr io.Writer) int {
	log, err := newLogger(f.logFormat, f.verbose, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("config: .env not loaded", "err", err)
	}

	p, err := config.Load(f.cfgPath, os.Getenv)
	if err != nil {
		log.Error("config: load failed", "path", f.cfgPath, "err", err)
		return exitFailure
	}
	applyFlags(&p, f)

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Error("config: invalid", "path", f.cfgPath)
		return exitFailure
	}
	if f.validate {
		log.Info("config: valid", "path", f.cfgPath)
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeMetrics, err := setupMetrics(p, log)
	if err != nil {
		log.Error("metrics: init failed", "backend", p.Metrics.Backend, "err", err)
		return exitFailure
	}
	defer closeMetrics()

	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if p.Audit.Enabled() {
		mirror, closeMirror, err := openAuditMirror(ctx, p.Audit)
		if err != nil {
			log.Error("audit: mirror unavailable", "kind", p.Audit.Kind, "err", err)
			return exitFailure
		}
		defer closeMirror()
		opts = append(opts, pipeline.WithAuditMirror(mirror))
	}

	proc, err := pipeline.New(pipelineConfig(p), opts...)
	if err != nil {
		log.Error("pipeline: init failed", "err", err)
		return exitFailure
	}

	if f.once {
		start := time.Now()
		res, err := proc.Run(ctx)
		code := exitCode(res, err)
		if err != nil {
			log.Error("pipeline: run failed", "err", err)
		}
		log.Debug("completed", "elapsed", time.Since(start).Truncate(time.Millisecond), "exit", code)
		return code
	}
	return serve(ctx, f, p, proc, log)
}

// serve runs the scheduler and/or the HTTP trigger until ctx is done.
func serve(ctx context.Context, f flags, p config.Pipeline, proc *pipeline.Processor, log *slog.Logger) int {
	if !f.schedule && p.HTTP.Addr == "" {
		log.Error("nothing to do: -once=false needs -schedule, -listen or http.addr")
		return exitFailure
	}
	errc := make(chan error, 1)

	if f.schedule {
		r, err := schedule.NewRunner(proc, schedule.Config{
			Cron:       p.Schedule.Cron,
			Retries:    p.Schedule.Retries,
			RetryDelay: time.Duration(p.Schedule.RetryDelay),
		}, schedule.WithLogger(log))
		if err != nil {
			log.Error("schedule: init failed", "err", err)
			return exitFailure
		}
		if err := r.Start(ctx); err != nil {
			log.Error("schedule: start failed", "err", err)
			return exitFailure
		}
		defer r.Stop()
	}

	var srv *webui.Server
	if p.HTTP.Addr != "" {
		srv = webui.NewServer(webui.Config{Addr: p.HTTP.Addr}, proc, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errc:
		log.Error("webui: server failed", "err", err)
		return exitFailure
	}
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn("webui: shutdown", "err", err)
		}
	}
	return exitOK
}

// applyFlags layers explicit flags over the loaded config: flag → env → file.
func applyFlags(p *config.Pipeline, f flags) {
	if f.metricsBackend != "" {
		p.Metrics.Backend = f.metricsBackend
	}
	if f.pushgatewayURL != "" {
		p.Metrics.PushgatewayURL = f.pushgatewayURL
	}
	if f.statsdAddr != "" {
		p.Metrics.StatsdAddr = f.statsdAddr
	}
	if f.listen != "" {
		p.HTTP.Addr = f.listen
	}
}

func newLogger(format string, verbose bool, w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown -log-format %q; want text or json", format)
	}
}

// setupMetrics installs the configured backend and returns its closer.
func setupMetrics(p config.Pipeline, log *slog.Logger) (func(), error) {
	switch p.Metrics.Backend {
	case "", "none":
		log.Debug("metrics: disabled")
		return func() {}, nil
	case "prometheus":
		b, err := prompush.NewBackend(p.Job, p.Metrics.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		log.Info("metrics: enabled", "backend", "prometheus", "url", p.Metrics.PushgatewayURL, "job", p.Job)
		return func() {}, nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.StatsdAddr,
			Namespace:  p.Metrics.Namespace,
			GlobalTags: []string{"service:csv-processor"},
		})
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		log.Info("metrics: enabled", "backend", "datadog", "addr", p.Metrics.StatsdAddr)
		return func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics: close", "err", err)
			}
		}, nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", p.Metrics.Backend)
	}
}

// openAuditMirror opens the SQL mirror for a.Kind and prepares its tables.
func openAuditMirror(ctx context.Context, a config.Audit) (audit.Recorder, func(), error) {
	repo, err := storage.New(ctx, storage.Config{Kind: a.Kind, DSN: a.DSN, TablePrefix: a.TablePrefix})
	if err != nil {
		return nil, nil, err
	}
	rec, err := audit.NewStoreRecorder(ctx, repo)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	return rec, repo.Close, nil
}

func pipelineConfig(p config.Pipeline) pipeline.Config {
	return pipeline.Config{
		Job:          p.Job,
		InputDir:     p.Dirs.Input,
		OutputDir:    p.Dirs.Output,
		ProcessedDir: p.Dirs.Processed,
		ErrorDir:     p.Dirs.Error,
		MetadataDir:  p.Dirs.Metadata,
		Extensions:   p.Parser.Extensions(),
		Comma:        p.Parser.Comma(),
		TrimSpace:    p.Parser.TrimSpace(),
		Strict:       p.Parser.Strict(),
		LazyQuotes:   p.Parser.LazyQuotes(),
		SampleBytes:  p.Parser.SampleBytes(),
		AgeMin:       p.Validation.AgeMin,
		AgeMax:       p.Validation.AgeMax,
		Workers:      p.Runtime.Workers,
	}
}

// exitCode maps a one-shot run to the process exit status.
func exitCode(res *pipeline.Result, err error) int {
	switch {
	case err != nil:
		return exitFailure
	case !res.OK():
		return exitFileFailures
	default:
		return exitOK
	}
}
