// This file adds a lightweight linter for Pipeline values. It performs static
// checks over a decoded Pipeline and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/schrodingerkitkat/csv-processor/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "dirs.input",
// "parser.options.comma"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline and does not touch the file system.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateDirs(p.Dirs)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateValidation(p.Validation)...)
	issues = append(issues, validateAudit(p.Audit)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateSchedule(p.Schedule)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

func validateDirs(d Dirs) []Issue {
	var issues []Issue
	named := []struct {
		path, val string
	}{
		{"dirs.input", d.Input},
		{"dirs.output", d.Output},
		{"dirs.processed", d.Processed},
		{"dirs.error", d.Error},
		{"dirs.metadata", d.Metadata},
	}
	for _, n := range named {
		if strings.TrimSpace(n.val) == "" {
			issues = append(issues, Issue{SeverityError, n.path, n.path + " must not be empty"})
		}
	}
	if len(issues) > 0 {
		return issues
	}

	in := filepath.Clean(d.Input)
	for _, n := range named[1:] {
		if filepath.Clean(n.val) == in {
			issues = append(issues, Issue{SeverityError, n.path,
				fmt.Sprintf("%s must differ from dirs.input (%s); files would be picked up again", n.path, d.Input)})
		}
	}
	if filepath.Clean(d.Processed) == filepath.Clean(d.Error) {
		issues = append(issues, Issue{SeverityWarning, "dirs.error",
			"dirs.error equals dirs.processed; accepted and rejected files will share one archive"})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if p.Kind != "" && p.Kind != "csv" {
		issues = append(issues, Issue{SeverityError, "parser.kind",
			fmt.Sprintf("unknown parser kind %q; only \"csv\" is supported", p.Kind)})
	}
	if s, ok := p.Options["comma"].(string); ok {
		r := []rune(s)
		if len(r) != 1 || r[0] == '"' || r[0] == '\n' || r[0] == '\r' {
			issues = append(issues, Issue{SeverityError, "parser.options.comma",
				fmt.Sprintf("comma must be a single character other than quote or newline, got %q", s)})
		}
	}
	for i, ext := range p.Extensions() {
		if !strings.HasPrefix(ext, ".") {
			issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("parser.options.extensions[%d]", i),
				fmt.Sprintf("extension %q has no leading dot and will match nothing", ext)})
		}
	}
	if p.SampleBytes() <= 0 {
		issues = append(issues, Issue{SeverityError, "parser.options.sample_bytes",
			"sample_bytes must be positive"})
	}
	return issues
}

func validateValidation(v Validation) []Issue {
	if lo, hi := v.Bounds(); lo > hi {
		return []Issue{{SeverityError, "validation.age_min",
			fmt.Sprintf("age_min (%g) exceeds age_max (%g)", lo, hi)}}
	}
	return nil
}

var auditKinds = map[string]struct{}{
	"sqlite": {}, "postgres": {}, "mysql": {}, "mssql": {},
}

func validateAudit(a Audit) []Issue {
	if !a.Enabled() {
		return nil
	}
	var issues []Issue
	if _, ok := auditKinds[a.Kind]; !ok {
		issues = append(issues, Issue{SeverityError, "audit.kind",
			fmt.Sprintf("unknown audit kind %q; want one of none, sqlite, postgres, mysql, mssql", a.Kind)})
	}
	if strings.TrimSpace(a.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "audit.dsn", "audit.dsn is required when audit.kind is set"})
	}
	if _, _, err := storage.TableNames(a.TablePrefix); err != nil {
		issues = append(issues, Issue{SeverityError, "audit.table_prefix", err.Error()})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if m.PushgatewayURL == "" {
			return []Issue{{SeverityError, "metrics.pushgateway_url", "prometheus backend requires pushgateway_url"}}
		}
	case "datadog":
		if m.StatsdAddr == "" {
			return []Issue{{SeverityError, "metrics.statsd_addr", "datadog backend requires statsd_addr"}}
		}
	default:
		return []Issue{{SeverityError, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q; want none, prometheus or datadog", m.Backend)}}
	}
	return nil
}

func validateSchedule(s Schedule) []Issue {
	var issues []Issue
	if s.Cron != "" {
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			issues = append(issues, Issue{SeverityError, "schedule.cron",
				fmt.Sprintf("invalid cron expression %q: %v", s.Cron, err)})
		}
	}
	if s.Retries < 0 {
		issues = append(issues, Issue{SeverityError, "schedule.retries", "retries must be >= 0"})
	}
	if s.RetryDelay < 0 {
		issues = append(issues, Issue{SeverityError, "schedule.retry_delay", "retry_delay must be >= 0"})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	switch {
	case r.Workers < 0:
		return []Issue{{SeverityError, "runtime.workers", "workers must be >= 0"}}
	case r.Workers > 64:
		return []Issue{{SeverityWarning, "runtime.workers",
			fmt.Sprintf("workers=%d is unusually high for file-level parallelism", r.Workers)}}
	}
	return nil
}
