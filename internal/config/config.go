// Package config defines the JSON-serializable configuration model for the
// CSV processor. Field names in Go mirror the JSON structure of the config
// file; decoding is performed by the standard library, with a light Options
// helper for typed access to parser settings.
//
// Example (trimmed):
//
//	{
//	  "job":    "csv_processor",
//	  "dirs":   { "input": "./input", "output": "./output", "processed": "./processed",
//	              "error": "./error", "metadata": "./metadata" },
//	  "parser": { "kind": "csv", "options": { "comma": ",", "strict": true } },
//	  "audit":  { "kind": "sqlite", "dsn": "file:audit.db", "table_prefix": "csv_" }
//	}
package config

import (
	"encoding/json"

	"github.com/schrodingerkitkat/csv-processor/internal/schema"
)

// Pipeline is the top-level object decoded from a config file.
type Pipeline struct {
	// Job names the pipeline in logs and metrics.
	Job string `json:"job"`

	Dirs       Dirs          `json:"dirs"`
	Parser     Parser        `json:"parser"`
	Validation Validation    `json:"validation"`
	Audit      Audit         `json:"audit"`
	Metrics    Metrics       `json:"metrics"`
	Schedule   Schedule      `json:"schedule"`
	HTTP       HTTP          `json:"http"`
	Runtime    RuntimeConfig `json:"runtime"`
}

// Dirs are the five directories a run works with. Input must exist; the
// others are created on demand.
type Dirs struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Processed string `json:"processed"`
	Error     string `json:"error"`
	Metadata  string `json:"metadata"`
}

// Parser selects how raw bytes become a table.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map. Keys for "csv":
	//   comma (string), trim_space (bool), strict (bool), lazy_quotes (bool),
	//   extensions ([]string), sample_bytes (int)
	Options Options `json:"options"`
}

// Comma is the field delimiter (default ',').
func (p Parser) Comma() rune { return p.Options.Rune("comma", ',') }

// TrimSpace reports whether cells are trimmed (default true).
func (p Parser) TrimSpace() bool { return p.Options.Bool("trim_space", true) }

// Strict reports whether malformed rows fail the file (default true).
func (p Parser) Strict() bool { return p.Options.Bool("strict", true) }

// LazyQuotes tolerates stray quotes inside fields (default false).
func (p Parser) LazyQuotes() bool { return p.Options.Bool("lazy_quotes", false) }

// Extensions lists eligible file extensions (default [".csv"]).
func (p Parser) Extensions() []string {
	if exts := p.Options.StringSlice("extensions"); len(exts) > 0 {
		return exts
	}
	return []string{".csv"}
}

// SampleBytes is the encoding-detection sample size (default 10000).
func (p Parser) SampleBytes() int { return p.Options.Int("sample_bytes", 10000) }

// Validation tunes the schema validator. Each bound left at zero takes its
// default (0 and 120).
type Validation struct {
	AgeMin float64 `json:"age_min"`
	AgeMax float64 `json:"age_max"`
}

// Bounds returns the effective inclusive age range.
func (v Validation) Bounds() (lo, hi float64) {
	lo, hi = v.AgeMin, v.AgeMax
	if lo == 0 {
		lo = schema.AgeMin
	}
	if hi == 0 {
		hi = schema.AgeMax
	}
	return lo, hi
}

// Audit configures the optional SQL mirror of the JSON audit trail. An empty
// kind or "none" keeps only the JSON artifacts.
type Audit struct {
	Kind        string `json:"kind"`
	DSN         string `json:"dsn"`
	TablePrefix string `json:"table_prefix"`
}

// Enabled reports whether a SQL mirror is configured.
func (a Audit) Enabled() bool { return a.Kind != "" && a.Kind != "none" }

// Metrics selects a metrics backend: "none", "prometheus" or "datadog".
type Metrics struct {
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	StatsdAddr     string `json:"statsd_addr"`
	Namespace      string `json:"namespace"`
}

// Schedule configures the cron trigger.
type Schedule struct {
	// Cron is a standard 5-field expression.
	Cron string `json:"cron"`
	// Retries is how many times a failed run is retried.
	Retries    int      `json:"retries"`
	RetryDelay Duration `json:"retry_delay"`
}

// HTTP configures the manual trigger server. Empty Addr disables it.
type HTTP struct {
	Addr string `json:"addr"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// Workers is the number of files processed at once (default 1).
	Workers int `json:"workers"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It performs only
// minimal type coercion and returns provided defaults when a key is absent or
// of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON makes a missing or null "options" object decode to a non-nil,
// empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
