package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that decodes from a JSON string such as "5m".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5m\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Pipeline {
	return Pipeline{
		Job: "csv_processor",
		Dirs: Dirs{
			Input:     "input",
			Output:    "output",
			Processed: "processed",
			Error:     "error",
			Metadata:  "metadata",
		},
		Parser:   Parser{Kind: "csv", Options: Options{}},
		Audit:    Audit{Kind: "none", TablePrefix: "csv_"},
		Metrics:  Metrics{Backend: "none"},
		Schedule: Schedule{Cron: "0 0 * * *", Retries: 1, RetryDelay: Duration(5 * time.Minute)},
		Runtime:  RuntimeConfig{Workers: 1},
	}
}

// Decode reads a JSON config over the defaults. Unknown keys are errors.
func Decode(r io.Reader) (Pipeline, error) {
	p := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("config: decode: %w", err)
	}
	return p, nil
}

// Load decodes the file at path (defaults only when path is empty) and then
// applies environment overrides read through getenv.
func Load(path string, getenv func(string) string) (Pipeline, error) {
	p := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if p, err = Decode(bytes.NewReader(raw)); err != nil {
			return Pipeline{}, err
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(&p, getenv); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

func applyEnv(p *Pipeline, getenv func(string) string) error {
	str := map[string]*string{
		"CSVP_INPUT_DIR":     &p.Dirs.Input,
		"CSVP_OUTPUT_DIR":    &p.Dirs.Output,
		"CSVP_PROCESSED_DIR": &p.Dirs.Processed,
		"CSVP_ERROR_DIR":     &p.Dirs.Error,
		"CSVP_METADATA_DIR":  &p.Dirs.Metadata,
		"CSVP_AUDIT_KIND":    &p.Audit.Kind,
		"CSVP_AUDIT_DSN":     &p.Audit.DSN,
		"METRICS_BACKEND":    &p.Metrics.Backend,
		"PUSHGATEWAY_URL":    &p.Metrics.PushgatewayURL,
		"DD_AGENT_ADDR":      &p.Metrics.StatsdAddr,
	}
	for k, dst := range str {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(getenv("CSVP_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: CSVP_WORKERS=%q: %w", v, err)
		}
		p.Runtime.Workers = n
	}
	return nil
}
