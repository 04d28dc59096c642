package datadog

import (
	"reflect"
	"sync"
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/schrodingerkitkat/csv-processor/internal/metrics"
)

// fakeClient records Count/Histogram calls. Unused methods panic through the
// nil embedded interface.
type fakeClient struct {
	statsd.ClientInterface

	mu      sync.Mutex
	counts  []string
	hists   []string
	tags    [][]string
	flushed int
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, name)
	f.tags = append(f.tags, tags)
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hists = append(f.hists, name)
	return nil
}

func (f *fakeClient) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
	return nil
}

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty Addr")
	}
}

func TestNewBackendUDP(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "csvp.", GlobalTags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBackendForwardsToClient(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"outcome": "accepted", "job": "j"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.2, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !reflect.DeepEqual(fc.counts, []string{metrics.FilesTotal}) {
		t.Fatalf("counts=%v", fc.counts)
	}
	if want := []string{"job:j", "outcome:accepted"}; !reflect.DeepEqual(fc.tags[0], want) {
		t.Fatalf("tags=%v want %v", fc.tags[0], want)
	}
	if !reflect.DeepEqual(fc.hists, []string{metrics.StepDurationSeconds}) {
		t.Fatalf("hists=%v", fc.hists)
	}
	if fc.flushed != 1 {
		t.Fatalf("flushed=%d", fc.flushed)
	}
}

func TestZeroBackendIsNoop(t *testing.T) {
	t.Parallel()

	var b Backend
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if labelsToTags(nil) != nil {
		t.Fatal("nil labels should give nil tags")
	}
	got := labelsToTags(metrics.Labels{"b": "2", "a": "1"})
	if want := []string{"a:1", "b:2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("tags=%v want %v", got, want)
	}
}
