package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ObserveJob("star", 200*time.Millisecond, nil)
	c.ObserveJob("star", 100*time.Millisecond, errors.New("boom"))
	c.ObserveValidPhotons("diag9", 1200)
	c.AddArchiveEntries("diag9", "star", 5)

	if got := promtest.ToFloat64(c.JobsTotal.WithLabelValues("star", statusOK)); got != 1 {
		t.Errorf("ok jobs = %v, want 1", got)
	}
	if got := promtest.ToFloat64(c.JobsTotal.WithLabelValues("star", statusFailed)); got != 1 {
		t.Errorf("failed jobs = %v, want 1", got)
	}
	if got := promtest.ToFloat64(c.ArchiveEntries.WithLabelValues("diag9", "star")); got != 5 {
		t.Errorf("archive entries = %v, want 5", got)
	}
	if n := promtest.CollectAndCount(c.JobDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
	if c.Gatherer() != reg {
		t.Error("Gatherer() is not the registry")
	}
}

func TestCollectorReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	b, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	a.ObserveJob("point", time.Second, nil)
	if got := promtest.ToFloat64(b.JobsTotal.WithLabelValues("point", statusOK)); got != 1 {
		t.Errorf("second collector sees %v jobs, want 1", got)
	}
}

func TestCollectorIncompatibleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plenoptics_jobs_total",
		Help: "Analysed samples by observation and outcome.",
	}))
	if _, err := NewCollector(reg); err == nil {
		t.Error("expected error for a conflicting collector")
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveJob("star", time.Second, nil)
	c.ObserveValidPhotons("diag9", 1)
	c.AddArchiveEntries("diag9", "star", 1)
	if c.Gatherer() != nil {
		t.Error("nil collector has a gatherer")
	}
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err == nil {
		t.Error("expected error writing metrics of a nil collector")
	}
}

func TestWriteTextfile(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.ObserveJob("phantom", time.Second, nil)

	path := filepath.Join(t.TempDir(), "plenoptics.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `plenoptics_jobs_total{observation="phantom",status="ok"} 1`) {
		t.Errorf("textfile lacks job counter:\n%s", data)
	}
}
