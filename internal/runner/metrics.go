package runner

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes used as the "status" label.
const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// Collector exposes analysis run metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	JobsTotal      *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	ValidPhotons   *prometheus.HistogramVec
	ArchiveEntries *prometheus.CounterVec
}

// NewCollector registers the analysis metrics against reg, falling back to
// the default registerer when reg is nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	jobs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plenoptics_jobs_total",
		Help: "Analysed samples by observation and outcome.",
	}, []string{"observation", "status"}), "plenoptics_jobs_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plenoptics_job_duration_seconds",
		Help:    "Wall time spent analysing one sample.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"observation"}), "plenoptics_job_duration_seconds")
	if err != nil {
		return nil, err
	}

	photons, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plenoptics_valid_photons",
		Help:    "Photons on lixels with a valid projection, per point-source report.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"instrument"}), "plenoptics_valid_photons")
	if err != nil {
		return nil, err
	}

	entries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plenoptics_archive_entries_total",
		Help: "Entries written to result archives.",
	}, []string{"instrument", "observation"}), "plenoptics_archive_entries_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		JobsTotal:      jobs,
		JobDuration:    duration,
		ValidPhotons:   photons,
		ArchiveEntries: entries,
	}, nil
}

// Gatherer returns the gatherer the collector's metrics can be read from.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveJob records one finished job.
func (c *Collector) ObserveJob(observation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := statusOK
	if err != nil {
		status = statusFailed
	}
	c.JobsTotal.WithLabelValues(observation, status).Inc()
	c.JobDuration.WithLabelValues(observation).Observe(d.Seconds())
}

// ObserveValidPhotons records the valid photon count of a report.
func (c *Collector) ObserveValidPhotons(instrument string, n float64) {
	if c == nil {
		return
	}
	c.ValidPhotons.WithLabelValues(instrument).Observe(n)
}

// AddArchiveEntries counts entries written to one archive.
func (c *Collector) AddArchiveEntries(instrument, observation string, n int) {
	if c == nil {
		return
	}
	c.ArchiveEntries.WithLabelValues(instrument, observation).Add(float64(n))
}

// WriteTextfile dumps the current metrics in the text exposition format,
// for node_exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return fmt.Errorf("no metrics collector")
	}
	return prometheus.WriteToTextfile(path, c.gatherer)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
