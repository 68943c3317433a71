// Package metrics collects migration run metrics on a prometheus registry.
//
// All methods are safe to call on a nil *Metrics, which disables collection.
package metrics

import (
	"time"

	"github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// KB stands for kilo bytes (1024 bytes)
	KB = units.KiB

	// MB stands for mega bytes (1024 kilo bytes)
	MB = units.MiB

	namespace = "migrator"
)

// Outcome labels
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// Metrics for a migration run
type Metrics struct {
	Registry     *prometheus.Registry
	Resources    *prometheus.CounterVec
	Bytes        prometheus.Counter
	OpenSessions prometheus.Gauge
	TaskDuration prometheus.Histogram
	ContentSize  prometheus.Histogram
}

// New builds metrics registered on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Resources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_total",
			Help:      "Number of resources processed, by outcome.",
		}, []string{"outcome"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Number of content bytes written to the target storage.",
		}),
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Number of storage sessions currently open.",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of resource migration tasks.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		ContentSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "content_size_bytes",
			Help:      "Size of the binary content written per resource.",
			Buckets:   []float64{KB, 64 * KB, MB, 16 * MB, 256 * MB, 1024 * MB},
		}),
	}
	m.Registry.MustRegister(m.Resources, m.Bytes, m.OpenSessions, m.TaskDuration, m.ContentSize)
	return m
}

// SessionOpened tracks a new open session
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.OpenSessions.Inc()
}

// SessionClosed tracks a committed or discarded session
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.OpenSessions.Dec()
}

// TaskDone records the outcome of a task
func (m *Metrics) TaskDone(outcome string, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Resources.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.Bytes.Add(float64(bytes))
		m.ContentSize.Observe(float64(bytes))
	}
	m.TaskDuration.Observe(elapsed.Seconds())
}

// Dropped records tasks which never ran
func (m *Metrics) Dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Resources.WithLabelValues(OutcomeDropped).Add(float64(n))
}

// WriteTextfile exports all metrics in the prometheus text format, e.g. for the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
