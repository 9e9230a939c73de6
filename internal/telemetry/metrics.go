/*
PURPOSE:
  Prometheus metrics of a benchmark run, written as a textfile when the
  run finishes.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine/runner.go, internal/engine/initial_render.go
  - Dependencies: github.com/prometheus/client_golang

RELATED FILES:
  - internal/engine/runner.go (Run)
*/

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSample  = "sample"
	OutcomeDropped = "dropped"
)

// Metrics collects per-run benchmark metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SampleDuration *prometheus.HistogramVec
	Iterations     *prometheus.CounterVec
}

// NewMetrics creates and registers the run metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.SampleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_runner_sample_duration_microseconds",
			Help:    "Duration from the last marker until paint",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 14),
		},
		[]string{"benchmark"},
	)

	m.Iterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_runner_iterations_total",
			Help: "Completed iterations by outcome",
		},
		[]string{"benchmark", "outcome"},
	)

	m.registry.MustRegister(m.SampleDuration, m.Iterations)
	return m
}

// ObserveSample records a produced sample.
func (m *Metrics) ObserveSample(benchmark string, durationMicros int64) {
	if m == nil {
		return
	}
	m.SampleDuration.WithLabelValues(benchmark).Observe(float64(durationMicros))
	m.Iterations.WithLabelValues(benchmark, OutcomeSample).Inc()
}

// Dropped records an iteration whose trace could not be measured.
func (m *Metrics) Dropped(benchmark string) {
	if m == nil {
		return
	}
	m.Iterations.WithLabelValues(benchmark, OutcomeDropped).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the text exposition format, suitable
// for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
