package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	assert.NotNil(t, m.SampleDuration)
	assert.NotNil(t, m.Iterations)
}

func TestRecordOutcomes(t *testing.T) {
	m := NewMetrics()

	m.ObserveSample("initial-render", 1500)
	m.ObserveSample("initial-render", 2500)
	m.Dropped("initial-render")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Iterations.WithLabelValues("initial-render", OutcomeSample)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Iterations.WithLabelValues("initial-render", OutcomeDropped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SampleDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSample("x", 1)
		m.Dropped("x")
	})
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveSample("initial-render", 1200)

	path := filepath.Join(t.TempDir(), "render.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `render_runner_iterations_total{benchmark="initial-render",outcome="sample"} 1`)
	assert.Contains(t, string(data), "render_runner_sample_duration_microseconds_count")
}
