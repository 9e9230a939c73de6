/*
PURPOSE:
  The initial render benchmark: one traced navigation per iteration,
  measured from the page's performance marks until first paint.

REQUIREMENTS:
  User-specified:
  - Trace each navigation with the benchmark's categories.
  - Apply CPU throttling and network emulation only while tracing.
  - Optionally save the first trace and/or every trace.

  Implementation-discovered:
  - A trace with no identifiable main process or thread is dropped with a
    warning, not an error.
  - The environment is restored even when the iteration fails or the
    context is cancelled.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go (RunBenchmark)
  - Calls: environment, navigateAndSettle, persistTrace, internal/trace
  - Records: internal/telemetry.Metrics

ERROR HANDLING:
  - Tab failures are wrapped with the step that failed.
  - Restore failures are joined with the capture error.

IMPLEMENTATION RULES:
  - Never interleave two iterations on one tab.

USAGE:
  b, err := engine.NewInitialRender(&engine.InitialRenderParams{URL: url})
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daryltucker/render-runner/internal/cdp"
	"github.com/daryltucker/render-runner/internal/model"
	"github.com/daryltucker/render-runner/internal/output"
	"github.com/daryltucker/render-runner/internal/telemetry"
	"github.com/daryltucker/render-runner/internal/trace"
)

// DefaultBenchmarkName is used when a benchmark declares no name.
const DefaultBenchmarkName = "initial-render"

// InitialRenderParams configures a navigation benchmark.
type InitialRenderParams struct {
	Name string

	// URL to measure initial render of.
	URL string

	// Markers divide the load into phases. The last marker until paint is
	// the duration of a sample.
	Markers []model.Marker

	// GCStats adds the disabled-by-default GC stats category. It is not
	// emitted consistently in every trace.
	GCStats bool

	// RuntimeStats adds the disabled-by-default runtime call stats
	// category, which adds some overhead to the result.
	RuntimeStats bool

	// CPUThrottleRate slows the renderer while tracing. Nil means unthrottled.
	CPUThrottleRate *float64

	// NetworkConditions are emulated while tracing. Nil means no emulation.
	NetworkConditions *cdp.NetworkConditions

	// SaveFirstTrace is where the first iteration's trace is written.
	SaveFirstTrace string

	// SaveTraces returns the path of each iteration's trace.
	SaveTraces func(iteration int) string

	// SettleTimeout bounds the wait for the page to return to about:blank.
	// Zero waits forever.
	SettleTimeout time.Duration
}

// InitialRender traces a navigation to a URL and measures the marked phases
// until paint.
type InitialRender struct {
	params  *InitialRenderParams
	metrics *telemetry.Metrics
}

type Option func(*InitialRender)

// WithMetrics records samples and dropped iterations in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *InitialRender) {
		b.metrics = m
	}
}

// NewInitialRender validates params and returns the benchmark. Empty markers
// are replaced in place by the default render marker.
func NewInitialRender(params *InitialRenderParams, opts ...Option) (*InitialRender, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	b := &InitialRender{params: params}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func validateParams(params *InitialRenderParams) error {
	if params == nil {
		return &ConfigurationError{Field: "params", Reason: "are required"}
	}
	if len(params.Markers) == 0 {
		params.Markers = []model.Marker{model.DefaultMarker}
	}
	if params.URL == "" {
		return &ConfigurationError{Field: "url", Reason: "is required"}
	}
	return nil
}

func (b *InitialRender) Name() string {
	if b.params.Name == "" {
		return DefaultBenchmarkName
	}
	return b.params.Name
}

// Params returns the validated parameters.
func (b *InitialRender) Params() *InitialRenderParams {
	return b.params
}

func (b *InitialRender) CreateResults(meta model.Meta) *model.Results {
	return model.NewResults(meta, b.Name())
}

// PerformIteration runs one traced navigation and appends its sample. A trace
// without an identifiable main process or thread is dropped with a warning and
// no error.
func (b *InitialRender) PerformIteration(ctx context.Context, tab Tab, results *model.Results, i int) error {
	tr, err := b.capture(ctx, tab)
	if err != nil {
		return err
	}

	if err := b.persistTrace(tr, i); err != nil {
		return err
	}

	if !tr.Complete() {
		output.Logger.Warn("unable to find main process", "benchmark", b.Name(), "iteration", i, "events", len(tr.Events))
		b.metrics.Dropped(b.Name())
		return nil
	}

	sample, err := trace.NewInitialRenderMetric(b.params.Markers, b.params.GCStats).Measure(tr)
	if err != nil {
		return fmt.Errorf("measure: %w", err)
	}
	sample.Iteration = i

	output.Logger.Info(fmt.Sprintf("%s %d µs", b.Name(), sample.Duration), "iteration", i, "js_us", sample.JS)
	b.metrics.ObserveSample(b.Name(), sample.Duration)

	results.Append(sample)
	return nil
}

// capture brackets the navigation with tracing inside the iteration's
// environment. The environment is restored whether or not capture succeeds.
func (b *InitialRender) capture(ctx context.Context, tab Tab) (tr *trace.Trace, err error) {
	env := environment{
		tab:             tab,
		cpuThrottleRate: b.params.CPUThrottleRate,
		network:         b.params.NetworkConditions,
	}
	defer func() {
		if rerr := env.restore(context.WithoutCancel(ctx)); rerr != nil {
			tr = nil
			err = errors.Join(err, rerr)
		}
	}()

	if err := env.apply(ctx); err != nil {
		return nil, err
	}

	if err := tab.StartTracing(ctx, Categories(b.params)); err != nil {
		return nil, fmt.Errorf("start tracing: %w", err)
	}

	if err := navigateAndSettle(ctx, tab, b.params.URL, b.params.SettleTimeout); err != nil {
		return nil, err
	}

	tr, err = tab.EndTracing(ctx)
	if err != nil {
		return nil, fmt.Errorf("end tracing: %w", err)
	}
	return tr, nil
}
