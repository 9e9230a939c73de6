/*
PURPOSE:
  High-level runner that orchestrates the benchmarking process.
  Loops through Benchmarks -> Iterations and records samples.

REQUIREMENTS:
  User-specified:
  - Run every configured benchmark for the configured number of iterations.
  - Log results to CSV/JSON.

  Implementation-discovered:
  - Iterations share one tab and its throttle/network state, so they run
    strictly one after another.
  - A dropped iteration (trace without a main process) produces no sample
    and no error; the summary warns when samples < iterations.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine, internal/output, internal/telemetry

ERROR HANDLING:
  - Configuration errors are reported before connecting to the browser.
  - Iteration errors abort the run. Samples recorded so far are still
    written.

USAGE:
  engine.Run(ctx, cfg)

RELATED FILES:
  - internal/engine/client.go
  - internal/engine/initial_render.go
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/daryltucker/render-runner/internal/config"
	"github.com/daryltucker/render-runner/internal/model"
	"github.com/daryltucker/render-runner/internal/output"
	"github.com/daryltucker/render-runner/internal/telemetry"
)

// Benchmark is a repeatable measurement over a tab.
type Benchmark interface {
	Name() string
	CreateResults(meta model.Meta) *model.Results
	PerformIteration(ctx context.Context, tab Tab, results *model.Results, i int) error
}

// RunBenchmark runs iterations of b sequentially on tab. On error the results
// gathered so far are returned along with it.
func RunBenchmark(ctx context.Context, tab Tab, b Benchmark, iterations int, meta model.Meta) (*model.Results, error) {
	results := b.CreateResults(meta)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := b.PerformIteration(ctx, tab, results, i); err != nil {
			return results, fmt.Errorf("%s iteration %d: %w", b.Name(), i, err)
		}
	}

	if n := len(results.Samples); n < iterations {
		output.Logger.Warn("Some iterations produced no sample", "benchmark", b.Name(), "samples", n, "iterations", iterations)
	} else {
		output.Logger.Info("Benchmark complete", "benchmark", b.Name(), "samples", n)
	}
	return results, nil
}

// Benchmarks builds the configured benchmarks. Every one is validated before
// any is run.
func Benchmarks(cfg *config.Config, metrics *telemetry.Metrics) ([]*InitialRender, error) {
	benches := make([]*InitialRender, 0, len(cfg.Benchmarks))
	for i, bc := range cfg.Benchmarks {
		params, err := ParamsFromConfig(bc, cfg.SettleTimeout)
		if err != nil {
			return nil, fmt.Errorf("benchmarks[%d]: %w", i, err)
		}
		b, err := NewInitialRender(params, WithMetrics(metrics))
		if err != nil {
			return nil, fmt.Errorf("benchmarks[%d]: %w", i, err)
		}
		benches = append(benches, b)
	}

	names := lo.Map(benches, func(b *InitialRender, _ int) string { return b.Name() })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return nil, &ConfigurationError{Field: "name", Reason: fmt.Sprintf("must be unique, duplicated: %v", dup)}
	}
	return benches, nil
}

// Run executes the full benchmark suite.
func Run(ctx context.Context, cfg *config.Config) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	benches, err := Benchmarks(cfg, metrics)
	if err != nil {
		return err
	}

	// Ensure output directory exists
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	// Setup Outputs
	csvPath := filepath.Join(cfg.OutputDir, cfg.OutputFile)
	csvWriter, err := output.NewCSVWriter(csvPath)
	if err != nil {
		return fmt.Errorf("failed to init CSV writer at %s: %w", csvPath, err)
	}
	defer csvWriter.Close()

	jsonPath := filepath.Join(cfg.OutputDir, "samples.jsonl")
	jsonWriter, err := output.NewJSONWriter(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to init JSON writer at %s: %w", jsonPath, err)
	}
	defer jsonWriter.Close()

	if cfg.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
				err = errors.Join(err, fmt.Errorf("failed to write metrics to %s: %w", cfg.MetricsFile, werr))
			}
		}()
	}

	session, err := New(cfg).Connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	for _, b := range benches {
		output.Logger.Info("Running Benchmark", "benchmark", b.Name(), "url", b.Params().URL, "iterations", cfg.Iterations)

		results, runErr := RunBenchmark(ctx, session.Tab, b, cfg.Iterations, session.Meta)
		if werr := writeResults(cfg.OutputDir, results, csvWriter, jsonWriter); werr != nil {
			return errors.Join(runErr, werr)
		}
		if runErr != nil {
			return runErr
		}
	}

	return nil
}

func writeResults(dir string, results *model.Results, csvWriter *output.CSVWriter, jsonWriter *output.JSONWriter) error {
	for _, s := range results.Samples {
		if err := csvWriter.Write(results.Set, s); err != nil {
			return fmt.Errorf("failed to write result to CSV: %w", err)
		}
		if err := jsonWriter.Write(results.Set, s); err != nil {
			return fmt.Errorf("failed to write result to JSON: %w", err)
		}
	}

	path := filepath.Join(dir, results.Set+".json")
	if err := output.WriteResults(path, results); err != nil {
		return fmt.Errorf("failed to write results to %s: %w", path, err)
	}
	output.Logger.Info("Results written", "path", path, "samples", len(results.Samples))
	return nil
}
