/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the configured benchmarks against a running browser.

REQUIREMENTS:
  User-specified:
  - Run the benchmarks.
  - specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.
  - --url replaces the configured benchmarks with a single one built from
    flags; benchmark flags without --url adjust every configured benchmark.
  - Ctrl-C cancels the run between protocol calls.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or engine run fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Engine.Run.

USAGE:
  render-runner run --url https://...

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/daryltucker/render-runner/internal/config"
	"github.com/daryltucker/render-runner/internal/engine"
	"github.com/daryltucker/render-runner/internal/model"
)

var (
	urlOverride            string
	nameOverride           string
	markerFlags            []string
	iterationsOverride     int
	outputOverride         string
	cpuThrottleOverride    float64
	networkOverride        string
	gcStatsOverride        bool
	runtimeStatsOverride   bool
	saveFirstTraceOverride string
	saveTracesOverride     string
	settleTimeoutOverride  time.Duration
	metricsFileOverride    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark suite",
	Long: `Runs every configured benchmark against an already running browser.
Each iteration follows a strict protocol:
1. Environment: applies CPU throttling and network emulation, if configured.
2. Capture: starts tracing, navigates, and waits until the navigation resolved
   AND the main frame returned to about:blank.
3. Measure: stops tracing, restores the environment and derives one sample
   from the last marker until first paint.

Samples are written to CSV and JSON Lines, plus one <benchmark>.json results
record per benchmark in the output directory.`,
	Example: `  # Run with defaults (uses render_runner.yaml)
  render-runner run

  # Measure a single URL ten times on a throttled CPU and a slow network
  render-runner run --url http://localhost:8080/ --iterations 10 --cpu-throttle 4 --network slow-3g

  # Split the load into phases by performance marks
  render-runner run --url http://localhost:8080/ --marker fetch=fetchStart --marker render=responseEnd

  # Keep every trace, compressed
  render-runner run --url http://localhost:8080/ --save-traces 'traces/trace-%d.json.zst'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2. Overrides
		if err := applyRunOverrides(cmd.Flags(), cfg); err != nil {
			return err
		}

		// 3. Execution
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return engine.Run(ctx, cfg)
	},
}

func applyRunOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("iterations") {
		cfg.Iterations = iterationsOverride
	}
	if outputOverride != "" {
		cfg.OutputDir = outputOverride
	}
	if flags.Changed("settle-timeout") {
		cfg.SettleTimeout = settleTimeoutOverride
	}
	if metricsFileOverride != "" {
		cfg.MetricsFile = metricsFileOverride
	}

	markers, err := parseMarkers(markerFlags)
	if err != nil {
		return err
	}

	if urlOverride != "" {
		cfg.Benchmarks = []config.Benchmark{{Name: nameOverride, URL: urlOverride}}
	}
	for i := range cfg.Benchmarks {
		b := &cfg.Benchmarks[i]
		if len(markers) > 0 {
			b.Markers = markers
		}
		if flags.Changed("cpu-throttle") {
			rate := cpuThrottleOverride
			b.CPUThrottleRate = &rate
		}
		if networkOverride != "" {
			b.Network = networkOverride
			b.NetworkConditions = nil
		}
		if flags.Changed("gc-stats") {
			b.GCStats = gcStatsOverride
		}
		if flags.Changed("runtime-stats") {
			b.RuntimeStats = runtimeStatsOverride
		}
		if saveFirstTraceOverride != "" {
			b.SaveFirstTrace = saveFirstTraceOverride
		}
		if saveTracesOverride != "" {
			b.SaveTraces = saveTracesOverride
		}
	}
	return nil
}

// parseMarkers parses label=start pairs in order.
func parseMarkers(flags []string) ([]model.Marker, error) {
	markers := make([]model.Marker, 0, len(flags))
	for _, f := range flags {
		label, start, ok := strings.Cut(f, "=")
		if !ok || label == "" || start == "" {
			return nil, fmt.Errorf("invalid marker %q (want label=startEvent)", f)
		}
		markers = append(markers, model.Marker{Label: label, Start: start})
	}
	return markers, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&urlOverride, "url", "", "URL to benchmark (replaces configured benchmarks)")
	runCmd.Flags().StringVar(&nameOverride, "name", "", "benchmark name used with --url (default initial-render)")
	runCmd.Flags().StringArrayVar(&markerFlags, "marker", nil, "phase marker as label=startEvent, repeatable and ordered (default render=fetchStart)")
	runCmd.Flags().IntVarP(&iterationsOverride, "iterations", "n", 0, "iterations per benchmark")
	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSON)")
	runCmd.Flags().Float64Var(&cpuThrottleOverride, "cpu-throttle", 1, "CPU slowdown multiplier while tracing")
	runCmd.Flags().StringVar(&networkOverride, "network", "", "network preset: offline, slow-3g, fast-3g, 4g")
	runCmd.Flags().BoolVar(&gcStatsOverride, "gc-stats", false, "record GC stats and report GC time per sample")
	runCmd.Flags().BoolVar(&runtimeStatsOverride, "runtime-stats", false, "record V8 runtime call stats (adds overhead)")
	runCmd.Flags().StringVar(&saveFirstTraceOverride, "save-first-trace", "", "write the first iteration's trace to this path")
	runCmd.Flags().StringVar(&saveTracesOverride, "save-traces", "", "write every trace to this path pattern, e.g. trace-%d.json")
	runCmd.Flags().DurationVar(&settleTimeoutOverride, "settle-timeout", 0, "fail an iteration whose navigation does not settle in time (0 waits forever)")
	runCmd.Flags().StringVar(&metricsFileOverride, "metrics-file", "", "write Prometheus text metrics to this file")
}
