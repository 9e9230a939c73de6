/*
PURPOSE:
  Defines the 'measure' subcommand.
  Re-measures traces saved by --save-first-trace / --save-traces without a
  browser, e.g. to try other markers on the same page load.

ARCHITECTURE INTEGRATION:
  - Calls: internal/trace.Load, internal/trace.InitialRenderMetric

ERROR HANDLING:
  - A trace without a main process is reported and skipped, like a run does.
  - Unreadable files and measurement errors stop the command.

USAGE:
  render-runner measure traces/trace-*.json --marker fetch=fetchStart --marker render=responseEnd
*/

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/render-runner/internal/model"
	"github.com/daryltucker/render-runner/internal/output"
	"github.com/daryltucker/render-runner/internal/trace"
)

var (
	measureMarkers []string
	measureGCStats bool
	measureJSON    bool
)

var measureCmd = &cobra.Command{
	Use:   "measure TRACE...",
	Short: "Measure saved trace files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		markers, err := parseMarkers(measureMarkers)
		if err != nil {
			return err
		}
		if len(markers) == 0 {
			markers = []model.Marker{model.DefaultMarker}
		}
		metric := trace.NewInitialRenderMetric(markers, measureGCStats)

		out := cmd.OutOrStdout()
		enc := json.NewEncoder(out)
		for i, path := range args {
			tr, err := trace.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load trace %s: %w", path, err)
			}
			if !tr.Complete() {
				output.Logger.Warn("unable to find main process", "trace", path)
				continue
			}
			sample, err := metric.Measure(tr)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			sample.Iteration = i

			if measureJSON {
				if err := enc.Encode(output.Row{Benchmark: path, Sample: sample}); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(out, "%s %d µs (js %d µs)\n", path, sample.Duration, sample.JS)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(measureCmd)
	measureCmd.Flags().StringArrayVar(&measureMarkers, "marker", nil, "phase marker as label=startEvent, repeatable and ordered (default render=fetchStart)")
	measureCmd.Flags().BoolVar(&measureGCStats, "gc-stats", false, "report GC time per sample")
	measureCmd.Flags().BoolVar(&measureJSON, "json", false, "print samples as JSON lines")
}
