/*
PURPOSE:
  Defines the 'categories' subcommand.
  Prints the trace categories a benchmark would record, for use with other
  tracing tools.

USAGE:
  render-runner categories --gc-stats
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/render-runner/internal/engine"
)

var (
	categoriesGCStats      bool
	categoriesRuntimeStats bool
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the trace categories a benchmark records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), engine.Categories(&engine.InitialRenderParams{
			GCStats:      categoriesGCStats,
			RuntimeStats: categoriesRuntimeStats,
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.Flags().BoolVar(&categoriesGCStats, "gc-stats", false, "include the GC stats category")
	categoriesCmd.Flags().BoolVar(&categoriesRuntimeStats, "runtime-stats", false, "include the runtime call stats category")
}
