/*
PURPOSE:
  Defines the 'list-tabs' subcommand.
  Helps debug connectivity to the browser before a full run.

REQUIREMENTS:
  User-specified:
  - List the browser and its targets.

  Implementation-discovered:
  - Useful validation step before full run (is the debugging port open?).

ARCHITECTURE INTEGRATION:
  - Calls: internal/cdp.Client (via engine.New)

ERROR HANDLING:
  - Returns error if the DevTools address is unreachable.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  render-runner list-tabs --devtools http://127.0.0.1:9222

RELATED FILES:
  - internal/cdp/discover.go
*/

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/daryltucker/render-runner/internal/engine"
)

var listTabsCmd = &cobra.Command{
	Use:   "list-tabs",
	Short: "Show the browser version and its open targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e := engine.New(cfg)
		ctx := cmd.Context()

		v, err := e.Client.Version(ctx)
		if err != nil {
			return fmt.Errorf("browser not reachable at %s: %w", cfg.DevToolsURL, err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (protocol %s, V8 %s)\n", v.Browser, v.ProtocolVersion, v.V8Version)

		targets, err := e.Client.Targets(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tURL")
		for _, t := range targets {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Type, t.URL)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listTabsCmd)
}
