/*
PURPOSE:
  Defines the root Cobra command for the Render Runner CLI.
  Handles global flags and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Logging must be configured before any subcommand runs.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/render-runner/main.go
  - Calls: Child commands (run, list-tabs, categories, measure)
  - Modifies: output.Logger (via --verbose, --log-format).

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

RELATED FILES:
  - cmd/render-runner/main.go
  - internal/output/logger.go
*/

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/render-runner/internal/config"
	"github.com/daryltucker/render-runner/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	verbose   bool
	logFormat string

	// devtoolsOverride is shared by every command that talks to a browser.
	devtoolsOverride string

	rootCmd = &cobra.Command{
		Use:   "render-runner",
		Short: "Initial render benchmarks over the Chrome DevTools protocol",
		Long: `Drives a running Chromium through traced page loads and measures the time
from the page's performance marks until first paint. Use 'run --help' for benchmark options.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return output.Configure(os.Stderr, logFormat, verbose)
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the config file and applies the shared overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if devtoolsOverride != "" {
		cfg.DevToolsURL = devtoolsOverride
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./render_runner.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&devtoolsOverride, "devtools", "", "DevTools HTTP address (e.g. http://127.0.0.1:9222)")
}
