/*
PURPOSE:
  Provides a structured logger for Render Runner.
  Wraps slog for consistent output.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.
  - One progress line per iteration with the benchmark and its duration.

  Implementation-discovered:
  - Logs go to stderr so stdout stays clean for command output
    (categories, list-tabs).
  - JSON handler for non-interactive runs.

ARCHITECTURE INTEGRATION:
  - Used everywhere.
  - Configured by: internal/cli/root.go (--verbose, --log-format)

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).

USAGE:
  output.Logger.Info("message", "key", "value")
*/

package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *slog.Logger) {
	Logger = l
}

// Configure replaces the logger with one writing format ("text" or "json")
// to w.
func Configure(w io.Writer, format string, verbose bool) error {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	switch strings.ToLower(format) {
	case "", "text":
		Logger = slog.New(slog.NewTextHandler(w, opts))
	case "json":
		Logger = slog.New(slog.NewJSONHandler(w, opts))
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return nil
}
