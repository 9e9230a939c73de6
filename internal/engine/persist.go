/*
PURPOSE:
  Saves raw trace events for later inspection or re-measurement.

REQUIREMENTS:
  Implementation-discovered:
  - Paths ending in .zst are zstd compressed by internal/trace.
  - Parent directories are created on demand.

ERROR HANDLING:
  - A failed save aborts the iteration.

RELATED FILES:
  - internal/trace/trace.go
  - internal/cli/measure.go
*/

package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/daryltucker/render-runner/internal/output"
	"github.com/daryltucker/render-runner/internal/trace"
)

// persistTrace writes the raw events of iteration i when the benchmark asks
// for it. The first-trace path and the per-iteration paths are independent;
// both can apply to iteration 0.
func (b *InitialRender) persistTrace(tr *trace.Trace, i int) error {
	if i == 0 && b.params.SaveFirstTrace != "" {
		if err := writeTrace(b.params.SaveFirstTrace, tr); err != nil {
			return err
		}
	}
	if b.params.SaveTraces != nil {
		if err := writeTrace(b.params.SaveTraces(i), tr); err != nil {
			return err
		}
	}
	return nil
}

func writeTrace(path string, tr *trace.Trace) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create trace directory %s: %w", dir, err)
		}
	}
	if err := trace.WriteFile(path, tr.Events); err != nil {
		return fmt.Errorf("failed to save trace %s: %w", path, err)
	}
	output.Logger.Debug("Saved trace", "path", path, "events", len(tr.Events))
	return nil
}
