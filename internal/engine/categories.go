/*
PURPOSE:
  Trace categories recorded by a benchmark.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine/initial_render.go, internal/cli/categories.go
*/

package engine

import (
	"strings"

	"github.com/samber/lo"
)

var baseCategories = []string{
	"blink.user_timing",
	"benchmark",
	"toplevel",
	"devtools.timeline",
	"v8",
	"v8.execute",
}

const (
	gcStatsCategory      = "disabled-by-default-v8.gc_stats"
	runtimeStatsCategory = "disabled-by-default-v8.runtime_stats"
)

// Categories returns the comma separated trace categories for a benchmark.
func Categories(p *InitialRenderParams) string {
	categories := append([]string(nil), baseCategories...)
	if p.GCStats {
		categories = append(categories, gcStatsCategory)
	}
	if p.RuntimeStats {
		categories = append(categories, runtimeStatsCategory)
	}
	return strings.Join(lo.Uniq(categories), ",")
}
