package cdp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Presets mirror the throttling profiles offered by DevTools.
var Presets = map[string]NetworkConditions{
	"offline": {
		Offline:            true,
		DownloadThroughput: -1,
		UploadThroughput:   -1,
	},
	"slow-3g": {
		Latency:            2000,
		DownloadThroughput: 500 * 1000 / 8 * 0.8,
		UploadThroughput:   500 * 1000 / 8 * 0.8,
		ConnectionType:     "cellular3g",
	},
	"fast-3g": {
		Latency:            562.5,
		DownloadThroughput: 1.6 * 1000 * 1000 / 8 * 0.9,
		UploadThroughput:   750 * 1000 / 8 * 0.9,
		ConnectionType:     "cellular3g",
	},
	"4g": {
		Latency:            165,
		DownloadThroughput: 9 * 1000 * 1000 / 8 * 0.9,
		UploadThroughput:   1.5 * 1000 * 1000 / 8 * 0.9,
		ConnectionType:     "cellular4g",
	},
}

// Preset looks up a named network profile.
func Preset(name string) (NetworkConditions, error) {
	c, ok := Presets[strings.ToLower(name)]
	if !ok {
		names := lo.Keys(Presets)
		sort.Strings(names)
		return NetworkConditions{}, fmt.Errorf("unknown network preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return c, nil
}
