/*
PURPOSE:
  Defines the configuration structure and loading logic for Render Runner.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure the DevTools endpoint, iteration count, output location.
  - Declare one or more page-load benchmarks with markers, throttling,
    network emulation and trace saving.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs to support Environment variables overrides (RENDER_...).
  - save_traces is a printf pattern so YAML can express the per-iteration path.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3, github.com/kelseyhightower/envconfig

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing default config file falls back to defaults.
  - Benchmark URLs are NOT checked here; the benchmark constructor owns that.

USAGE:
  cfg, err := config.Load("render_runner.yaml")

RELATED FILES:
  - internal/cli/run.go
  - internal/engine/runner.go
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/daryltucker/render-runner/internal/cdp"
	"github.com/daryltucker/render-runner/internal/model"
)

// EnvPrefix is the prefix of environment overrides, e.g. RENDER_ITERATIONS.
const EnvPrefix = "RENDER"

// Config represents the full configuration for Render Runner.
type Config struct {
	DevToolsURL   string        `yaml:"devtools_url" envconfig:"DEVTOOLS_URL"`
	Iterations    int           `yaml:"iterations" envconfig:"ITERATIONS"`
	OutputDir     string        `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	OutputFile    string        `yaml:"output_file" envconfig:"OUTPUT_FILE"`
	MaxRetries    int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY"`
	SettleTimeout time.Duration `yaml:"settle_timeout" envconfig:"SETTLE_TIMEOUT"`
	// MetricsFile receives Prometheus text metrics at the end of a run.
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`

	Benchmarks []Benchmark `yaml:"benchmarks" ignored:"true"`
}

// Benchmark declares one page-load benchmark.
type Benchmark struct {
	Name    string         `yaml:"name"`
	URL     string         `yaml:"url"`
	Markers []model.Marker `yaml:"markers"`

	GCStats      bool `yaml:"gc_stats"`
	RuntimeStats bool `yaml:"runtime_stats"`

	CPUThrottleRate *float64 `yaml:"cpu_throttle_rate"`
	// Network names a preset (offline, slow-3g, fast-3g, 4g). NetworkConditions
	// wins when both are set.
	Network           string                 `yaml:"network"`
	NetworkConditions *cdp.NetworkConditions `yaml:"network_conditions"`

	SaveFirstTrace string `yaml:"save_first_trace"`
	// SaveTraces is a path pattern with a single %d for the iteration.
	SaveTraces string `yaml:"save_traces"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DevToolsURL: "http://127.0.0.1:9222",
		Iterations:  10,
		OutputDir:   ".",
		OutputFile:  "samples.csv",
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"render_runner.yaml", "runner.yaml"}
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				break
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate checks the run level settings.
func (c *Config) Validate() error {
	var errs []error
	if c.DevToolsURL == "" {
		errs = append(errs, errors.New("devtools_url is required"))
	}
	if c.Iterations < 1 {
		errs = append(errs, fmt.Errorf("iterations must be at least 1, got %d", c.Iterations))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if len(c.Benchmarks) == 0 {
		errs = append(errs, errors.New("no benchmarks configured (set benchmarks in the config file or pass --url)"))
	}
	for i, b := range c.Benchmarks {
		if b.SaveTraces != "" {
			if err := checkTracePattern(b.SaveTraces); err != nil {
				errs = append(errs, fmt.Errorf("benchmarks[%d].save_traces %q: %w", i, b.SaveTraces, err))
			}
		}
		if b.Network != "" && b.NetworkConditions == nil {
			if _, err := cdp.Preset(b.Network); err != nil {
				errs = append(errs, fmt.Errorf("benchmarks[%d]: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// checkTracePattern accepts a printf pattern whose only verb is a single
// integer verb, e.g. "trace-%03d.json". A literal percent is written %%.
func checkTracePattern(pattern string) error {
	verbs := 0
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' {
			continue
		}
		i++
		if i < len(pattern) && pattern[i] == '%' {
			continue
		}
		for i < len(pattern) && strings.IndexByte("+-# 0123456789", pattern[i]) >= 0 {
			i++
		}
		if i >= len(pattern) {
			return errors.New("ends in an incomplete verb")
		}
		if pattern[i] != 'd' {
			return fmt.Errorf("unsupported verb %%%c, only %%d is allowed", pattern[i])
		}
		verbs++
	}
	if verbs != 1 {
		return fmt.Errorf("must contain exactly one %%d, found %d", verbs)
	}
	return nil
}

// Conditions resolves the network emulation of a benchmark, nil when none.
func (b Benchmark) Conditions() (*cdp.NetworkConditions, error) {
	if b.NetworkConditions != nil {
		return b.NetworkConditions, nil
	}
	if b.Network == "" {
		return nil, nil
	}
	c, err := cdp.Preset(b.Network)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// TracePath returns the per-iteration trace path function, nil when unset.
func (b Benchmark) TracePath() func(int) string {
	if b.SaveTraces == "" {
		return nil
	}
	pattern := b.SaveTraces
	return func(i int) string {
		return fmt.Sprintf(pattern, i)
	}
}
