/*
PURPOSE:
  Defines the core data structures used throughout Render Runner.
  These models represent markers, per-iteration samples and the results
  record of one benchmark run.

REQUIREMENTS:
  User-specified:
  - A marker is a label plus the performance timing event that starts a phase.
  - One sample per successful iteration, durations in microseconds.
  - Results are append-only and keep iteration order.

  Implementation-discovered:
  - Need JSON tags for the results file and the JSON Lines sample stream.
  - Need YAML tags on Marker because markers come from the config file.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/trace, internal/output, internal/config
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Durations are int64 microseconds to match trace timestamps.

USAGE:
  res := model.NewResults(meta, "initial-render")
  res.Append(sample)

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go
*/

package model

import (
	"time"
)

// Marker names a performance timing event that bounds a measurement phase.
type Marker struct {
	Label string `json:"label" yaml:"label"`
	Start string `json:"start" yaml:"start"`
}

// DefaultMarker is installed when a benchmark declares no markers.
var DefaultMarker = Marker{Label: "render", Start: "fetchStart"}

// PhaseSample is the slice of the load timeline owned by one marker.
type PhaseSample struct {
	Phase    string `json:"phase"`
	Start    int64  `json:"start"`    // µs, relative to the first marker
	Duration int64  `json:"duration"` // µs
}

// GCSample holds garbage collection time inside the measured window.
type GCSample struct {
	Minor    int64 `json:"minor"`
	Major    int64 `json:"major"`
	Scavenge int64 `json:"scavenge"`
	Total    int64 `json:"total"`
}

// Sample is the outcome of a single iteration.
type Sample struct {
	Iteration int           `json:"iteration"`
	Duration  int64         `json:"duration"` // µs, last marker until paint
	JS        int64         `json:"js"`       // µs of V8.Execute inside the window
	GC        *GCSample     `json:"gc,omitempty"`
	Phases    []PhaseSample `json:"phases"`
}

// Meta describes the environment a run was recorded in.
type Meta struct {
	RunID           string    `json:"run_id"`
	Timestamp       time.Time `json:"timestamp"`
	Browser         string    `json:"browser"`
	ProtocolVersion string    `json:"protocol_version"`
	UserAgent       string    `json:"user_agent"`
	V8Version       string    `json:"v8_version,omitempty"`
	Iterations      int       `json:"iterations"`
}

// Results is the record of one benchmark run.
type Results struct {
	Meta    Meta     `json:"meta"`
	Set     string   `json:"set"`
	Samples []Sample `json:"samples"`
}

// NewResults returns an empty results record tagged with the benchmark name.
func NewResults(meta Meta, set string) *Results {
	return &Results{
		Meta:    meta,
		Set:     set,
		Samples: []Sample{},
	}
}

// Append adds a sample at the end of the record.
func (r *Results) Append(s Sample) {
	r.Samples = append(r.Samples, s)
}
