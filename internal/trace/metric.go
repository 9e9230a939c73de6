package trace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/daryltucker/render-runner/internal/model"
)

var (
	ErrIncomplete     = errors.New("trace has no main process or main thread")
	ErrMarkerNotFound = errors.New("marker not found")
	ErrPaintNotFound  = errors.New("paint not found")
)

const (
	userTimingCategory = "blink.user_timing"
	paintEvent         = "Paint"
	executeEvent       = "V8.Execute"
)

// InitialRenderMetric measures from the page's performance marks until the
// first paint that follows the last of them.
type InitialRenderMetric struct {
	markers []model.Marker
	gcStats bool
}

func NewInitialRenderMetric(markers []model.Marker, gcStats bool) *InitialRenderMetric {
	return &InitialRenderMetric{markers: markers, gcStats: gcStats}
}

// Measure derives one sample from a complete trace.
func (m *InitialRenderMetric) Measure(t *Trace) (model.Sample, error) {
	if !t.Complete() {
		return model.Sample{}, ErrIncomplete
	}
	if len(m.markers) == 0 {
		return model.Sample{}, fmt.Errorf("%w: no markers configured", ErrMarkerNotFound)
	}
	events := t.MainProcess.MainThread.Events

	marks := make([]*Event, len(m.markers))
	var from int64
	for i, marker := range m.markers {
		ev := findFrom(events, from, func(ev *Event) bool {
			return ev.Name == marker.Start && hasCategory(ev, userTimingCategory)
		})
		if ev == nil {
			return model.Sample{}, fmt.Errorf("%w: %s (%s)", ErrMarkerNotFound, marker.Label, marker.Start)
		}
		marks[i] = ev
		from = ev.Ts
	}

	first, last := marks[0], marks[len(marks)-1]
	paint := findFrom(events, last.Ts, func(ev *Event) bool {
		return ev.Name == paintEvent && ev.Ph == PhaseComplete
	})
	if paint == nil {
		return model.Sample{}, fmt.Errorf("%w: after %s", ErrPaintNotFound, m.markers[len(m.markers)-1].Start)
	}
	end := paint.End()

	sample := model.Sample{
		Duration: end - last.Ts,
		JS:       selfTotal(events, first.Ts, end, executeEvent),
		Phases:   make([]model.PhaseSample, len(marks)),
	}
	for i, ev := range marks {
		phaseEnd := end
		if i+1 < len(marks) {
			phaseEnd = marks[i+1].Ts
		}
		sample.Phases[i] = model.PhaseSample{
			Phase:    m.markers[i].Label,
			Start:    ev.Ts - first.Ts,
			Duration: phaseEnd - ev.Ts,
		}
	}

	if m.gcStats {
		gc := &model.GCSample{
			Minor:    selfTotal(events, first.Ts, end, "MinorGC"),
			Major:    selfTotal(events, first.Ts, end, "MajorGC"),
			Scavenge: selfTotal(events, first.Ts, end, "V8.GCScavenger"),
		}
		gc.Total = gc.Minor + gc.Major
		sample.GC = gc
	}

	return sample, nil
}

// findFrom returns the first event at or after ts matching pred. Events must
// be sorted by timestamp.
func findFrom(events []*Event, ts int64, pred func(*Event) bool) *Event {
	for _, ev := range events {
		if ev.Ts < ts {
			continue
		}
		if pred(ev) {
			return ev
		}
	}
	return nil
}

// selfTotal sums the duration of complete events named name that start inside
// [start, end]. Nested occurrences are only counted once.
func selfTotal(events []*Event, start, end int64, name string) int64 {
	var (
		total   int64
		covered int64 = -1
	)
	for _, ev := range events {
		if ev.Name != name || ev.Ph != PhaseComplete {
			continue
		}
		if ev.Ts < start || ev.Ts > end {
			continue
		}
		if ev.Ts < covered {
			continue
		}
		total += ev.Dur
		covered = ev.End()
	}
	return total
}

func hasCategory(ev *Event, cat string) bool {
	return lo.Contains(strings.Split(ev.Cat, ","), cat)
}
