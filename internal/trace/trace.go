// Package trace models a captured Chromium trace: the raw event stream plus
// the process and thread identification needed to measure a page load.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Trace event phases used by the extractor.
const (
	PhaseComplete = "X"
	PhaseBegin    = "B"
	PhaseEnd      = "E"
	PhaseInstant  = "I"
	PhaseMark     = "R"
	PhaseMetadata = "M"
)

const (
	rendererMainThread = "CrRendererMain"
	rendererProcess    = "Renderer"
)

// Event is a single trace event as emitted by Tracing.dataCollected.
type Event struct {
	Name  string          `json:"name"`
	Cat   string          `json:"cat"`
	Ph    string          `json:"ph"`
	Ts    int64           `json:"ts"`
	Dur   int64           `json:"dur,omitempty"`
	TDur  int64           `json:"tdur,omitempty"`
	TTs   int64           `json:"tts,omitempty"`
	Pid   int             `json:"pid"`
	Tid   int             `json:"tid"`
	ID    json.RawMessage `json:"id,omitempty"`
	Scope string          `json:"s,omitempty"`
	Args  json.RawMessage `json:"args,omitempty"`
}

// UnmarshalJSON accepts fractional microsecond timestamps and durations,
// rounding them to the nearest microsecond.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Cat   string          `json:"cat"`
		Ph    string          `json:"ph"`
		Ts    float64         `json:"ts"`
		Dur   float64         `json:"dur"`
		TDur  float64         `json:"tdur"`
		TTs   float64         `json:"tts"`
		Pid   int             `json:"pid"`
		Tid   int             `json:"tid"`
		ID    json.RawMessage `json:"id"`
		Scope string          `json:"s"`
		Args  json.RawMessage `json:"args"`
	}
	if err := gojson.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{
		Name:  raw.Name,
		Cat:   raw.Cat,
		Ph:    raw.Ph,
		Ts:    int64(math.Round(raw.Ts)),
		Dur:   int64(math.Round(raw.Dur)),
		TDur:  int64(math.Round(raw.TDur)),
		TTs:   int64(math.Round(raw.TTs)),
		Pid:   raw.Pid,
		Tid:   raw.Tid,
		ID:    raw.ID,
		Scope: raw.Scope,
		Args:  raw.Args,
	}
	return nil
}

// End returns the end timestamp of a complete event, or Ts otherwise.
func (e *Event) End() int64 {
	return e.Ts + e.Dur
}

// Thread groups the events recorded on one thread.
type Thread struct {
	ID     int
	Name   string
	Events []*Event
}

// Process groups the threads of one browser process.
type Process struct {
	ID         int
	Name       string
	Threads    map[int]*Thread
	MainThread *Thread
}

// Trace is the result of one tracing session.
type Trace struct {
	Events      []Event
	Processes   map[int]*Process
	MainProcess *Process
}

// New builds the process model for a list of events. Missing main process or
// main thread is not an error; callers check Complete.
func New(events []Event) *Trace {
	t := &Trace{
		Events:    events,
		Processes: make(map[int]*Process),
	}

	// Metadata first so thread names are known when events are bucketed.
	for i := range events {
		ev := &events[i]
		if ev.Ph != PhaseMetadata {
			continue
		}
		switch ev.Name {
		case "process_name":
			t.process(ev.Pid).Name = metadataName(ev)
		case "thread_name":
			t.thread(ev.Pid, ev.Tid).Name = metadataName(ev)
		}
	}

	for i := range events {
		ev := &events[i]
		if ev.Ph == PhaseMetadata {
			continue
		}
		th := t.thread(ev.Pid, ev.Tid)
		th.Events = append(th.Events, ev)
	}

	for _, p := range t.Processes {
		for _, th := range p.Threads {
			sort.SliceStable(th.Events, func(a, b int) bool {
				return th.Events[a].Ts < th.Events[b].Ts
			})
		}
	}

	t.MainProcess = t.findMainProcess()
	if t.MainProcess != nil {
		t.MainProcess.MainThread = t.MainProcess.threadNamed(rendererMainThread)
	}
	return t
}

// Complete reports whether the main process and its main thread were found.
func (t *Trace) Complete() bool {
	return t.MainProcess != nil && t.MainProcess.MainThread != nil
}

func (t *Trace) process(pid int) *Process {
	p, ok := t.Processes[pid]
	if !ok {
		p = &Process{ID: pid, Threads: make(map[int]*Thread)}
		t.Processes[pid] = p
	}
	return p
}

func (t *Trace) thread(pid, tid int) *Thread {
	p := t.process(pid)
	th, ok := p.Threads[tid]
	if !ok {
		th = &Thread{ID: tid}
		p.Threads[tid] = th
	}
	return th
}

func (p *Process) threadNamed(name string) *Thread {
	var found *Thread
	for _, th := range p.Threads {
		if th.Name != name {
			continue
		}
		if found == nil || len(th.Events) > len(found.Events) {
			found = th
		}
	}
	return found
}

// findMainProcess prefers the renderer the main frame last committed in and
// falls back to the busiest renderer main thread.
func (t *Trace) findMainProcess() *Process {
	if pid, ok := t.mainFrameProcessID(); ok {
		if p, ok := t.Processes[pid]; ok {
			return p
		}
	}

	var (
		best      *Process
		bestCount int
	)
	for _, p := range t.Processes {
		if p.Name != "" && p.Name != rendererProcess {
			continue
		}
		th := p.threadNamed(rendererMainThread)
		if th == nil {
			continue
		}
		if best == nil || len(th.Events) > bestCount || (len(th.Events) == bestCount && p.ID < best.ID) {
			best = p
			bestCount = len(th.Events)
		}
	}
	return best
}

type frameData struct {
	Frame     string `json:"frame"`
	Parent    string `json:"parent"`
	ProcessID int    `json:"processId"`
}

type tracingStartedArgs struct {
	Data struct {
		Frames []frameData `json:"frames"`
	} `json:"data"`
}

type frameCommittedArgs struct {
	Data frameData `json:"data"`
}

// mainFrameProcessID returns the process of the main frame. Tracing starts on
// about:blank, so TracingStartedInBrowser names the pre-navigation renderer;
// a later FrameCommittedInBrowser for the main frame overrides it when the
// navigation swapped processes.
func (t *Trace) mainFrameProcessID() (int, bool) {
	var (
		mainFrame string
		pid       int
		committed *Event
	)
	for i := range t.Events {
		ev := &t.Events[i]
		if ev.Name != "TracingStartedInBrowser" || len(ev.Args) == 0 {
			continue
		}
		var args tracingStartedArgs
		if err := gojson.Unmarshal(ev.Args, &args); err != nil {
			continue
		}
		for _, f := range args.Data.Frames {
			if f.Parent == "" {
				mainFrame = f.Frame
				pid = f.ProcessID
				break
			}
		}
		break
	}

	for i := range t.Events {
		ev := &t.Events[i]
		if ev.Name != "FrameCommittedInBrowser" || len(ev.Args) == 0 {
			continue
		}
		var args frameCommittedArgs
		if err := gojson.Unmarshal(ev.Args, &args); err != nil || args.Data.ProcessID == 0 {
			continue
		}
		d := args.Data
		isMain := d.Parent == "" && (mainFrame == "" || d.Frame == mainFrame)
		if !isMain {
			continue
		}
		if committed == nil || ev.Ts >= committed.Ts {
			committed = ev
			pid = d.ProcessID
		}
	}

	return pid, pid != 0
}

func metadataName(ev *Event) string {
	var args struct {
		Name string `json:"name"`
	}
	if len(ev.Args) == 0 {
		return ""
	}
	if err := gojson.Unmarshal(ev.Args, &args); err != nil {
		return ""
	}
	return args.Name
}

// Decode reads a trace saved as a JSON event array, or as an object with a
// traceEvents array.
func Decode(r io.Reader) (*Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var events []Event
	if err := gojson.Unmarshal(data, &events); err != nil {
		var wrapped struct {
			TraceEvents []Event `json:"traceEvents"`
		}
		if err2 := gojson.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse trace: %w", err)
		}
		events = wrapped.TraceEvents
	}
	return New(events), nil
}

// Load reads a trace file written by WriteFile. Paths ending in .zst are
// decompressed.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !compressed(path) {
		return Decode(f)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer zr.Close()
	return Decode(zr)
}

// WriteFile serializes events as an indented JSON array. Paths ending in .zst
// are zstd-compressed.
func WriteFile(path string, events []Event) error {
	data, err := gojson.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trace events: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if !compressed(path) {
		if _, err := f.Write(data); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}
