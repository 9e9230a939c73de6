package trace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/render-runner/internal/model"
)

func meta(name string, pid, tid int, value string) Event {
	return Event{
		Name: name,
		Ph:   PhaseMetadata,
		Pid:  pid,
		Tid:  tid,
		Args: json.RawMessage(`{"name":"` + value + `"}`),
	}
}

func complete(name string, ts, dur int64) Event {
	return Event{Name: name, Cat: "devtools.timeline", Ph: PhaseComplete, Ts: ts, Dur: dur, Pid: 10, Tid: 1}
}

func mark(name string, ts int64) Event {
	return Event{Name: name, Cat: "blink.user_timing,rail", Ph: PhaseMark, Ts: ts, Pid: 10, Tid: 1}
}

// pageLoad is a minimal renderer trace: one browser process, one renderer
// whose main thread marks fetchStart/responseEnd and paints at 2000.
func pageLoad() []Event {
	return []Event{
		meta("process_name", 2, 0, "Browser"),
		meta("thread_name", 2, 5, "CrBrowserMain"),
		meta("process_name", 10, 0, "Renderer"),
		meta("thread_name", 10, 1, "CrRendererMain"),
		meta("thread_name", 10, 7, "Compositor"),
		{Name: "ThreadControllerImpl::RunTask", Cat: "toplevel", Ph: PhaseComplete, Ts: 900, Dur: 5, Pid: 2, Tid: 5},
		mark("fetchStart", 1000),
		complete("V8.Execute", 1200, 300),
		complete("V8.Execute", 1250, 50),
		mark("responseEnd", 1500),
		complete("MinorGC", 1600, 40),
		complete("V8.GCScavenger", 1605, 30),
		complete("Paint", 2000, 100),
		complete("Paint", 2500, 100),
		{Name: "Paint", Cat: "devtools.timeline", Ph: PhaseComplete, Ts: 1900, Dur: 10, Pid: 10, Tid: 7},
	}
}

func TestNewIdentifiesMainProcess(t *testing.T) {
	tr := New(pageLoad())

	require.True(t, tr.Complete())
	assert.Equal(t, 10, tr.MainProcess.ID)
	assert.Equal(t, "Renderer", tr.MainProcess.Name)
	assert.Equal(t, 1, tr.MainProcess.MainThread.ID)
	assert.Len(t, tr.Processes, 2)
}

func TestNewPrefersTracingStartedFrame(t *testing.T) {
	events := pageLoad()
	// A second, busier renderer that is not the main frame's.
	events = append(events,
		meta("process_name", 20, 0, "Renderer"),
		meta("thread_name", 20, 1, "CrRendererMain"),
		Event{Name: "A", Ph: PhaseComplete, Ts: 1, Pid: 20, Tid: 1},
		Event{Name: "B", Ph: PhaseComplete, Ts: 2, Pid: 20, Tid: 1},
		Event{Name: "C", Ph: PhaseComplete, Ts: 3, Pid: 20, Tid: 1},
		Event{Name: "D", Ph: PhaseComplete, Ts: 4, Pid: 20, Tid: 1},
		Event{Name: "E", Ph: PhaseComplete, Ts: 5, Pid: 20, Tid: 1},
		Event{Name: "F", Ph: PhaseComplete, Ts: 6, Pid: 20, Tid: 1},
		Event{Name: "G", Ph: PhaseComplete, Ts: 7, Pid: 20, Tid: 1},
		Event{Name: "H", Ph: PhaseComplete, Ts: 8, Pid: 20, Tid: 1},
		Event{Name: "I", Ph: PhaseComplete, Ts: 9, Pid: 20, Tid: 1},
		Event{Name: "J", Ph: PhaseComplete, Ts: 10, Pid: 20, Tid: 1},
		Event{
			Name: "TracingStartedInBrowser",
			Cat:  "disabled-by-default-devtools.timeline",
			Ph:   PhaseInstant,
			Pid:  2,
			Tid:  5,
			Args: json.RawMessage(`{"data":{"frames":[{"frame":"A1","processId":10},{"frame":"B2","parent":"A1","processId":20}]}}`),
		},
	)

	tr := New(events)
	require.True(t, tr.Complete())
	assert.Equal(t, 10, tr.MainProcess.ID)
}

func TestNewFollowsMainFrameCommit(t *testing.T) {
	// Tracing starts on about:blank in renderer 10; the navigation commits the
	// main frame in renderer 20, where the page load is recorded.
	events := []Event{
		meta("process_name", 2, 0, "Browser"),
		meta("thread_name", 2, 5, "CrBrowserMain"),
		meta("process_name", 10, 0, "Renderer"),
		meta("thread_name", 10, 1, "CrRendererMain"),
		meta("process_name", 20, 0, "Renderer"),
		meta("thread_name", 20, 1, "CrRendererMain"),
		{
			Name: "TracingStartedInBrowser",
			Ph:   PhaseInstant,
			Ts:   100,
			Pid:  2,
			Tid:  5,
			Args: json.RawMessage(`{"data":{"frames":[{"frame":"A1","url":"about:blank","processId":10}]}}`),
		},
		{Name: "RunTask", Ph: PhaseComplete, Ts: 150, Dur: 5, Pid: 10, Tid: 1},
		{
			Name: "FrameCommittedInBrowser",
			Ph:   PhaseInstant,
			Ts:   900,
			Pid:  2,
			Tid:  5,
			Args: json.RawMessage(`{"data":{"frame":"A1","url":"https://example.test/","processId":20}}`),
		},
		{
			Name: "FrameCommittedInBrowser",
			Ph:   PhaseInstant,
			Ts:   950,
			Pid:  2,
			Tid:  5,
			Args: json.RawMessage(`{"data":{"frame":"C3","parent":"A1","url":"https://ads.example.test/","processId":30}}`),
		},
		{Name: "fetchStart", Cat: "blink.user_timing", Ph: PhaseMark, Ts: 1000, Pid: 20, Tid: 1},
		{Name: "Paint", Cat: "devtools.timeline", Ph: PhaseComplete, Ts: 2000, Dur: 100, Pid: 20, Tid: 1},
	}

	tr := New(events)
	require.True(t, tr.Complete())
	assert.Equal(t, 20, tr.MainProcess.ID)

	sample, err := NewInitialRenderMetric([]model.Marker{model.DefaultMarker}, false).Measure(tr)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), sample.Duration)
}

func TestNewIncomplete(t *testing.T) {
	t.Run("no renderer", func(t *testing.T) {
		tr := New([]Event{
			meta("process_name", 2, 0, "Browser"),
			meta("thread_name", 2, 5, "CrBrowserMain"),
			{Name: "RunTask", Ph: PhaseComplete, Ts: 1, Pid: 2, Tid: 5},
		})
		assert.False(t, tr.Complete())
		assert.Nil(t, tr.MainProcess)
	})

	t.Run("no events", func(t *testing.T) {
		assert.False(t, New(nil).Complete())
	})

	t.Run("main frame process without main thread", func(t *testing.T) {
		tr := New([]Event{
			meta("process_name", 10, 0, "Renderer"),
			{
				Name: "TracingStartedInBrowser",
				Ph:   PhaseInstant,
				Pid:  10,
				Tid:  3,
				Args: json.RawMessage(`{"data":{"frames":[{"frame":"A1","processId":10}]}}`),
			},
		})
		require.NotNil(t, tr.MainProcess)
		assert.Nil(t, tr.MainProcess.MainThread)
		assert.False(t, tr.Complete())
	})
}

func TestThreadEventsSorted(t *testing.T) {
	events := []Event{
		meta("process_name", 10, 0, "Renderer"),
		meta("thread_name", 10, 1, "CrRendererMain"),
		complete("Paint", 300, 1),
		complete("Paint", 100, 1),
		complete("Paint", 200, 1),
	}
	tr := New(events)
	require.True(t, tr.Complete())

	var ts []int64
	for _, ev := range tr.MainProcess.MainThread.Events {
		ts = append(ts, ev.Ts)
	}
	assert.Equal(t, []int64{100, 200, 300}, ts)
}

func TestWriteFileAndLoad(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"trace.json", "trace.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, pageLoad()))

			tr, err := Load(path)
			require.NoError(t, err)
			assert.Len(t, tr.Events, len(pageLoad()))
			assert.True(t, tr.Complete())
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "trace.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "[\n  {"), "expected indented JSON array, got %q", string(raw[:10]))
}

func TestDecodeTraceEventsObject(t *testing.T) {
	tr, err := Decode(strings.NewReader(`{"traceEvents":[{"name":"thread_name","ph":"M","pid":1,"tid":1,"args":{"name":"CrRendererMain"}}]}`))
	require.NoError(t, err)
	assert.Len(t, tr.Events, 1)
	assert.True(t, tr.Complete())

	_, err = Decode(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestDecodeFractionalTimestamps(t *testing.T) {
	tr, err := Decode(strings.NewReader(`[
		{"name":"process_name","ph":"M","pid":10,"tid":0,"args":{"name":"Renderer"}},
		{"name":"thread_name","ph":"M","pid":10,"tid":1,"args":{"name":"CrRendererMain"}},
		{"name":"fetchStart","cat":"blink.user_timing","ph":"R","ts":1000.4,"pid":10,"tid":1},
		{"name":"Paint","cat":"devtools.timeline","ph":"X","ts":2000.5,"dur":99.6,"tdur":12.2,"pid":10,"tid":1,"id":"0x1f"}
	]`))
	require.NoError(t, err)
	require.Len(t, tr.Events, 4)

	paint := tr.Events[3]
	assert.Equal(t, int64(2001), paint.Ts)
	assert.Equal(t, int64(100), paint.Dur)
	assert.Equal(t, int64(12), paint.TDur)
	assert.JSONEq(t, `"0x1f"`, string(paint.ID))
	assert.JSONEq(t, `{"name":"Renderer"}`, string(tr.Events[0].Args))

	sample, err := NewInitialRenderMetric([]model.Marker{model.DefaultMarker}, false).Measure(tr)
	require.NoError(t, err)
	assert.Equal(t, int64(1101), sample.Duration)
}

func TestDecodeReportsMalformedEvents(t *testing.T) {
	_, err := Decode(strings.NewReader(`[{"name":"Paint","ts":"soon"}]`))
	assert.Error(t, err)
}
