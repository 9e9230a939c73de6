package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/daryltucker/render-runner/internal/cdp"
	"github.com/daryltucker/render-runner/internal/trace"
)

// fakeTab scripts a browser tab. By default every navigation is followed by
// the page frame and then the main frame returning to about:blank.
type fakeTab struct {
	mu    sync.Mutex
	calls []string

	categories []string
	rates      []float64
	network    []cdp.NetworkConditions

	subscribers  int
	unsubscribed int
	frames       chan cdp.FrameNavigated

	// traces returns the events of each EndTracing call, by call index.
	traces    func(i int) []trace.Event
	endCalls  int
	navigated chan struct{}

	navigateErr error
	startErr    error
	endErr      error
	emulateErr  error
	disableErr  error
	noSettle    bool
	// navigateGate, when set, blocks Navigate until closed.
	navigateGate chan struct{}
}

func newFakeTab() *fakeTab {
	return &fakeTab{
		traces:    func(i int) []trace.Event { return pageLoad(i) },
		navigated: make(chan struct{}, 16),
	}
}

func (f *fakeTab) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTab) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTab) Navigate(ctx context.Context, url string) error {
	f.record("Navigate " + url)
	if f.navigateGate != nil {
		select {
		case <-f.navigateGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.navigateErr != nil {
		return f.navigateErr
	}

	f.mu.Lock()
	frames := f.frames
	f.mu.Unlock()
	if frames != nil && !f.noSettle {
		frames <- cdp.FrameNavigated{ID: "child", ParentID: "main", URL: cdp.BlankURL}
		frames <- cdp.FrameNavigated{ID: "main", URL: url}
		frames <- cdp.FrameNavigated{ID: "main", URL: cdp.BlankURL}
	}
	f.navigated <- struct{}{}
	return nil
}

func (f *fakeTab) OnNavigate() (<-chan cdp.FrameNavigated, func()) {
	f.record("OnNavigate")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers++
	f.frames = make(chan cdp.FrameNavigated, 8)
	var once sync.Once
	return f.frames, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.unsubscribed++
		})
	}
}

func (f *fakeTab) StartTracing(ctx context.Context, categories string) error {
	f.record("StartTracing")
	f.mu.Lock()
	f.categories = append(f.categories, categories)
	f.mu.Unlock()
	return f.startErr
}

func (f *fakeTab) EndTracing(ctx context.Context) (*trace.Trace, error) {
	f.record("EndTracing")
	if f.endErr != nil {
		return nil, f.endErr
	}
	f.mu.Lock()
	i := f.endCalls
	f.endCalls++
	f.mu.Unlock()
	return trace.New(f.traces(i)), nil
}

func (f *fakeTab) SetCPUThrottlingRate(ctx context.Context, rate float64) error {
	f.record(fmt.Sprintf("SetCPUThrottlingRate %v", rate))
	f.mu.Lock()
	f.rates = append(f.rates, rate)
	f.mu.Unlock()
	return nil
}

func (f *fakeTab) EmulateNetworkConditions(ctx context.Context, c cdp.NetworkConditions) error {
	f.record("EmulateNetworkConditions")
	f.mu.Lock()
	f.network = append(f.network, c)
	f.mu.Unlock()
	return f.emulateErr
}

func (f *fakeTab) DisableNetworkEmulation(ctx context.Context) error {
	f.record("DisableNetworkEmulation")
	return f.disableErr
}

func metadata(name string, pid, tid int, value string) trace.Event {
	return trace.Event{
		Name: name,
		Ph:   trace.PhaseMetadata,
		Pid:  pid,
		Tid:  tid,
		Args: json.RawMessage(`{"name":"` + value + `"}`),
	}
}

// pageLoad is the trace of iteration i: fetchStart at 1000 and a main
// thread paint ending at 2100+i. The browser thread carries an
// iteration-i event so saved traces can be told apart.
func pageLoad(i int) []trace.Event {
	return []trace.Event{
		metadata("process_name", 2, 0, "Browser"),
		metadata("thread_name", 2, 5, "CrBrowserMain"),
		metadata("process_name", 10, 0, "Renderer"),
		metadata("thread_name", 10, 1, "CrRendererMain"),
		{Name: fmt.Sprintf("iteration-%d", i), Cat: "benchmark", Ph: trace.PhaseInstant, Ts: 900, Pid: 2, Tid: 5},
		{Name: "fetchStart", Cat: "blink.user_timing", Ph: trace.PhaseMark, Ts: 1000, Pid: 10, Tid: 1},
		{Name: "V8.Execute", Cat: "v8", Ph: trace.PhaseComplete, Ts: 1200, Dur: 300, Pid: 10, Tid: 1},
		{Name: "Paint", Cat: "devtools.timeline", Ph: trace.PhaseComplete, Ts: 2000, Dur: int64(100 + i), Pid: 10, Tid: 1},
	}
}

// browserOnly has no renderer, so no main process can be identified.
func browserOnly(int) []trace.Event {
	return []trace.Event{
		metadata("process_name", 2, 0, "Browser"),
		metadata("thread_name", 2, 5, "CrBrowserMain"),
		{Name: "fetchStart", Cat: "blink.user_timing", Ph: trace.PhaseMark, Ts: 1000, Pid: 2, Tid: 5},
	}
}
