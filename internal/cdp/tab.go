package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/daryltucker/render-runner/internal/trace"
)

// BlankURL is the URL of an empty frame.
const BlankURL = "about:blank"

// FrameNavigated is the frame payload of Page.frameNavigated.
type FrameNavigated struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	LoaderID string `json:"loaderId"`
	URL      string `json:"url"`
}

// Main reports whether the frame is the top level frame of the tab.
func (f FrameNavigated) Main() bool {
	return f.ParentID == ""
}

// NetworkConditions are the parameters of Network.emulateNetworkConditions.
type NetworkConditions struct {
	Offline            bool    `json:"offline" yaml:"offline"`
	Latency            float64 `json:"latency" yaml:"latency"`                       // ms
	DownloadThroughput float64 `json:"downloadThroughput" yaml:"download_throughput"` // bytes/s, -1 disables
	UploadThroughput   float64 `json:"uploadThroughput" yaml:"upload_throughput"`     // bytes/s, -1 disables
	ConnectionType     string  `json:"connectionType,omitempty" yaml:"connection_type,omitempty"`
}

// noEmulation restores the network to the unthrottled state.
var noEmulation = NetworkConditions{
	Offline:            false,
	Latency:            0,
	DownloadThroughput: -1,
	UploadThroughput:   -1,
}

// Tab drives one page target over a connection.
type Tab struct {
	conn   *Conn
	logger *slog.Logger
}

// OpenTab enables the domains the benchmarks rely on.
func OpenTab(ctx context.Context, conn *Conn, logger *slog.Logger) (*Tab, error) {
	t := &Tab{conn: conn, logger: logger}
	for _, method := range []string{"Page.enable", "Network.enable"} {
		if err := conn.Call(ctx, method, nil, nil); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Navigate loads url in the main frame and returns once the navigation
// request is committed or rejected.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	var res struct {
		FrameID   string `json:"frameId"`
		LoaderID  string `json:"loaderId"`
		ErrorText string `json:"errorText"`
	}
	if err := t.conn.Call(ctx, "Page.navigate", map[string]string{"url": url}, &res); err != nil {
		return err
	}
	if res.ErrorText != "" {
		return fmt.Errorf("navigate %s: %s", url, res.ErrorText)
	}
	return nil
}

// OnNavigate subscribes to frame navigations. The subscription lasts until
// stop is called or the connection closes; both close the channel.
func (t *Tab) OnNavigate() (<-chan FrameNavigated, func()) {
	events, cancel := t.conn.Subscribe("Page.frameNavigated")
	out := make(chan FrameNavigated, 1)
	done := make(chan struct{})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cancel()
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-events:
				if !ok {
					return
				}
				var p struct {
					Frame FrameNavigated `json:"frame"`
				}
				if err := json.Unmarshal(msg.Params, &p); err != nil {
					t.logger.Warn("Skipping malformed frameNavigated", "error", err)
					continue
				}
				select {
				case out <- p.Frame:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	return out, stop
}

// StartTracing begins a trace session that reports events over the
// connection.
func (t *Tab) StartTracing(ctx context.Context, categories string) error {
	params := map[string]any{
		"transferMode": "ReportEvents",
		"traceConfig": map[string]any{
			"recordMode":         "recordAsMuchAsPossible",
			"includedCategories": strings.Split(categories, ","),
		},
	}
	return t.conn.Call(ctx, "Tracing.start", params, nil)
}

// EndTracing stops the session and collects every reported event.
func (t *Tab) EndTracing(ctx context.Context) (*trace.Trace, error) {
	events, cancel := t.conn.Subscribe("Tracing.dataCollected", "Tracing.tracingComplete")
	defer cancel()

	collectCtx, stop := context.WithCancel(ctx)
	defer stop()

	type collected struct {
		events []trace.Event
		err    error
	}
	result := make(chan collected, 1)

	go func() {
		var all []trace.Event
		for {
			select {
			case msg, ok := <-events:
				if !ok {
					result <- collected{err: ErrClosed}
					return
				}
				if msg.Method == "Tracing.tracingComplete" {
					result <- collected{events: all}
					return
				}
				var p struct {
					Value []trace.Event `json:"value"`
				}
				if err := gojson.Unmarshal(msg.Params, &p); err != nil {
					result <- collected{err: fmt.Errorf("decode trace chunk: %w", err)}
					return
				}
				all = append(all, p.Value...)
			case <-collectCtx.Done():
				result <- collected{err: collectCtx.Err()}
				return
			}
		}
	}()

	if err := t.conn.Call(ctx, "Tracing.end", nil, nil); err != nil {
		return nil, err
	}

	res := <-result
	if res.err != nil {
		return nil, fmt.Errorf("collect trace: %w", res.err)
	}
	t.logger.Debug("trace collected", "events", len(res.events))
	return trace.New(res.events), nil
}

// SetCPUThrottlingRate slows the renderer by rate; 1 disables throttling.
func (t *Tab) SetCPUThrottlingRate(ctx context.Context, rate float64) error {
	return t.conn.Call(ctx, "Emulation.setCPUThrottlingRate", map[string]float64{"rate": rate}, nil)
}

func (t *Tab) EmulateNetworkConditions(ctx context.Context, c NetworkConditions) error {
	return t.conn.Call(ctx, "Network.emulateNetworkConditions", c, nil)
}

func (t *Tab) DisableNetworkEmulation(ctx context.Context) error {
	return t.EmulateNetworkConditions(ctx, noEmulation)
}
