/*
PURPOSE:
  Connects the engine to a running browser over the DevTools protocol.
  Resolves benchmark declarations from config into runnable parameters.

REQUIREMENTS:
  User-specified:
  - Attach to an already running browser (no launching).
  - Record browser and protocol versions with every result.

  Implementation-discovered:
  - The browser may still be starting when the run begins, so the version
    endpoint is retried.
  - A page target is reused when one exists, otherwise one is created.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go, internal/cli
  - Uses: internal/cdp, internal/config, internal/model

ERROR HANDLING:
  - Retries are handled by cdp.Client (retry-go), configured from
    max_retries and retry_delay.
  - Connection failures are returned; nothing is retried at the tab level.

USAGE:
  e := engine.New(cfg)
  s, err := e.Connect(ctx)
  defer s.Close()

RELATED FILES:
  - internal/cdp/discover.go
  - internal/config/config.go
*/

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/render-runner/internal/cdp"
	"github.com/daryltucker/render-runner/internal/config"
	"github.com/daryltucker/render-runner/internal/model"
	"github.com/daryltucker/render-runner/internal/output"
)

// Engine handles browser discovery and connection.
type Engine struct {
	Config *config.Config
	Client *cdp.Client
}

// New creates a new Engine.
func New(cfg *config.Config) *Engine {
	return &Engine{
		Config: cfg,
		Client: cdp.NewClient(cfg.DevToolsURL, cfg.MaxRetries, cfg.RetryDelay),
	}
}

// Session is an open tab plus the environment it was opened in.
type Session struct {
	Tab  *cdp.Tab
	Meta model.Meta

	conn *cdp.Conn
}

// Close closes the protocol connection. The tab itself is left open.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Connect waits for the browser, picks a page target and opens a tab on it.
func (e *Engine) Connect(ctx context.Context) (*Session, error) {
	output.Logger.Info("Connecting to browser...", "devtools", e.Config.DevToolsURL)

	v, err := e.Client.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser not reachable at %s: %w", e.Config.DevToolsURL, err)
	}
	output.Logger.Info("Browser found", "browser", v.Browser, "protocol", v.ProtocolVersion)

	target, err := e.Client.PageTarget(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get a page target: %w", err)
	}
	output.Logger.Debug("Using page target", "id", target.ID, "url", target.URL)

	conn, err := cdp.Dial(ctx, target.WebSocketDebuggerURL, output.Logger)
	if err != nil {
		return nil, err
	}

	tab, err := cdp.OpenTab(ctx, conn, output.Logger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	return &Session{
		Tab: tab,
		Meta: model.Meta{
			RunID:           uuid.NewString(),
			Timestamp:       time.Now().UTC(),
			Browser:         v.Browser,
			ProtocolVersion: v.ProtocolVersion,
			UserAgent:       v.UserAgent,
			V8Version:       v.V8Version,
			Iterations:      e.Config.Iterations,
		},
		conn: conn,
	}, nil
}

// ParamsFromConfig converts a declared benchmark into InitialRender
// parameters. The URL is left for NewInitialRender to check.
func ParamsFromConfig(b config.Benchmark, settleTimeout time.Duration) (*InitialRenderParams, error) {
	network, err := b.Conditions()
	if err != nil {
		return nil, &ConfigurationError{Field: "network", Reason: err.Error()}
	}
	return &InitialRenderParams{
		Name:              b.Name,
		URL:               b.URL,
		Markers:           append([]model.Marker(nil), b.Markers...),
		GCStats:           b.GCStats,
		RuntimeStats:      b.RuntimeStats,
		CPUThrottleRate:   b.CPUThrottleRate,
		NetworkConditions: network,
		SaveFirstTrace:    b.SaveFirstTrace,
		SaveTraces:        b.TracePath(),
		SettleTimeout:     settleTimeout,
	}, nil
}
