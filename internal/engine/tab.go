/*
PURPOSE:
  The browser tab operations a benchmark iteration needs.

ARCHITECTURE INTEGRATION:
  - Implemented by: internal/cdp.Tab
  - Used by: internal/engine/initial_render.go, internal/engine/navigate.go
*/

package engine

import (
	"context"

	"github.com/daryltucker/render-runner/internal/cdp"
	"github.com/daryltucker/render-runner/internal/trace"
)

// Tab is the part of a browser tab an iteration drives. *cdp.Tab implements
// it; tests use a scripted fake.
type Tab interface {
	Navigate(ctx context.Context, url string) error
	// OnNavigate subscribes to frame navigations until the returned stop
	// function is called.
	OnNavigate() (<-chan cdp.FrameNavigated, func())
	StartTracing(ctx context.Context, categories string) error
	EndTracing(ctx context.Context) (*trace.Trace, error)
	SetCPUThrottlingRate(ctx context.Context, rate float64) error
	EmulateNetworkConditions(ctx context.Context, c cdp.NetworkConditions) error
	DisableNetworkEmulation(ctx context.Context) error
}

var _ Tab = (*cdp.Tab)(nil)
