/*
PURPOSE:
  Applies and restores the CPU throttling and network emulation of one
  iteration.

ERROR HANDLING:
  - apply stops at the first failure.
  - restore attempts every step and joins the failures.

RELATED FILES:
  - internal/engine/initial_render.go
*/

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/daryltucker/render-runner/internal/cdp"
)

const unthrottled = 1

// environment applies and restores the transient tab conditions of one
// iteration. apply and restore must not interleave with another iteration's.
type environment struct {
	tab             Tab
	cpuThrottleRate *float64
	network         *cdp.NetworkConditions
}

func (e environment) apply(ctx context.Context) error {
	if e.cpuThrottleRate != nil {
		if err := e.tab.SetCPUThrottlingRate(ctx, *e.cpuThrottleRate); err != nil {
			return fmt.Errorf("set cpu throttling rate %v: %w", *e.cpuThrottleRate, err)
		}
	}
	if e.network != nil {
		if err := e.tab.EmulateNetworkConditions(ctx, *e.network); err != nil {
			return fmt.Errorf("emulate network conditions: %w", err)
		}
	}
	return nil
}

// restore resets everything apply may have touched, attempting each step even
// when an earlier one fails.
func (e environment) restore(ctx context.Context) error {
	var errs []error
	if e.cpuThrottleRate != nil {
		if err := e.tab.SetCPUThrottlingRate(ctx, unthrottled); err != nil {
			errs = append(errs, fmt.Errorf("reset cpu throttling: %w", err))
		}
	}
	if e.network != nil {
		if err := e.tab.DisableNetworkEmulation(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disable network emulation: %w", err))
		}
	}
	return errors.Join(errs...)
}
