/*
PURPOSE:
  Joins a tab navigation with the main frame returning to about:blank.

REQUIREMENTS:
  User-specified:
  - An iteration is over only when the traced page has reset to about:blank.

  Implementation-discovered:
  - The frame listener must be registered before Navigate is issued or a
    fast page can settle unseen.
  - Subframe navigations to about:blank are not a settle.
  - The listener is removed exactly once, whether the join succeeds or not.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/initial_render.go (capture)
  - Calls: Tab.OnNavigate, Tab.Navigate

ERROR HANDLING:
  - A settle timeout surfaces as ErrSettleTimeout via the context cause.
  - A closed listener wraps cdp.ErrClosed.

RELATED FILES:
  - internal/cdp/tab.go
  - internal/engine/errors.go
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daryltucker/render-runner/internal/cdp"
)

// navigateAndSettle navigates the tab to url and returns once both the
// navigation call has resolved and the main frame has returned to
// about:blank. The listener is registered before the navigation is issued.
//
// A zero timeout waits forever: a page that never resets to about:blank
// stalls the run.
func navigateAndSettle(ctx context.Context, tab Tab, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrSettleTimeout)
		defer cancel()
	}

	frames, unsubscribe := tab.OnNavigate()
	var once sync.Once
	stop := func() { once.Do(unsubscribe) }
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					return fmt.Errorf("navigation listener closed: %w", cdp.ErrClosed)
				}
				if f.Main() && f.URL == cdp.BlankURL {
					stop()
					return nil
				}
			case <-gctx.Done():
				return settleErr(gctx)
			}
		}
	})

	g.Go(func() error {
		if err := tab.Navigate(gctx, url); err != nil {
			if gctx.Err() != nil {
				return settleErr(gctx)
			}
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		return nil
	})

	return g.Wait()
}

func settleErr(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrSettleTimeout) {
		return cause
	}
	return ctx.Err()
}
