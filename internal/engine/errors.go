/*
PURPOSE:
  Sentinel and typed errors of the engine package.

USAGE:
  errors.Is(err, engine.ErrSettleTimeout)
  errors.As(err, new(*engine.ConfigurationError))
*/

package engine

import (
	"errors"
	"fmt"
)

// ErrSettleTimeout is returned when a navigation does not settle within the
// configured settle timeout.
var ErrSettleTimeout = errors.New("navigation did not settle")

// ConfigurationError rejects benchmark parameters at construction time.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid benchmark configuration: %s %s", e.Field, e.Reason)
}
