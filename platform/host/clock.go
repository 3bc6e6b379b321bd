// Package host implements platform.Clock and platform.IdleSleep for a host
// process standing in for the MCU's timer peripheral, grounded on the
// benbjohnson/clock usage in yux0-cadence, nmxmxh-inos_v1, and
// Tingjia-0v0-SchedTest — all three depend on it for exactly this purpose,
// a fake-able periodic tick source.
package host

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock drives kernel.TickISR once per period using a benbjohnson/clock
// source, so tests can substitute clock.NewMock() and advance it by hand
// instead of sleeping on the wall clock (spec.md §8 scenarios 1/5/6 need
// exact tick counts, not wall-clock timing).
type Clock struct {
	Source clock.Clock
}

// NewClock returns a Clock backed by the real wall clock.
func NewClock() *Clock {
	return &Clock{Source: clock.New()}
}

// Run calls tick once per period until ctx is cancelled, mirroring the
// original's systick_isr being bound to a hardware capture/compare channel
// (spec.md §4.4): each firing is one discrete tick, delivered serially.
func (c *Clock) Run(ctx context.Context, period time.Duration, tick func()) error {
	ticker := c.Source.Ticker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick()
		}
	}
}
