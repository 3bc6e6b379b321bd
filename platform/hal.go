// Package platform specifies the hardware-abstraction contract spec.md §6
// asks the core to consume: a periodic tick source, a sleep/idle primitive,
// and (for the PWM demo scenario) a GPIO output pin. The core (package
// kernel) never imports platform directly — cmd/nanorts wires the two
// together — keeping the interrupt-driven tick source and the cooperative
// task scheduler decoupled the way spec.md §1 frames them ("out of scope
// ... specified only at their interfaces to the core").
package platform

import (
	"context"
	"time"
)

// Clock is a free-running periodic tick source. Run blocks, calling tick
// once per period, until ctx is cancelled.
type Clock interface {
	Run(ctx context.Context, period time.Duration, tick func()) error
}

// IdleSleep is the "sleep/idle primitive" spec.md §6 requires of the
// platform: entered when the scheduler finds no READY task, returns when
// woken by the next interrupt (here, after one sleep quantum; the non-unix
// implementation also returns early on context cancellation).
type IdleSleep interface {
	Sleep(ctx context.Context) error
}

// OutputPin is the GPIO half of the HAL, driven by scenario 5 (PWM via
// alarms): period_task asserts it, five one-shot alarms clear it at
// staggered offsets.
type OutputPin interface {
	Set(high bool) error
	Close() error
}
