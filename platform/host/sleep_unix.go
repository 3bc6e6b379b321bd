//go:build unix

package host

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// IdleSleep implements platform.IdleSleep with unix.Nanosleep, grounded on
// the same primitive arctir-proctor and doismellburning-samoyed use for
// low-power/idle waits. Not interruptible mid-nap: ctx is checked before
// and after each quantum-long nap, so shutdown is noticed within one
// quantum.
type IdleSleep struct {
	Quantum time.Duration
}

// NewIdleSleep returns an IdleSleep whose Sleep naps for one quantum,
// checking ctx before and after the nap — the host-process analogue of
// "sleep until the next interrupt", since unix.Nanosleep itself cannot be
// woken by a Go context. Callers loop on Sleep to keep idling.
func NewIdleSleep(quantum time.Duration) *IdleSleep {
	if quantum <= 0 {
		quantum = time.Millisecond
	}
	return &IdleSleep{Quantum: quantum}
}

func (s *IdleSleep) Sleep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	spec := unix.NsecToTimespec(int64(s.Quantum))
	rem := &unix.Timespec{}
	for {
		if err := unix.Nanosleep(&spec, rem); err != nil {
			if err == unix.EINTR {
				spec = *rem
				continue
			}
			return err
		}
		return ctx.Err()
	}
}
