package kernel

import (
	"testing"
	"time"
)

// waitDone blocks until ch is closed or t fails the test after a generous
// but bounded timeout — every test in this package drives goroutines whose
// execution order is deterministic by construction (only one task is ever
// dispatched at a time), so a hang here means a real deadlock, not
// flakiness.
func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task completion")
	}
}

func newTestKernel(t *testing.T, cfg Config) *Kernel {
	t.Helper()
	k, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}
