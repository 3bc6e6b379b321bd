package kernel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPickReadyTieBreakPrefersLowestIndex covers spec.md §4.2's tie-break:
// among equal-priority READY tasks the scan runs high index to low, keeping
// a new best on greater-or-equal priority, so the lowest id wins ties.
func TestPickReadyTieBreakPrefersLowestIndex(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.TaskCreate(0, func(*TaskContext) {}, 5, false))
	require.NoError(t, k.TaskCreate(1, func(*TaskContext) {}, 5, false))

	k.mu.Lock()
	k.tasks[0].state = Ready
	k.tasks[1].state = Ready
	best := k.pickReady()
	k.mu.Unlock()

	require.NotNil(t, best)
	assert.Equal(t, TaskID(0), best.id)
}

func TestPickReadyHigherPriorityWins(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.TaskCreate(0, func(*TaskContext) {}, 1, false))
	require.NoError(t, k.TaskCreate(1, func(*TaskContext) {}, 9, false))

	k.mu.Lock()
	k.tasks[0].state = Ready
	k.tasks[1].state = Ready
	best := k.pickReady()
	k.mu.Unlock()

	require.NotNil(t, best)
	assert.Equal(t, TaskID(1), best.id)
}

func TestPickReadyReturnsNilWhenNoneReady(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.TaskCreate(0, func(*TaskContext) {}, 0, false))

	k.mu.Lock()
	best := k.pickReady()
	k.mu.Unlock()

	assert.Nil(t, best)
}

// TestActivateFromISRPreemptsAtCheckpoint implements spec.md §8 scenario 1
// (priority preemption): a low-priority task looping on Checkpoint is
// interrupted by ActivateFromISR targeting a higher-priority task. The low
// task's own Checkpoint call is the only place its RUN->READY transition
// actually happens (DESIGN.md decision #6) — the high task must run to
// completion before the low task's loop can finish.
func TestActivateFromISRPreemptsAtCheckpoint(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	lowStarted := make(chan struct{})
	highRan := make(chan struct{})
	var stopLow atomic.Bool
	done := make(chan struct{})

	require.NoError(t, k.TaskCreate(0, func(tc *TaskContext) {
		close(lowStarted)
		for !stopLow.Load() {
			tc.Checkpoint()
		}
		record("low-done")
		close(done)
		tc.Terminate()
	}, 1, true))

	require.NoError(t, k.TaskCreate(1, func(tc *TaskContext) {
		record("high-ran")
		close(highRan)
		tc.Terminate()
	}, 5, false))

	k.Init()
	<-lowStarted

	require.NoError(t, k.ActivateFromISR(1))
	waitDone(t, highRan)

	stopLow.Store(true)
	waitDone(t, done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, "high-ran", order[0])
	assert.Equal(t, "low-done", order[1])
}

// TestActivateFromISRRejectsNonSuspendedTarget mirrors TaskContext.Activate's
// restriction (DESIGN.md decision #5): only a SUSPENDED target can be woken.
func TestActivateFromISRRejectsNonSuspendedTarget(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	done := make(chan struct{})
	require.NoError(t, k.TaskCreate(0, func(tc *TaskContext) {
		<-done
		tc.Terminate()
	}, 0, true))

	k.Init()
	waitTaskState(t, k, 0, Run)

	err := k.ActivateFromISR(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	close(done)
	waitActiveCount(t, k, 0)
}

func TestActivateFromISRValidatesID(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.ErrorIs(t, k.ActivateFromISR(-1), ErrInvalidArgument)
	require.ErrorIs(t, k.ActivateFromISR(TaskID(DefaultConfig().MaxTasks)), ErrInvalidArgument)
}

// TestActivateFromISRDispatchesImmediatelyWhenIdle covers the needDispatch
// branch: with no task currently RUN, ActivateFromISR must dispatch the
// newly-activated target itself rather than waiting on a Checkpoint that
// will never come.
func TestActivateFromISRDispatchesImmediatelyWhenIdle(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	done := make(chan struct{})
	require.NoError(t, k.TaskCreate(0, func(tc *TaskContext) {
		close(done)
		tc.Terminate()
	}, 0, false))

	require.Equal(t, NoTask, k.CurrentTask())
	require.NoError(t, k.ActivateFromISR(0))
	waitDone(t, done)
}
