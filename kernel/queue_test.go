package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitTaskState polls until k.tasks[id] reaches want, for tests that must
// drive TickISR only after a task has actually entered WAIT.
func waitTaskState(t *testing.T, k *Kernel, id TaskID, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		k.mu.Lock()
		got := k.tasks[id].state
		k.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %d never reached state %s", id, want)
}

func accessSet(maxTasks int, ids ...TaskID) Set {
	s := NewSet(maxTasks)
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func TestQueueInitValidation(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.ErrorIs(t, k.QueueInit(-1, 1, accessSet(8, 0)), ErrInvalidArgument)
	require.ErrorIs(t, k.QueueInit(0, 0, accessSet(8, 0)), ErrInvalidArgument)
	require.ErrorIs(t, k.QueueInit(0, DefaultConfig().MaxQueueLength+1, accessSet(8, 0)), ErrInvalidArgument)
	require.ErrorIs(t, k.QueueInit(0, 1, NewSet(8)), ErrInvalidArgument)
	require.NoError(t, k.QueueInit(0, 1, accessSet(8, 0)))
}

// TestSendReceiveRoundTrip drives spec.md §3's queue round-trip law:
// send(x); receive(&y) yields y == x in FIFO order, for a producer and
// consumer each using OS_MAX_TICKS so neither ever observes EMPTY/FULL.
func TestSendReceiveRoundTrip(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.QueueInit(0, 3, accessSet(8, 0, 1)))

	received := make(chan byte, 4)
	done := make(chan struct{})

	require.NoError(t, k.TaskCreate(0, func(tc *TaskContext) {
		for _, b := range []byte("Hola") {
			require.NoError(t, tc.Send(0, b, OSMaxTicks))
		}
		tc.Terminate()
	}, 3, true))

	require.NoError(t, k.TaskCreate(1, func(tc *TaskContext) {
		for i := 0; i < 4; i++ {
			item, err := tc.Receive(0, OSMaxTicks)
			require.NoError(t, err)
			received <- item.(byte)
		}
		close(done)
		tc.Terminate()
	}, 3, true))

	k.Init()
	waitDone(t, done)

	close(received)
	var got []byte
	for b := range received {
		got = append(got, b)
	}
	assert.Equal(t, []byte("Hola"), got)
}

// TestQueueAccessControl implements spec.md §8 scenario 4: a task without a
// granted bit is rejected with INVALID_ARGUMENT and the queue is untouched.
func TestQueueAccessControl(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.QueueInit(0, 3, accessSet(8, 0, 1)))

	done := make(chan struct{})
	require.NoError(t, k.TaskCreate(2, func(tc *TaskContext) {
		err := tc.Send(0, byte('x'), 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		close(done)
		tc.Terminate()
	}, 0, true))

	k.Init()
	waitDone(t, done)
	assert.True(t, k.queues[0].empty())
}

// TestSendFullNoWaitReturnsQueueFull implements the boundary behavior of
// spec.md §8: queue_send on a full queue with ticks_to_wait==0 returns
// QUEUE_FULL without changing the waiter bitmap.
func TestSendFullNoWaitReturnsQueueFull(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.QueueInit(0, 1, accessSet(8, 0)))

	done := make(chan struct{})
	require.NoError(t, k.TaskCreate(0, func(tc *TaskContext) {
		require.NoError(t, tc.Send(0, byte(1), 0))
		err := tc.Send(0, byte(2), 0)
		assert.ErrorIs(t, err, ErrQueueFull)
		close(done)
		tc.Terminate()
	}, 0, true))

	k.Init()
	waitDone(t, done)
	assert.True(t, k.queues[0].waitingForSpace.Empty())
}

// TestSendBlocksThenWakesOnReceive implements spec.md §8 scenario 6: a
// capacity-1 queue, a producer blocked on a full queue, woken by a
// consumer's receive rather than by a timeout.
func TestSendBlocksThenWakesOnReceive(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.QueueInit(0, 1, accessSet(8, 0, 1)))

	secondSendDone := make(chan struct{})
	require.NoError(t, k.TaskCreate(0, func(tc *TaskContext) {
		require.NoError(t, tc.Send(0, byte(1), OSMaxTicks))
		require.NoError(t, tc.Send(0, byte(2), 20))
		close(secondSendDone)
		tc.Terminate()
	}, 1, true))

	require.NoError(t, k.TaskCreate(1, func(tc *TaskContext) {
		item, err := tc.Receive(0, OSMaxTicks)
		require.NoError(t, err)
		assert.Equal(t, byte(1), item.(byte))
		tc.Terminate()
	}, 1, true))

	k.Init()
	waitDone(t, secondSendDone)
}

// TestReceiveTimesOut drives a WAIT task's ticks_to_wait budget down via
// TickISR by hand until it wakes with QUEUE_EMPTY, per the boundary
// behavior in spec.md §8 ("a WAIT with ticks_to_wait == OS_MAX_TICKS is not
// timed out"; here ticks_to_wait is finite, so it must time out).
func TestReceiveTimesOut(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	require.NoError(t, k.QueueInit(0, 1, accessSet(8, 0)))

	done := make(chan struct{})
	require.NoError(t, k.TaskCreate(0, func(tc *TaskContext) {
		_, err := tc.Receive(0, 3)
		assert.ErrorIs(t, err, ErrQueueEmpty)
		close(done)
		tc.Terminate()
	}, 0, true))

	k.Init()
	waitTaskState(t, k, 0, Wait)
	for i := 0; i < 3; i++ {
		k.TickISR()
	}
	waitDone(t, done)
}
