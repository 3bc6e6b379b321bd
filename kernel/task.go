package kernel

// TaskID identifies a task slot in the fixed task table. Valid ids are
// [0, Config.MaxTasks).
type TaskID int

// NoTask is the "no current task" sentinel, the Go analogue of the
// original firmware's OS_TASK_ID_MAX guard value compared against
// current_task throughout os/tasks.c.
const NoTask TaskID = -1

// OSMaxTicks is the "wait forever" sentinel ticksToWait value. The alarm
// engine's tick ISR never decrements a task waiting with this budget.
const OSMaxTicks uint32 = 1<<32 - 1

// Entry is a task body. It receives a TaskContext scoped to exactly one
// task id and must call Terminate or Chain to end cleanly, or simply
// return (treated as an implicit Terminate) — see (*Kernel).launchTask.
type Entry func(tc *TaskContext)

// waitKind records why a WAIT task is parked, so the tick ISR and queue
// engine can clear the right bitmap entry on timeout.
type waitKind uint8

const (
	waitNone waitKind = iota
	waitForSpace
	waitForItem
)

// Task is the kernel's task descriptor (spec.md §3). The stack buffer the
// spec calls for is, in this rewrite, the goroutine's own Go stack; resume
// is the channel that stands in for "saved PC/SP", see SPEC_FULL.md
// §CONTEXT SWITCH.
type Task struct {
	id         TaskID
	entry      Entry
	priority   uint8
	autostart  bool
	state      State
	ticksToWait uint32

	// preempt is set by an ISR that made any task READY while this task was
	// RUN. Cleared and acted upon at the task's next checkpoint, where the
	// scheduler picks the highest-priority READY task (possibly this one
	// again). Grounded on runtime2.go's g.preempt.
	preempt bool

	// waitQueue/waitOn record what a WAIT task is blocked on, so the tick
	// ISR's timeout sweep can clear the matching queue bitmap bit.
	waitQueue QueueID
	waitOn    waitKind

	// resume is the context-switch rendezvous: Restore is a non-blocking
	// send, Save is the receiver blocking on it.
	resume chan struct{}

	// generation increments every time this task id is (re)activated from
	// SUSPENDED, so a goroutine whose task was terminated and reactivated
	// under the same id never mistakes a stale wake for its own.
	generation uint64
}

// State returns the task's current lifecycle state. Safe to call without
// holding the kernel's critical section; callers that need a consistent
// read alongside other fields should go through Kernel.
func (t *Task) State() State { return t.state }

// Priority returns the task's configured priority (0..255, higher wins ties
// broken by lowest id).
func (t *Task) Priority() uint8 { return t.priority }

// taskExitSignal is the sentinel panic value used to implement the
// non-returning Restore that os_task_terminate/os_task_chain require (see
// SPEC_FULL.md §CONTEXT SWITCH). It is recovered only in launchTask; any
// other panic value propagates and crashes the process, same as a genuine
// firmware fault would halt the MCU.
type taskExitSignal struct{}

func (k *Kernel) logTaskEvent(t *Task, event string) {
	k.log.Debug().
		Int("task", int(t.id)).
		Str("state", t.state.String()).
		Str("event", event).
		Msg("task state transition")
}
