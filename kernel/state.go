package kernel

// State is a task's position in the lifecycle state machine of spec.md §3.
// The ordering mirrors the teacher's own goroutine status enum
// (_Gidle.._Gdead in runtime2.go): a small closed set of values, not an
// interface, because the state machine is the whole point.
type State uint8

const (
	// Empty means the task id has never been passed to TaskCreate.
	Empty State = iota
	// Suspended means the task exists but is not scheduled. Reached from
	// Empty only via TaskCreate, and from Run via Terminate/Chain(self).
	Suspended
	// Wait means the task blocked in a queue operation; ticksToWait, if not
	// OS_MAX_TICKS, counts down to a timeout wake.
	Wait
	// Ready means the task is eligible for dispatch but not currently
	// executing.
	Ready
	// Run means the task is the one currently executing. At most one task
	// is Run outside of a critical section.
	Run
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Suspended:
		return "SUSPENDED"
	case Wait:
		return "WAIT"
	case Ready:
		return "READY"
	case Run:
		return "RUN"
	default:
		return "INVALID"
	}
}

// active reports whether a task in this state counts toward Kernel.activeCount.
func (s State) active() bool {
	return s == Ready || s == Run || s == Wait
}
