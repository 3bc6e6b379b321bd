package kernel

import (
	"sync"

	"github.com/rs/zerolog"
)

// Metrics is the ambient observability hook (internal/metrics implements
// this against prometheus/client_golang). Every method is called from
// inside the kernel's critical section, so implementations must not block.
type Metrics interface {
	SetActiveTasks(n int)
	SetQueueDepth(queueID int, depth int)
	IncTicks()
	IncAlarmFired(alarmID int)
	IncTaskStateTransition(state string)
}

type noopMetrics struct{}

func (noopMetrics) SetActiveTasks(int)            {}
func (noopMetrics) SetQueueDepth(int, int)        {}
func (noopMetrics) IncTicks()                     {}
func (noopMetrics) IncAlarmFired(int)             {}
func (noopMetrics) IncTaskStateTransition(string) {}

// Kernel is the task table + alarm table + queue table singleton (spec.md
// §3, §5: "The task table, alarm table, and queue table are process-wide
// singletons; mutation is serialized by the interrupt-disable critical
// section"). mu is that critical section: on real hardware it would be a
// global interrupt disable/enable pair, here it's the host-process
// equivalent.
type Kernel struct {
	cfg Config
	log zerolog.Logger
	met Metrics

	mu          sync.Mutex
	tasks       []*Task
	activeCount int
	current     TaskID

	alarms []*Alarm
	queues []*Queue

	tickCount uint64
}

// Option configures optional Kernel collaborators at construction time.
type Option func(*Kernel)

// WithLogger overrides the default (disabled) zerolog.Logger.
func WithLogger(l zerolog.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// WithMetrics overrides the default no-op Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(k *Kernel) { k.met = m }
}

// New builds a Kernel from a validated Config. It does not start anything;
// call Init to promote autostart tasks and dispatch the first one, after all
// TaskCreate/QueueInit/AlarmSetRel calls the application wants at boot.
// Neither New nor Init arms a tick source: ticks arrive only when the
// caller invokes TickISR (cmd/nanorts drives it from platform/host.Clock).
func New(cfg Config, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{
		cfg:     cfg,
		log:     zerolog.Nop(),
		met:     noopMetrics{},
		tasks:   make([]*Task, cfg.MaxTasks),
		alarms:  make([]*Alarm, cfg.MaxAlarms),
		queues:  make([]*Queue, cfg.MaxQueues),
		current: NoTask,
	}
	for _, o := range opts {
		o(k)
	}
	return k, nil
}

// TaskCreate implements os_task_create (spec.md §4.1). Re-creating an
// existing id overwrites it; the task starts SUSPENDED with no goroutine
// running until it is first activated.
func (k *Kernel) TaskCreate(id TaskID, entry Entry, priority uint8, autostart bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if int(id) < 0 || int(id) >= len(k.tasks) {
		return ErrInvalidArgument
	}
	k.tasks[id] = &Task{
		id:        id,
		entry:     entry,
		priority:  priority,
		autostart: autostart,
		state:     Suspended,
		waitQueue: -1,
		resume:    make(chan struct{}, 1),
	}
	return nil
}

// Init implements os_init: promotes every autostart task to READY and
// dispatches the scheduler once so the highest-priority one begins
// running. Call after every TaskCreate/QueueInit/AlarmSetRel the
// application wants armed at boot.
func (k *Kernel) Init() {
	k.mu.Lock()
	for _, t := range k.tasks {
		if t != nil && t.autostart && t.state == Suspended {
			k.activateLocked(t)
		}
	}
	k.mu.Unlock()
	k.reschedule()
}

// ActivateFromISR implements os_task_activate_from_isr (spec.md §4.3).
// Callable only from interrupt context — never from inside a task's Entry.
// spec.md says the interrupted task is marked READY and the ISR epilogue
// immediately calls the scheduler; on real hardware that is safe because
// the ISR has total ownership of the CPU. A goroutine standing in for the
// interrupted task has no such guarantee — it may still be executing Go
// code on another OS thread — so, like TickISR, this only forces an
// immediate redispatch when nothing is actually RUN (current == NoTask);
// otherwise it sets the interrupted task's preempt flag and the READY
// transition completes at that task's next Checkpoint, same as
// SPEC_FULL.md §CONTEXT SWITCH's preemption boundary for the tick ISR.
func (k *Kernel) ActivateFromISR(target TaskID) error {
	k.mu.Lock()
	if int(target) < 0 || int(target) >= len(k.tasks) || k.tasks[target] == nil {
		k.mu.Unlock()
		return ErrInvalidArgument
	}
	targetTask := k.tasks[target]
	if targetTask.state != Suspended {
		k.mu.Unlock()
		return ErrInvalidArgument
	}

	k.activateLocked(targetTask)

	interrupted := k.currentTaskLocked()
	needDispatch := interrupted == nil
	if interrupted != nil {
		interrupted.preempt = true
	}
	k.mu.Unlock()

	if needDispatch {
		k.reschedule()
	}
	return nil
}

// TickISR implements the tick ISR of spec.md §4.4: it advances every active
// alarm and every WAIT task's timeout budget, and if that sweep made any
// task READY, marks the interrupted (RUN) task preemptible. Per
// SPEC_FULL.md §CONTEXT SWITCH, the actual context switch happens the next
// time that task reaches a Checkpoint — Go offers no primitive to force an
// async yield the way a real ISR epilogue's Save/scheduler_run call would.
// When no task is current (current == NoTask), TickISR dispatches the
// scheduler itself, the same way ActivateFromISR does.
func (k *Kernel) TickISR() {
	k.mu.Lock()
	anyReady := k.tickSweep()
	needDispatch := false
	if anyReady {
		cur := k.currentTaskLocked()
		if cur == nil {
			needDispatch = true
		} else if cur.state == Run {
			cur.preempt = true
		}
	}
	k.mu.Unlock()

	if needDispatch {
		k.reschedule()
	}
}

// SchedulerRun exposes scheduler_run directly for callers (platform glue,
// the idle loop) that need to kick the scheduler without going through a
// task-context service call, e.g. after the idle loop wakes from sleep.
func (k *Kernel) SchedulerRun() {
	k.reschedule()
}

// CurrentTask returns the id of the task currently dispatched as RUN, or
// NoTask if none is.
func (k *Kernel) CurrentTask() TaskID {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// ActiveCount returns the number of tasks in READY, RUN, or WAIT.
func (k *Kernel) ActiveCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.activeCount
}

// currentTaskLocked returns the task the scheduler last dispatched, or nil
// if none is current (table empty, or nothing has run yet). Caller holds
// k.mu. Guards against indexing k.tasks with the NoTask sentinel.
func (k *Kernel) currentTaskLocked() *Task {
	if k.current < 0 || int(k.current) >= len(k.tasks) {
		return nil
	}
	return k.tasks[k.current]
}

// activateLocked promotes t from SUSPENDED to READY, spawning the
// goroutine that will run its Entry. Caller holds k.mu.
func (k *Kernel) activateLocked(t *Task) {
	t.generation++
	t.state = Ready
	t.ticksToWait = 0
	k.activeCount++
	k.met.IncTaskStateTransition(Ready.String())
	k.met.SetActiveTasks(k.activeCount)
	k.logTaskEvent(t, "activate")
	go k.launchTask(t, t.generation)
}

// pickReady implements scheduler_run's selection rule (spec.md §4.2): scan
// from the highest task index to the lowest, keeping a task as the running
// best whenever its priority is greater than or equal to the current
// best's, so among equal top-priority candidates the lowest index is what
// survives the scan. Caller holds k.mu.
func (k *Kernel) pickReady() *Task {
	var best *Task
	for i := len(k.tasks) - 1; i >= 0; i-- {
		t := k.tasks[i]
		if t == nil || t.state != Ready {
			continue
		}
		if best == nil || t.priority >= best.priority {
			best = t
		}
	}
	return best
}

// reschedule is scheduler_run: it selects the highest-priority READY task
// and dispatches it via Restore (a non-blocking send on its resume
// channel). If no task is READY, current is cleared and the caller (the
// application's idle loop, via platform.IdleSleep) is responsible for sleeping
// until the next interrupt.
func (k *Kernel) reschedule() {
	k.mu.Lock()
	next := k.pickReady()
	if next == nil {
		k.current = NoTask
		k.met.SetActiveTasks(k.activeCount)
		k.mu.Unlock()
		return
	}
	next.state = Run
	k.current = next.id
	k.met.IncTaskStateTransition(Run.String())
	k.met.SetActiveTasks(k.activeCount)
	k.mu.Unlock()
	next.resume <- struct{}{}
}

// saveAndReschedule is Save followed by scheduler_run, from the point of
// view of the task giving up the CPU: it asks the scheduler to dispatch
// whichever task is next, then blocks on its own resume channel exactly
// the way the original blocks inside Restore until it is chosen again.
func (k *Kernel) saveAndReschedule(t *Task) {
	k.reschedule()
	<-t.resume
}
