package kernel

// TaskContext is the handle an Entry function uses to call back into the
// kernel. It is scoped to exactly one task id and must not be retained or
// used from any goroutine other than the one launchTask started for that
// id — SPEC_FULL.md's rewrite of the original's implicit "current_task"
// global into something that can't be shared across task goroutines by
// accident.
type TaskContext struct {
	k  *Kernel
	id TaskID
}

// ID returns the task id this context is scoped to.
func (tc *TaskContext) ID() TaskID { return tc.id }

// Activate implements os_task_activate (spec.md §4.3). The caller's state
// moves RUN -> READY and the target's SUSPENDED -> READY; Activate does not
// return to its caller's continuation until the scheduler dispatches this
// task again.
func (tc *TaskContext) Activate(target TaskID) error {
	k := tc.k
	k.mu.Lock()
	if int(target) < 0 || int(target) >= len(k.tasks) || k.tasks[target] == nil {
		k.mu.Unlock()
		return ErrInvalidArgument
	}
	targetTask := k.tasks[target]
	if targetTask.state != Suspended {
		// Open Question decision (DESIGN.md #5): only a SUSPENDED target can
		// be activated, same restriction as ActivateFromISR, to avoid the
		// original's unconditional active_count increment on an already
		// active task.
		k.mu.Unlock()
		return ErrInvalidArgument
	}
	if k.activeCount+1 > k.cfg.MaxActiveTasks {
		k.mu.Unlock()
		return ErrMaxActiveTasks
	}

	caller := k.tasks[tc.id]
	caller.state = Ready
	k.met.IncTaskStateTransition(Ready.String())
	k.activateLocked(targetTask)
	k.mu.Unlock()

	k.saveAndReschedule(caller)
	return nil
}

// Terminate implements os_task_terminate: never returns to its caller.
func (tc *TaskContext) Terminate() {
	k := tc.k
	k.mu.Lock()
	t := k.tasks[tc.id]
	t.state = Suspended
	k.activeCount--
	k.met.IncTaskStateTransition(Suspended.String())
	k.logTaskEvent(t, "terminate")
	k.mu.Unlock()

	k.reschedule()
	panic(taskExitSignal{})
}

// Chain implements os_task_chain: terminate-self plus activate-target as
// one atomic transition. On INVALID_ARGUMENT the caller is left untouched
// and Chain returns normally; otherwise it never returns.
func (tc *TaskContext) Chain(target TaskID) error {
	k := tc.k
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

	t := k.tasks[tc.id]
	t.state = Suspended
	k.activeCount--
	k.met.IncTaskStateTransition(Suspended.String())
	k.logTaskEvent(t, "chain")
	k.activateLocked(targetTask)
	k.mu.Unlock()

	k.reschedule()
	panic(taskExitSignal{})
}

// Checkpoint is where this rewrite's cooperative preemption model (see
// SPEC_FULL.md §CONTEXT SWITCH) actually takes effect: an ISR that made a
// higher-or-equal priority task READY while this one was RUN can only set
// Task.preempt, because Go gives no way to force an arbitrary goroutine to
// yield at an arbitrary instruction. Entry functions that run any
// non-trivial loop should call Checkpoint periodically, the same way
// cooperatively-scheduled runtimes have always required a yield point.
func (tc *TaskContext) Checkpoint() {
	k := tc.k
	k.mu.Lock()
	t := k.tasks[tc.id]
	if !t.preempt {
		k.mu.Unlock()
		return
	}
	t.preempt = false
	t.state = Ready
	k.met.IncTaskStateTransition(Ready.String())
	k.logTaskEvent(t, "preempted")
	k.mu.Unlock()

	k.saveAndReschedule(t)
}

// Send implements os_queue_send from task context.
func (tc *TaskContext) Send(id QueueID, item any, ticksToWait uint32) error {
	return tc.k.Send(tc, id, item, ticksToWait)
}

// Receive implements os_queue_receive from task context.
func (tc *TaskContext) Receive(id QueueID, ticksToWait uint32) (any, error) {
	return tc.k.Receive(tc, id, ticksToWait)
}

// launchTask is the goroutine body a task's activation spawns. It mirrors
// restoring a fresh stack frame seeded with entry at the PC slot (spec.md
// §4.1): the goroutine blocks on its own resume channel until the
// scheduler actually dispatches it, runs the entry function, and treats
// both a normal return and an explicit Terminate/Chain identically — the
// sentinel panic recovered here is this rewrite's "restore never returns"
// primitive, the Go analogue of the original's non-local PC rewrite.
func (k *Kernel) launchTask(t *Task, generation uint64) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(taskExitSignal); ok {
			return
		}
		panic(r)
	}()

	<-t.resume

	k.mu.Lock()
	stale := t.generation != generation
	k.mu.Unlock()
	if stale {
		return
	}

	tc := &TaskContext{k: k, id: t.id}
	t.entry(tc)
	tc.Terminate()
}
