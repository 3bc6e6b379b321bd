package kernel

// QueueID identifies a queue slot in the fixed queue table. Valid ids are
// [0, Config.MaxQueues).
type QueueID int

// Queue is a bounded circular buffer of pointer-sized tokens (spec.md §3,
// §4.5). Unlike the original firmware, which reserves length+1 slots to get
// a free empty/full test out of the head==tail comparison (flagged in
// spec.md §9 as a TODO-marked waste), this rewrite tracks count directly and
// uses the full configured capacity.
type Queue struct {
	id       QueueID
	buf      []any
	head     int
	tail     int
	count    int
	capacity int

	access          Set
	waitingForSpace Set
	waitingForItem  Set
}

func newQueue(id QueueID, capacity int, access Set) *Queue {
	return &Queue{
		id:              id,
		buf:             make([]any, capacity),
		capacity:        capacity,
		access:          access,
		waitingForSpace: NewSet(len(access.words) * 64),
		waitingForItem:  NewSet(len(access.words) * 64),
	}
}

func (q *Queue) full() bool  { return q.count == q.capacity }
func (q *Queue) empty() bool { return q.count == 0 }

// pushBack inserts an item at tail. Caller must hold the kernel critical
// section and have already checked full().
func (q *Queue) pushBack(item any) {
	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
}

// popFront removes and returns the item at head. Caller must hold the
// kernel critical section and have already checked empty().
func (q *Queue) popFront() any {
	item := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.count--
	return item
}

// QueueInit creates queue id with the given length and set of task ids
// granted access. Validation per spec.md §4.5: id in range, length in
// (0, MaxQueueLength], access non-empty.
func (k *Kernel) QueueInit(id QueueID, length int, access Set) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if int(id) < 0 || int(id) >= len(k.queues) {
		return ErrInvalidArgument
	}
	if length <= 0 || length > k.cfg.MaxQueueLength {
		return ErrInvalidArgument
	}
	if access.Empty() {
		return ErrInvalidArgument
	}
	k.queues[id] = newQueue(id, length, access)
	k.met.SetQueueDepth(int(id), 0)
	return nil
}

// trySend attempts the immediate-success path of Send. Caller holds k.mu.
func (k *Kernel) trySend(q *Queue, item any) bool {
	if q.full() {
		return false
	}
	q.pushBack(item)
	k.met.SetQueueDepth(int(q.id), q.count)
	return true
}

// tryReceive attempts the immediate-success path of Receive. Caller holds k.mu.
func (k *Kernel) tryReceive(q *Queue) (any, bool) {
	if q.empty() {
		return nil, false
	}
	item := q.popFront()
	k.met.SetQueueDepth(int(q.id), q.count)
	return item, true
}

// wakeWaitingForItem transitions every task blocked on q's emptiness to
// READY, per spec.md §4.5's "wake-up on success" rule: the waker does not
// hand the item to a specific waiter and does not clear the waiter's
// bitmap membership (DESIGN.md open question #7) — the woken task clears
// its own bit when it retries, in clearWait.
func (k *Kernel) wakeWaitingForItem(q *Queue) {
	q.waitingForItem.Each(func(id TaskID) { k.wakeWaiter(k.tasks[id]) })
}

// wakeWaitingForSpace is the send-side symmetric counterpart.
func (k *Kernel) wakeWaitingForSpace(q *Queue) {
	q.waitingForSpace.Each(func(id TaskID) { k.wakeWaiter(k.tasks[id]) })
}

// wakeWaiter moves a WAIT task to READY outside of a timeout. It
// deliberately leaves t.waitOn and the queue bitmap untouched; the task
// clears both itself via clearWait once it resumes and retries. Caller
// holds k.mu.
func (k *Kernel) wakeWaiter(t *Task) {
	if t.state != Wait {
		return
	}
	t.state = Ready
	t.ticksToWait = 0
	k.met.IncTaskStateTransition(Ready.String())
	k.logTaskEvent(t, "queue-wake")
}

// Send implements os_queue_send (spec.md §4.5). It blocks the calling task
// for up to ticksToWait ticks if the queue is full, cooperating with the
// tick ISR for the timeout and with Receive for the wake.
func (k *Kernel) Send(caller *TaskContext, id QueueID, item any, ticksToWait uint32) error {
	k.mu.Lock()
	q, err := k.lockedQueue(id)
	if err != nil {
		k.mu.Unlock()
		return err
	}
	if !q.access.Has(caller.id) {
		k.mu.Unlock()
		return ErrInvalidArgument
	}
	if k.trySend(q, item) {
		// Immediate success never yields: per spec.md §4.5 this only
		// returns OK, it does not Save/dispatch. Waking waitingForItem
		// just makes them eligible for a future dispatch; it must not run
		// them concurrently with this still-executing caller.
		k.wakeWaitingForItem(q)
		k.mu.Unlock()
		return nil
	}
	if ticksToWait == 0 {
		k.mu.Unlock()
		return ErrQueueFull
	}

	t := k.tasks[caller.id]
	q.waitingForSpace.Add(caller.id)
	t.waitQueue = id
	t.waitOn = waitForSpace
	t.ticksToWait = ticksToWait
	t.state = Wait
	k.met.IncTaskStateTransition(Wait.String())
	k.logTaskEvent(t, "queue-send-block")
	k.mu.Unlock()

	k.saveAndReschedule(t)

	// Retry once on wake, per spec.md §4.5 step 6. Clear our own wait-bitmap
	// membership first (DESIGN.md open question #7) — the waker only moved
	// us to READY, it never touched waitingForSpace.
	k.mu.Lock()
	k.clearWait(t)
	if k.trySend(q, item) {
		// t is already RUN (reschedule dispatched it to get here); waking
		// other waiters only makes them READY for a later dispatch.
		k.wakeWaitingForItem(q)
		k.mu.Unlock()
		return nil
	}
	k.mu.Unlock()
	return ErrQueueFull
}

// Receive implements os_queue_receive (spec.md §4.5).
func (k *Kernel) Receive(caller *TaskContext, id QueueID, ticksToWait uint32) (any, error) {
	k.mu.Lock()
	q, err := k.lockedQueue(id)
	if err != nil {
		k.mu.Unlock()
		return nil, err
	}
	if !q.access.Has(caller.id) {
		k.mu.Unlock()
		return nil, ErrInvalidArgument
	}
	if item, ok := k.tryReceive(q); ok {
		k.wakeWaitingForSpace(q)
		k.mu.Unlock()
		return item, nil
	}
	if ticksToWait == 0 {
		k.mu.Unlock()
		return nil, ErrQueueEmpty
	}

	t := k.tasks[caller.id]
	q.waitingForItem.Add(caller.id)
	t.waitQueue = id
	t.waitOn = waitForItem
	t.ticksToWait = ticksToWait
	t.state = Wait
	k.met.IncTaskStateTransition(Wait.String())
	k.logTaskEvent(t, "queue-receive-block")
	k.mu.Unlock()

	k.saveAndReschedule(t)

	k.mu.Lock()
	k.clearWait(t)
	if item, ok := k.tryReceive(q); ok {
		k.wakeWaitingForSpace(q)
		k.mu.Unlock()
		return item, nil
	}
	k.mu.Unlock()
	return nil, ErrQueueEmpty
}

// lockedQueue validates id and returns the queue. Caller holds k.mu.
func (k *Kernel) lockedQueue(id QueueID) (*Queue, error) {
	if int(id) < 0 || int(id) >= len(k.queues) || k.queues[id] == nil {
		return nil, ErrInvalidArgument
	}
	return k.queues[id], nil
}

// clearWait removes a WAIT task from whichever queue bitmap it is parked
// in. Used by the tick ISR's timeout sweep. Caller holds k.mu.
func (k *Kernel) clearWait(t *Task) {
	if t.waitOn == waitNone {
		return
	}
	q := k.queues[t.waitQueue]
	switch t.waitOn {
	case waitForSpace:
		q.waitingForSpace.Remove(t.id)
	case waitForItem:
		q.waitingForItem.Remove(t.id)
	}
	t.waitOn = waitNone
}
