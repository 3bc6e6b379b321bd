package kernel

// AlarmID identifies an alarm slot in the fixed alarm table. Valid ids are
// [0, Config.MaxAlarms).
type AlarmID int

// Alarm is a relative countdown timer driven by the tick ISR (spec.md §3,
// §4.4). Created inactive; os_alarm_set_rel arms it.
type Alarm struct {
	id             AlarmID
	ticks          uint32 // reload value
	count          uint32 // current countdown
	taskToActivate TaskID
	active         bool
	autoreload     bool
}

// AlarmSetRel implements os_alarm_set_rel. Validates ticks > 0 and that id
// and taskID are in range.
func (k *Kernel) AlarmSetRel(id AlarmID, ticks uint32, taskID TaskID, autoreload bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if ticks == 0 {
		return ErrInvalidArgument
	}
	if int(id) < 0 || int(id) >= len(k.alarms) {
		return ErrInvalidArgument
	}
	if int(taskID) < 0 || int(taskID) >= len(k.tasks) || k.tasks[taskID] == nil {
		return ErrInvalidArgument
	}

	k.alarms[id] = &Alarm{
		id:             id,
		ticks:          ticks,
		count:          ticks,
		taskToActivate: taskID,
		active:         true,
		autoreload:     autoreload,
	}
	return nil
}

// AlarmCancel implements os_alarm_cancel: clears ACTIVE, a no-op if the
// alarm id was never armed.
func (k *Kernel) AlarmCancel(id AlarmID) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if int(id) < 0 || int(id) >= len(k.alarms) {
		return ErrInvalidArgument
	}
	if a := k.alarms[id]; a != nil {
		a.active = false
	}
	return nil
}

// activateFromAlarm transitions an alarm's target task to READY, mirroring
// spec.md §4.4's expiry rule: only a non-EMPTY target moves, and
// active_count only grows if it was previously SUSPENDED or WAIT. Caller
// holds k.mu.
func (k *Kernel) activateFromAlarm(a *Alarm) (becameReady bool) {
	t := k.tasks[a.taskToActivate]
	if t == nil || t.state == Empty {
		return false
	}
	if t.state == Suspended {
		// A SUSPENDED task has no goroutine yet; activateLocked spawns one
		// and increments activeCount.
		k.activateLocked(t)
		return true
	}
	if t.state == Wait {
		k.clearWait(t)
		t.state = Ready
		t.ticksToWait = 0
		k.met.IncTaskStateTransition(Ready.String())
		k.logTaskEvent(t, "alarm-wake")
		return true
	}
	return false
}

// tickSweep advances every active alarm and every WAIT task's timeout
// budget by one tick, per spec.md §4.4. Returns whether any task became
// READY, so the caller (TickISR) knows whether a reschedule is warranted.
// Caller holds k.mu.
func (k *Kernel) tickSweep() (anyReady bool) {
	k.tickCount++
	k.met.IncTicks()

	for _, a := range k.alarms {
		if a == nil || !a.active {
			continue
		}
		a.count--
		if a.count != 0 {
			continue
		}
		if k.activateFromAlarm(a) {
			anyReady = true
		}
		k.met.IncAlarmFired(int(a.id))
		if a.autoreload {
			a.count = a.ticks
		} else {
			a.active = false
		}
	}

	for _, t := range k.tasks {
		if t == nil || t.state != Wait {
			continue
		}
		if t.ticksToWait == OSMaxTicks {
			continue
		}
		t.ticksToWait--
		if t.ticksToWait == 0 {
			k.clearWait(t)
			t.state = Ready
			k.met.IncTaskStateTransition(Ready.String())
			k.logTaskEvent(t, "timeout-wake")
			anyReady = true
		}
	}

	return anyReady
}
