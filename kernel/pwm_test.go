package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frozen-Burrito/nano-rtos/platform/gpio"
)

// TestPWMViaAlarmsProducesStaggeredDutyCycles implements spec.md §8 scenario
// 5 end to end: an auto-reload period alarm asserts a GPIO pin and arms five
// staggered one-shot pulse alarms that each clear it, at 10/30/50/70/90%
// (+-1 tick) of a 200-tick period. All five pulse tasks drive the same pin,
// so the test checks the tick each clear lands on; only the first clear
// changes the pin's level. SoftPin.History() exists precisely so this is
// assertable against wall-clock-free tick counts instead of real time.
func TestPWMViaAlarmsProducesStaggeredDutyCycles(t *testing.T) {
	const (
		taskPeriod TaskID = iota
		taskPulse0
		taskPulse1
		taskPulse2
		taskPulse3
		taskPulse4
	)
	const (
		alarmPeriod AlarmID = iota
		alarmPulse0
		alarmPulse1
		alarmPulse2
		alarmPulse3
		alarmPulse4
	)

	cfg := DefaultConfig()
	cfg.MaxTasks = 6
	cfg.MaxAlarms = 6
	k := newTestKernel(t, cfg)

	pin := gpio.NewSoftPin()
	offsets := [5]uint32{20, 60, 100, 140, 180}
	pulseIDs := [5]TaskID{taskPulse0, taskPulse1, taskPulse2, taskPulse3, taskPulse4}
	pulseAlarms := [5]AlarmID{alarmPulse0, alarmPulse1, alarmPulse2, alarmPulse3, alarmPulse4}

	require.NoError(t, k.TaskCreate(taskPeriod, func(tc *TaskContext) {
		require.NoError(t, pin.Set(true))
		for i, id := range pulseIDs {
			require.NoError(t, k.AlarmSetRel(pulseAlarms[i], offsets[i], id, false))
		}
		tc.Terminate()
	}, 2, false))

	for _, id := range pulseIDs {
		id := id
		require.NoError(t, k.TaskCreate(id, func(tc *TaskContext) {
			require.NoError(t, pin.Set(false))
			tc.Terminate()
		}, 2, false))
	}

	require.NoError(t, k.AlarmSetRel(alarmPeriod, 200, taskPeriod, true))

	// Drive the period alarm's first fire plus all five pulse alarms it
	// arms (tick 200, then 200+{20,60,100,140,180}), one tick at a time.
	// Every fire here activates a task that makes exactly one Set call and
	// terminates immediately, so waiting for ActiveCount to settle back to
	// 0 after each tick pins each transition to the exact tick it landed on.
	var toggleTicks []int
	prevLen := 0
	for tick := 1; tick <= 390; tick++ {
		k.TickISR()
		waitActiveCount(t, k, 0)
		if hist := pin.History(); len(hist) > prevLen {
			for i := prevLen; i < len(hist); i++ {
				toggleTicks = append(toggleTicks, tick)
			}
			prevLen = len(hist)
		}
	}

	require.Len(t, toggleTicks, 6, "one period-start rise plus five pulse-clear falls")
	assert.Equal(t, 200, toggleTicks[0], "period alarm fires once per 200-tick period")
	for i, offset := range offsets {
		assert.InDelta(t, 200+int(offset), toggleTicks[i+1], 1, "pulse %d clear tick", i)
	}

	hist := pin.History()
	require.Len(t, hist, 6)
	assert.True(t, hist[0], "period alarm asserts the pin")
	for i := 1; i < len(hist); i++ {
		assert.False(t, hist[i], "every pulse alarm deasserts the pin")
	}
}
