package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Frozen-Burrito/nano-rtos/kernel"
	"github.com/Frozen-Burrito/nano-rtos/platform/gpio"
)

// Task ids are small fixed constants, the same way the original firmware's
// application code names tasks by macro rather than computing ids.
const (
	taskA TaskID = iota
	taskB
	taskProducer
	taskConsumer
	taskIntruder
	taskPeriod
	taskPulse0
	taskPulse1
	taskPulse2
	taskPulse3
	taskPulse4
)

// TaskID is a local alias so scenario wiring reads naturally; kernel.TaskID
// underneath.
type TaskID = kernel.TaskID

const (
	alarmB kernel.AlarmID = 0

	// The PWM scenario needs six concurrent alarms (one period alarm plus
	// five staggered pulse alarms); main.go raises Config.MaxAlarms to 6
	// when running it.
	alarmPeriod kernel.AlarmID = 0
	alarmPulse0 kernel.AlarmID = 1
	alarmPulse1 kernel.AlarmID = 2
	alarmPulse2 kernel.AlarmID = 3
	alarmPulse3 kernel.AlarmID = 4
	alarmPulse4 kernel.AlarmID = 5
)

const queueHola kernel.QueueID = 0

// buildPreemption wires spec.md §8 scenario 1: task A (priority 0,
// autostart) loops emitting 'A'; a one-shot alarm at 10 ticks activates
// task B (priority 1), which runs to completion and terminates, letting A
// resume.
func buildPreemption(k *kernel.Kernel, log zerolog.Logger) {
	must(k.TaskCreate(taskA, func(tc *kernel.TaskContext) {
		for {
			log.Info().Str("task", "A").Msg("tick")
			tc.Checkpoint()
		}
	}, 0, true))

	must(k.TaskCreate(taskB, func(tc *kernel.TaskContext) {
		for i := 0; i < 3; i++ {
			log.Info().Str("task", "B").Int("i", i).Msg("run")
			tc.Checkpoint()
		}
		tc.Terminate()
	}, 1, false))

	must(k.AlarmSetRel(alarmB, 10, taskB, false))
}

// buildChain wires scenario 2: A (priority 3, autostart) runs once then
// chains into B (priority 3).
func buildChain(k *kernel.Kernel, log zerolog.Logger) {
	must(k.TaskCreate(taskA, func(tc *kernel.TaskContext) {
		log.Info().Str("task", "A").Msg("prologue")
		if err := tc.Chain(taskB); err != nil {
			log.Error().Err(err).Msg("chain failed")
			tc.Terminate()
		}
	}, 3, true))

	must(k.TaskCreate(taskB, func(tc *kernel.TaskContext) {
		log.Info().Str("task", "B").Msg("body")
		tc.Terminate()
	}, 3, false))
}

// buildProducerConsumer wires scenario 3: a capacity-3 queue, a producer
// sending "Hola" one byte per send, a consumer receiving with
// OS_MAX_TICKS.
func buildProducerConsumer(k *kernel.Kernel, log zerolog.Logger) {
	// Grant access the way the original firmware's tasks_with_access field
	// did it: a literal bitmask, one bit per task id.
	access := kernel.FromMask(1<<taskProducer | 1<<taskConsumer)
	must(k.QueueInit(queueHola, 3, access))

	must(k.TaskCreate(taskProducer, func(tc *kernel.TaskContext) {
		for _, b := range []byte("Hola") {
			if err := tc.Send(queueHola, b, kernel.OSMaxTicks); err != nil {
				log.Error().Err(err).Msg("send failed")
				tc.Terminate()
			}
			tc.Checkpoint()
		}
		tc.Terminate()
	}, 3, true))

	must(k.TaskCreate(taskConsumer, func(tc *kernel.TaskContext) {
		for i := 0; i < 4; i++ {
			item, err := tc.Receive(queueHola, kernel.OSMaxTicks)
			if err != nil {
				log.Error().Err(err).Msg("receive failed")
				tc.Terminate()
			}
			log.Info().Str("task", "consumer").Str("byte", fmt.Sprintf("%c", item.(byte))).Msg("received")
			tc.Checkpoint()
		}
		tc.Terminate()
	}, 3, true))
}

// buildAccessControl wires scenario 4: queue Q1 grants access to tasks 0
// and 1 only; taskIntruder (task 4) attempts a send and must observe
// INVALID_ARGUMENT with no state change.
func buildAccessControl(k *kernel.Kernel, log zerolog.Logger) {
	access := kernel.FromMask(1<<taskA | 1<<taskB)
	must(k.QueueInit(queueHola, 3, access))

	must(k.TaskCreate(taskA, func(tc *kernel.TaskContext) { tc.Terminate() }, 1, false))
	must(k.TaskCreate(taskB, func(tc *kernel.TaskContext) { tc.Terminate() }, 1, false))

	must(k.TaskCreate(taskIntruder, func(tc *kernel.TaskContext) {
		if err := tc.Send(queueHola, byte('x'), 0); err != nil {
			log.Info().Err(err).Msg("intruder correctly denied access")
		} else {
			log.Error().Msg("intruder send unexpectedly succeeded")
		}
		tc.Terminate()
	}, 1, true))
}

// buildPWM wires scenario 5: an auto-reload alarm (period 200 ticks)
// activates period_task, which asserts pin high and arms five one-shot
// alarms at {20,60,100,140,180} to schedule distinct pulse tasks, each of
// which clears the pin at 10/30/50/70/90% of the period. All five pulse
// tasks drive the same single pin, so only the first clear (at 10%) changes
// its level; there are no separate per-duty-cycle outputs.
func buildPWM(k *kernel.Kernel, log zerolog.Logger, pin interface {
	Set(bool) error
}) {
	offsets := [5]uint32{20, 60, 100, 140, 180}
	pulseIDs := [5]TaskID{taskPulse0, taskPulse1, taskPulse2, taskPulse3, taskPulse4}
	pulseAlarms := [5]kernel.AlarmID{alarmPulse0, alarmPulse1, alarmPulse2, alarmPulse3, alarmPulse4}

	must(k.TaskCreate(taskPeriod, func(tc *kernel.TaskContext) {
		if err := pin.Set(true); err != nil {
			log.Error().Err(err).Msg("pin set failed")
		}
		for i, id := range pulseIDs {
			must(k.AlarmSetRel(pulseAlarms[i], offsets[i], id, false))
		}
		tc.Terminate()
	}, 2, false))

	for _, id := range pulseIDs {
		id := id
		must(k.TaskCreate(id, func(tc *kernel.TaskContext) {
			if err := pin.Set(false); err != nil {
				log.Error().Err(err).Msg("pin clear failed")
			}
			tc.Terminate()
		}, 2, false))
	}

	must(k.AlarmSetRel(alarmPeriod, 200, taskPeriod, true))
}

// newGPIOPin opens a real line when chip is set, otherwise an in-memory
// SoftPin so the demo runs on hosts without a GPIO character device.
func newGPIOPin(chip string, offset int) (interface {
	Set(bool) error
	Close() error
}, error) {
	if chip == "" {
		return gpio.NewSoftPin(), nil
	}
	return gpio.Open(chip, offset)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
