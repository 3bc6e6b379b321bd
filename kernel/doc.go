// Package kernel implements the core of nano-rtos: the task table and
// lifecycle state machine, the priority scheduler, the tick-driven alarm
// engine, and the mailbox-style queue engine. These four pieces share state
// that is mutated both from task context and from interrupt context, and
// this package is what keeps a single consistent task-state machine across
// both.
//
// Everything outside this package — the HAL, application main, example
// tasks — is a collaborator specified only at its interface to the core;
// see platform/ and cmd/nanorts.
package kernel
