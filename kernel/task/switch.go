package task

import "github.com/adamdjudge/SystemAlpha/kernel/irq"

// contextSwitch is implemented in task_386.s. It saves the currently
// running task's stack pointer into *savedESP, switches to nextESP/nextCR3,
// and either resumes a previously suspended call chain (started != 0) or
// jumps straight into the interrupt-return path to bring a brand new task
// to life (started == 0).
func contextSwitch(savedESP *uintptr, nextESP uintptr, nextCR3 uint32, started uint32)

// setKernelStackFn is mocked by tests; it installs next.TSSESP0 so that a
// ring 3 -> ring 0 transition taken while next is running lands on next's
// own kernel stack instead of whichever task ran before it.
var setKernelStackFn = irq.SetKernelStack

// Switch transitions the CPU from the currently running task to next. It
// must be called with interrupts disabled; the scheduler (package sched)
// is the only intended caller.
//
// Switching to the task already running is a no-op: contextSwitch would
// otherwise save and immediately clobber its own stack pointer.
func Switch(next *Task) {
	prev := current
	if prev == next {
		return
	}

	started := uint32(0)
	if next.Started {
		started = 1
	}
	next.Started = true

	setKernelStackFn(next.TSSESP0)

	current = next
	contextSwitch(&prev.KernelESP, next.KernelESP, next.CR3, started)
}
