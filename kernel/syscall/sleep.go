package syscall

import (
	"github.com/adamdjudge/SystemAlpha/kernel/errors"
	"github.com/adamdjudge/SystemAlpha/kernel/irq"
	"github.com/adamdjudge/SystemAlpha/kernel/sched"
	"github.com/adamdjudge/SystemAlpha/kernel/task"
)

// sleepBlocking parks the calling task for ms milliseconds. Unlike
// send/recv, this never needs to retry — the timer tick handler (package
// sched) is the only thing that ever moves a SLEEPING task back to
// RUNNABLE, so a single yield here parks the caller exactly until that
// happens. Shared by sysSleep (the ring 3 trap gate) and Sleep (the direct
// ring 0 kernel-thread entry point).
func sleepBlocking(ms uint32) {
	self := task.Current()
	self.Alarm = ms
	self.State = task.Sleeping

	sched.Schedule()
}

// sysSleep implements SysSleep: EBX holds the requested duration in
// milliseconds.
func sysSleep(f *irq.TrapFrame) int32 {
	sleepBlocking(f.EBX)
	return int32(errors.Success)
}
