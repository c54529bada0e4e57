// Package syscall implements the IPC and timing syscalls user and kernel
// tasks use to communicate: send, recv and sleep. Every call is dispatched
// from a single vector table indexed by the low byte of EAX, matching the
// register convention the entry thunks already establish.
package syscall

import (
	"github.com/adamdjudge/SystemAlpha/kernel/errors"
	"github.com/adamdjudge/SystemAlpha/kernel/irq"
	"github.com/adamdjudge/SystemAlpha/kernel/sched"
)

// Syscall numbers, matching the low byte of EAX at the point of the int
// instruction. Every call enters through the same gate, vector
// irq.VecSyscall.
const (
	SysSend  = 1
	SysRecv  = 2
	SysSleep = 3
)

var vectors = [...]func(f *irq.TrapFrame) int32{
	nil, // vector 0 is unused; callno 0 always falls through to noSys
	sysSend,
	sysRecv,
	sysSleep,
}

// Init installs Dispatch as the kernel's syscall entry point. It must run
// after task.Init and sched.Init, since every vector here blocks by
// yielding through the scheduler.
func Init() {
	irq.SyscallFn = Dispatch
}

// Dispatch is installed as irq.SyscallFn. It reads the call number out of
// the low byte of EAX, runs the call without changing the interrupt flag,
// and writes the call's return value back into the frame's EAX.
// A different task may be current by the time a blocking call returns, but
// the trap frame is per-task kernel stack state, so writing to *frame always
// reaches the task that issued the call.
func Dispatch(frame *irq.TrapFrame) {
	callno := frame.EAX & 0xff

	if callno >= uint32(len(vectors)) || vectors[callno] == nil {
		errno := int32(errors.ENoSys)
		frame.EAX = uint32(-errno)
		return
	}

	frame.EAX = uint32(vectors[callno](frame))
}

// blockUntil repeatedly calls attempt until it reports done, yielding the
// CPU via the scheduler between tries. The calling task stays RUNNABLE the
// whole time — there is no wait queue to wake it on the relevant event, so
// it simply retries on its next turn — and attempt runs on the task's own
// kernel stack across every retry: sched.Schedule may switch away and back
// an arbitrary number of times before this loop ever returns, exactly as
// if the call were a blocking read on any other kernel.
func blockUntil(attempt func() (result int32, done bool)) int32 {
	for {
		result, done := attempt()
		if done {
			return result
		}
		sched.Schedule()
	}
}
