package syscall

import "github.com/adamdjudge/SystemAlpha/kernel/task"

// Send, Recv and Sleep let a ring 0 kernel thread use the exact same
// blocking mailbox/timer semantics as a ring 3 task issuing SysSend/
// SysRecv/SysSleep, without trapping through the syscall gate: a kernel
// thread already runs fully privileged and shares the kernel's address
// space, so there is no privilege transition to cross to reach this logic.

// Send delivers args to dst's mailbox, blocking until there is room.
func Send(dst uint32, args [5]int32) int32 {
	return sendBlocking(dst, args)
}

// Recv blocks until a message arrives in the calling task's mailbox and
// returns it along with its sender's pid.
func Recv() (task.Message, int32) {
	return recvBlocking()
}

// Sleep parks the calling task for ms milliseconds.
func Sleep(ms uint32) {
	sleepBlocking(ms)
}
