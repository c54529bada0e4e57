package syscall

import (
	"github.com/adamdjudge/SystemAlpha/kernel/errors"
	"github.com/adamdjudge/SystemAlpha/kernel/irq"
	"github.com/adamdjudge/SystemAlpha/kernel/task"
)

// sendBlocking delivers args to dst's mailbox, blocking and retrying on
// EAgain (yielding via the scheduler between tries) until there is room.
// Shared by sysSend (the ring 3 trap gate) and Send (the direct ring 0
// kernel-thread entry point) so both go through one implementation.
func sendBlocking(dst uint32, args [5]int32) int32 {
	d := task.Lookup(dst)
	if d == nil {
		return -int32(errors.EInval)
	}

	senderPID := task.Current().PID

	return blockUntil(func() (int32, bool) {
		if d.TrySend(senderPID, args) {
			return int32(errors.Success), true
		}
		return -int32(errors.EAgain), false
	})
}

// sysSend implements SysSend: EBX holds the destination pid, ECX/EDX/
// ESI/EDI/EBP hold the five message words.
func sysSend(f *irq.TrapFrame) int32 {
	args := [5]int32{int32(f.ECX), int32(f.EDX), int32(f.ESI), int32(f.EDI), int32(f.EBP)}
	return sendBlocking(f.EBX, args)
}

// recvBlocking blocks until a message is pending in the calling task's own
// mailbox and returns it along with its sender's pid. Shared by sysRecv
// (the ring 3 trap gate) and Recv (the direct ring 0 kernel-thread entry
// point).
func recvBlocking() (task.Message, int32) {
	self := task.Current()
	var msg task.Message

	senderPID := blockUntil(func() (int32, bool) {
		m, ok := self.TryRecv()
		if !ok {
			return -int32(errors.EAgain), false
		}
		msg = m
		return int32(m.SenderPID), true
	})

	return msg, senderPID
}

// sysRecv implements SysRecv: it blocks until a message is pending in the
// calling task's own mailbox, then writes the five message words back into
// EBX/ECX/EDX/ESI/EDI and returns the sender's pid (not SUCCESS) as the
// syscall result.
func sysRecv(f *irq.TrapFrame) int32 {
	msg, senderPID := recvBlocking()
	f.EBX = uint32(msg.Args[0])
	f.ECX = uint32(msg.Args[1])
	f.EDX = uint32(msg.Args[2])
	f.ESI = uint32(msg.Args[3])
	f.EDI = uint32(msg.Args[4])
	return senderPID
}
