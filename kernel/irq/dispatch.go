package irq

import (
	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/cpu"
	"github.com/adamdjudge/SystemAlpha/kernel/errors"
	"github.com/adamdjudge/SystemAlpha/kernel/kfmt/early"
)

// Handler is a driver-installed callback for one of the 16 PIC IRQ lines.
// It receives no arguments, matching the original design: drivers read
// whatever device state they need directly from hardware.
type Handler func()

var irqHandlers [16]Handler

// Install registers fn to run whenever IRQ line num fires. num must be in
// [0,15]; out-of-range values are ignored.
func Install(num int, fn Handler) {
	if num < 0 || num > 15 {
		return
	}
	irqHandlers[num] = fn
}

// KillTaskFn is called by Dispatch when a processor exception occurs in a
// user task (CS != kernel code selector). It is set by sched.Init at boot to
// avoid an import cycle (task and sched depend on irq, not the other way
// around). The default implementation, in place until sched.Init runs, only
// logs.
var KillTaskFn = func(frame *TrapFrame, reason string) {
	early.Printf("irq: would kill task (no task manager installed): %s\n", reason)
}

// SyscallFn is called by Dispatch for VecSyscall. Set by the syscall
// package at boot for the same reason as KillTaskFn.
var SyscallFn = func(frame *TrapFrame) {
	errno := int32(errors.ENoSys)
	frame.EAX = uint32(-errno)
}

// Init installs the IDT, remaps the PIC and programs the PIT. It leaves
// interrupts disabled; Enable turns them on. It must run after the rest of boot has prepared virtual
// memory and the task table, since the very next tick may invoke the
// scheduler.
func Init() {
	installIDT()
}

// Enable turns on interrupt delivery. Split out from Init so callers can
// finish wiring task/scheduler state with interrupts still masked.
func Enable() {
	cpu.EnableInterrupts()
}

var errKernelFault = &kernel.Error{Module: "irq", Message: "unexpected exception in kernel mode"}

// panicFn is mocked by tests so that panicWithFrame's effect can be
// observed without actually halting the CPU.
var panicFn = kernel.Panic

// Dispatch is the single entry funnel invoked by every ISR/IRQ/syscall
// entry thunk once it has pushed a complete TrapFrame. It routes syscalls
// to SyscallFn, IRQs to the installed driver handler (acknowledging the
// PIC regardless of whether a handler is installed), and CPU exceptions to
// either a kernel panic or KillTaskFn depending on which privilege level
// was interrupted.
func Dispatch(frame *TrapFrame) {
	switch {
	case frame.Vector == VecSyscall:
		SyscallFn(frame)
		return

	case frame.Vector >= VecIRQ0 && frame.Vector <= VecIRQ15:
		line := frame.Vector - VecIRQ0
		if h := irqHandlers[line]; h != nil {
			h()
		}
		sendEOI(line)
		return

	default:
		handleException(frame)
	}
}

// handleException implements the kernel-mode-panics / user-mode-kills
// policy for each CPU exception. Double faults, breakpoints and stack
// faults always panic regardless of privilege level: a double fault means
// the fault handling path itself is broken, and breakpoints/stack faults
// are treated as debugger/kernel-stack corruption signals that must never
// be allowed to leak a user task onward as if nothing happened.
func handleException(frame *TrapFrame) {
	fromKernel := !frame.FromUser()

	switch frame.Vector {
	case VecDoubleFault:
		panicWithFrame(frame, "double fault")

	case VecDivideByZero:
		killOrPanic(frame, fromKernel, "divide by zero")

	case VecBreakpoint:
		panicWithFrame(frame, "breakpoint")

	case VecBoundRangeExceeded:
		killOrPanic(frame, fromKernel, "bounds check")

	case VecInvalidOpcode:
		killOrPanic(frame, fromKernel, "invalid opcode")

	case VecStackFault:
		panicWithFrame(frame, "stack fault")

	case VecGeneralProtection:
		killOrPanic(frame, fromKernel, "general protection fault")

	case VecPageFault:
		killOrPanic(frame, fromKernel, "page fault")

	default:
		panicWithFrame(frame, "unhandled exception")
	}
}

// killOrPanic panics when the fault came from kernel mode (a kernel bug)
// and otherwise kills the offending user task and lets the caller reach
// the interrupt-return path, which resumes whatever the scheduler picks
// next.
func killOrPanic(frame *TrapFrame, fromKernel bool, reason string) {
	if fromKernel {
		panicWithFrame(frame, reason)
		return
	}
	KillTaskFn(frame, reason)
}

func panicWithFrame(frame *TrapFrame, reason string) {
	early.Printf("kernel exception: %s\n", reason)
	frame.Dump()
	panicFn(errKernelFault)
}
