// Package cpu contains arch-specific assembly primitives for the i386 target:
// interrupt masking, port I/O, TLB control and CR3 manipulation. Every
// function declared here has no Go body; its implementation lives in
// cpu_386.s and is the only code in the kernel allowed to execute these
// privileged instructions directly.
package cpu

// EnableInterrupts sets eflags.IF, allowing maskable interrupts to be
// delivered.
func EnableInterrupts()

// DisableInterrupts clears eflags.IF. The scheduler, the context switch and
// any code that inspects the task table run with interrupts disabled.
func DisableInterrupts()

// Halt executes hlt, stopping instruction execution until the next
// interrupt (or forever, if interrupts are disabled).
func Halt()

// FlushTLBEntry invalidates the TLB entry for the given virtual address via
// invlpg.
func FlushTLBEntry(virtAddr uintptr)

// FlushTLB reloads cr3 with its current value, flushing the entire TLB.
func FlushTLB()

// SwitchPDT loads the given physical address into cr3, switching the active
// page directory and flushing the TLB as a side effect.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address currently loaded in cr3.
func ActivePDT() uintptr

// InB reads a byte from the given I/O port.
func InB(port uint16) uint8

// OutB writes a byte to the given I/O port.
func OutB(port uint16, data uint8)
