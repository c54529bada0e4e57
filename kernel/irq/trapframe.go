// Package irq implements the interrupt dispatch layer: the trap frame
// layout shared with the assembly entry thunks, the PIC and PIT hardware
// programming, IDT installation, and the single dispatch funnel that every
// ISR/IRQ/syscall thunk calls after pushing a complete frame.
package irq

import (
	"github.com/adamdjudge/SystemAlpha/kernel/kfmt/early"
)

// TrapFrame is the fixed memory layout pushed by the assembly entry thunks
// before calling Dispatch, and also doubles as the initial kernel stack
// image used to launch a new task via iret (see task's newSyntheticFrame).
//
// Field order is frozen by assembler contract and must never change without
// updating every entry thunk in lockstep. Chronologically, each thunk's
// pushes run: (error code, real or a dummy zero), vector number, CR0, CR2,
// CR3, pusha, then the four data segment selectors — and the CPU itself
// pushed eip/cs/eflags(/esp/ss) before the thunk ran at all. Because the
// stack grows down, the struct (overlaid starting at the post-push ESP)
// reads in the reverse of that order: segment selectors first, then the
// general registers, then the control registers, then the vector and
// error code, then the block the CPU already pushed. UserESP and UserSS
// are only meaningful when the interrupt was taken from ring 3 (CS !=
// 0x08).
type TrapFrame struct {
	GS, FS, ES, DS uint32

	EDI, ESI, EBP, ESPDummy, EBX, EDX, ECX, EAX uint32

	CR3, CR2, CR0 uint32

	Vector  uint32
	ErrCode uint32

	EIP, CS, EFlags uint32
	UserESP, UserSS uint32
}

// FromUser reports whether the interrupted context was running in ring 3.
func (f *TrapFrame) FromUser() bool {
	return f.CS != SelKernelCode
}

// Dump writes a full diagnostic dump of the frame to the active terminal,
// used both by panic output and by per-task fault diagnostics.
func (f *TrapFrame) Dump() {
	early.Printf("vector %d  error %x\n", f.Vector, f.ErrCode)
	early.Printf("eip %x  cs %x  eflags %x\n", f.EIP, f.CS, f.EFlags)
	early.Printf("eax %x ebx %x ecx %x edx %x\n", f.EAX, f.EBX, f.ECX, f.EDX)
	early.Printf("esi %x edi %x ebp %x\n", f.ESI, f.EDI, f.EBP)
	early.Printf("cr0 %x cr2 %x cr3 %x\n", f.CR0, f.CR2, f.CR3)
	early.Printf("ds %x es %x fs %x gs %x\n", f.DS, f.ES, f.FS, f.GS)
	if f.FromUser() {
		early.Printf("user esp %x  user ss %x\n", f.UserESP, f.UserSS)
	}
}
