package irq

import (
	"reflect"
	"unsafe"
)

// idtEntry is a single IDT gate descriptor (32-bit interrupt gate).
type idtEntry struct {
	baseLow  uint16
	segment  uint16
	zero     uint8
	flags    uint8
	baseHigh uint16
}

// idtPointer is the operand loaded by LIDT.
type idtPointer struct {
	limit uint16
	base  uint32
}

const gateFlags = 0x8e

var (
	idt    [256]idtEntry
	idtPtr idtPointer
)

func entryAddr(thunk func()) uintptr {
	return reflect.ValueOf(thunk).Pointer()
}

func setGate(vector int, thunk func()) {
	handler := entryAddr(thunk)
	idt[vector] = idtEntry{
		baseLow:  uint16(handler),
		baseHigh: uint16(handler >> 16),
		segment:  uint16(SelKernelCode),
		flags:    gateFlags,
	}
}

// installIDT populates every gate with the address of its assembly entry
// thunk and loads the table via lidt. loadIDT (implemented in idt_386.s)
// loads the IDT register; interrupts stay masked until the caller
// explicitly enables them once the rest of boot has run.
func installIDT() {
	setGate(VecDivideByZero, isrEntry0)
	setGate(VecDebug, isrEntry1)
	setGate(VecNMI, isrEntry2)
	setGate(VecBreakpoint, isrEntry3)
	setGate(VecOverflow, isrEntry4)
	setGate(VecBoundRangeExceeded, isrEntry5)
	setGate(VecInvalidOpcode, isrEntry6)
	setGate(VecNoCoprocessor, isrEntry7)
	setGate(VecDoubleFault, isrEntry8)
	setGate(VecCoprocessorOverrun, isrEntry9)
	setGate(VecInvalidTSS, isrEntry10)
	setGate(VecSegmentNotPresent, isrEntry11)
	setGate(VecStackFault, isrEntry12)
	setGate(VecGeneralProtection, isrEntry13)
	setGate(VecPageFault, isrEntry14)
	setGate(VecUnknownInterrupt, isrEntry15)
	setGate(VecCoprocessorFault, isrEntry16)
	setGate(VecAlignmentCheck, isrEntry17)
	setGate(VecMachineCheck, isrEntry18)

	setGate(VecIRQ0+0, irqEntry0)
	setGate(VecIRQ0+1, irqEntry1)
	setGate(VecIRQ0+2, irqEntry2)
	setGate(VecIRQ0+3, irqEntry3)
	setGate(VecIRQ0+4, irqEntry4)
	setGate(VecIRQ0+5, irqEntry5)
	setGate(VecIRQ0+6, irqEntry6)
	setGate(VecIRQ0+7, irqEntry7)
	setGate(VecIRQ0+8, irqEntry8)
	setGate(VecIRQ0+9, irqEntry9)
	setGate(VecIRQ0+10, irqEntry10)
	setGate(VecIRQ0+11, irqEntry11)
	setGate(VecIRQ0+12, irqEntry12)
	setGate(VecIRQ0+13, irqEntry13)
	setGate(VecIRQ0+14, irqEntry14)
	setGate(VecIRQ0+15, irqEntry15)

	setGate(VecSyscall, isrEntrySyscall)

	remapPIC()
	programPIT()

	idtPtr.limit = uint16(unsafe.Sizeof(idt) - 1)
	idtPtr.base = uint32(uintptr(unsafe.Pointer(&idt[0])))
	loadIDT(uintptr(unsafe.Pointer(&idtPtr)))
}

// loadIDT executes lidt against the descriptor at ptr. Implemented in
// idt_386.s.
func loadIDT(ptr uintptr)

// isrEntryN/irqEntryN/isrEntrySyscall are the assembly entry thunks defined
// in idt_386.s. Each pushes a normalized error code (the real hardware error
// code for vectors that have one, else zero) and its own vector number, then
// CR0/CR2/CR3, then the general registers (pusha order), then the data
// segment selectors — producing exactly the TrapFrame layout described in
// trapframe.go — before calling dispatchTrampoline and, on return, popping
// the frame and executing iret.
func isrEntry0()
func isrEntry1()
func isrEntry2()
func isrEntry3()
func isrEntry4()
func isrEntry5()
func isrEntry6()
func isrEntry7()
func isrEntry8()
func isrEntry9()
func isrEntry10()
func isrEntry11()
func isrEntry12()
func isrEntry13()
func isrEntry14()
func isrEntry15()
func isrEntry16()
func isrEntry17()
func isrEntry18()

func irqEntry0()
func irqEntry1()
func irqEntry2()
func irqEntry3()
func irqEntry4()
func irqEntry5()
func irqEntry6()
func irqEntry7()
func irqEntry8()
func irqEntry9()
func irqEntry10()
func irqEntry11()
func irqEntry12()
func irqEntry13()
func irqEntry14()
func irqEntry15()

func isrEntrySyscall()

// dispatchTrampoline is called by every entry thunk with the trap frame
// pointer in AX. It exists as a separate symbol (rather than calling
// Dispatch directly from assembly) so the calling convention adaptation
// lives in one place.
func dispatchTrampoline(frame *TrapFrame) {
	Dispatch(frame)
}
