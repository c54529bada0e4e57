// Package task implements the task table: process-table slots, kernel and
// user task creation, the mailbox IPC primitive, and the low-level context
// switch between slots.
package task

import (
	"unsafe"

	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/cpu"
	"github.com/adamdjudge/SystemAlpha/kernel/irq"
	"github.com/adamdjudge/SystemAlpha/kernel/mem"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/vmm"
)

// State is a task slot's lifecycle stage.
type State uint32

const (
	Free State = iota
	Runnable
	Sleeping
	Waiting
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Runnable:
		return "runnable"
	case Sleeping:
		return "sleeping"
	case Waiting:
		return "waiting"
	default:
		return "unknown"
	}
}

const (
	// NumTasks is the fixed size of the process table.
	NumTasks = 64

	// MaxMessages is the capacity of a single task's mailbox.
	MaxMessages = 64

	// QuantumTicks is the number of timer ticks a running task holds the
	// CPU before the round-robin scheduler reconsiders.
	QuantumTicks = 10

	userEntryPoint = 0x80000000
	userStackTop   = 0xfffff000
)

// Message is a single pending IPC message, {sender_pid, args[5]} in the
// original design. Mailboxes are fixed-capacity ring buffers rather than a
// linked list of heap-allocated nodes: a statically sized pool per task,
// owned entirely by that task, needing no separate node allocator or
// reclamation pass when the task dies.
type Message struct {
	SenderPID uint32
	Args      [5]int32
}

// userPage records a user-owned page's kernel-visible alias alongside the
// user virtual address it is mapped at in the task's own directory.
type userPage struct {
	KVAddr uintptr
	UVAddr uintptr
}

// pageTableRef records a page table AllocUserPage allocated for one of a
// task's own directory entries, so a later call targeting the same
// directory entry can find and reuse it instead of allocating a second one.
type pageTableRef struct {
	KVAddr   uintptr
	DirIndex uint32
}

// Task is a single process-table slot.
type Task struct {
	State State
	PID   uint32

	// KernelESP is the saved stack pointer used to resume this task;
	// Started distinguishes a task that has never run (KernelESP points
	// at a synthetic frame to be entered via contextSwitch's first-entry path)
	// from one being resumed mid-suspension (KernelESP points into a
	// live, suspended Go call chain).
	KernelESP uintptr
	Started   bool

	// TSSESP0 is the kernel stack pointer installed into the TSS so
	// that a ring 3 -> ring 0 transition for this task lands on its own
	// kernel stack.
	TSSESP0 uintptr

	CR3     uint32
	PageDir uintptr

	Counter uint32
	Alarm   uint32 // milliseconds remaining; a Sleeping task with 0 wakes on the next tick

	mailbox         [MaxMessages]Message
	mbHead, mbCount int

	pages      []userPage
	pageTables []pageTableRef
}

var (
	table   [NumTasks]Task
	current *Task
	nextPID uint32

	// kernelCR3/kernelPageDir describe the address space installed for
	// the idle task and every kernel thread; user tasks clone the
	// kernel half of this directory.
	kernelCR3     uint32
	kernelPageDir uintptr

	// The following indirections exist so tests can back a spawned
	// task's stack with a plain Go byte slice instead of a real kernel
	// page, without touching the privileged self-map virtual addresses
	// vmm.AllocKernelPage ultimately resolves through.
	allocKernelPageFn = vmm.AllocKernelPage
	activePDTFn       = cpu.ActivePDT
	vtoPhysFn         = vmm.VtoPhys
	flushTLBFn        = vmm.FlushTLB
	kernelPDFn        = func() *[1024]uint32 { return (*[1024]uint32)(unsafe.Pointer(vmm.PDSelfAddr)) }
)

// ErrTableFull is returned by the spawn functions when no FREE slot
// remains.
var ErrTableFull = &kernel.Error{Module: "task", Message: "process table full"}

// Init resets the process table and installs the idle task (pid 0) in slot
// 0, running forever on the address space active at boot. It must run
// after the VMM and before interrupts are enabled.
func Init() {
	for i := range table {
		table[i] = Task{}
	}
	nextPID = 1

	kernelCR3 = uint32(activePDTFn())
	kernelPageDir = vmm.PDSelfAddr

	idle := &table[0]
	idle.PID = 0
	idle.CR3 = kernelCR3
	idle.PageDir = kernelPageDir
	idle.State = Runnable
	idle.Started = true

	current = idle
}

// Current returns the task presently granted the CPU.
func Current() *Task { return current }

// Lookup returns the task slot with the given pid, or nil if no
// non-FREE slot currently holds it.
func Lookup(pid uint32) *Task {
	for i := range table {
		if table[i].State != Free && table[i].PID == pid {
			return &table[i]
		}
	}
	return nil
}

// All returns every task slot, for use by the scheduler.
func All() *[NumTasks]Task { return &table }

func findFree() (*Task, *kernel.Error) {
	for i := 1; i < NumTasks; i++ {
		if table[i].State == Free {
			return &table[i], nil
		}
	}
	return nil, ErrTableFull
}

// newSyntheticFrame writes a complete TrapFrame at the top of a
// freshly-allocated kernel stack, zero-initialized except for the fields
// the spec requires to be explicit: the first-run invariant eflags.IF = 1
// depends on every other field being zero, in particular the saved general
// registers and the benign-looking-but-load-bearing ESPDummy/CR fields.
func newSyntheticFrame(stackTop uintptr, cs, ds uint32, eip, esp uintptr) uintptr {
	frameAddr := stackTop - uintptr(unsafe.Sizeof(irq.TrapFrame{}))
	frame := (*irq.TrapFrame)(unsafe.Pointer(frameAddr))
	*frame = irq.TrapFrame{}

	frame.CS = cs
	frame.DS, frame.ES, frame.FS, frame.GS = ds, ds, ds, ds
	frame.EFlags = 1 << 9 // IF
	frame.EIP = uint32(eip)
	frame.Vector = irq.VecIRQ0

	if cs != irq.SelKernelCode {
		frame.UserESP = uint32(esp)
		frame.UserSS = ds
	}

	return frameAddr
}

// SpawnKernelThread allocates a task slot running entirely in ring 0,
// sharing the kernel's address space, starting at entry.
func SpawnKernelThread(entry uintptr) (*Task, *kernel.Error) {
	t, err := findFree()
	if err != nil {
		return nil, err
	}

	stackTop, err := allocKernelPageFn(vmm.FlagRW)
	if err != nil {
		return nil, err
	}
	stackTop += uintptr(mem.PageSize)

	t.PID = nextPID
	nextPID++
	t.CR3 = kernelCR3
	t.PageDir = kernelPageDir
	t.Counter = 0
	t.Alarm = 0
	t.mbHead, t.mbCount = 0, 0
	t.pages, t.pageTables = nil, nil

	t.KernelESP = newSyntheticFrame(stackTop, irq.SelKernelCode, irq.SelKernelData, entry, 0)
	t.Started = false
	t.State = Runnable

	return t, nil
}

// SpawnUserTask allocates a task slot with its own page directory (the
// kernel half cloned from the idle task's) and a synthetic frame that
// enters ring 3 at the fixed user entry point/stack top. The caller is
// responsible for mapping the task's code pages (via AllocUserPage) before
// marking it runnable with MarkRunnable.
func SpawnUserTask() (*Task, *kernel.Error) {
	t, err := findFree()
	if err != nil {
		return nil, err
	}

	dirVaddr, err := allocKernelPageFn(vmm.FlagRW)
	if err != nil {
		return nil, err
	}
	mem.Memset(dirVaddr, 0, mem.PageSize)

	phys, ok := vtoPhysFn(dirVaddr)
	if !ok {
		kernel.Panic(&kernel.Error{Module: "task", Message: "new page directory has no physical mapping"})
	}
	copyKernelHalf(dirVaddr, uint32(phys))

	kStackTop, err := allocKernelPageFn(vmm.FlagRW)
	if err != nil {
		return nil, err
	}
	kStackTop += uintptr(mem.PageSize)

	t.PID = nextPID
	nextPID++
	t.CR3 = uint32(phys)
	t.PageDir = dirVaddr
	t.TSSESP0 = kStackTop
	t.Counter = 0
	t.Alarm = 0
	t.mbHead, t.mbCount = 0, 0
	t.pages, t.pageTables = nil, nil

	t.KernelESP = newSyntheticFrame(kStackTop, irq.SelUserCode, irq.SelUserData, userEntryPoint, userStackTop)
	t.Started = false
	t.State = Sleeping

	return t, nil
}

// copyKernelHalf aliases the kernel's half of the recursive page directory
// into a freshly allocated user directory so that kernel addresses remain
// universally mapped regardless of which task's CR3 is loaded, and installs
// the new directory's own recursive self-map entry at vmm.SelfMapIndex
// (pointing dirPhys, the new directory's own physical frame, at itself) so
// that once loaded, the new directory gets the same PDSelfAddr convenience
// as the kernel's. The kernel occupies the lower half of the directory
// (entries 0-511: the image, the self-map and the kernel page area); the
// upper half holds the user code at userEntryPoint and stack at userStackTop.
func copyKernelHalf(dirVaddr uintptr, dirPhys uint32) {
	kernelPD := kernelPDFn()
	newPD := (*[1024]uint32)(unsafe.Pointer(dirVaddr))
	for i := 0; i < 512; i++ {
		newPD[i] = kernelPD[i]
	}
	newPD[vmm.SelfMapIndex] = dirPhys | uint32(vmm.FlagPresent|vmm.FlagRW)
}

// MarkRunnable transitions a freshly spawned user task out of SLEEPING once
// its code pages have been mapped.
func (t *Task) MarkRunnable() {
	t.State = Runnable
}

// Kill marks t FREE. Per the leak-on-exit design, its page directory, page
// tables and data frames are not reclaimed.
func Kill(t *Task) {
	t.State = Free
}
