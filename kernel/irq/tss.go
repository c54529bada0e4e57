package irq

// tss is the 32-bit Task State Segment. Hardware task switching is never
// used, so only esp0/ss0 matter: the CPU consults them to locate the
// kernel stack it switches onto for any ring 3 -> ring 0 transition
// (interrupt, exception, or the syscall gate) taken while running in ring
// 3. Every other field is unused and stays zero. The descriptor pointing
// at this struct is installed in the GDT at SelTSS by the boot stub, along
// with the one-time LTR that loads it; this package only ever rewrites
// esp0 afterward.
type tss struct {
	prevTaskLink           uint32
	esp0                   uint32
	ss0                    uint32
	esp1                   uint32
	ss1                    uint32
	esp2                   uint32
	ss2                    uint32
	cr3                    uint32
	eip                    uint32
	eflags                 uint32
	eax, ecx, edx, ebx     uint32
	esp, ebp, esi, edi     uint32
	es, cs, ss, ds, fs, gs uint32
	ldt                    uint32
	trap                   uint16
	ioMapBase              uint16
}

var kernelTSS tss

// SetKernelStack installs esp0 as the stack pointer the CPU will switch to
// on the next ring 3 -> ring 0 transition. task.Switch calls this on every
// context switch so that a trap taken from the newly scheduled task's ring
// 3 code lands on that task's own kernel stack rather than whichever task
// ran last. esp0 is meaningless for a task that never reaches ring 3 (a
// kernel thread); writing it anyway is harmless since such a task never
// triggers the transition that reads it.
func SetKernelStack(esp0 uintptr) {
	kernelTSS.esp0 = uint32(esp0)
	kernelTSS.ss0 = SelKernelData
}
