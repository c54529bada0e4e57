// Package vmm implements the virtual memory manager: mapping, unmapping and
// translation of virtual addresses inside whichever address space is
// currently loaded into cr3, via the recursive self-map established by the
// boot stub.
//
// For a virtual address v with directory index d (bits 22-31) and table
// index t (bits 12-21):
//   - the page directory entry for d lives at PDSelfAddr[d]
//   - the page table entry for t lives at PT(d)[t], where PT(d) is
//     PTBase + d*PageSize
//
// These constants are fixed by the boot stub's recursive mapping (the page
// directory's own recursive slot, SelfMapIndex) and must never change
// without updating the assembly that installs it.
package vmm

import (
	"unsafe"

	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/cpu"
	"github.com/adamdjudge/SystemAlpha/kernel/mem"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/pmm"
)

const (
	// SelfMapIndex is the page-directory slot that the boot stub points
	// back at the directory's own physical frame. Any newly constructed
	// page directory (e.g. task.copyKernelHalf's user directories) must
	// install this same recursive entry, pointing at its own physical
	// frame, to gain the same self-map convenience once it is loaded.
	SelfMapIndex = 1

	// PDSelfAddr is the fixed virtual address at which the currently
	// active page directory is visible, courtesy of the recursive
	// self-map: the self-map PDE's frame is the directory's own frame,
	// so indexing the "page table" for the self-map's own directory
	// index yields the directory itself.
	PDSelfAddr = uintptr(SelfMapIndex)<<22 | uintptr(SelfMapIndex)<<12

	// PTBase is the fixed virtual address at which the page table for
	// directory entry d is visible: PTBase + d*mem.PageSize.
	PTBase = uintptr(0x400000)
)

var (
	// ErrOutOfMemory is returned when the physical allocator cannot
	// satisfy a mapping request.
	ErrOutOfMemory = &kernel.Error{Module: "vmm", Message: "out of physical memory"}

	// nextKernelVaddr is the bump cursor used by AllocKernelPage. Kernel
	// virtual address space grows monotonically; freed kernel virtual
	// addresses are never reused (acceptable: finite but sufficient for
	// System Alpha's fixed task pool and heap).
	nextKernelVaddr uintptr = 0x800000

	// The following indirections exist so that tests can substitute
	// plain Go arrays for the fixed, privileged self-map virtual
	// addresses and the hardware TLB-flush/frame-allocation primitives,
	// none of which are safe to touch from a hosted test binary.
	pdFn            = pdSelf
	ptFn            = ptSelf
	flushTLBEntryFn = cpu.FlushTLBEntry
	allocFrameFn    = pmm.AllocFrame
	freeFrameFn     = pmm.FreeFrame
	memsetFn        = mem.Memset
)

func dirIndex(vaddr uintptr) uint32 { return uint32(vaddr>>22) & 0x3ff }
func tabIndex(vaddr uintptr) uint32 { return uint32(vaddr>>12) & 0x3ff }

func pdSelf() *[1024]uint32 {
	return (*[1024]uint32)(unsafe.Pointer(PDSelfAddr))
}

func ptSelf(d uint32) *[1024]uint32 {
	return (*[1024]uint32)(unsafe.Pointer(PTBase + uintptr(d)*uintptr(mem.PageSize)))
}

// AllocPage establishes a mapping from vaddr to a freshly allocated physical
// frame in the currently active address space, allocating an intermediate
// page table if one is not already present for vaddr's directory entry.
//
// On out-of-memory after partial progress (e.g. a new page table was
// allocated but the leaf frame could not be), the intermediate frame is
// leaked; System Alpha performs no reclamation.
func AllocPage(vaddr uintptr, flags PageTableEntryFlag) (pmm.Frame, *kernel.Error) {
	if err := ensureTable(vaddr, flags); err != nil {
		return pmm.InvalidFrame, err
	}

	d, t := dirIndex(vaddr), tabIndex(vaddr)
	pt := ptFn(d)
	frame, err := allocFrameFn()
	if err != nil {
		return pmm.InvalidFrame, ErrOutOfMemory
	}
	pt[t] = uint32(frame.Address()) | uint32(FlagPresent|flags)
	flushTLBEntryFn(vaddr)

	return frame, nil
}

// MapExistingFrame maps an already-allocated physical frame at vaddr,
// allocating an intermediate page table if needed. Used to establish a
// second, kernel-side alias for a frame already owned by a user page
// mapping (e.g. so the kernel can populate a just-allocated user page
// before the owning task ever runs).
func MapExistingFrame(vaddr uintptr, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	if err := ensureTable(vaddr, flags); err != nil {
		return err
	}
	d, t := dirIndex(vaddr), tabIndex(vaddr)
	pt := ptFn(d)
	pt[t] = uint32(frame.Address()) | uint32(FlagPresent|flags)
	flushTLBEntryFn(vaddr)
	return nil
}

// ensureTable makes sure a page table is present for vaddr's directory
// entry, allocating and zeroing one if not.
func ensureTable(vaddr uintptr, flags PageTableEntryFlag) *kernel.Error {
	d := dirIndex(vaddr)
	pd := pdFn()

	if pd[d]&uint32(FlagPresent) == 0 {
		tableFrame, err := allocFrameFn()
		if err != nil {
			return ErrOutOfMemory
		}

		tableFlags := uint32(FlagPresent | FlagRW)
		if flags&FlagUser != 0 {
			tableFlags |= uint32(FlagUser)
		}
		pd[d] = uint32(tableFrame.Address()) | tableFlags

		tableVaddr := PTBase + uintptr(d)*uintptr(mem.PageSize)
		flushTLBEntryFn(tableVaddr)
		memsetFn(tableVaddr, 0, mem.PageSize)
	}
	return nil
}

// AllocKernelPage allocates the next page of kernel virtual address space
// and maps it. Kernel heap and kernel stacks grow linearly upward from
// 0x800000; there is no reuse of freed kernel virtual addresses.
func AllocKernelPage(flags PageTableEntryFlag) (uintptr, *kernel.Error) {
	vaddr := nextKernelVaddr
	if _, err := AllocPage(vaddr, flags); err != nil {
		return 0, err
	}
	nextKernelVaddr += uintptr(mem.PageSize)
	return vaddr, nil
}

// FreePage clears the leaf mapping for vaddr, returns its frame to the
// physical allocator and flushes the TLB. Freeing a page with no present
// mapping is a kernel bug and panics.
func FreePage(vaddr uintptr) {
	d, t := dirIndex(vaddr), tabIndex(vaddr)
	pd := pdFn()
	if pd[d]&uint32(FlagPresent) == 0 {
		kernel.Panic(&kernel.Error{Module: "vmm", Message: "tried to free unallocated page"})
	}
	pt := ptFn(d)
	if pt[t]&uint32(FlagPresent) == 0 {
		kernel.Panic(&kernel.Error{Module: "vmm", Message: "tried to free unallocated page"})
	}

	frame := frameOf(pt[t])
	pt[t] = 0
	freeFrameFn(frame)
	flushTLBEntryFn(vaddr)
}

// VtoPhys translates a virtual address in the currently active address
// space to its physical address, returning ok=false if there is no present
// mapping.
func VtoPhys(vaddr uintptr) (phys uintptr, ok bool) {
	d, t := dirIndex(vaddr), tabIndex(vaddr)
	pd := pdFn()
	if pd[d]&uint32(FlagPresent) == 0 {
		return 0, false
	}
	pt := ptFn(d)
	if pt[t]&uint32(FlagPresent) == 0 {
		return 0, false
	}
	return (uintptr(pt[t]) & uintptr(entryAddrMask)) | (vaddr & 0xfff), true
}

// FlushTLB flushes the entire TLB by reloading cr3.
func FlushTLB() {
	cpu.FlushTLB()
}
