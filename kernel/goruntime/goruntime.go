// Package goruntime bootstraps the small slice of the Go runtime that
// needs to run before any heap, map, or interface value can exist: the
// low-level hooks the runtime calls to reserve and map the address space
// backing its own allocator.
package goruntime

import (
	"unsafe"

	"github.com/adamdjudge/SystemAlpha/kernel/mem"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/vmm"
)

var allocKernelPageFn = vmm.AllocKernelPage

//go:linkname mSysStatInc runtime.mSysStatInc
func mSysStatInc(*uint64, uintptr)

func pageCount(size uintptr) uintptr {
	return (uintptr(mem.Size(size)) + uintptr(mem.PageSize) - 1) / uintptr(mem.PageSize)
}

// sysReserve reserves address space without the caller expecting the
// memory to be backed yet. System Alpha's VMM has no lazy/copy-on-write
// mapping, so this reserves by eagerly allocating and mapping — simpler,
// at the cost of committing physical frames a little earlier than the
// runtime strictly needs them.
//
//go:redirect-from runtime.sysReserve
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr, reserved *bool) unsafe.Pointer {
	start, ok := mapPages(size)
	if !ok {
		*reserved = false
		return unsafe.Pointer(uintptr(0))
	}
	*reserved = true
	return unsafe.Pointer(start)
}

// sysMap finalizes a region previously reserved by sysReserve. Since
// sysReserve already mapped real frames, this is a bookkeeping no-op
// besides the runtime's own memory-stat accounting.
//
//go:redirect-from runtime.sysMap
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, reserved bool, sysStat *uint64) unsafe.Pointer {
	if !reserved {
		panic("sysMap called with reserved=false")
	}
	mSysStatInc(sysStat, uintptr(size))
	return virtAddr
}

// sysAlloc reserves and maps a region in one step, for allocation paths
// that never call sysReserve first.
//
//go:redirect-from runtime.sysAlloc
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	start, ok := mapPages(size)
	if !ok {
		return unsafe.Pointer(uintptr(0))
	}
	mSysStatInc(sysStat, uintptr(size))
	return unsafe.Pointer(start)
}

func mapPages(size uintptr) (uintptr, bool) {
	n := pageCount(size)
	if n == 0 {
		n = 1
	}

	var start uintptr
	for i := uintptr(0); i < n; i++ {
		vaddr, err := allocKernelPageFn(vmm.FlagRW)
		if err != nil {
			return 0, false
		}
		if i == 0 {
			start = vaddr
		}
	}
	return start, true
}

func init() {
	var (
		reserved bool
		stat     uint64
		zeroPtr  = unsafe.Pointer(uintptr(0))
	)
	sysReserve(zeroPtr, 0, &reserved)
	sysMap(zeroPtr, 0, reserved, &stat)
	sysAlloc(0, &stat)
}
