// Package heap implements the kernel's dynamic memory allocator: a
// fixed-size run of kernel pages carved up into a chain of first-fit chunks.
//
// Each chunk begins with a single header dword encoding headerBit |
// allocatedBit | size-in-dwords (size mask sizeMask). kmalloc rounds
// requests up to a 4-byte quantum, walks the chain first-fit, and splits the
// remainder of an oversized free chunk into a new free chunk. kfree is
// deliberately a no-op: this is a leak-on-free design (the open design
// question in spec.md is resolved in favor of explicit leak semantics, not
// coalescing), acceptable because kernel heap objects in System Alpha are
// long-lived and the heap is never
// expected to be reclaimed wholesale.
package heap

import (
	"unsafe"

	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/mem"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/vmm"
)

// HeapPages is the number of kernel pages carved out for the heap at Init.
const HeapPages = 4

const (
	headerBit    uint32 = 1 << 31
	allocatedBit uint32 = 1 << 30
	sizeMask     uint32 = 0x00ffffff
)

var (
	// ErrCorrupt indicates a chunk header was found without headerBit
	// set; this is a kernel bug, not a recoverable condition.
	ErrCorrupt = &kernel.Error{Module: "heap", Message: "heap corrupted"}

	heapBase uintptr
	limit    uintptr

	allocKernelPageFn = vmm.AllocKernelPage
)

func word(addr uintptr) *uint32 { return (*uint32)(unsafe.Pointer(addr)) }

// Init carves HeapPages kernel pages and initializes them as a single free
// chunk spanning the whole run.
func Init() *kernel.Error {
	for i := 0; i < HeapPages; i++ {
		page, err := allocKernelPageFn(vmm.FlagRW)
		if err != nil {
			return err
		}
		if heapBase == 0 {
			heapBase = page
		}
	}

	size := uint32(HeapPages) * uint32(mem.PageSize) / 4
	*word(heapBase) = (size) | headerBit
	limit = heapBase + uintptr(HeapPages)*uintptr(mem.PageSize)
	return nil
}

// Kmalloc walks the heap first-fit and returns a pointer to a zero-valued
// region of at least size bytes, or nil if no chunk is large enough or size
// does not fit in the chunk size encoding.
//
// Allocation quantum is 4 bytes; size is rounded up to the nearest dword.
func Kmalloc(size uintptr) unsafe.Pointer {
	dwords := uint32((size + 3) &^ 3 / 4)
	if dwords&^sizeMask != 0 {
		return nil
	}
	// A chunk must have room for at least its own header dword plus the
	// requested payload.
	needed := dwords + 1

	for ptr := heapBase; ptr < limit; {
		hdr := *word(ptr)
		if hdr&headerBit == 0 {
			kernel.Panic(ErrCorrupt)
		}

		chunkSize := hdr & sizeMask
		if hdr&allocatedBit != 0 {
			ptr += uintptr(chunkSize) * 4
			continue
		}

		if chunkSize < needed {
			ptr += uintptr(chunkSize) * 4
			continue
		}

		payload := ptr + 4
		if payload+uintptr(dwords)*4 > limit {
			return nil
		}

		*word(ptr) = needed | headerBit | allocatedBit
		remainder := chunkSize - needed
		if remainder > 0 {
			*word(payload + uintptr(dwords)*4) = remainder | headerBit
		}

		mem.Memset(payload, 0, mem.Size(dwords)*4)
		return unsafe.Pointer(payload)
	}

	return nil
}

// Kfree is a deliberate no-op; freed chunks are leaked rather than
// coalesced. See the package doc comment for rationale.
func Kfree(ptr unsafe.Pointer) {}
