// Package pmm implements the physical page frame allocator: a fixed-capacity
// LIFO stack of free 4 KiB frames populated once at boot from the multiboot
// upper-memory region.
package pmm

import "github.com/adamdjudge/SystemAlpha/kernel/mem"

// Frame describes a physical memory page index (physical address >> PageShift).
type Frame uint64

// InvalidFrame is returned by AllocFrame when the pool is exhausted.
const InvalidFrame = Frame(0)

// IsValid reports whether f was returned by a successful allocation. Frame 0
// can never be a valid allocatable frame since the lowest megabyte (which
// contains frame 0) is never added to the free pool.
func (f Frame) IsValid() bool {
	return f != InvalidFrame
}

// Address returns the physical address for this frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the Frame containing the given physical address.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(physAddr >> mem.PageShift)
}
