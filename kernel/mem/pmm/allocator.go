package pmm

import (
	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/kfmt/early"
	"github.com/adamdjudge/SystemAlpha/kernel/mem"
)

// maxFrames bounds the free-frame stack. It matches the largest upper-memory
// region System Alpha is expected to boot with (16 MiB of upper memory at
// the standard 4 KiB page size).
const maxFrames = 4096

var (
	// ErrOutOfMemory is returned by AllocFrame when the free-frame stack
	// is empty.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "no free frame available"}

	stack    [maxFrames]Frame
	top      int
	kernelEnd uintptr
)

// Init populates the free-frame stack by walking every page-aligned address
// in [align_up(kernelEnd), kernelEnd + memUpperKb*1024). Frames are pushed in
// ascending address order, so the LIFO allocator hands out the
// highest-addressed frames first on a freshly booted system.
func Init(kernelEndAddr uintptr, memUpperKb uint64) *kernel.Error {
	kernelEnd = kernelEndAddr
	top = 0

	start := mem.AlignUp(kernelEndAddr)
	end := kernelEndAddr + uintptr(memUpperKb)*1024

	for addr := start; addr < end && top < maxFrames; addr += uintptr(mem.PageSize) {
		stack[top] = FrameFromAddress(addr)
		top++
	}

	early.Printf("[pmm] free frame stack: %d frames (%d KiB) starting at %x\n", top, top*int(mem.PageSize/mem.Kb), start)
	return nil
}

// AllocFrame pops and returns the most recently freed (or, at boot, the
// highest-addressed remaining) frame. LIFO ordering is deliberate: the most
// recently freed frame is reused first, improving TLB locality for
// short-lived mappings.
func AllocFrame() (Frame, *kernel.Error) {
	if top == 0 {
		return InvalidFrame, ErrOutOfMemory
	}

	top--
	f := stack[top]
	stack[top] = InvalidFrame
	return f, nil
}

// FreeFrame pushes a frame back onto the free stack, making it available for
// reuse. Freeing more frames than the pool's remaining capacity indicates a
// double-free and panics rather than silently corrupting the stack.
func FreeFrame(f Frame) {
	if top >= maxFrames {
		kernel.Panic(&kernel.Error{Module: "pmm", Message: "free-frame stack overflow (double free?)"})
	}
	stack[top] = f
	top++
}

// NumFree returns the number of frames currently on the free stack. Used by
// tests and boot diagnostics.
func NumFree() int {
	return top
}
