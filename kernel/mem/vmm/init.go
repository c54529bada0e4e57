package vmm

import "github.com/adamdjudge/SystemAlpha/kernel/mem"

// Kernel code lives in directory entry 0's page table (the boot stub's
// fixed starter mapping), which vmm.Init tightens in place rather than
// rebuilds: the boot stub identity-maps the kernel image through directory
// entry 0.
const kernelTableIndex = 0

const (
	// vgaTextVaddr is where the console driver expects the VGA text
	// buffer to be visible, aliasing physical vgaTextPhys. Carried over
	// from paging_init; spec.md never mentions it since the console is
	// out of core scope, but the console driver is kept and needs it.
	vgaTextVaddr = uintptr(0xff000)
	vgaTextPhys  = uint32(0xb8000)

	// vgaTextTabIndex is vgaTextVaddr's table index within directory
	// entry 0: (0xff000 >> 12) & 0x3ff == 255.
	vgaTextTabIndex = 255
)

// Init finishes what the boot stub's fixed starter page directory/table
// began. It never re-derives or replaces that mapping — the recursive
// self-map at SelfMapIndex and directory entry 0's identity-mapped kernel
// table already exist by the time Go code runs — it only tightens and
// extends them in place via the very self-map they established.
//
// Pages spanning [kernelCodeEnd, kernelEnd) hold data; pages below
// kernelCodeEnd hold code and are marked read-only. spec.md does not ask
// for this split, but dropping it would silently regress a real W^X
// invariant the original C kernel enforced (paging_init in paging.c).
//
// The VGA text page is also aliased at vgaTextVaddr (0xff000) to physical
// 0xb8000 here, for the same reason: paging_init did it and the console
// driver this repo keeps still needs it.
func Init(kernelCodeEnd, kernelEnd uintptr) {
	pt := ptFn(kernelTableIndex)

	for i := uint32(256); i < 1024; i++ {
		addr := uintptr(i) * uintptr(mem.PageSize)
		if addr >= kernelEnd {
			break
		}

		flags := uint32(FlagPresent)
		if addr >= kernelCodeEnd {
			flags |= uint32(FlagRW)
		}
		pt[i] = uint32(addr) | flags
		flushTLBEntryFn(addr)
	}

	pt[vgaTextTabIndex] = vgaTextPhys | uint32(FlagPresent|FlagRW)
	flushTLBEntryFn(vgaTextVaddr)
}
