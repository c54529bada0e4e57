package vmm

import "github.com/adamdjudge/SystemAlpha/kernel/mem/pmm"

// PageTableEntryFlag describes the low-order bits of a page directory or
// page table entry.
type PageTableEntryFlag uint32

const (
	// FlagPresent marks a page (or page table) as present in memory.
	FlagPresent PageTableEntryFlag = 1 << 0

	// FlagRW marks a page as writable. Without it the page is read-only.
	FlagRW PageTableEntryFlag = 1 << 1

	// FlagUser marks a page as accessible from ring 3. Without it only
	// ring 0 code may access the page.
	FlagUser PageTableEntryFlag = 1 << 2
)

const entryAddrMask = ^uintptr(0xfff)

// frameOf extracts the frame referenced by a raw 32-bit PDE/PTE value.
func frameOf(entry uint32) pmm.Frame {
	return pmm.FrameFromAddress(uintptr(entry) & uintptr(entryAddrMask))
}
