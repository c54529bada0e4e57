package vmm

import (
	"testing"

	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/mem"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/pmm"
)

// fakeSpace emulates a single address space's directory and page tables as
// plain Go arrays so that AllocPage/FreePage/VtoPhys can be exercised without
// touching the real (privileged, fixed) self-map virtual addresses.
type fakeSpace struct {
	pd        [1024]uint32
	pt        map[uint32]*[1024]uint32
	nextFrame uint64
	flushed   []uintptr
}

func newFakeSpace() *fakeSpace {
	return &fakeSpace{pt: make(map[uint32]*[1024]uint32), nextFrame: 1}
}

func (f *fakeSpace) install(t *testing.T) func() {
	t.Helper()
	origPD, origPT, origFlush, origAlloc, origFree, origMemset := pdFn, ptFn, flushTLBEntryFn, allocFrameFn, freeFrameFn, memsetFn

	pdFn = func() *[1024]uint32 { return &f.pd }
	ptFn = func(d uint32) *[1024]uint32 {
		if f.pt[d] == nil {
			f.pt[d] = &[1024]uint32{}
		}
		return f.pt[d]
	}
	flushTLBEntryFn = func(addr uintptr) { f.flushed = append(f.flushed, addr) }
	allocFrameFn = func() (pmm.Frame, *kernel.Error) {
		fr := pmm.Frame(f.nextFrame)
		f.nextFrame++
		return fr, nil
	}
	freeFrameFn = func(pmm.Frame) {}
	memsetFn = func(uintptr, byte, mem.Size) {}

	return func() {
		pdFn, ptFn, flushTLBEntryFn, allocFrameFn, freeFrameFn, memsetFn = origPD, origPT, origFlush, origAlloc, origFree, origMemset
	}
}

func TestAllocPageAllocatesTableOnDemand(t *testing.T) {
	f := newFakeSpace()
	defer f.install(t)()

	vaddr := uintptr(3)<<22 | uintptr(7)<<12

	frame, err := AllocPage(vaddr, FlagRW)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.IsValid() {
		t.Fatalf("expected a valid frame")
	}

	if f.pd[3]&uint32(FlagPresent) == 0 {
		t.Fatalf("expected directory entry 3 to be marked present")
	}

	pte := f.pt[3][7]
	if pte&uint32(FlagPresent) == 0 {
		t.Fatalf("expected leaf PTE to be marked present")
	}
	if frameOf(pte) != frame {
		t.Fatalf("expected PTE to reference the allocated frame")
	}
}

func TestAllocPageReusesExistingTable(t *testing.T) {
	f := newFakeSpace()
	defer f.install(t)()

	base := uintptr(3) << 22
	if _, err := AllocPage(base|uintptr(0)<<12, FlagRW); err != nil {
		t.Fatal(err)
	}
	firstPDE := f.pd[3]

	if _, err := AllocPage(base|uintptr(1)<<12, FlagRW); err != nil {
		t.Fatal(err)
	}

	if f.pd[3] != firstPDE {
		t.Fatalf("expected the directory entry to be unchanged on the second mapping")
	}
}

func TestVtoPhysRoundTrip(t *testing.T) {
	f := newFakeSpace()
	defer f.install(t)()

	vaddr := uintptr(5)<<22 | uintptr(11)<<12 | 0x42
	frame, err := AllocPage(vaddr&^uintptr(0xfff), FlagRW)
	if err != nil {
		t.Fatal(err)
	}

	phys, ok := VtoPhys(vaddr)
	if !ok {
		t.Fatalf("expected vaddr to be mapped")
	}
	if phys != frame.Address()|0x42 {
		t.Fatalf("expected phys %x; got %x", frame.Address()|0x42, phys)
	}
}

func TestVtoPhysUnmapped(t *testing.T) {
	f := newFakeSpace()
	defer f.install(t)()

	if _, ok := VtoPhys(0x12345000); ok {
		t.Fatalf("expected unmapped address to report ok=false")
	}
}

func TestMapExistingFrameAliasesSameFrame(t *testing.T) {
	f := newFakeSpace()
	defer f.install(t)()

	src := uintptr(4)<<22 | uintptr(1)<<12
	frame, err := AllocPage(src, FlagRW)
	if err != nil {
		t.Fatal(err)
	}

	alias := uintptr(6)<<22 | uintptr(2)<<12
	if err := MapExistingFrame(alias, frame, FlagRW); err != nil {
		t.Fatal(err)
	}

	phys, ok := VtoPhys(alias)
	if !ok {
		t.Fatalf("expected alias to be mapped")
	}
	if phys != frame.Address() {
		t.Fatalf("expected alias to reference the same frame %x; got %x", frame.Address(), phys)
	}
}

func TestFreePageRoundTrip(t *testing.T) {
	f := newFakeSpace()
	defer f.install(t)()

	vaddr := uintptr(2)<<22 | uintptr(9)<<12
	if _, err := AllocPage(vaddr, FlagRW); err != nil {
		t.Fatal(err)
	}

	FreePage(vaddr)

	if f.pt[2][9]&uint32(FlagPresent) != 0 {
		t.Fatalf("expected leaf entry to be cleared after FreePage")
	}
	if _, ok := VtoPhys(vaddr); ok {
		t.Fatalf("expected vaddr to be unmapped after FreePage")
	}
}
