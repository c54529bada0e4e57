package task

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/irq"
	"github.com/adamdjudge/SystemAlpha/kernel/mem"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/vmm"
)

// fakeStack backs a single spawned task's kernel stack with a plain Go byte
// slice instead of a real page fetched through vmm.AllocKernelPage, so
// newSyntheticFrame's unsafe writes land in ordinary hosted-process memory.
func fakeStack(t *testing.T) uintptr {
	t.Helper()
	buf := make([]byte, 2*mem.PageSize)
	t.Cleanup(func() { runtime.KeepAlive(buf) })
	base := (uintptr(unsafe.Pointer(&buf[0])) + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
	return base
}

// installFakeSpawn points allocKernelPageFn/activePDTFn at a single
// hosted-memory stack page and a fixed dummy CR3, resetting the task table
// around the test.
func installFakeSpawn(t *testing.T) {
	t.Helper()
	origAlloc, origPDT := allocKernelPageFn, activePDTFn

	allocKernelPageFn = func(vmm.PageTableEntryFlag) (uintptr, *kernel.Error) {
		return fakeStack(t), nil
	}
	activePDTFn = func() uintptr { return 0x1000 }

	for i := range table {
		table[i] = Task{}
	}
	nextPID = 1
	kernelCR3 = uint32(activePDTFn())
	current = &table[0]
	table[0].State = Runnable
	table[0].Started = true

	t.Cleanup(func() {
		allocKernelPageFn, activePDTFn = origAlloc, origPDT
	})
}

// installFakeUserSpawn builds on installFakeSpawn with the additional fakes
// SpawnUserTask/AllocUserPage need: a physical-address translation that
// doesn't require any real page tables to be mapped, a no-op TLB flush, and
// a fake "kernel half" directory to clone from in place of the real
// privileged self-map address. Returns the fake kernel directory so tests
// can assert its entries were cloned correctly.
func installFakeUserSpawn(t *testing.T) *[1024]uint32 {
	t.Helper()
	installFakeSpawn(t)

	origVtoPhys, origFlush, origKernelPD := vtoPhysFn, flushTLBFn, kernelPDFn

	vtoPhysFn = func(v uintptr) (uintptr, bool) { return v, true }
	flushTLBFn = func() {}

	fakeKernelPD := new([1024]uint32)
	for i := 0; i < 512; i++ {
		fakeKernelPD[i] = uint32(i) | uint32(vmm.FlagPresent)
	}
	kernelPDFn = func() *[1024]uint32 { return fakeKernelPD }

	t.Cleanup(func() {
		vtoPhysFn, flushTLBFn, kernelPDFn = origVtoPhys, origFlush, origKernelPD
	})

	return fakeKernelPD
}

func TestSpawnUserTaskClonesKernelHalfAndSelfMap(t *testing.T) {
	fakeKernelPD := installFakeUserSpawn(t)

	tsk, err := SpawnUserTask()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tsk.State != Sleeping {
		t.Fatalf("expected a freshly spawned user task to start Sleeping until its pages are mapped")
	}
	if tsk.PageDir == 0 {
		t.Fatalf("expected a non-zero page directory")
	}

	newPD := (*[1024]uint32)(unsafe.Pointer(tsk.PageDir))
	for i := 0; i < 512; i++ {
		if i == vmm.SelfMapIndex {
			continue // checked separately below
		}
		if newPD[i] != fakeKernelPD[i] {
			t.Fatalf("expected kernel half entry %d to be cloned; got %x want %x", i, newPD[i], fakeKernelPD[i])
		}
	}

	wantSelfMap := tsk.CR3 | uint32(vmm.FlagPresent|vmm.FlagRW)
	if newPD[vmm.SelfMapIndex] != wantSelfMap {
		t.Fatalf("expected the new directory's own self-map entry; got %x want %x", newPD[vmm.SelfMapIndex], wantSelfMap)
	}

	frame := (*irq.TrapFrame)(unsafe.Pointer(tsk.KernelESP))
	if frame.CS != irq.SelUserCode || frame.DS != irq.SelUserData {
		t.Fatalf("expected ring 3 selectors in the synthetic frame; got cs=%x ds=%x", frame.CS, frame.DS)
	}
}

func TestAllocUserPageMapsWithoutRequiringActiveDirectory(t *testing.T) {
	installFakeUserSpawn(t)

	tsk, err := SpawnUserTask()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tsk == current {
		t.Fatalf("expected the spawned task not to be current, the scenario AllocUserPage must support")
	}

	const uvaddr = 0x80000000
	kvaddr, err := AllocUserPage(tsk, uvaddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kvaddr == 0 {
		t.Fatalf("expected a non-zero kernel alias")
	}

	d, ti := dirIndexOf(uvaddr), tabIndexOf(uvaddr)
	dir := (*[1024]uint32)(unsafe.Pointer(tsk.PageDir))
	if dir[d]&uint32(vmm.FlagPresent) == 0 {
		t.Fatalf("expected the directory entry to be marked present")
	}

	tabKVAddr := tsk.findTable(d)
	if tabKVAddr == 0 {
		t.Fatalf("expected a tracked page table for the new directory entry")
	}
	tab := (*[1024]uint32)(unsafe.Pointer(tabKVAddr))
	if tab[ti]&uint32(vmm.FlagPresent) == 0 {
		t.Fatalf("expected the page table entry to be marked present")
	}

	if len(tsk.pages) != 1 || tsk.pages[0].UVAddr != uvaddr || tsk.pages[0].KVAddr != kvaddr {
		t.Fatalf("expected the new mapping to be tracked; got %+v", tsk.pages)
	}
}

func TestAllocUserPageReusesTableForSameDirectoryEntry(t *testing.T) {
	installFakeUserSpawn(t)

	tsk, err := SpawnUserTask()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const base = 0x80000000
	if _, err := AllocUserPage(tsk, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := AllocUserPage(tsk, base+uintptr(mem.PageSize)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tsk.pageTables) != 1 {
		t.Fatalf("expected a single shared page table for two addresses in the same directory entry; got %d", len(tsk.pageTables))
	}
	if len(tsk.pages) != 2 {
		t.Fatalf("expected two tracked pages; got %d", len(tsk.pages))
	}
}

func TestMailboxSendRecvFIFO(t *testing.T) {
	var tsk Task

	if !tsk.TrySend(7, [5]int32{1, 2, 3, 4, 5}) {
		t.Fatalf("expected send into empty mailbox to succeed")
	}
	if !tsk.TrySend(8, [5]int32{9, 0, 0, 0, 0}) {
		t.Fatalf("expected second send to succeed")
	}
	if got := tsk.MailboxLen(); got != 2 {
		t.Fatalf("expected length 2; got %d", got)
	}

	msg, ok := tsk.TryRecv()
	if !ok {
		t.Fatalf("expected a pending message")
	}
	if msg.SenderPID != 7 || msg.Args[2] != 3 {
		t.Fatalf("expected first message in, first out; got %+v", msg)
	}

	msg, ok = tsk.TryRecv()
	if !ok || msg.SenderPID != 8 {
		t.Fatalf("expected second message next; got %+v, ok=%v", msg, ok)
	}

	if _, ok := tsk.TryRecv(); ok {
		t.Fatalf("expected empty mailbox to report no message")
	}
}

func TestMailboxFullRejectsSend(t *testing.T) {
	var tsk Task

	for i := 0; i < MaxMessages; i++ {
		if !tsk.TrySend(uint32(i), [5]int32{}) {
			t.Fatalf("expected send %d to succeed", i)
		}
	}
	if tsk.TrySend(99, [5]int32{}) {
		t.Fatalf("expected send into a full mailbox to fail")
	}
}

func TestSpawnKernelThreadBuildsRunnableSlot(t *testing.T) {
	installFakeSpawn(t)

	const entry = 0xc0001000
	tsk, err := SpawnKernelThread(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tsk.PID == 0 {
		t.Fatalf("expected a non-zero pid")
	}
	if tsk.State != Runnable {
		t.Fatalf("expected a freshly spawned kernel thread to be runnable")
	}
	if tsk.Started {
		t.Fatalf("expected a freshly spawned thread to not yet be started")
	}
	if tsk.CR3 != kernelCR3 {
		t.Fatalf("expected a kernel thread to share the kernel address space")
	}

	frame := (*irq.TrapFrame)(unsafe.Pointer(tsk.KernelESP))
	if frame.EIP != entry {
		t.Fatalf("expected synthetic frame EIP %x; got %x", uint32(entry), frame.EIP)
	}
	if frame.CS != irq.SelKernelCode || frame.DS != irq.SelKernelData {
		t.Fatalf("expected kernel code/data selectors; got cs=%x ds=%x", frame.CS, frame.DS)
	}
	if frame.EFlags&(1<<9) == 0 {
		t.Fatalf("expected IF set in the synthetic frame's eflags")
	}
	if frame.UserESP != 0 || frame.UserSS != 0 {
		t.Fatalf("expected no user stack fields for a ring 0 thread")
	}
}

func TestSpawnKernelThreadAssignsDistinctPIDs(t *testing.T) {
	installFakeSpawn(t)

	a, err := SpawnKernelThread(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	b, err := SpawnKernelThread(0x2000)
	if err != nil {
		t.Fatal(err)
	}
	if a.PID == b.PID {
		t.Fatalf("expected distinct pids; both got %d", a.PID)
	}
}

func TestFindFreeReportsTableFull(t *testing.T) {
	installFakeSpawn(t)

	for i := 1; i < NumTasks; i++ {
		table[i].State = Runnable
	}

	if _, err := SpawnKernelThread(0x1000); err != ErrTableFull {
		t.Fatalf("expected ErrTableFull once every slot is occupied; got %v", err)
	}
}

func TestKillFreesSlot(t *testing.T) {
	installFakeSpawn(t)

	tsk, err := SpawnKernelThread(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	Kill(tsk)
	if tsk.State != Free {
		t.Fatalf("expected killed task to revert to the free state")
	}
}

func TestLookupFindsOnlyNonFreeSlots(t *testing.T) {
	installFakeSpawn(t)

	tsk, err := SpawnKernelThread(0x1000)
	if err != nil {
		t.Fatal(err)
	}

	if got := Lookup(tsk.PID); got != tsk {
		t.Fatalf("expected Lookup to find the spawned task")
	}

	Kill(tsk)
	if got := Lookup(tsk.PID); got != nil {
		t.Fatalf("expected Lookup to miss a freed slot; got %+v", got)
	}
}
