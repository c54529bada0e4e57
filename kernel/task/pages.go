package task

import (
	"unsafe"

	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/mem"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/vmm"
)

func dirIndexOf(vaddr uintptr) uint32 { return uint32(vaddr>>22) & 0x3ff }
func tabIndexOf(vaddr uintptr) uint32 { return uint32(vaddr>>12) & 0x3ff }

// findTable returns the kernel-visible address of the page table already
// allocated for directory index d in t's own directory, or 0 if none has
// been allocated yet.
func (t *Task) findTable(d uint32) uintptr {
	for _, pt := range t.pageTables {
		if pt.DirIndex == d {
			return pt.KVAddr
		}
	}
	return 0
}

// AllocUserPage maps a fresh, zeroed physical frame into task t's address
// space at uvaddr (user-visible) and returns the kernel virtual address
// that the running kernel can use to populate it (e.g. while loading a
// program image) before the task ever runs.
//
// t.PageDir is always a permanently kernel-mapped page (SpawnUserTask
// allocates it via allocKernelPageFn, never from user-reachable memory), so
// this writes directly into it and into t's own page tables regardless of
// whether t's address space is the one presently loaded into cr3. Mirrors
// paging.c's alloc_user_page, which operates on t->page_dir directly and
// only flushes the TLB when t happens to be the running task.
func AllocUserPage(t *Task, uvaddr uintptr) (uintptr, *kernel.Error) {
	d, ti := dirIndexOf(uvaddr), tabIndexOf(uvaddr)
	dir := (*[1024]uint32)(unsafe.Pointer(t.PageDir))

	tabKVAddr := t.findTable(d)
	if tabKVAddr == 0 {
		newTab, err := allocKernelPageFn(vmm.FlagRW)
		if err != nil {
			return 0, err
		}
		mem.Memset(newTab, 0, mem.PageSize)

		tabPhys, ok := vtoPhysFn(newTab)
		if !ok {
			kernel.Panic(&kernel.Error{Module: "task", Message: "new page table has no physical mapping"})
		}

		dir[d] = uint32(tabPhys) | uint32(vmm.FlagPresent|vmm.FlagRW|vmm.FlagUser)
		t.pageTables = append(t.pageTables, pageTableRef{KVAddr: newTab, DirIndex: d})
		tabKVAddr = newTab
	}

	pgKVAddr, err := allocKernelPageFn(vmm.FlagRW | vmm.FlagUser)
	if err != nil {
		return 0, err
	}
	mem.Memset(pgKVAddr, 0, mem.PageSize)

	pgPhys, ok := vtoPhysFn(pgKVAddr)
	if !ok {
		kernel.Panic(&kernel.Error{Module: "task", Message: "new user page has no physical mapping"})
	}

	tab := (*[1024]uint32)(unsafe.Pointer(tabKVAddr))
	tab[ti] = uint32(pgPhys) | uint32(vmm.FlagPresent|vmm.FlagRW|vmm.FlagUser)

	t.pages = append(t.pages, userPage{KVAddr: pgKVAddr, UVAddr: uvaddr})

	if t == Current() {
		flushTLBFn()
	}
	return pgKVAddr, nil
}
