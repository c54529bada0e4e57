package mem

import "testing"

func TestSizeToPages(t *testing.T) {
	specs := []struct {
		size     Size
		expPages uint32
	}{
		{1023 * Kb, 256},
		{1024 * Kb, 256},
		{1 * Byte, 1},
	}

	for specIndex, spec := range specs {
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected Pages(%d bytes) to equal %d; got %d", specIndex, spec.size, spec.expPages, got)
		}
	}
}

func TestAlignUp(t *testing.T) {
	specs := []struct {
		addr uintptr
		exp  uintptr
	}{
		{0, 0},
		{1, uintptr(PageSize)},
		{uintptr(PageSize), uintptr(PageSize)},
		{uintptr(PageSize) + 1, 2 * uintptr(PageSize)},
	}

	for specIndex, spec := range specs {
		if got := AlignUp(spec.addr); got != spec.exp {
			t.Errorf("[spec %d] expected AlignUp(%d) to equal %d; got %d", specIndex, spec.addr, spec.exp, got)
		}
	}
}
