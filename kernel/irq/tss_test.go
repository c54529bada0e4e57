package irq

import "testing"

func TestSetKernelStack(t *testing.T) {
	SetKernelStack(0xdeadb000)

	if kernelTSS.esp0 != 0xdeadb000 {
		t.Fatalf("expected esp0 to be installed; got %x", kernelTSS.esp0)
	}
	if kernelTSS.ss0 != SelKernelData {
		t.Fatalf("expected ss0 to be the kernel data selector; got %x", kernelTSS.ss0)
	}
}
