package main

import "github.com/adamdjudge/SystemAlpha/kernel/kmain"

var (
	multibootInfoPtr uintptr
	kernelCodeEnd    uintptr
	kernelEnd        uintptr
)

// main makes a dummy call to the actual kernel main entrypoint function. It
// is intentionally defined to prevent the Go compiler from optimizing away the
// real kernel code.
//
// Global variables are passed as arguments to Kmain to prevent the compiler
// from inlining the actual call and removing Kmain from the generated .o file.
// The boot thunk (outside this module's scope) overwrites all three before
// jumping here: multibootInfoPtr with the address the bootloader handed it,
// kernelCodeEnd with the physical address immediately past the kernel's code
// segment (link.ld's kernel_code_end), and kernelEnd with the physical
// address immediately past the entire loaded kernel image (link.ld's
// kernel_end).
func main() {
	kmain.Kmain(multibootInfoPtr, kernelCodeEnd, kernelEnd)
}
