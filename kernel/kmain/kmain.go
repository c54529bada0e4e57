// Package kmain wires together every kernel subsystem and hands control
// to the scheduler. It is the only package the boot stub calls into.
package kmain

import (
	"reflect"

	"github.com/adamdjudge/SystemAlpha/kernel"
	"github.com/adamdjudge/SystemAlpha/kernel/cpu"
	_ "github.com/adamdjudge/SystemAlpha/kernel/goruntime"
	"github.com/adamdjudge/SystemAlpha/kernel/hal"
	"github.com/adamdjudge/SystemAlpha/kernel/hal/multiboot"
	"github.com/adamdjudge/SystemAlpha/kernel/heap"
	"github.com/adamdjudge/SystemAlpha/kernel/irq"
	"github.com/adamdjudge/SystemAlpha/kernel/kfmt/early"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/pmm"
	"github.com/adamdjudge/SystemAlpha/kernel/mem/vmm"
	"github.com/adamdjudge/SystemAlpha/kernel/sched"
	"github.com/adamdjudge/SystemAlpha/kernel/syscall"
	"github.com/adamdjudge/SystemAlpha/kernel/task"
)

// minMemUpperKB is the smallest amount of usable upper memory the kernel
// can boot with: enough for the free-frame stack's bookkeeping plus a
// handful of early page tables and the heap.
const minMemUpperKB = 1024

var errLowMemory = &kernel.Error{Module: "kmain", Message: "insufficient upper memory reported by bootloader"}

// receiverPID is receiverTask's pid, fixed by spawn order: task.Init always
// hands out pid 1 to the first thread spawned after it and pid 2 to the
// second, so senderTask can address receiverTask without either having to
// look the other up by name. Matches main.c's demo, which hardcodes the
// same pid for the same reason.
const receiverPID = 2

// senderTask and receiverTask are System Alpha's ping-pong demo, run as two
// ring 0 kernel threads exercising the task/scheduler/IPC stack end to end
// at boot: senderTask wakes once a second and sends an incrementing counter
// to receiverTask, which blocks in Recv and prints what it gets. Entry
// points handed to task.SpawnKernelThread must be plain top-level
// functions, never closures: the context switch jumps straight to the
// function's code address with no closure environment set up.
func senderTask() {
	var i int32 = 1
	for {
		syscall.Sleep(1000)

		args := [5]int32{i, 0, 0, 0, 0}
		if ret := syscall.Send(receiverPID, args); ret < 0 {
			early.Printf("ping-pong: send failed: %d\n", -ret)
			for {
				cpu.Halt()
			}
		}
		i++
	}
}

func receiverTask() {
	for {
		msg, senderPID := syscall.Recv()
		early.Printf("ping-pong: message from pid %d: %d\n", senderPID, msg.Args[0])
	}
}

// threadEntry returns the code address of a top-level, argument-less
// function, suitable as a task.SpawnKernelThread entry point.
func threadEntry(fn func()) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Kmain is the only Go symbol visible from the rt0 initialization code. It
// is invoked by the assembly entry thunk after the boot stub has set up
// the GDT, the initial recursive-mapped page directory, and a minimal g0
// allowing Go code to run on the 4K stack the thunk allocated.
//
// The rt0 code passes the physical address of the Multiboot info payload,
// the kernel code segment's end address, and the kernel image's overall end
// address (used to seed the physical frame allocator above everything the
// bootloader already occupies and to bound vmm.Init's W^X split).
//
// Kmain is not expected to return. If it does, the rt0 code halts the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelCodeEnd, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	hal.InitTerminal()
	hal.ActiveTerminal.Clear()
	early.Printf("System Alpha booting\n")

	memUpperKB := multiboot.MemUpperKB()
	if memUpperKB < minMemUpperKB {
		kernel.Panic(errLowMemory)
	}

	vmm.Init(kernelCodeEnd, kernelEnd)

	if err := pmm.Init(kernelEnd, memUpperKB); err != nil {
		kernel.Panic(err)
	}
	if err := heap.Init(); err != nil {
		kernel.Panic(err)
	}

	irq.Init()
	task.Init()
	sched.Init()
	syscall.Init()

	if _, err := task.SpawnKernelThread(threadEntry(senderTask)); err != nil {
		kernel.Panic(err)
	}
	receiver, err := task.SpawnKernelThread(threadEntry(receiverTask))
	if err != nil {
		kernel.Panic(err)
	}
	if receiver.PID != receiverPID {
		kernel.Panic(&kernel.Error{Module: "kmain", Message: "receiver task spawned with unexpected pid"})
	}

	early.Printf("System Alpha up, %d KiB usable\n", memUpperKB)

	irq.Enable()

	// Execution continues here as the idle task (pid 0): the scheduler
	// saves this exact call stack the first time it switches away, and
	// resumes it here via a plain RET whenever it is chosen again.
	for {
		cpu.Halt()
	}
}
