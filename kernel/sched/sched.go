// Package sched implements the preemptive round-robin scheduler: the
// 100Hz timer tick, sleep/alarm bookkeeping, and the aging policy that
// picks the next runnable task.
package sched

import (
	"github.com/adamdjudge/SystemAlpha/kernel/irq"
	"github.com/adamdjudge/SystemAlpha/kernel/kfmt/early"
	"github.com/adamdjudge/SystemAlpha/kernel/task"
)

// msPerTick is the wall-clock duration of one timer tick at the PIT's
// ~100Hz programmed rate.
const msPerTick = 10

// maxAgingCounter is the priming value given to a task whose sleep alarm
// just expired, guaranteeing schedule() picks it immediately over any
// task that has merely been aging normally.
const maxAgingCounter = 0xfffffff

var (
	// Jiffies counts timer ticks since boot.
	Jiffies uint32

	schedTimer uint32 = task.QuantumTicks
)

// Init installs the timer tick handler on IRQ0 and installs irq.KillTaskFn,
// which frees a faulting user task, logs the reason and its pid, and
// schedules another task. It must run after task.Init, since handleTimer
// and Schedule both read the task table.
func Init() {
	irq.Install(0, handleTimer)
	irq.KillTaskFn = func(frame *irq.TrapFrame, reason string) {
		t := task.Current()
		early.Printf("%s: killed %d\n", reason, t.PID)
		task.Kill(t)
		Schedule()
	}
}

// Schedule selects the next runnable task using round-robin with aging
// (every runnable task not picked this round has its counter
// incremented, so a consistently passed-over task eventually wins) and
// switches to it. The idle task (pid 0) is only chosen when no other
// slot is runnable.
func Schedule() {
	table := task.All()
	next := &table[0]

	for i := 1; i < task.NumTasks; i++ {
		t := &table[i]
		if t.State != task.Runnable {
			continue
		}
		if next.PID == 0 || t.Counter > next.Counter {
			next = t
		}
	}

	for i := 1; i < task.NumTasks; i++ {
		if &table[i] != next && table[i].State == task.Runnable {
			table[i].Counter++
		}
	}
	next.Counter = 0

	schedTimer = task.QuantumTicks
	task.Switch(next)
}

// handleTimer runs on every PIT tick. It decrements every sleeping task's
// alarm, promotes any task whose alarm has expired straight to RUNNABLE
// (and schedules immediately, so a wakeup is never delayed behind the
// normal quantum), and otherwise invokes Schedule once per quantum.
func handleTimer() {
	Jiffies++
	schedTimer--

	table := task.All()
	for i := range table {
		t := &table[i]
		if t.State != task.Sleeping {
			continue
		}
		if t.Alarm < msPerTick {
			t.Alarm = 0
		} else {
			t.Alarm -= msPerTick
		}
	}

	for i := range table {
		t := &table[i]
		if t.State == task.Sleeping && t.Alarm == 0 {
			t.State = task.Runnable
			t.Counter = maxAgingCounter
			Schedule()
			return
		}
	}

	if schedTimer == 0 {
		Schedule()
	}
}
