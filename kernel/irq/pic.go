package irq

import "github.com/adamdjudge/SystemAlpha/kernel/cpu"

const (
	picMasterCmd  uint16 = 0x20
	picMasterData uint16 = 0x21
	picSlaveCmd   uint16 = 0xa0
	picSlaveData  uint16 = 0xa1

	picEOI byte = 0x20
)

// remapPIC reprograms both 8259A PICs so that IRQ0-15 are delivered on
// vectors VecIRQ0..VecIRQ15 instead of their default (conflicting with CPU
// exception vectors) range.
func remapPIC() {
	outb := cpu.OutB

	outb(picMasterCmd, 0x11)
	outb(picSlaveCmd, 0x11)
	outb(picMasterData, VecIRQ0)
	outb(picSlaveData, VecIRQ0+8)
	outb(picMasterData, 0x04)
	outb(picSlaveData, 0x02)
	outb(picMasterData, 0x01)
	outb(picSlaveData, 0x01)
	outb(picMasterData, 0x00)
	outb(picSlaveData, 0x00)
}

// sendEOI acknowledges the given IRQ line to the PIC(s), unblocking further
// interrupts on that line (and, for IRQ8-15, on the cascaded slave PIC).
func sendEOI(irqNum uint32) {
	if irqNum >= 8 {
		cpu.OutB(picSlaveCmd, picEOI)
	}
	cpu.OutB(picMasterCmd, picEOI)
}
