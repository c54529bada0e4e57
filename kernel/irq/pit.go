package irq

import "github.com/adamdjudge/SystemAlpha/kernel/cpu"

const (
	pitData uint16 = 0x40
	pitCmd  uint16 = 0x43

	// pitDivider yields an IRQ0 rate of ~99.998 Hz, the closest
	// approximation to 100 Hz obtainable from the PIT's base 1.193182
	// MHz input clock with a 16-bit divider.
	pitDivider uint16 = 11932
)

// programPIT puts the PIT into mode 2 (rate generator), 16-bit binary
// counter 0, with the divider above, producing the 100 Hz timer tick that
// drives the scheduler.
func programPIT() {
	cpu.OutB(pitCmd, 0x34)
	cpu.OutB(pitData, byte(pitDivider&0xff))
	cpu.OutB(pitData, byte(pitDivider>>8))
}
