package cpu

import "github.com/valerio/go-agb/agb/snapshot"

// SeedPostBoot places the CPU in the state the BIOS hands to a cartridge:
// System mode with interrupts enabled, the conventional stack pointers for
// the exception modes, and execution at the ROM entry point.
func (c *CPU) SeedPostBoot() {
	c.phys[viewTables[bankSupervisor][13]] = 0x03007FE0
	c.phys[viewTables[bankIRQ][13]] = 0x03007FA0
	c.phys[viewTables[bankUser][13]] = 0x03007F00
	c.SetCPSR(uint32(SystemMode))
	c.SetPC(0x08000000)
}

// Save appends the full CPU state to a snapshot.
func (c *CPU) Save(w *snapshot.Writer) {
	for _, r := range c.phys {
		w.U32(r)
	}
	w.U32(c.cpsr)
	for _, s := range c.spsr {
		w.U32(s)
	}
	w.U32(c.pc)
	w.Bool(c.Halted)
	w.Bool(c.Stopped)
}

// Load restores the state written by Save.
func (c *CPU) Load(r *snapshot.Reader) {
	for i := range c.phys {
		c.phys[i] = r.U32()
	}
	c.SetCPSR(r.U32())
	for i := range c.spsr {
		c.spsr[i] = r.U32()
	}
	c.pc = r.U32()
	c.Halted = r.Bool()
	c.Stopped = r.Bool()
	c.flushed = false
}
