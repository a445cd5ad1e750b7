package memory

import (
	"github.com/valerio/go-agb/agb/addr"
	"github.com/valerio/go-agb/agb/scheduler"
)

// DMA start timings, bits 13-12 of the channel control register.
const (
	dmaImmediate = 0
	dmaVBlank    = 1
	dmaHBlank    = 2
	dmaSpecial   = 3 // sound FIFO on 1/2, video capture (stubbed) on 3
)

// dmaChannel keeps the raw registers plus the internal copies latched when
// the enable bit rises.
type dmaChannel struct {
	sad     uint32
	dad     uint32
	count   uint16
	control uint16

	// internal state, latched on enable (and partially on repeat)
	src       uint32
	dst       uint32
	units     int
	latchedDst uint32
}

func (d *dmaChannel) enabled() bool {
	return d.control&0x8000 != 0
}

func (d *dmaChannel) timing() uint16 {
	return d.control >> 12 & 3
}

func (d *dmaChannel) wide() bool {
	return d.control&0x0400 != 0
}

// dmaMaxUnits is the unit count a zero CNT_L latches: 0x4000 on channels 0-2,
// the full 0x10000 on channel 3.
func dmaMaxUnits(channel int) int {
	if channel == 3 {
		return 0x10000
	}
	return 0x4000
}

func dmaSrcMask(channel int) uint32 {
	if channel == 0 {
		return 0x07FFFFFF
	}
	return 0x0FFFFFFF
}

func dmaDstMask(channel int) uint32 {
	if channel == 3 {
		return 0x0FFFFFFF
	}
	return 0x07FFFFFF
}

func (b *Bus) readDMARegister(offset uint32) uint16 {
	channel := int(offset-addr.DMA0SAD) / 12
	switch (offset - addr.DMA0SAD) % 12 {
	case 10:
		return b.dma[channel].control
	default:
		// source, destination and count are write-only
		return 0
	}
}

func (b *Bus) writeDMARegister(offset uint32, value uint16) {
	channel := int(offset-addr.DMA0SAD) / 12
	d := &b.dma[channel]
	switch (offset - addr.DMA0SAD) % 12 {
	case 0:
		d.sad = d.sad&0xFFFF0000 | uint32(value)
	case 2:
		d.sad = d.sad&0x0000FFFF | uint32(value)<<16
	case 4:
		d.dad = d.dad&0xFFFF0000 | uint32(value)
	case 6:
		d.dad = d.dad&0x0000FFFF | uint32(value)<<16
	case 8:
		d.count = value
	case 10:
		b.writeDMAControl(channel, value)
	}
}

// writeDMAControl handles CNT_H: a rising enable bit latches the internal
// source, destination and count, and an Immediate channel schedules its
// transfer right away.
func (b *Bus) writeDMAControl(channel int, value uint16) {
	d := &b.dma[channel]
	rising := !d.enabled() && value&0x8000 != 0
	d.control = value

	if !d.enabled() {
		b.sched.Cancel(scheduler.EventDMA, channel)
		return
	}
	if !rising {
		return
	}

	d.src = d.sad & dmaSrcMask(channel)
	d.dst = d.dad & dmaDstMask(channel)
	d.latchedDst = d.dst
	d.units = int(d.count) & (dmaMaxUnits(channel) - 1)
	if d.units == 0 {
		d.units = dmaMaxUnits(channel)
	}

	if d.timing() == dmaImmediate {
		b.sched.Schedule(b.cycles+2, scheduler.EventDMA, channel)
	}
}

// NotifyVBlankDMA triggers every armed channel with V-Blank start timing.
func (b *Bus) NotifyVBlankDMA() {
	for i := range b.dma {
		if b.dma[i].enabled() && b.dma[i].timing() == dmaVBlank {
			b.sched.Schedule(b.cycles, scheduler.EventDMA, i)
		}
	}
}

// NotifyHBlankDMA triggers every armed channel with H-Blank timing (HDMA).
func (b *Bus) NotifyHBlankDMA() {
	for i := range b.dma {
		if b.dma[i].enabled() && b.dma[i].timing() == dmaHBlank {
			b.sched.Schedule(b.cycles, scheduler.EventDMA, i)
		}
	}
}

// fifoAddress returns the FIFO a Special channel 1/2 feeds, or false.
func (d *dmaChannel) fifoAddress() (int, bool) {
	switch d.latchedDst {
	case 0x04000000 + addr.FIFO_A:
		return 0, true
	case 0x04000000 + addr.FIFO_B:
		return 1, true
	}
	return -1, false
}

// TriggerFIFODMA requests a refill of the given FIFO (0 = A, 1 = B) from
// whichever sound channel serves it.
func (b *Bus) TriggerFIFODMA(fifo int) {
	for _, i := range []int{1, 2} {
		d := &b.dma[i]
		if !d.enabled() || d.timing() != dmaSpecial {
			continue
		}
		if f, ok := d.fifoAddress(); ok && f == fifo {
			b.sched.Schedule(b.cycles, scheduler.EventDMA, i)
		}
	}
}

// RunDMA performs the latched transfer for a channel. The copies go
// through the normal bus paths, so they charge wait states and stall the
// CPU for the duration.
func (b *Bus) RunDMA(channel int) {
	d := &b.dma[channel]
	if !d.enabled() {
		return
	}
	if channel == 3 && d.timing() == dmaSpecial {
		// video capture is not modeled; the channel stays armed
		return
	}

	fifoMode := (channel == 1 || channel == 2) && d.timing() == dmaSpecial

	units := d.units
	wide := d.wide()
	if fifoMode {
		// sound DMA always moves four words into a fixed destination
		units = 4
		wide = true
	}

	if eeprom, ok := b.cart.Backup.(*EEPROM); ok {
		// the transfer length tells the EEPROM its address width
		if b.cart.eepromMapped(d.dst) || b.cart.eepromMapped(d.src) {
			eeprom.HintWidthFromTransfer(units)
		}
	}

	step := uint32(2)
	if wide {
		step = 4
	}
	srcStep := dmaStep(d.control>>7&3, step)
	dstStep := dmaStep(d.control>>5&3, step)
	if fifoMode {
		dstStep = 0
	}

	b.Idle(2)
	for i := 0; i < units; i++ {
		if wide {
			b.Write32(d.dst&^3, b.Read32(d.src&^3))
		} else {
			b.Write16(d.dst&^1, b.Read16(d.src&^1))
		}
		d.src += srcStep
		d.dst += dstStep
	}

	if d.control&0x4000 != 0 {
		b.RequestInterrupt(addr.DMA0Interrupt + addr.Interrupt(channel))
	}

	repeat := d.control&0x0200 != 0 && d.timing() != dmaImmediate
	if repeat {
		d.units = int(d.count) & (dmaMaxUnits(channel) - 1)
		if d.units == 0 {
			d.units = dmaMaxUnits(channel)
		}
		if d.control>>5&3 == 3 {
			// destination increment-with-reload
			d.dst = d.latchedDst
		}
		return
	}
	d.control &^= 0x8000
}

// dmaStep maps an address control field to a per-unit step.
func dmaStep(control uint16, step uint32) uint32 {
	switch control {
	case 1:
		return -step
	case 2:
		return 0
	default: // increment, or increment-with-reload
		return step
	}
}
