package memory

import (
	"github.com/valerio/go-agb/agb/addr"
)

// The I/O region is a dense register file: every 16-bit offset dispatches
// to a handler pair. Registers whose reads simply return the last written
// value live in the io shadow array; everything else answers live.

// IO16 reads the raw shadow halfword at the given register offset, without
// side effects. The PPU uses this for its render-time register fetches.
func (b *Bus) IO16(offset uint32) uint16 {
	return b.rd16(b.io[:], offset)
}

// SetIO16 stores directly into the shadow, bypassing write handlers. The
// PPU uses this to publish DISPSTAT flags and VCOUNT.
func (b *Bus) SetIO16(offset uint32, value uint16) {
	b.wr16(b.io[:], offset, value)
}

// RequestInterrupt raises an interrupt request line in IF.
func (b *Bus) RequestInterrupt(irq addr.Interrupt) {
	b.iflags |= 1 << irq
}

// IRQLine reports whether the CPU should take the IRQ exception.
func (b *Bus) IRQLine() bool {
	return b.ime&1 == 1 && b.ie&b.iflags != 0
}

// IRQWake reports whether a halted CPU should resume; IME does not gate
// the wake-up, only the exception.
func (b *Bus) IRQWake() bool {
	return b.ie&b.iflags != 0
}

func (b *Bus) readIO8(address uint32) uint8 {
	if address&0x00FFFFFF >= IOSize {
		return uint8(b.openBus(address) >> (8 * (address & 3)))
	}
	v := b.readIO16(address &^ 1)
	return uint8(v >> (8 * (address & 1)))
}

func (b *Bus) writeIO8(address uint32, value uint8) {
	offset := address & 0x00FFFFFF
	if offset >= IOSize {
		return
	}
	switch offset {
	case addr.IF:
		// write-one-to-clear must not touch the other byte lane
		b.iflags &^= uint16(value)
		return
	case addr.IF + 1:
		b.iflags &^= uint16(value) << 8
		return
	case addr.POSTFLG:
		b.postflg = value & 1
		return
	case addr.HALTCNT:
		if value&0x80 != 0 {
			b.stopPending = true
		} else {
			b.haltPending = true
		}
		return
	}
	if offset >= addr.FIFO_A && offset < addr.FIFO_B+4 {
		fifo := 0
		if offset >= addr.FIFO_B {
			fifo = 1
		}
		b.APU.PushFIFO(fifo, int8(value))
		return
	}
	// byte writes to 16-bit registers merge with the other lane
	old := b.readIO16(offset &^ 1)
	if offset&1 == 0 {
		b.writeIO16(offset&^1, old&0xFF00|uint16(value))
	} else {
		b.writeIO16(offset&^1, old&0x00FF|uint16(value)<<8)
	}
}

func (b *Bus) readIO16(address uint32) uint16 {
	offset := address & 0x00FFFFFF
	if offset >= IOSize {
		return uint16(b.openBus(address) >> (8 * (address & 2)))
	}

	switch {
	case offset >= addr.SOUND1CNT_L && offset < addr.FIFO_A:
		return b.APU.ReadRegister(offset)
	case offset >= addr.DMA0SAD && offset < addr.DMA0SAD+48:
		return b.readDMARegister(offset)
	case offset >= addr.TM0CNT_L && offset <= addr.TM3CNT_H:
		return b.readTimerRegister(offset)
	}

	switch offset {
	case addr.KEYINPUT:
		return b.keyinput
	case addr.IE:
		return b.ie
	case addr.IF:
		return b.iflags
	case addr.IME:
		return b.ime
	case addr.POSTFLG:
		return uint16(b.postflg)
	// write-only LCD registers read back zero
	case addr.BG0HOFS, addr.BG0VOFS, addr.BG1HOFS, addr.BG1VOFS,
		addr.BG2HOFS, addr.BG2VOFS, addr.BG3HOFS, addr.BG3VOFS,
		addr.BG2PA, addr.BG2PB, addr.BG2PC, addr.BG2PD,
		addr.BG2XL, addr.BG2XH, addr.BG2YL, addr.BG2YH,
		addr.BG3PA, addr.BG3PB, addr.BG3PC, addr.BG3PD,
		addr.BG3XL, addr.BG3XH, addr.BG3YL, addr.BG3YH,
		addr.WIN0H, addr.WIN1H, addr.WIN0V, addr.WIN1V,
		addr.MOSAIC, addr.BLDY:
		return 0
	default:
		return b.IO16(offset)
	}
}

func (b *Bus) writeIO16(address uint32, value uint16) {
	offset := address & 0x00FFFFFF
	if offset >= IOSize {
		return
	}

	switch {
	case offset >= addr.SOUND1CNT_L && offset < addr.FIFO_A:
		b.APU.WriteRegister(offset, value)
		return
	case offset >= addr.FIFO_A && offset < addr.FIFO_B+4:
		fifo := 0
		if offset >= addr.FIFO_B {
			fifo = 1
		}
		b.APU.PushFIFO(fifo, int8(value))
		b.APU.PushFIFO(fifo, int8(value>>8))
		return
	case offset >= addr.DMA0SAD && offset < addr.DMA0SAD+48:
		b.writeDMARegister(offset, value)
		return
	case offset >= addr.TM0CNT_L && offset <= addr.TM3CNT_H:
		b.writeTimerRegister(offset, value)
		return
	}

	switch offset {
	case addr.DISPSTAT:
		// bits 0-2 are hardware status, only the IRQ enables and the
		// VCOUNT match setting are writable
		b.SetIO16(offset, b.IO16(offset)&0x0007|value&0xFFF8)
	case addr.VCOUNT:
		// read-only
	case addr.BG2XL, addr.BG2XH, addr.BG2YL, addr.BG2YH:
		b.SetIO16(offset, value)
		b.bgRefDirty[0] = true
	case addr.BG3XL, addr.BG3XH, addr.BG3YL, addr.BG3YH:
		b.SetIO16(offset, value)
		b.bgRefDirty[1] = true
	case addr.KEYCNT:
		b.SetIO16(offset, value)
		b.checkKeypadInterrupt()
	case addr.IE:
		b.ie = value & 0x3FFF
	case addr.IF:
		// write-one-to-clear
		b.iflags &^= value
	case addr.IME:
		b.ime = value & 1
	case addr.WAITCNT:
		b.SetIO16(offset, value)
		b.updateWaitStates(value)
	case addr.POSTFLG:
		b.postflg = uint8(value) & 1
		if value&0x8000 != 0 {
			b.stopPending = true
		} else if value&0xFF00 != 0 {
			b.haltPending = true
		}
	default:
		b.SetIO16(offset, value)
	}
}
