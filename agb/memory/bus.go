// Package memory implements the system bus: the nine memory regions with
// their mirroring and wait states, memory mapped I/O dispatch, the DMA
// engine, the timers, the keypad and the interrupt controller. Everything
// the CPU can reach through an address lives behind this package.
package memory

import (
	"github.com/valerio/go-agb/agb/audio"
	"github.com/valerio/go-agb/agb/scheduler"
)

// Region sizes.
const (
	BIOSSize    = 0x4000
	EWRAMSize   = 0x40000
	IWRAMSize   = 0x8000
	IOSize      = 0x400
	PaletteSize = 0x400
	VRAMSize    = 0x18000
	OAMSize     = 0x400
	ROMMaxSize  = 0x2000000
)

// Bus routes every memory access by bits 27-24 of the address, charges the
// region's wait states to the cycle counter and dispatches I/O register
// traffic. It also owns the peripherals that live behind MMIO.
type Bus struct {
	bios    [BIOSSize]byte
	ewram   [EWRAMSize]byte
	iwram   [IWRAMSize]byte
	palette [PaletteSize]byte
	vram    [VRAMSize]byte
	oam     [OAMSize]byte
	io      [IOSize]byte

	cart  *Cartridge
	APU   *audio.APU
	sched *scheduler.Scheduler

	cycles uint64

	// open-bus state: the last fetched opcode, the last value successfully
	// read from BIOS, and whether the last fetch came from BIOS
	prefetch    uint32
	biosLatch   uint32
	fetchInBIOS bool

	// sequential-access detection for GamePak wait states
	romNext uint32

	// wait state tables derived from WAITCNT: cost of one 16-bit GamePak
	// access per wait region, nonsequential and sequential, plus SRAM
	romWaitN [3]uint64
	romWaitS [3]uint64
	sramWait uint64

	dma       [4]dmaChannel
	timers    [4]timer
	keyinput  uint16
	ie        uint16
	iflags    uint16
	ime       uint16
	postflg   uint8

	// haltPending and stopPending are set by HALTCNT writes and consumed
	// by the machine loop, which owns the CPU
	haltPending bool
	stopPending bool

	// bgRefDirty marks writes to the BG2/BG3 reference point registers so
	// the PPU reloads its internal affine counters
	bgRefDirty [2]bool
}

// New wires a bus to its cartridge, audio unit and event scheduler.
func New(cart *Cartridge, apu *audio.APU, sched *scheduler.Scheduler) *Bus {
	b := &Bus{
		cart:     cart,
		APU:      apu,
		sched:    sched,
		keyinput: 0x03FF, // all keys released
	}
	b.updateWaitStates(0)
	return b
}

// LoadBIOS copies the 16KB BIOS image into place.
func (b *Bus) LoadBIOS(data []byte) {
	copy(b.bios[:], data)
}

// Cycles is the master bus cycle counter; all scheduling is relative to it.
func (b *Bus) Cycles() uint64 {
	return b.cycles
}

// Idle charges internal cycles with no bus activity.
func (b *Bus) Idle(n int) {
	b.cycles += uint64(n)
}

// AdvanceTo jumps the cycle counter forward, used while the CPU is halted.
func (b *Bus) AdvanceTo(cycle uint64) {
	if cycle > b.cycles {
		b.cycles = cycle
	}
}

// Scheduler exposes the event queue to the machine loop.
func (b *Bus) Scheduler() *scheduler.Scheduler {
	return b.sched
}

// Cart returns the cartridge behind the GamePak regions.
func (b *Bus) Cart() *Cartridge {
	return b.cart
}

// VRAM, Palette and OAM give the PPU direct render-time access.
func (b *Bus) VRAM() []byte    { return b.vram[:] }
func (b *Bus) Palette() []byte { return b.palette[:] }
func (b *Bus) OAM() []byte     { return b.oam[:] }

// region returns bits 27-24 of the address, the region selector.
func region(address uint32) uint32 {
	return address >> 24 & 0xF
}

// updateWaitStates rebuilds the GamePak cost tables from a WAITCNT value.
func (b *Bus) updateWaitStates(waitcnt uint16) {
	firstAccess := [4]uint64{4, 3, 2, 8}
	b.sramWait = 1 + firstAccess[waitcnt&3]
	b.romWaitN[0] = 1 + firstAccess[waitcnt>>2&3]
	b.romWaitN[1] = 1 + firstAccess[waitcnt>>5&3]
	b.romWaitN[2] = 1 + firstAccess[waitcnt>>8&3]
	secondAccess := [3][2]uint64{{3, 2}, {5, 2}, {9, 2}}
	b.romWaitS[0] = secondAccess[0][waitcnt>>4&1]
	b.romWaitS[1] = secondAccess[1][waitcnt>>7&1]
	b.romWaitS[2] = secondAccess[2][waitcnt>>10&1]
}

// romAccess charges one 16-bit GamePak access and tracks sequentiality.
func (b *Bus) romAccess(address uint32, waitRegion int) {
	if address == b.romNext {
		b.cycles += b.romWaitS[waitRegion]
	} else {
		b.cycles += b.romWaitN[waitRegion]
	}
	b.romNext = address + 2
}

// charge adds the flat cost for the on-board regions by access width.
// GamePak regions are excluded: romAccess and sramWait carry their full
// cost, including the base cycle.
func (b *Bus) charge(address uint32, wide bool) {
	switch region(address) {
	case 0x2:
		if wide {
			b.cycles += 6
		} else {
			b.cycles += 3
		}
	case 0x5, 0x6:
		if wide {
			b.cycles += 2
		} else {
			b.cycles++
		}
	case 0x4, 0x8, 0x9, 0xA, 0xB, 0xC, 0xD, 0xE, 0xF:
		// I/O charges after its dispatch so handlers observe the cycle
		// counter at the start of the access; GamePak costs live in
		// romAccess and sramWait
	default:
		b.cycles++
	}
}

// openBus returns the value of the last prefetched opcode, which is what
// floats on the data bus for reads nothing answers.
func (b *Bus) openBus(address uint32) uint32 {
	return b.prefetch
}

// vramIndex folds a VRAM address into the 96KB array, which mirrors as
// 64K+32K with the upper 32K repeated.
func vramIndex(address uint32) uint32 {
	address &= 0x1FFFF
	if address >= 0x18000 {
		address -= 0x8000
	}
	return address
}

func (b *Bus) Read8(address uint32) uint8 {
	b.charge(address, false)
	switch region(address) {
	case 0x0, 0x1:
		if address >= BIOSSize {
			return uint8(b.openBus(address) >> (8 * (address & 3)))
		}
		if !b.fetchInBIOS {
			// BIOS contents are protected once execution leaves it;
			// reads float the last successfully fetched BIOS value
			return uint8(b.biosLatch >> (8 * (address & 3)))
		}
		return b.bios[address]
	case 0x2:
		return b.ewram[address&(EWRAMSize-1)]
	case 0x3:
		return b.iwram[address&(IWRAMSize-1)]
	case 0x4:
		v := b.readIO8(address)
		b.cycles++
		return v
	case 0x5:
		return b.palette[address&(PaletteSize-1)]
	case 0x6:
		return b.vram[vramIndex(address)]
	case 0x7:
		return b.oam[address&(OAMSize-1)]
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		return b.readROM8(address)
	case 0xE, 0xF:
		b.cycles += b.sramWait
		return b.cart.Backup.Read8(address & 0xFFFF)
	default:
		return uint8(b.openBus(address) >> (8 * (address & 3)))
	}
}

func (b *Bus) Read16(address uint32) uint16 {
	address &^= 1
	b.charge(address, false)
	switch region(address) {
	case 0x0, 0x1:
		if address >= BIOSSize {
			return uint16(b.openBus(address) >> (8 * (address & 2)))
		}
		if !b.fetchInBIOS {
			return uint16(b.biosLatch >> (8 * (address & 2)))
		}
		return b.rd16(b.bios[:], address)
	case 0x2:
		return b.rd16(b.ewram[:], address&(EWRAMSize-1))
	case 0x3:
		return b.rd16(b.iwram[:], address&(IWRAMSize-1))
	case 0x4:
		v := b.readIO16(address)
		b.cycles++
		return v
	case 0x5:
		return b.rd16(b.palette[:], address&(PaletteSize-1))
	case 0x6:
		return b.rd16(b.vram[:], vramIndex(address))
	case 0x7:
		return b.rd16(b.oam[:], address&(OAMSize-1))
	case 0x8, 0x9, 0xA, 0xB, 0xC:
		return b.readROM16(address)
	case 0xD:
		if eeprom, ok := b.cart.Backup.(*EEPROM); ok && b.cart.eepromMapped(address) {
			b.cycles += b.romWaitN[2]
			return eeprom.ReadBit()
		}
		return b.readROM16(address)
	case 0xE, 0xF:
		// SRAM has an 8-bit bus: the byte repeats on both lanes
		b.cycles += b.sramWait
		v := uint16(b.cart.Backup.Read8(address & 0xFFFF))
		return v | v<<8
	default:
		return uint16(b.openBus(address) >> (8 * (address & 2)))
	}
}

func (b *Bus) Read32(address uint32) uint32 {
	address &^= 3
	switch region(address) {
	case 0x5, 0x6, 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		// 16-bit buses: a word is two halfword accesses
		lo := uint32(b.Read16(address))
		hi := uint32(b.Read16(address + 2))
		return lo | hi<<16
	case 0x2:
		b.charge(address, true)
		return b.rd32(b.ewram[:], address&(EWRAMSize-1))
	case 0x0, 0x1:
		b.charge(address, true)
		if address >= BIOSSize {
			return b.openBus(address)
		}
		if !b.fetchInBIOS {
			return b.biosLatch
		}
		return b.rd32(b.bios[:], address)
	case 0x3:
		b.charge(address, true)
		return b.rd32(b.iwram[:], address&(IWRAMSize-1))
	case 0x4:
		v := uint32(b.readIO16(address)) | uint32(b.readIO16(address+2))<<16
		b.cycles++
		return v
	case 0x7:
		b.charge(address, true)
		return b.rd32(b.oam[:], address&(OAMSize-1))
	case 0xE, 0xF:
		b.cycles += b.sramWait
		v := uint32(b.cart.Backup.Read8(address & 0xFFFF))
		return v | v<<8 | v<<16 | v<<24
	default:
		b.cycles++
		return b.openBus(address)
	}
}

func (b *Bus) Write8(address uint32, value uint8) {
	b.charge(address, false)
	switch region(address) {
	case 0x2:
		b.ewram[address&(EWRAMSize-1)] = value
	case 0x3:
		b.iwram[address&(IWRAMSize-1)] = value
	case 0x4:
		b.writeIO8(address, value)
		b.cycles++
	case 0x5:
		// palette ignores the byte lanes: the value is mirrored across
		// the addressed halfword
		i := address & (PaletteSize - 1) &^ 1
		b.palette[i] = value
		b.palette[i+1] = value
	case 0x6:
		// 8-bit writes broadcast to 16 bits in the BG range and are
		// dropped in the OBJ tile range
		i := vramIndex(address)
		if i < b.objVRAMBase() {
			i &^= 1
			b.vram[i] = value
			b.vram[i+1] = value
		}
	case 0x7:
		// OAM rejects byte writes entirely
	case 0xE, 0xF:
		b.cycles += b.sramWait
		b.cart.Backup.Write8(address&0xFFFF, value)
	}
}

func (b *Bus) Write16(address uint32, value uint16) {
	address &^= 1
	b.charge(address, false)
	switch region(address) {
	case 0x2:
		b.wr16(b.ewram[:], address&(EWRAMSize-1), value)
	case 0x3:
		b.wr16(b.iwram[:], address&(IWRAMSize-1), value)
	case 0x4:
		b.writeIO16(address, value)
		b.cycles++
	case 0x5:
		b.wr16(b.palette[:], address&(PaletteSize-1), value)
	case 0x6:
		b.wr16(b.vram[:], vramIndex(address), value)
	case 0x7:
		b.wr16(b.oam[:], address&(OAMSize-1), value)
	case 0xD:
		if eeprom, ok := b.cart.Backup.(*EEPROM); ok && b.cart.eepromMapped(address) {
			b.cycles += b.romWaitN[2]
			eeprom.WriteBit(value)
		}
	case 0xE, 0xF:
		b.cycles += b.sramWait
		b.cart.Backup.Write8(address&0xFFFF, uint8(value))
	}
}

func (b *Bus) Write32(address uint32, value uint32) {
	address &^= 3
	switch region(address) {
	case 0x5, 0x6, 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		b.Write16(address, uint16(value))
		b.Write16(address+2, uint16(value>>16))
	case 0x2:
		b.charge(address, true)
		b.wr32(b.ewram[:], address&(EWRAMSize-1), value)
	case 0x3:
		b.charge(address, true)
		b.wr32(b.iwram[:], address&(IWRAMSize-1), value)
	case 0x4:
		b.writeIO16(address, uint16(value))
		b.writeIO16(address+2, uint16(value>>16))
		b.cycles++
	case 0x7:
		b.charge(address, true)
		b.wr32(b.oam[:], address&(OAMSize-1), value)
	case 0xE, 0xF:
		b.cycles += b.sramWait
		b.cart.Backup.Write8(address&0xFFFF, uint8(value))
	default:
		b.cycles++
	}
}

// FetchARM is the CPU's 32-bit opcode fetch. It feeds the open-bus latch
// and the BIOS read gate.
func (b *Bus) FetchARM(address uint32) uint32 {
	b.fetchInBIOS = address < BIOSSize
	v := b.Read32(address)
	b.prefetch = v
	if b.fetchInBIOS {
		b.biosLatch = v
	}
	return v
}

// FetchThumb is the 16-bit opcode fetch; the open-bus value repeats the
// halfword on both lanes.
func (b *Bus) FetchThumb(address uint32) uint16 {
	b.fetchInBIOS = address < BIOSSize
	v := b.Read16(address)
	b.prefetch = uint32(v) | uint32(v)<<16
	if b.fetchInBIOS {
		b.biosLatch = b.prefetch
	}
	return v
}

func (b *Bus) readROM8(address uint32) uint8 {
	v := b.readROM16(address &^ 1)
	return uint8(v >> (8 * (address & 1)))
}

func (b *Bus) readROM16(address uint32) uint16 {
	waitRegion := int(region(address)-8) / 2
	b.romAccess(address, waitRegion)
	offset := address & (ROMMaxSize - 1)
	if int(offset) >= len(b.cart.ROM) {
		// past the ROM the GamePak bus floats the address lines
		return uint16(address >> 1)
	}
	return uint16(b.cart.ROM[offset]) | uint16(b.cart.ROM[offset+1])<<8
}

func (b *Bus) rd16(mem []byte, i uint32) uint16 {
	return uint16(mem[i]) | uint16(mem[i+1])<<8
}

func (b *Bus) rd32(mem []byte, i uint32) uint32 {
	return uint32(mem[i]) | uint32(mem[i+1])<<8 | uint32(mem[i+2])<<16 | uint32(mem[i+3])<<24
}

func (b *Bus) wr16(mem []byte, i uint32, v uint16) {
	mem[i] = uint8(v)
	mem[i+1] = uint8(v >> 8)
}

func (b *Bus) wr32(mem []byte, i uint32, v uint32) {
	mem[i] = uint8(v)
	mem[i+1] = uint8(v >> 8)
	mem[i+2] = uint8(v >> 16)
	mem[i+3] = uint8(v >> 24)
}

// objVRAMBase is the VRAM offset where OBJ tiles begin: 0x10000 in tile
// modes, 0x14000 in the bitmap modes where BG data claims more of VRAM.
func (b *Bus) objVRAMBase() uint32 {
	if b.io[0]&7 >= 3 {
		return 0x14000
	}
	return 0x10000
}

// ConsumeHalt reports and clears a pending HALTCNT halt request.
func (b *Bus) ConsumeHalt() (halt, stop bool) {
	halt, stop = b.haltPending, b.stopPending
	b.haltPending = false
	b.stopPending = false
	return
}

// ConsumeBGRefDirty reports and clears the affine reference-point write
// marker for BG2 (index 0) or BG3 (index 1).
func (b *Bus) ConsumeBGRefDirty(index int) bool {
	dirty := b.bgRefDirty[index]
	b.bgRefDirty[index] = false
	return dirty
}
