package memory

import "github.com/valerio/go-agb/agb/snapshot"

// Backup is the cartridge save chip behind the 0x0E region (or, for
// EEPROM, the 0x0D address lines). Implementations are plain state
// machines; persistence of the raw bytes is the front-end's concern.
type Backup interface {
	Read8(offset uint32) uint8
	Write8(offset uint32, value uint8)

	// Data exposes the raw backing bytes for persistence.
	Data() []byte
	// LoadData replaces the backing bytes, typically from a save file.
	LoadData(data []byte)

	save(w *snapshot.Writer)
	load(r *snapshot.Reader)
}

func newBackup(kind BackupKind) Backup {
	switch kind {
	case BackupSRAM:
		return NewSRAM()
	case BackupEEPROM:
		return NewEEPROM()
	case BackupFlash64K:
		return NewFlash(false)
	case BackupFlash128K:
		return NewFlash(true)
	default:
		return noBackup{}
	}
}

// noBackup answers like an open 8-bit bus.
type noBackup struct{}

func (noBackup) Read8(uint32) uint8          { return 0xFF }
func (noBackup) Write8(uint32, uint8)        {}
func (noBackup) Data() []byte                { return nil }
func (noBackup) LoadData([]byte)             {}
func (noBackup) save(w *snapshot.Writer)     {}
func (noBackup) load(r *snapshot.Reader)     {}

// SRAM is a battery-backed flat 32KB buffer.
type SRAM struct {
	data [0x8000]byte
}

func NewSRAM() *SRAM {
	return &SRAM{}
}

func (s *SRAM) Read8(offset uint32) uint8 {
	return s.data[offset&0x7FFF]
}

func (s *SRAM) Write8(offset uint32, value uint8) {
	s.data[offset&0x7FFF] = value
}

func (s *SRAM) Data() []byte {
	return s.data[:]
}

func (s *SRAM) LoadData(data []byte) {
	copy(s.data[:], data)
}

func (s *SRAM) save(w *snapshot.Writer) {
	w.Bytes(s.data[:])
}

func (s *SRAM) load(r *snapshot.Reader) {
	r.ReadInto(s.data[:])
}

// Flash command sequence state.
type flashState uint8

const (
	flashReady flashState = iota
	flashCmd1             // got 0xAA at 0x5555
	flashCmd2             // got 0x55 at 0x2AAA, command byte next
	flashProgram          // next write programs one byte
	flashBank             // next write to 0x0000 selects the bank
	flashEraseArmed       // erase command armed, waiting for target
	flashEraseCmd1        // erase: second 0xAA at 0x5555
	flashEraseCmd2        // erase: second 0x55 at 0x2AAA
)

// Flash implements the Atmel/Sanyo command protocol: unlock writes at
// 0x5555/0x2AAA, chip and sector erase, byte program, chip ID mode, and
// (for the 128KB part) bank switching.
type Flash struct {
	data   []byte
	banked bool
	bank   uint32
	state  flashState
	idMode bool
}

// Chip IDs: the 64KB part answers as Panasonic MN63F805, the 128KB part
// as Sanyo LE26FV10N1TS.
const (
	flashPanasonicMaker  = 0x32
	flashPanasonicDevice = 0x1B
	flashSanyoMaker      = 0x62
	flashSanyoDevice     = 0x13
)

func NewFlash(banked bool) *Flash {
	size := 0x10000
	if banked {
		size = 0x20000
	}
	f := &Flash{data: make([]byte, size), banked: banked}
	for i := range f.data {
		f.data[i] = 0xFF
	}
	return f
}

func (f *Flash) Read8(offset uint32) uint8 {
	offset &= 0xFFFF
	if f.idMode && offset <= 1 {
		if f.banked {
			return [2]uint8{flashSanyoMaker, flashSanyoDevice}[offset]
		}
		return [2]uint8{flashPanasonicMaker, flashPanasonicDevice}[offset]
	}
	return f.data[f.bank<<16|offset]
}

func (f *Flash) Write8(offset uint32, value uint8) {
	offset &= 0xFFFF

	switch f.state {
	case flashProgram:
		f.data[f.bank<<16|offset] &= value
		f.state = flashReady
		return
	case flashBank:
		if offset == 0 {
			f.bank = uint32(value) & 1
			if !f.banked {
				f.bank = 0
			}
		}
		f.state = flashReady
		return
	case flashReady, flashEraseArmed:
		if offset == 0x5555 && value == 0xAA {
			if f.state == flashEraseArmed {
				f.state = flashEraseCmd1
			} else {
				f.state = flashCmd1
			}
		}
		return
	case flashCmd1:
		if offset == 0x2AAA && value == 0x55 {
			f.state = flashCmd2
		} else {
			f.state = flashReady
		}
		return
	case flashEraseCmd1:
		if offset == 0x2AAA && value == 0x55 {
			f.state = flashEraseCmd2
		} else {
			f.state = flashReady
		}
		return
	case flashEraseCmd2:
		switch {
		case offset == 0x5555 && value == 0x10:
			for i := range f.data {
				f.data[i] = 0xFF
			}
		case value == 0x30:
			// 4KB sector erase within the active bank
			sector := f.bank<<16 | offset&0xF000
			for i := uint32(0); i < 0x1000; i++ {
				f.data[sector+i] = 0xFF
			}
		}
		f.state = flashReady
		return
	}

	// flashCmd2: the command byte
	if offset != 0x5555 {
		f.state = flashReady
		return
	}
	switch value {
	case 0x90:
		f.idMode = true
		f.state = flashReady
	case 0xF0:
		f.idMode = false
		f.state = flashReady
	case 0xA0:
		f.state = flashProgram
	case 0xB0:
		f.state = flashBank
	case 0x80:
		f.state = flashEraseArmed
	default:
		f.state = flashReady
	}
}

func (f *Flash) Data() []byte {
	return f.data
}

func (f *Flash) LoadData(data []byte) {
	copy(f.data, data)
}

func (f *Flash) save(w *snapshot.Writer) {
	w.VarBytes(f.data)
	w.U32(f.bank)
	w.U8(uint8(f.state))
	w.Bool(f.idMode)
}

func (f *Flash) load(r *snapshot.Reader) {
	copy(f.data, r.VarBytes())
	f.bank = r.U32()
	f.state = flashState(r.U8())
	f.idMode = r.Bool()
}

// EEPROM protocol phases.
type eepromState uint8

const (
	eepromIdle eepromState = iota
	eepromCommand
	eepromAddress
	eepromWriteData
	eepromStopBit
	eepromReadPreamble
	eepromReadData
)

// EEPROM implements the serial bit protocol spoken over the 0x0D address
// lines. The chip size (512B with 6 address bits, 8KB with 14) is fixed by
// the first DMA transfer's length.
type EEPROM struct {
	data     []byte
	addrBits int

	state    eepromState
	readMode bool
	bitCount int
	shift    uint64
	address  uint32
	readPos  int
}

func NewEEPROM() *EEPROM {
	return &EEPROM{}
}

// HintWidthFromTransfer fixes the address width from a DMA unit count:
// 9/73 units are the 6-bit requests, 17/81 the 14-bit ones.
func (e *EEPROM) HintWidthFromTransfer(units int) {
	if e.addrBits != 0 {
		return
	}
	switch units {
	case 9, 73:
		e.setWidth(6)
	case 17, 81:
		e.setWidth(14)
	}
}

func (e *EEPROM) setWidth(bits int) {
	e.addrBits = bits
	if bits == 6 {
		e.data = make([]byte, 0x200)
	} else {
		e.data = make([]byte, 0x2000)
	}
	for i := range e.data {
		e.data[i] = 0xFF
	}
}

// WriteBit clocks one bit into the chip.
func (e *EEPROM) WriteBit(value uint16) {
	bit := uint64(value & 1)

	switch e.state {
	case eepromIdle:
		if bit == 1 {
			e.state = eepromCommand
		}
	case eepromCommand:
		if e.addrBits == 0 {
			// no DMA hint was seen: fall back to the small chip
			e.setWidth(6)
		}
		e.readMode = bit == 1
		e.state = eepromAddress
		e.shift = 0
		e.bitCount = 0
	case eepromAddress:
		e.shift = e.shift<<1 | bit
		e.bitCount++
		if e.bitCount == e.addrBits {
			e.address = (uint32(e.shift) & 0x3FF) * 8
			if e.readMode {
				e.state = eepromStopBit
			} else {
				e.state = eepromWriteData
				e.shift = 0
				e.bitCount = 0
			}
		}
	case eepromWriteData:
		e.shift = e.shift<<1 | bit
		e.bitCount++
		if e.bitCount == 64 {
			for i := 0; i < 8; i++ {
				e.data[e.address+uint32(i)] = uint8(e.shift >> (56 - 8*i))
			}
			e.state = eepromStopBit
		}
	case eepromStopBit:
		if e.readMode {
			e.state = eepromReadPreamble
			e.readPos = 0
		} else {
			e.state = eepromIdle
		}
	}
}

// ReadBit clocks one bit out of the chip. Outside a read sequence the data
// line idles high (writes are "ready").
func (e *EEPROM) ReadBit() uint16 {
	switch e.state {
	case eepromReadPreamble:
		e.readPos++
		if e.readPos == 4 {
			e.state = eepromReadData
			e.readPos = 0
		}
		return 0
	case eepromReadData:
		byteIndex := e.address + uint32(e.readPos/8)
		bitIndex := 7 - e.readPos%8
		e.readPos++
		if e.readPos == 64 {
			e.state = eepromIdle
		}
		return uint16(e.data[byteIndex] >> bitIndex & 1)
	default:
		return 1
	}
}

// Read8 and Write8 cover direct CPU access through the SRAM region, which
// an EEPROM cart does not decode.
func (e *EEPROM) Read8(offset uint32) uint8 {
	return 0xFF
}

func (e *EEPROM) Write8(offset uint32, value uint8) {}

func (e *EEPROM) Data() []byte {
	return e.data
}

func (e *EEPROM) LoadData(data []byte) {
	if e.addrBits == 0 {
		if len(data) > 0x200 {
			e.setWidth(14)
		} else {
			e.setWidth(6)
		}
	}
	copy(e.data, data)
}

func (e *EEPROM) save(w *snapshot.Writer) {
	w.U8(uint8(e.addrBits))
	w.VarBytes(e.data)
	w.U8(uint8(e.state))
	w.Bool(e.readMode)
	w.U32(uint32(e.bitCount))
	w.U64(e.shift)
	w.U32(e.address)
	w.U32(uint32(e.readPos))
}

func (e *EEPROM) load(r *snapshot.Reader) {
	bits := int(r.U8())
	if bits != 0 && e.addrBits == 0 {
		e.setWidth(bits)
	}
	copy(e.data, r.VarBytes())
	e.state = eepromState(r.U8())
	e.readMode = r.Bool()
	e.bitCount = int(r.U32())
	e.shift = r.U64()
	e.address = r.U32()
	e.readPos = int(r.U32())
}
