// Package addr holds the offsets of the memory mapped I/O registers,
// relative to the start of the I/O region at 0x04000000.
package addr

// LCD registers
const (
	// LCD Control register.
	DISPCNT uint32 = 0x000
	// General LCD Status register (V-Blank, H-Blank, V-Count flags and IRQ enables).
	DISPSTAT uint32 = 0x004
	// Vertical Counter (readonly) register.
	VCOUNT uint32 = 0x006
	// BG0-BG3 Control registers.
	BG0CNT uint32 = 0x008
	BG1CNT uint32 = 0x00A
	BG2CNT uint32 = 0x00C
	BG3CNT uint32 = 0x00E
	// BG0-BG3 scroll offsets (write-only).
	BG0HOFS uint32 = 0x010
	BG0VOFS uint32 = 0x012
	BG1HOFS uint32 = 0x014
	BG1VOFS uint32 = 0x016
	BG2HOFS uint32 = 0x018
	BG2VOFS uint32 = 0x01A
	BG3HOFS uint32 = 0x01C
	BG3VOFS uint32 = 0x01E
	// BG2 rotation/scaling parameters and reference point.
	BG2PA  uint32 = 0x020
	BG2PB  uint32 = 0x022
	BG2PC  uint32 = 0x024
	BG2PD  uint32 = 0x026
	BG2XL  uint32 = 0x028
	BG2XH  uint32 = 0x02A
	BG2YL  uint32 = 0x02C
	BG2YH  uint32 = 0x02E
	// BG3 rotation/scaling parameters and reference point.
	BG3PA  uint32 = 0x030
	BG3PB  uint32 = 0x032
	BG3PC  uint32 = 0x034
	BG3PD  uint32 = 0x036
	BG3XL  uint32 = 0x038
	BG3XH  uint32 = 0x03A
	BG3YL  uint32 = 0x03C
	BG3YH  uint32 = 0x03E
	// Window bounds (write-only).
	WIN0H uint32 = 0x040
	WIN1H uint32 = 0x042
	WIN0V uint32 = 0x044
	WIN1V uint32 = 0x046
	// Window control.
	WININ  uint32 = 0x048
	WINOUT uint32 = 0x04A
	// Mosaic size (write-only).
	MOSAIC uint32 = 0x04C
	// Color special effects.
	BLDCNT   uint32 = 0x050
	BLDALPHA uint32 = 0x052
	BLDY     uint32 = 0x054
)

// Sound registers
const (
	// Channel 1 - square wave with sweep
	SOUND1CNT_L uint32 = 0x060 // sweep
	SOUND1CNT_H uint32 = 0x062 // duty/length/envelope
	SOUND1CNT_X uint32 = 0x064 // frequency/control
	// Channel 2 - square wave
	SOUND2CNT_L uint32 = 0x068
	SOUND2CNT_H uint32 = 0x06C
	// Channel 3 - wave output
	SOUND3CNT_L uint32 = 0x070
	SOUND3CNT_H uint32 = 0x072
	SOUND3CNT_X uint32 = 0x074
	// Channel 4 - noise
	SOUND4CNT_L uint32 = 0x078
	SOUND4CNT_H uint32 = 0x07C
	// Global control
	SOUNDCNT_L uint32 = 0x080 // PSG stereo volume/panning
	SOUNDCNT_H uint32 = 0x082 // Direct Sound mixing and FIFO timer select
	SOUNDCNT_X uint32 = 0x084 // master enable, channel status
	SOUNDBIAS  uint32 = 0x088
	// Wave pattern RAM (2 banks of 16 bytes)
	WAVE_RAM uint32 = 0x090
	// Direct Sound FIFOs (write-only)
	FIFO_A uint32 = 0x0A0
	FIFO_B uint32 = 0x0A4
)

// DMA registers, 12 bytes apart per channel
const (
	DMA0SAD   uint32 = 0x0B0
	DMA0DAD   uint32 = 0x0B4
	DMA0CNT_L uint32 = 0x0B8
	DMA0CNT_H uint32 = 0x0BA
	DMA1SAD   uint32 = 0x0BC
	DMA1DAD   uint32 = 0x0C0
	DMA1CNT_L uint32 = 0x0C4
	DMA1CNT_H uint32 = 0x0C6
	DMA2SAD   uint32 = 0x0C8
	DMA2DAD   uint32 = 0x0CC
	DMA2CNT_L uint32 = 0x0D0
	DMA2CNT_H uint32 = 0x0D2
	DMA3SAD   uint32 = 0x0D4
	DMA3DAD   uint32 = 0x0D8
	DMA3CNT_L uint32 = 0x0DC
	DMA3CNT_H uint32 = 0x0DE
)

// Timer registers
const (
	TM0CNT_L uint32 = 0x100 // counter/reload
	TM0CNT_H uint32 = 0x102 // control
	TM1CNT_L uint32 = 0x104
	TM1CNT_H uint32 = 0x106
	TM2CNT_L uint32 = 0x108
	TM2CNT_H uint32 = 0x10A
	TM3CNT_L uint32 = 0x10C
	TM3CNT_H uint32 = 0x10E
)

// Serial (stubbed) and keypad registers
const (
	SIODATA32 uint32 = 0x120
	SIOCNT    uint32 = 0x128
	SIODATA8  uint32 = 0x12A
	// Key Status (readonly). A bit set to 1 means the key is released.
	KEYINPUT uint32 = 0x130
	// Key Interrupt Control.
	KEYCNT uint32 = 0x132
	RCNT   uint32 = 0x134
	JOYCNT uint32 = 0x140
)

// Interrupt, wait state and power-down control
const (
	// Interrupt Enable register.
	IE uint32 = 0x200
	// Interrupt Request flags (write-one-to-clear).
	IF uint32 = 0x202
	// GamePak wait state control.
	WAITCNT uint32 = 0x204
	// Interrupt Master Enable register.
	IME uint32 = 0x208
	// Post Boot flag.
	POSTFLG uint32 = 0x300
	// Power Down Control (write-only, bit 7 selects Stop over Halt).
	HALTCNT uint32 = 0x301
)

// Interrupt identifies one of the interrupt request lines, i.e. the bit
// index used in the IE and IF registers.
type Interrupt uint

const (
	VBlankInterrupt  Interrupt = 0
	HBlankInterrupt  Interrupt = 1
	VCountInterrupt  Interrupt = 2
	Timer0Interrupt  Interrupt = 3
	Timer1Interrupt  Interrupt = 4
	Timer2Interrupt  Interrupt = 5
	Timer3Interrupt  Interrupt = 6
	SerialInterrupt  Interrupt = 7
	DMA0Interrupt    Interrupt = 8
	DMA1Interrupt    Interrupt = 9
	DMA2Interrupt    Interrupt = 10
	DMA3Interrupt    Interrupt = 11
	KeypadInterrupt  Interrupt = 12
	GamePakInterrupt Interrupt = 13
)

// Key identifies one of the ten pad keys, i.e. the bit index used in the
// KEYINPUT and KEYCNT registers.
type Key uint

const (
	KeyA Key = iota
	KeyB
	KeySelect
	KeyStart
	KeyRight
	KeyLeft
	KeyUp
	KeyDown
	KeyR
	KeyL
)
