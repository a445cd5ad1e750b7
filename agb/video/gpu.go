// Package video implements the PPU: a scanline renderer covering the six
// video modes, the four background layers, the object layer, windows and
// color special effects, driven by scheduled per-scanline phases.
package video

import (
	"github.com/valerio/go-agb/agb/addr"
	"github.com/valerio/go-agb/agb/bit"
	"github.com/valerio/go-agb/agb/memory"
	"github.com/valerio/go-agb/agb/scheduler"
)

// Scanline timing, in bus cycles.
const (
	HDrawCycles       = 1006
	HBlankCycles      = 226
	CyclesPerScanline = HDrawCycles + HBlankCycles
	ScanlinesPerFrame = 228
	VBlankStartLine   = 160
	// CyclesPerFrame is the full frame period: 228 lines of 1232 cycles.
	CyclesPerFrame = ScanlinesPerFrame * CyclesPerScanline
)

// PPU phases scheduled per scanline, carried in the event channel.
const (
	phaseHDrawEnd = 0
	phaseLineEnd  = 1
)

// DISPSTAT flag bits maintained by the PPU.
const (
	statVBlank      = 1 << 0
	statHBlank      = 1 << 1
	statVCountMatch = 1 << 2
	statVBlankIRQ   = 1 << 3
	statHBlankIRQ   = 1 << 4
	statVCountIRQ   = 1 << 5
)

// GPU is the pixel processor. Registers live in the bus I/O shadow; the
// GPU keeps only the state that is not memory mapped: the current
// scanline, the internal affine reference counters and the line buffers.
type GPU struct {
	bus         *memory.Bus
	framebuffer *FrameBuffer

	line int

	// internal affine reference point counters for BG2 and BG3, 20.8
	// fixed point. Latched from the registers at V-Blank end and whenever
	// the registers are written, stepped by PB/PD at each line end.
	refX [2]int32
	refY [2]int32

	// scanline working buffers
	bgLine  [4][FramebufferWidth]bgPixel
	objLine [FramebufferWidth]objPixel
}

// bgPixel is one background layer's contribution at one screen position.
type bgPixel struct {
	color  uint16
	opaque bool
}

// objPixel is the object layer's contribution: the winning sprite pixel
// with its priority, plus the OBJ-window mask.
type objPixel struct {
	color    uint16
	priority int
	opaque   bool
	semi     bool
	window   bool
}

// NewGPU wires the PPU to the bus and schedules the first scanline phase.
func NewGPU(bus *memory.Bus) *GPU {
	g := &GPU{
		bus:         bus,
		framebuffer: NewFrameBuffer(),
	}
	bus.Scheduler().Schedule(uint64(HDrawCycles), scheduler.EventPPU, phaseHDrawEnd)
	return g
}

func (g *GPU) FrameBuffer() *FrameBuffer {
	return g.framebuffer
}

// Line returns the current scanline, 0-227.
func (g *GPU) Line() int {
	return g.line
}

// HandleEvent services a scheduled PPU phase. `at` is the cycle the event
// was due, which anchors the next phase so timing never drifts.
func (g *GPU) HandleEvent(channel int, at uint64) {
	switch channel {
	case phaseHDrawEnd:
		g.enterHBlank()
		g.bus.Scheduler().Schedule(at+HBlankCycles, scheduler.EventPPU, phaseLineEnd)
	case phaseLineEnd:
		g.advanceLine()
		g.bus.Scheduler().Schedule(at+HDrawCycles, scheduler.EventPPU, phaseHDrawEnd)
	}
}

// enterHBlank renders the finished scanline and raises the H-Blank side
// effects.
func (g *GPU) enterHBlank() {
	if g.line < VBlankStartLine {
		g.renderScanline(g.line)
		g.stepAffineCounters()
	}

	stat := g.bus.IO16(addr.DISPSTAT)
	g.bus.SetIO16(addr.DISPSTAT, stat|statHBlank)
	if stat&statHBlankIRQ != 0 {
		g.bus.RequestInterrupt(addr.HBlankInterrupt)
	}
	if g.line < VBlankStartLine {
		g.bus.NotifyHBlankDMA()
	}
}

// advanceLine moves to the next scanline and drives the DISPSTAT state
// machine: V-Blank entry at line 160, flag clear on the last line, and the
// VCOUNT match test.
func (g *GPU) advanceLine() {
	g.line++
	if g.line == ScanlinesPerFrame {
		g.line = 0
		g.reloadAffineCounters(0)
		g.reloadAffineCounters(1)
	}

	stat := g.bus.IO16(addr.DISPSTAT) &^ (statHBlank | statVCountMatch)

	switch {
	case g.line == VBlankStartLine:
		stat |= statVBlank
		if stat&statVBlankIRQ != 0 {
			g.bus.RequestInterrupt(addr.VBlankInterrupt)
		}
		g.bus.NotifyVBlankDMA()
	case g.line == ScanlinesPerFrame-1:
		// the V-Blank flag drops one line before the frame wraps
		stat &^= statVBlank
	}

	if g.line == int(stat>>8) {
		stat |= statVCountMatch
		if stat&statVCountIRQ != 0 {
			g.bus.RequestInterrupt(addr.VCountInterrupt)
		}
	}

	g.bus.SetIO16(addr.DISPSTAT, stat)
	g.bus.SetIO16(addr.VCOUNT, uint16(g.line))
}

// reloadAffineCounters latches the internal reference point from the
// BG2X/BG2Y (or BG3X/BG3Y) registers.
func (g *GPU) reloadAffineCounters(index int) {
	base := addr.BG2XL + uint32(index)*0x10
	x := bit.Combine32(g.bus.IO16(base+2), g.bus.IO16(base))
	y := bit.Combine32(g.bus.IO16(base+6), g.bus.IO16(base+4))
	g.refX[index] = signExtend28(x)
	g.refY[index] = signExtend28(y)
}

// stepAffineCounters advances the internal reference points by PB/PD at
// the end of each visible scanline, or re-latches them after a mid-frame
// register write.
func (g *GPU) stepAffineCounters() {
	for index := 0; index < 2; index++ {
		if g.bus.ConsumeBGRefDirty(index) {
			g.reloadAffineCounters(index)
			continue
		}
		base := addr.BG2PA + uint32(index)*0x10
		g.refX[index] += int32(int16(g.bus.IO16(base + 2))) // PB
		g.refY[index] += int32(int16(g.bus.IO16(base + 6))) // PD
	}
}

func signExtend28(v uint32) int32 {
	return int32(v<<4) >> 4
}

// backdrop returns palette entry zero, the color behind every layer.
func (g *GPU) backdrop() uint16 {
	pal := g.bus.Palette()
	return (uint16(pal[0]) | uint16(pal[1])<<8) & 0x7FFF
}

// renderScanline builds one 240-pixel line into the framebuffer.
func (g *GPU) renderScanline(y int) {
	dispcnt := g.bus.IO16(addr.DISPCNT)

	if dispcnt&0x0080 != 0 {
		// forced blank draws white
		line := g.framebuffer.Line(y)
		for x := range line {
			line[x] = 0x7FFF
		}
		return
	}

	for i := range g.bgLine {
		for x := range g.bgLine[i] {
			g.bgLine[i][x] = bgPixel{}
		}
	}
	for x := range g.objLine {
		g.objLine[x] = objPixel{}
	}

	mode := dispcnt & 7
	bgEnabled := func(i int) bool { return dispcnt>>(8+uint(i))&1 == 1 }

	switch mode {
	case 0:
		for i := 0; i < 4; i++ {
			if bgEnabled(i) {
				g.renderTextBG(i, y)
			}
		}
	case 1:
		if bgEnabled(0) {
			g.renderTextBG(0, y)
		}
		if bgEnabled(1) {
			g.renderTextBG(1, y)
		}
		if bgEnabled(2) {
			g.renderAffineBG(2, y)
		}
	case 2:
		if bgEnabled(2) {
			g.renderAffineBG(2, y)
		}
		if bgEnabled(3) {
			g.renderAffineBG(3, y)
		}
	case 3:
		if bgEnabled(2) {
			g.renderBitmap16(y, 0, FramebufferWidth, FramebufferHeight)
		}
	case 4:
		if bgEnabled(2) {
			g.renderBitmap8(y)
		}
	case 5:
		if bgEnabled(2) {
			g.renderBitmap16(y, g.pageBase(dispcnt), 160, 128)
		}
	}

	if dispcnt&0x1000 != 0 {
		g.renderObjects(y, dispcnt)
	}

	g.composeScanline(y, dispcnt)
}

// pageBase returns the VRAM offset of the active display page in the
// double-buffered bitmap modes.
func (g *GPU) pageBase(dispcnt uint16) uint32 {
	if dispcnt&0x0010 != 0 {
		return 0xA000
	}
	return 0
}
