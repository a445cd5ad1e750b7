package video

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valerio/go-agb/agb/addr"
	"github.com/valerio/go-agb/agb/memory"
)

// writeOAM stores one OAM entry.
func writeOAM(bus *memory.Bus, index int, attr0, attr1, attr2 uint16) {
	base := uint32(0x07000000 + index*8)
	bus.Write16(base, attr0)
	bus.Write16(base+2, attr1)
	bus.Write16(base+4, attr2)
}

// writeObjTile4bpp fills an OBJ tile with a solid color index.
func writeObjTile4bpp(bus *memory.Bus, tile int, colorIndex uint8) {
	v := uint16(colorIndex) | uint16(colorIndex)<<4 | uint16(colorIndex)<<8 | uint16(colorIndex)<<12
	for i := uint32(0); i < 16; i++ {
		bus.Write16(0x06010000+uint32(tile)*32+i*2, v)
	}
}

func objTestGPU(t *testing.T) (*GPU, *memory.Bus) {
	g, bus := newTestGPU(t)
	bus.Write16(ioBase+addr.DISPCNT, 0x1000) // mode 0, OBJ on
	bus.Write16(0x05000202, 0x001F)          // OBJ palette entry 1: red
	writeObjTile4bpp(bus, 1, 1)
	return g, bus
}

func TestSpriteRendersOnItsLines(t *testing.T) {
	g, bus := objTestGPU(t)
	// 8x8 sprite at (10, 20), tile 1
	writeOAM(bus, 0, 20, 10, 1)

	g.renderScanline(20)
	fb := g.FrameBuffer()
	assert.Equal(t, uint16(0x001F), fb.GetPixel(10, 20))
	assert.Equal(t, uint16(0x001F), fb.GetPixel(17, 20))
	assert.Equal(t, uint16(0x0000), fb.GetPixel(18, 20))
	assert.Equal(t, uint16(0x0000), fb.GetPixel(9, 20))

	g.renderScanline(28)
	assert.Equal(t, uint16(0x0000), fb.GetPixel(10, 28), "below the sprite")
}

func TestDisabledSpriteHidden(t *testing.T) {
	g, bus := objTestGPU(t)
	writeOAM(bus, 0, 20|0x0200, 10, 1) // disable bit without affine

	g.renderScanline(20)
	assert.Equal(t, uint16(0x0000), g.FrameBuffer().GetPixel(10, 20))
}

func TestSpriteHFlip(t *testing.T) {
	g, bus := objTestGPU(t)
	// tile 2: left column color 1, rest transparent
	for row := uint32(0); row < 8; row++ {
		bus.Write16(0x06010000+64+row*4, 0x0001)
		bus.Write16(0x06010000+64+row*4+2, 0x0000)
	}
	writeOAM(bus, 0, 0, 0|0x1000, 2) // hflip

	g.renderScanline(0)
	fb := g.FrameBuffer()
	assert.Equal(t, uint16(0x0000), fb.GetPixel(0, 0))
	assert.Equal(t, uint16(0x001F), fb.GetPixel(7, 0))
}

func TestSpriteXWrapNegative(t *testing.T) {
	g, bus := objTestGPU(t)
	// x = 508 in the 9-bit field means -4: only columns 4-7 visible
	writeOAM(bus, 0, 0, 508, 1)

	g.renderScanline(0)
	fb := g.FrameBuffer()
	assert.Equal(t, uint16(0x001F), fb.GetPixel(0, 0))
	assert.Equal(t, uint16(0x001F), fb.GetPixel(3, 0))
	assert.Equal(t, uint16(0x0000), fb.GetPixel(4, 0))
}

func TestSpritePriorityAgainstBackground(t *testing.T) {
	g, bus := objTestGPU(t)
	bus.Write16(ioBase+addr.DISPCNT, 0x1100) // BG0 + OBJ
	bus.Write16(ioBase+addr.BG0CNT, 8<<8|1)  // BG0 priority 1

	// BG0 solid tile covering the line
	writeTile4bpp(bus, 0, 1, 2)
	for i := uint32(0); i < 64; i += 2 {
		bus.Write16(0x06004000+i, 0x0001)
	}
	bus.Write16(0x05000004, 0x03E0) // BG color: green

	// sprite priority 0 beats BG priority 1
	writeOAM(bus, 0, 0, 0, 1|0<<10)
	g.renderScanline(0)
	assert.Equal(t, uint16(0x001F), g.FrameBuffer().GetPixel(0, 0))

	// sprite priority 2 loses to BG priority 1
	writeOAM(bus, 0, 0, 0, 1|2<<10)
	g.renderScanline(0)
	assert.Equal(t, uint16(0x03E0), g.FrameBuffer().GetPixel(0, 0))
}

func TestEarlierSpriteWinsTies(t *testing.T) {
	g, bus := objTestGPU(t)
	bus.Write16(0x05000204, 0x03E0) // OBJ palette entry 2: green
	for i := uint32(0); i < 16; i++ {
		bus.Write16(0x06010000+2*32+i*2, 0x2222)
	}

	writeOAM(bus, 0, 0, 0, 1) // red, OAM slot 0
	writeOAM(bus, 1, 0, 0, 2) // green, OAM slot 1

	g.renderScanline(0)
	assert.Equal(t, uint16(0x001F), g.FrameBuffer().GetPixel(0, 0), "OAM order breaks ties")
}

func TestObjWindowMasks(t *testing.T) {
	g, bus := objTestGPU(t)
	bus.Write16(ioBase+addr.DISPCNT, 0x1100|0x8000) // BG0 + OBJ + OBJWIN
	bus.Write16(ioBase+addr.BG0CNT, 8<<8)

	writeTile4bpp(bus, 0, 1, 2)
	for i := uint32(0); i < 64; i += 2 {
		bus.Write16(0x06004000+i, 0x0001)
	}
	bus.Write16(0x05000004, 0x03E0)

	// OBJ-window sprite over the first 8 pixels; inside the OBJ window
	// nothing is enabled, outside everything is
	writeOAM(bus, 0, 0|2<<10, 0, 1)
	bus.Write16(ioBase+addr.WINOUT, 0x3F|0x0000<<8)

	g.renderScanline(0)
	fb := g.FrameBuffer()
	assert.Equal(t, uint16(0x0000), fb.GetPixel(0, 0), "masked by the OBJ window")
	assert.Equal(t, uint16(0x03E0), fb.GetPixel(20, 0))
}

func TestSemiTransparentSpriteBlends(t *testing.T) {
	g, bus := objTestGPU(t)
	bus.Write16(ioBase+addr.DISPCNT, 0x1100)
	bus.Write16(ioBase+addr.BG0CNT, 8<<8|1)

	writeTile4bpp(bus, 0, 1, 2)
	for i := uint32(0); i < 64; i += 2 {
		bus.Write16(0x06004000+i, 0x0001)
	}
	bus.Write16(0x05000004, 0x03E0) // BG green below

	// semi-transparent red sprite; BG0 is a second target
	writeOAM(bus, 0, 0|1<<10, 0, 1)
	bus.Write16(ioBase+addr.BLDCNT, 0x0100) // second target BG0, mode none
	bus.Write16(ioBase+addr.BLDALPHA, 8|8<<8)

	g.renderScanline(0)
	got := g.FrameBuffer().GetPixel(0, 0)
	assert.Equal(t, uint16(15), got&0x1F, "half red")
	assert.Equal(t, uint16(15), got>>5&0x1F, "half green")
}

func TestAffineSpriteIdentity(t *testing.T) {
	g, bus := objTestGPU(t)
	// identity matrix in parameter group 0
	bus.Write16(0x07000006, 0x100)  // PA
	bus.Write16(0x0700000E, 0)      // PB
	bus.Write16(0x07000016, 0)      // PC
	bus.Write16(0x0700001E, 0x100)  // PD

	writeOAM(bus, 0, 0|0x0100, 0, 1) // affine, group 0

	g.renderScanline(3)
	fb := g.FrameBuffer()
	assert.Equal(t, uint16(0x001F), fb.GetPixel(0, 3))
	assert.Equal(t, uint16(0x001F), fb.GetPixel(7, 3))
	assert.Equal(t, uint16(0x0000), fb.GetPixel(8, 3))
}

func TestAffineDoubleSizeFootprint(t *testing.T) {
	g, bus := objTestGPU(t)
	bus.Write16(0x07000006, 0x100)
	bus.Write16(0x0700001E, 0x100)

	// double-size: the 8x8 texture is centered in a 16x16 box
	writeOAM(bus, 0, 0|0x0100|0x0200, 0, 1)

	g.renderScanline(0)
	assert.Equal(t, uint16(0x0000), g.FrameBuffer().GetPixel(0, 0), "corner of the box misses the texture")

	g.renderScanline(8)
	assert.Equal(t, uint16(0x001F), g.FrameBuffer().GetPixel(8, 8), "center hits it")
}
