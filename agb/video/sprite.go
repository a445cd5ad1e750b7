package video

import "github.com/valerio/go-agb/agb/addr"

// Sprite sizes indexed by shape (attr0 bits 15-14) and size (attr1 bits
// 15-14): square, horizontal, vertical. The fourth shape is prohibited.
var spriteSizes = [3][4][2]int{
	{{8, 8}, {16, 16}, {32, 32}, {64, 64}},
	{{16, 8}, {32, 8}, {32, 16}, {64, 32}},
	{{8, 16}, {8, 32}, {16, 32}, {32, 64}},
}

// OBJ modes from attr0 bits 11-10.
const (
	objModeNormal = 0
	objModeSemi   = 1
	objModeWindow = 2
)

// renderObjects scans all 128 OAM entries and builds the object line
// buffer: the winning pixel per position plus the OBJ window mask. Sprites
// earlier in OAM win priority ties.
func (g *GPU) renderObjects(y int, dispcnt uint16) {
	oam := g.bus.OAM()
	oneDimensional := dispcnt&0x0040 != 0

	for i := 0; i < 128; i++ {
		attr0 := uint16(oam[i*8]) | uint16(oam[i*8+1])<<8
		attr1 := uint16(oam[i*8+2]) | uint16(oam[i*8+3])<<8
		attr2 := uint16(oam[i*8+4]) | uint16(oam[i*8+5])<<8

		affine := attr0&0x0100 != 0
		if !affine && attr0&0x0200 != 0 {
			continue // disabled
		}
		shape := int(attr0 >> 14)
		if shape == 3 {
			continue
		}

		size := spriteSizes[shape][attr1>>14]
		width, height := size[0], size[1]

		// the on-screen footprint doubles for double-size affine sprites
		boundsW, boundsH := width, height
		if affine && attr0&0x0200 != 0 {
			boundsW *= 2
			boundsH *= 2
		}

		spriteY := int(attr0 & 0xFF)
		if spriteY >= 160 {
			spriteY -= 256
		}
		row := y - spriteY
		if row < 0 || row >= boundsH {
			continue
		}

		spriteX := int(attr1 & 0x1FF)
		if spriteX >= 240 {
			spriteX -= 512
		}

		mode := int(attr0 >> 10 & 3)
		if mode == 3 {
			continue // prohibited
		}
		priority := int(attr2 >> 10 & 3)
		eightBPP := attr0&0x2000 != 0

		if affine {
			g.renderAffineSprite(attr1, attr2, spriteX, row, width, height, boundsW, boundsH, eightBPP, oneDimensional, mode, priority)
			continue
		}

		texRow := row
		if attr1&0x2000 != 0 {
			texRow = height - 1 - row
		}
		hflip := attr1&0x1000 != 0

		for col := 0; col < width; col++ {
			x := spriteX + col
			if x < 0 || x >= FramebufferWidth {
				continue
			}
			texCol := col
			if hflip {
				texCol = width - 1 - col
			}
			g.plotSpritePixel(attr2, x, texCol, texRow, width, eightBPP, oneDimensional, mode, priority)
		}
	}
}

// renderAffineSprite samples the sprite texture through its OAM parameter
// group, centered on the (possibly doubled) bounding box.
func (g *GPU) renderAffineSprite(attr1, attr2 uint16, spriteX, row, width, height, boundsW, boundsH int, eightBPP, oneDimensional bool, mode, priority int) {
	oam := g.bus.OAM()
	group := int(attr1 >> 9 & 0x1F)
	param := func(n int) int32 {
		off := group*32 + n*8 + 6
		return int32(int16(uint16(oam[off]) | uint16(oam[off+1])<<8))
	}
	pa, pb, pc, pd := param(0), param(1), param(2), param(3)

	centerX := int32(boundsW) / 2
	centerY := int32(boundsH) / 2
	dy := int32(row) - centerY

	for col := 0; col < boundsW; col++ {
		x := spriteX + col
		if x < 0 || x >= FramebufferWidth {
			continue
		}
		dx := int32(col) - centerX
		texX := (pa*dx+pb*dy)>>8 + int32(width)/2
		texY := (pc*dx+pd*dy)>>8 + int32(height)/2
		if texX < 0 || texY < 0 || texX >= int32(width) || texY >= int32(height) {
			continue
		}
		g.plotSpritePixel(attr2, x, int(texX), int(texY), width, eightBPP, oneDimensional, mode, priority)
	}
}

// plotSpritePixel fetches one texel and merges it into the object line
// buffer under the priority rules.
func (g *GPU) plotSpritePixel(attr2 uint16, x, texCol, texRow, width int, eightBPP, oneDimensional bool, mode, priority int) {
	vram := g.bus.VRAM()
	base := g.objTileBase()

	tileIndex := uint32(attr2 & 0x3FF)
	if eightBPP {
		// 256-color tiles consume two tile slots each
		tileIndex &^= 1
	}

	tilesPerRow := uint32(32)
	if oneDimensional {
		tilesPerRow = uint32(width / 8)
		if eightBPP {
			tilesPerRow *= 2
		}
	}

	var tile uint32
	if eightBPP {
		tile = tileIndex + uint32(texRow/8)*tilesPerRow + uint32(texCol/8)*2
	} else {
		tile = tileIndex + uint32(texRow/8)*tilesPerRow + uint32(texCol/8)
	}
	if g.bus.IO16(addr.DISPCNT)&7 >= 3 && tile < 512 {
		// in the bitmap modes the first half of OBJ VRAM belongs to the
		// bitmap; tiles there never display
		return
	}

	var offset uint32
	if eightBPP {
		offset = base + tile*32 + uint32(texRow%8)*8 + uint32(texCol%8)
	} else {
		offset = base + tile*32 + uint32(texRow%8)*4 + uint32(texCol%8)/2
	}
	if offset >= uint32(len(vram)) {
		return
	}

	var colorIndex, paletteRow int
	if eightBPP {
		colorIndex = int(vram[offset])
	} else {
		colorIndex = int(vram[offset] >> (uint(texCol) % 2 * 4) & 0xF)
		paletteRow = int(attr2 >> 12)
	}
	if colorIndex == 0 {
		return
	}

	if mode == objModeWindow {
		g.objLine[x].window = true
		return
	}

	p := &g.objLine[x]
	if p.opaque && p.priority <= priority {
		return
	}
	p.color = g.paletteColor(1, paletteRow*16+colorIndex)
	p.priority = priority
	p.opaque = true
	p.semi = mode == objModeSemi
}

// objTileBase is where OBJ tiles start in VRAM: the last 32KB.
func (g *GPU) objTileBase() uint32 {
	return 0x10000
}
