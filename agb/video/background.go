package video

import "github.com/valerio/go-agb/agb/addr"

// bgControl decodes a BGxCNT register.
type bgControl struct {
	priority   int
	charBase   uint32
	mosaic     bool
	eightBPP   bool
	screenBase uint32
	wrap       bool
	size       int
}

func (g *GPU) bgCnt(index int) bgControl {
	v := g.bus.IO16(addr.BG0CNT + uint32(index)*2)
	return bgControl{
		priority:   int(v & 3),
		charBase:   uint32(v>>2&3) * 0x4000,
		mosaic:     v&0x40 != 0,
		eightBPP:   v&0x80 != 0,
		screenBase: uint32(v>>8&0x1F) * 0x800,
		wrap:       v&0x2000 != 0,
		size:       int(v >> 14),
	}
}

// paletteColor reads a BGR555 entry from palette RAM. bank 0 is the BG
// palette, bank 1 the OBJ palette.
func (g *GPU) paletteColor(bank int, index int) uint16 {
	pal := g.bus.Palette()
	i := bank*0x200 + index*2
	return (uint16(pal[i]) | uint16(pal[i+1])<<8) & 0x7FFF
}

// renderTextBG walks the tilemap of a text background for one scanline.
func (g *GPU) renderTextBG(index, y int) {
	cnt := g.bgCnt(index)
	vram := g.bus.VRAM()
	line := &g.bgLine[index]

	hofs := int(g.bus.IO16(addr.BG0HOFS+uint32(index)*4) & 0x1FF)
	vofs := int(g.bus.IO16(addr.BG0VOFS+uint32(index)*4) & 0x1FF)

	mosaicX, mosaicY := g.bgMosaic(cnt.mosaic)
	ty := (y/mosaicY*mosaicY + vofs) & 0x3FF

	for x := 0; x < FramebufferWidth; x++ {
		tx := (x/mosaicX*mosaicX + hofs) & 0x3FF

		// pick the screen block for backgrounds wider or taller than
		// 256 pixels
		block := cnt.screenBase
		bx, by := tx&0xFF, ty&0xFF
		switch cnt.size {
		case 1: // 512x256
			block += uint32(tx>>8) * 0x800
		case 2: // 256x512
			block += uint32(ty>>8&1) * 0x800
		case 3: // 512x512
			block += uint32(tx>>8)*0x800 + uint32(ty>>8&1)*0x1000
		}

		entry := uint16(vram[block+uint32(by>>3)*64+uint32(bx>>3)*2]) |
			uint16(vram[block+uint32(by>>3)*64+uint32(bx>>3)*2+1])<<8

		tile := uint32(entry & 0x3FF)
		px, py := bx&7, by&7
		if entry&0x0400 != 0 {
			px = 7 - px
		}
		if entry&0x0800 != 0 {
			py = 7 - py
		}

		var colorIndex, paletteRow int
		if cnt.eightBPP {
			offset := cnt.charBase + tile*64 + uint32(py)*8 + uint32(px)
			if offset >= 0x10000 {
				continue
			}
			colorIndex = int(vram[offset])
		} else {
			offset := cnt.charBase + tile*32 + uint32(py)*4 + uint32(px)/2
			if offset >= 0x10000 {
				continue
			}
			colorIndex = int(vram[offset] >> (uint(px) % 2 * 4) & 0xF)
			paletteRow = int(entry >> 12)
		}
		if colorIndex == 0 {
			continue
		}
		line[x] = bgPixel{
			color:  g.paletteColor(0, paletteRow*16+colorIndex),
			opaque: true,
		}
	}
}

// renderAffineBG samples a rotated/scaled background along the internal
// reference counters. Affine backgrounds are always 8bpp.
func (g *GPU) renderAffineBG(index, y int) {
	cnt := g.bgCnt(index)
	vram := g.bus.VRAM()
	line := &g.bgLine[index]

	a := index - 2
	pa := int32(int16(g.bus.IO16(addr.BG2PA + uint32(a)*0x10)))
	pc := int32(int16(g.bus.IO16(addr.BG2PC + uint32(a)*0x10)))

	// texture is square: 128, 256, 512 or 1024 pixels
	size := int32(128 << cnt.size)
	tiles := uint32(size / 8)

	px := g.refX[a]
	py := g.refY[a]

	for x := 0; x < FramebufferWidth; x, px, py = x+1, px+pa, py+pc {
		tx := px >> 8
		ty := py >> 8
		if cnt.wrap {
			tx &= size - 1
			ty &= size - 1
		} else if tx < 0 || ty < 0 || tx >= size || ty >= size {
			continue
		}

		mapOffset := cnt.screenBase + uint32(ty>>3)*tiles + uint32(tx>>3)
		tile := uint32(vram[mapOffset])
		offset := cnt.charBase + tile*64 + uint32(ty&7)*8 + uint32(tx&7)
		if offset >= 0x10000 {
			continue
		}
		colorIndex := int(vram[offset])
		if colorIndex == 0 {
			continue
		}
		line[x] = bgPixel{color: g.paletteColor(0, colorIndex), opaque: true}
	}
}

// renderBitmap16 handles modes 3 and 5: direct BGR555 pixels in VRAM on
// layer BG2.
func (g *GPU) renderBitmap16(y int, base uint32, width, height int) {
	if y >= height {
		return
	}
	vram := g.bus.VRAM()
	line := &g.bgLine[2]
	for x := 0; x < width; x++ {
		i := base + uint32(y*width+x)*2
		color := (uint16(vram[i]) | uint16(vram[i+1])<<8) & 0x7FFF
		line[x] = bgPixel{color: color, opaque: true}
	}
}

// renderBitmap8 handles mode 4: a paletted full-screen bitmap with two
// display pages.
func (g *GPU) renderBitmap8(y int) {
	base := g.pageBase(g.bus.IO16(addr.DISPCNT))
	vram := g.bus.VRAM()
	line := &g.bgLine[2]
	for x := 0; x < FramebufferWidth; x++ {
		colorIndex := int(vram[base+uint32(y*FramebufferWidth+x)])
		if colorIndex == 0 {
			continue
		}
		line[x] = bgPixel{color: g.paletteColor(0, colorIndex), opaque: true}
	}
}

// bgMosaic returns the horizontal and vertical mosaic spans for
// backgrounds, at least 1x1.
func (g *GPU) bgMosaic(enabled bool) (int, int) {
	if !enabled {
		return 1, 1
	}
	mosaic := g.bus.IO16(addr.MOSAIC)
	return int(mosaic&0xF) + 1, int(mosaic>>4&0xF) + 1
}
