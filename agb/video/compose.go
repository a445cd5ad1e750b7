package video

import "github.com/valerio/go-agb/agb/addr"

// Layer numbering used by BLDCNT and the window enables: BG0-3, then OBJ,
// then the backdrop.
const (
	layerOBJ      = 4
	layerBackdrop = 5
)

// blend modes from BLDCNT bits 7-6.
const (
	blendNone     = 0
	blendAlpha    = 1
	blendBrighten = 2
	blendDarken   = 3
)

// windowControl is the per-region layer enable set: bits 0-4 enable
// BG0-3/OBJ, bit 5 enables color effects.
type windowControl uint16

func (w windowControl) layerEnabled(layer int) bool {
	return w>>uint(layer)&1 == 1
}

func (w windowControl) effectsEnabled() bool {
	return w&0x20 != 0
}

// composeScanline picks the top two visible layers per pixel and applies
// the color special effects.
func (g *GPU) composeScanline(y int, dispcnt uint16) {
	line := g.framebuffer.Line(y)
	backdrop := g.backdrop()

	bldcnt := g.bus.IO16(addr.BLDCNT)
	mode := int(bldcnt >> 6 & 3)
	firstTarget := int(bldcnt & 0x3F)
	secondTarget := int(bldcnt >> 8 & 0x3F)

	eva := int(g.bus.IO16(addr.BLDALPHA) & 0x1F)
	evb := int(g.bus.IO16(addr.BLDALPHA) >> 8 & 0x1F)
	if eva > 16 {
		eva = 16
	}
	if evb > 16 {
		evb = 16
	}
	evy := int(g.bus.IO16(addr.BLDY) & 0x1F)
	if evy > 16 {
		evy = 16
	}

	windowed := dispcnt&0xE000 != 0

	// backgrounds grouped by priority, ties broken by BG index
	var bgAtPriority [4][]int
	for i := 0; i < 4; i++ {
		if dispcnt>>(8+uint(i))&1 == 1 {
			p := g.bgCnt(i).priority
			bgAtPriority[p] = append(bgAtPriority[p], i)
		}
	}

	for x := 0; x < FramebufferWidth; x++ {
		control := windowControl(0x3F)
		if windowed {
			control = g.windowAt(x, y, dispcnt)
		}

		// walk priorities and collect the two topmost opaque
		// contributions; OBJ sits above a BG of equal priority
		topLayer, botLayer := layerBackdrop, layerBackdrop
		topColor, botColor := backdrop, backdrop
		topSemi := false
		count := 0

		push := func(layer int, color uint16, semi bool) {
			if count == 0 {
				topLayer, topColor, topSemi = layer, color, semi
			} else {
				botLayer, botColor = layer, color
			}
			count++
		}

		obj := &g.objLine[x]
		objVisible := dispcnt&0x1000 != 0 && obj.opaque && control.layerEnabled(layerOBJ)

		for p := 0; p < 4 && count < 2; p++ {
			if objVisible && obj.priority == p {
				push(layerOBJ, obj.color, obj.semi)
				if count == 2 {
					break
				}
			}
			for _, i := range bgAtPriority[p] {
				if !control.layerEnabled(i) || !g.bgLine[i][x].opaque {
					continue
				}
				push(i, g.bgLine[i][x].color, false)
				if count == 2 {
					break
				}
			}
		}

		color := topColor
		switch {
		case topSemi && secondTarget>>uint(botLayer)&1 == 1:
			// semi-transparent sprites force alpha blending
			color = alphaBlend(topColor, botColor, eva, evb)
		case !control.effectsEnabled() || mode == blendNone:
		case mode == blendAlpha:
			if firstTarget>>uint(topLayer)&1 == 1 && secondTarget>>uint(botLayer)&1 == 1 {
				color = alphaBlend(topColor, botColor, eva, evb)
			}
		case firstTarget>>uint(topLayer)&1 == 1:
			if mode == blendBrighten {
				color = brighten(topColor, evy)
			} else {
				color = darken(topColor, evy)
			}
		}

		line[x] = color
	}
}

// windowAt resolves which window region covers a pixel: WIN0 beats WIN1
// beats the OBJ window beats outside.
func (g *GPU) windowAt(x, y int, dispcnt uint16) windowControl {
	winin := g.bus.IO16(addr.WININ)
	winout := g.bus.IO16(addr.WINOUT)

	if dispcnt&0x2000 != 0 && g.insideWindow(x, y, addr.WIN0H, addr.WIN0V) {
		return windowControl(winin & 0x3F)
	}
	if dispcnt&0x4000 != 0 && g.insideWindow(x, y, addr.WIN1H, addr.WIN1V) {
		return windowControl(winin >> 8 & 0x3F)
	}
	if dispcnt&0x8000 != 0 && g.objLine[x].window {
		return windowControl(winout >> 8 & 0x3F)
	}
	return windowControl(winout & 0x3F)
}

// insideWindow tests a pixel against a window's bounds. The right/bottom
// edges are exclusive, and an inverted range wraps around the screen.
func (g *GPU) insideWindow(x, y int, hReg, vReg uint32) bool {
	h := g.bus.IO16(hReg)
	v := g.bus.IO16(vReg)
	left, right := int(h>>8), int(h&0xFF)
	top, bottom := int(v>>8), int(v&0xFF)

	var inH bool
	if left <= right {
		inH = x >= left && x < right
	} else {
		inH = x >= left || x < right
	}
	var inV bool
	if top <= bottom {
		inV = y >= top && y < bottom
	} else {
		inV = y >= top || y < bottom
	}
	return inH && inV
}

func alphaBlend(first, second uint16, eva, evb int) uint16 {
	r := (int(first&0x1F)*eva + int(second&0x1F)*evb) / 16
	g := (int(first>>5&0x1F)*eva + int(second>>5&0x1F)*evb) / 16
	b := (int(first>>10&0x1F)*eva + int(second>>10&0x1F)*evb) / 16
	return pack555(r, g, b)
}

func brighten(color uint16, evy int) uint16 {
	r := int(color & 0x1F)
	g := int(color >> 5 & 0x1F)
	b := int(color >> 10 & 0x1F)
	r += (31 - r) * evy / 16
	g += (31 - g) * evy / 16
	b += (31 - b) * evy / 16
	return pack555(r, g, b)
}

func darken(color uint16, evy int) uint16 {
	r := int(color & 0x1F)
	g := int(color >> 5 & 0x1F)
	b := int(color >> 10 & 0x1F)
	r -= r * evy / 16
	g -= g * evy / 16
	b -= b * evy / 16
	return pack555(r, g, b)
}

func pack555(r, g, b int) uint16 {
	if r > 31 {
		r = 31
	}
	if g > 31 {
		g = 31
	}
	if b > 31 {
		b = 31
	}
	return uint16(r) | uint16(g)<<5 | uint16(b)<<10
}
