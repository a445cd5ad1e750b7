package video

import "github.com/valerio/go-agb/agb/snapshot"

// Save appends the PPU state that is not memory mapped. The framebuffer
// itself is not machine state: it is regenerated every frame into the
// caller's buffer.
func (g *GPU) Save(w *snapshot.Writer) {
	w.U32(uint32(g.line))
	for i := 0; i < 2; i++ {
		w.I32(g.refX[i])
		w.I32(g.refY[i])
	}
}

// Load restores the state written by Save.
func (g *GPU) Load(r *snapshot.Reader) {
	g.line = int(r.U32())
	for i := 0; i < 2; i++ {
		g.refX[i] = r.I32()
		g.refY[i] = r.I32()
	}
}
