package video

const (
	FramebufferWidth  = 240
	FramebufferHeight = 160
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

// FrameBuffer holds one frame of BGR555 pixels, bit 15 always zero.
type FrameBuffer struct {
	buffer [FramebufferSize]uint16
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

func (fb *FrameBuffer) GetPixel(x, y int) uint16 {
	return fb.buffer[y*FramebufferWidth+x]
}

func (fb *FrameBuffer) SetPixel(x, y int, color uint16) {
	fb.buffer[y*FramebufferWidth+x] = color & 0x7FFF
}

// Line returns the backing slice for one scanline.
func (fb *FrameBuffer) Line(y int) []uint16 {
	return fb.buffer[y*FramebufferWidth : (y+1)*FramebufferWidth]
}

// ToSlice returns the whole frame as a flat row-major slice.
func (fb *FrameBuffer) ToSlice() []uint16 {
	return fb.buffer[:]
}

// CopyInto fills a caller-owned 38400-entry buffer with the frame.
func (fb *FrameBuffer) CopyInto(dst []uint16) {
	copy(dst, fb.buffer[:])
}
