package memory

import "github.com/valerio/go-agb/agb/addr"

// SetKeyState replaces KEYINPUT with the host's key mask. A set bit means
// the key is released, a clear bit pressed, matching the hardware register.
func (b *Bus) SetKeyState(mask uint16) {
	b.keyinput = mask & 0x03FF
	b.checkKeypadInterrupt()
}

// KeyState returns the current KEYINPUT value.
func (b *Bus) KeyState() uint16 {
	return b.keyinput
}

// checkKeypadInterrupt evaluates the KEYCNT condition: in OR mode any
// selected pressed key raises the interrupt, in AND mode all of them must
// be down.
func (b *Bus) checkKeypadInterrupt() {
	keycnt := b.IO16(addr.KEYCNT)
	if keycnt&0x4000 == 0 {
		return
	}
	selected := keycnt & 0x03FF
	pressed := ^b.keyinput & 0x03FF
	if selected == 0 {
		return
	}
	if keycnt&0x8000 != 0 {
		if pressed&selected == selected {
			b.RequestInterrupt(addr.KeypadInterrupt)
		}
	} else if pressed&selected != 0 {
		b.RequestInterrupt(addr.KeypadInterrupt)
	}
}
