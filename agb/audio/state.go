package audio

import "github.com/valerio/go-agb/agb/snapshot"

// Save appends the APU state to a snapshot. The output ring is not saved:
// buffered host samples belong to the front-end, not the machine.
func (a *APU) Save(w *snapshot.Writer) {
	w.Bytes(a.regs[:])

	for i := range a.fifos {
		f := &a.fifos[i]
		for _, v := range f.data {
			w.U8(uint8(v))
		}
		w.U32(uint32(f.read))
		w.U32(uint32(f.write))
		w.U32(uint32(f.count))
		w.U8(uint8(a.fifoSample[i]))
	}

	for i := range a.ch {
		ch := &a.ch[i]
		w.Bool(ch.enabled)
		w.U8(ch.duty)
		w.U8(ch.volume)
		w.U32(uint32(ch.length))
		w.Bool(ch.lengthEnable)
		w.U8(ch.envelopePace)
		w.Bool(ch.envelopeUp)
		w.U8(ch.envelopeTick)
		w.U16(ch.frequency)
		w.U32(ch.phase)
		w.U8(ch.dutyStep)
		w.U8(ch.wavePos)
		w.U16(ch.lfsr)
		w.Bool(ch.lfsrWidth7)
	}

	w.U32(uint32(a.step))
}

// Load restores the state written by Save.
func (a *APU) Load(r *snapshot.Reader) {
	r.ReadInto(a.regs[:])

	for i := range a.fifos {
		f := &a.fifos[i]
		for j := range f.data {
			f.data[j] = int8(r.U8())
		}
		f.read = int(r.U32())
		f.write = int(r.U32())
		f.count = int(r.U32())
		a.fifoSample[i] = int8(r.U8())
	}

	for i := range a.ch {
		ch := &a.ch[i]
		ch.enabled = r.Bool()
		ch.duty = r.U8()
		ch.volume = r.U8()
		ch.length = int(r.U32())
		ch.lengthEnable = r.Bool()
		ch.envelopePace = r.U8()
		ch.envelopeUp = r.Bool()
		ch.envelopeTick = r.U8()
		ch.frequency = r.U16()
		ch.phase = r.U32()
		ch.dutyStep = r.U8()
		ch.wavePos = r.U8()
		ch.lfsr = r.U16()
		ch.lfsrWidth7 = r.Bool()
	}

	a.step = int(r.U32())
	a.buffer = nil
}
