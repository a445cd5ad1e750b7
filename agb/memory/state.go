package memory

import (
	"github.com/valerio/go-agb/agb/scheduler"
	"github.com/valerio/go-agb/agb/snapshot"
)

// Save appends the bus state to a snapshot: memory contents, I/O shadow,
// peripheral state and the scheduler queue. The ROM itself is not part of
// the snapshot, only state derived from it.
func (b *Bus) Save(w *snapshot.Writer) {
	w.Bytes(b.ewram[:])
	w.Bytes(b.iwram[:])
	w.Bytes(b.palette[:])
	w.Bytes(b.vram[:])
	w.Bytes(b.oam[:])
	w.Bytes(b.io[:])

	w.U64(b.cycles)
	w.U32(b.prefetch)
	w.U32(b.biosLatch)
	w.Bool(b.fetchInBIOS)
	w.U32(b.romNext)

	for i := range b.dma {
		d := &b.dma[i]
		w.U32(d.sad)
		w.U32(d.dad)
		w.U16(d.count)
		w.U16(d.control)
		w.U32(d.src)
		w.U32(d.dst)
		w.U32(d.latchedDst)
		w.U32(uint32(d.units))
	}

	for i := range b.timers {
		t := &b.timers[i]
		w.U16(t.reload)
		w.U16(t.control)
		w.U16(t.counter)
		w.U64(t.startCycle)
	}

	w.U16(b.keyinput)
	w.U16(b.ie)
	w.U16(b.iflags)
	w.U16(b.ime)
	w.U8(b.postflg)

	w.U8(uint8(b.cart.Kind))
	b.cart.Backup.save(w)

	events := b.sched.Snapshot()
	w.U32(uint32(len(events)))
	for _, e := range events {
		w.U64(e.Cycle)
		w.U8(uint8(e.Kind))
		w.U32(uint32(e.Channel))
	}
}

// Load restores the state written by Save.
func (b *Bus) Load(r *snapshot.Reader) {
	r.ReadInto(b.ewram[:])
	r.ReadInto(b.iwram[:])
	r.ReadInto(b.palette[:])
	r.ReadInto(b.vram[:])
	r.ReadInto(b.oam[:])
	r.ReadInto(b.io[:])

	b.cycles = r.U64()
	b.prefetch = r.U32()
	b.biosLatch = r.U32()
	b.fetchInBIOS = r.Bool()
	b.romNext = r.U32()

	for i := range b.dma {
		d := &b.dma[i]
		d.sad = r.U32()
		d.dad = r.U32()
		d.count = r.U16()
		d.control = r.U16()
		d.src = r.U32()
		d.dst = r.U32()
		d.latchedDst = r.U32()
		d.units = int(r.U32())
	}

	for i := range b.timers {
		t := &b.timers[i]
		t.reload = r.U16()
		t.control = r.U16()
		t.counter = r.U16()
		t.startCycle = r.U64()
	}

	b.keyinput = r.U16()
	b.ie = r.U16()
	b.iflags = r.U16()
	b.ime = r.U16()
	b.postflg = r.U8()

	kind := BackupKind(r.U8())
	if kind != b.cart.Kind {
		b.cart.Kind = kind
		b.cart.Backup = newBackup(kind)
	}
	b.cart.Backup.load(r)

	count := int(r.U32())
	events := make([]scheduler.Event, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, scheduler.Event{
			Cycle:   r.U64(),
			Kind:    scheduler.EventKind(r.U8()),
			Channel: int(r.U32()),
		})
	}
	b.sched.Restore(events)

	b.updateWaitStates(b.IO16(0x204))
	b.haltPending = false
	b.stopPending = false
	b.bgRefDirty[0] = false
	b.bgRefDirty[1] = false
}
