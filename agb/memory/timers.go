package memory

import (
	"github.com/valerio/go-agb/agb/addr"
	"github.com/valerio/go-agb/agb/audio"
	"github.com/valerio/go-agb/agb/scheduler"
)

// prescaleShift maps the two prescale bits to a power-of-two divider of
// the 16.78 MHz master clock: 1, 64, 256 or 1024 cycles per tick.
var prescaleShift = [4]uint{0, 6, 8, 10}

// timer is a 16-bit counter that runs from its reload value to 0xFFFF and
// reloads on overflow. A free-running timer keeps no per-cycle state: the counter is
// derived from the cycle its current period started, and an overflow event
// sits in the scheduler. A cascading timer only advances on the previous
// timer's overflow.
type timer struct {
	reload  uint16
	control uint16

	// counter state: for a cascading timer `counter` is exact; for a
	// free-running one it is the value at `startCycle`
	counter    uint16
	startCycle uint64
}

func (t *timer) enabled() bool {
	return t.control&0x0080 != 0
}

func (t *timer) cascade() bool {
	return t.control&0x0004 != 0
}

func (t *timer) irqEnabled() bool {
	return t.control&0x0040 != 0
}

func (t *timer) shift() uint {
	return prescaleShift[t.control&3]
}

// period returns the cycles from the current counter value to overflow.
func (t *timer) period() uint64 {
	return uint64(0x10000-uint32(t.counter)) << t.shift()
}

func (b *Bus) readTimerRegister(offset uint32) uint16 {
	index := int(offset-addr.TM0CNT_L) / 4
	if (offset-addr.TM0CNT_L)%4 == 2 {
		return b.timers[index].control
	}
	return b.timerCounter(index)
}

// timerCounter computes the live counter value of a timer.
func (b *Bus) timerCounter(index int) uint16 {
	t := &b.timers[index]
	if !t.enabled() || t.cascade() {
		return t.counter
	}
	elapsed := (b.cycles - t.startCycle) >> t.shift()
	return t.counter + uint16(elapsed)
}

func (b *Bus) writeTimerRegister(offset uint32, value uint16) {
	index := int(offset-addr.TM0CNT_L) / 4
	t := &b.timers[index]
	if (offset-addr.TM0CNT_L)%4 == 0 {
		// the reload value takes effect on the next overflow or enable
		t.reload = value
		return
	}

	wasEnabled := t.enabled()
	if wasEnabled && !t.cascade() {
		// sync the counter under the old settings before they change
		t.counter = b.timerCounter(index)
	}
	t.control = value & 0x00C7

	if !t.enabled() {
		b.sched.Cancel(scheduler.EventTimer, index)
		return
	}

	if !wasEnabled {
		t.counter = t.reload
	}
	t.startCycle = b.cycles
	if t.cascade() && index != 0 {
		b.sched.Cancel(scheduler.EventTimer, index)
	} else {
		b.sched.Schedule(b.cycles+t.period(), scheduler.EventTimer, index)
	}
}

// TimerOverflow services a timer overflow event: reload, IRQ, sound FIFO
// feed, cascade into the next timer, and reschedule.
func (b *Bus) TimerOverflow(index int, at uint64) {
	t := &b.timers[index]
	if !t.enabled() {
		return
	}
	b.timerOverflowed(index)

	// the next period starts at the precise overflow cycle, not at the
	// dispatch cycle, so prescaler remainders never drift
	t.counter = t.reload
	t.startCycle = at
	if !t.cascade() || index == 0 {
		b.sched.Schedule(at+t.period(), scheduler.EventTimer, index)
	}
}

// timerOverflowed applies the side effects shared by scheduled and
// cascaded overflows.
func (b *Bus) timerOverflowed(index int) {
	t := &b.timers[index]
	if t.irqEnabled() {
		b.RequestInterrupt(addr.Timer0Interrupt + addr.Interrupt(index))
	}

	// timers 0 and 1 can clock the Direct Sound FIFOs
	if index <= 1 {
		for fifo := 0; fifo < 2; fifo++ {
			if b.APU.FIFOTimer(fifo) != index {
				continue
			}
			b.APU.TickFIFO(fifo)
			if b.APU.FIFOLen(fifo) <= audio.RefillThreshold {
				b.TriggerFIFODMA(fifo)
			}
		}
	}

	// cascade: the next timer counts this overflow
	next := index + 1
	if next < 4 && b.timers[next].enabled() && b.timers[next].cascade() {
		b.tickCascade(next)
	}
}

func (b *Bus) tickCascade(index int) {
	t := &b.timers[index]
	t.counter++
	if t.counter == 0 {
		t.counter = t.reload
		b.timerOverflowed(index)
	}
}
