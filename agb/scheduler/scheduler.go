// Package scheduler provides the absolute-cycle event queue that drives
// every peripheral in the system. Components schedule an event at the cycle
// it becomes due, the run loop idles the CPU up to the next due cycle and
// dispatches everything that matured.
package scheduler

import "container/heap"

// EventKind identifies the subsystem an event belongs to.
type EventKind uint8

const (
	// EventPPU advances the PPU to its next phase (H-Draw end, line end).
	EventPPU EventKind = iota
	// EventTimer fires when timer <channel> overflows.
	EventTimer
	// EventDMA performs the pending transfer on DMA <channel>.
	EventDMA
	// EventAPUSample emits one host-rate stereo sample pair.
	EventAPUSample
	// EventAPUSequencer steps the PSG frame sequencer.
	EventAPUSequencer
)

// Event is a scheduled occurrence at an absolute cycle. Channel
// distinguishes instances of the same kind (timer index, DMA channel).
type Event struct {
	Cycle   uint64
	Kind    EventKind
	Channel int

	seq uint64 // insertion order, breaks ties at equal cycle
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Cycle != h[j].Cycle {
		return h[i].Cycle < h[j].Cycle
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler is a min-heap of events keyed by absolute cycle.
type Scheduler struct {
	events eventHeap
	seq    uint64
}

func New() *Scheduler {
	return &Scheduler{}
}

// Schedule queues an event at the given absolute cycle. Any already queued
// event with the same kind and channel is replaced, so a component has at
// most one pending occurrence.
func (s *Scheduler) Schedule(cycle uint64, kind EventKind, channel int) {
	s.Cancel(kind, channel)
	s.seq++
	heap.Push(&s.events, Event{Cycle: cycle, Kind: kind, Channel: channel, seq: s.seq})
}

// Cancel removes the pending event with the given kind and channel, if any.
func (s *Scheduler) Cancel(kind EventKind, channel int) {
	for i := range s.events {
		if s.events[i].Kind == kind && s.events[i].Channel == channel {
			heap.Remove(&s.events, i)
			return
		}
	}
}

// Pending reports whether an event with the given kind and channel is queued.
func (s *Scheduler) Pending(kind EventKind, channel int) bool {
	for i := range s.events {
		if s.events[i].Kind == kind && s.events[i].Channel == channel {
			return true
		}
	}
	return false
}

// PendingCycle returns the due cycle of the event with the given kind and
// channel. The second return is false if no such event is queued.
func (s *Scheduler) PendingCycle(kind EventKind, channel int) (uint64, bool) {
	for i := range s.events {
		if s.events[i].Kind == kind && s.events[i].Channel == channel {
			return s.events[i].Cycle, true
		}
	}
	return 0, false
}

// Peek returns the cycle of the next due event. The heap is never empty
// during emulation (the PPU always has a phase queued), but an empty heap
// reports false.
func (s *Scheduler) Peek() (uint64, bool) {
	if len(s.events) == 0 {
		return 0, false
	}
	return s.events[0].Cycle, true
}

// PopDue removes and returns the next event if it is due at or before now.
func (s *Scheduler) PopDue(now uint64) (Event, bool) {
	if len(s.events) == 0 || s.events[0].Cycle > now {
		return Event{}, false
	}
	return heap.Pop(&s.events).(Event), true
}

// Len returns the number of queued events.
func (s *Scheduler) Len() int {
	return len(s.events)
}

// Snapshot returns all queued events ordered by due cycle, for save states.
func (s *Scheduler) Snapshot() []Event {
	h := make(eventHeap, len(s.events))
	copy(h, s.events)
	sorted := make([]Event, 0, len(h))
	for h.Len() > 0 {
		sorted = append(sorted, heap.Pop(&h).(Event))
	}
	return sorted
}

// Restore replaces the queue with the given events, preserving their
// relative dispatch order.
func (s *Scheduler) Restore(events []Event) {
	s.events = s.events[:0]
	s.seq = 0
	for _, e := range events {
		s.seq++
		e.seq = s.seq
		heap.Push(&s.events, e)
	}
}
