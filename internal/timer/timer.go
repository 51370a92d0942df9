// Package timer implements the polled timer scheduler of spec.md §4.5: named,
// one-shot timers identified by a 64-bit id and/or a symbolic event name,
// fired in deadline-then-insertion order by a single poll call per duty
// cycle. Recurring timers are not built in; handlers reschedule explicitly
// (e.g. the Heartbeat handler in the HSM's Top state).
package timer

import (
	"container/heap"

	"github.com/dgamroth/rtcagent/internal/rtcerrors"
)

// Entry is one scheduled timer, per spec.md §3.
type Entry struct {
	ID         uint64
	DeadlineNs int64
	Event      string
}

// entryHeap is a binary min-heap ordered by (DeadlineNs, seq) so timers due
// at the same tick fire in insertion order, as spec.md §4.5 requires.
type entryHeap struct {
	items []heapItem
}

type heapItem struct {
	entry Entry
	seq   uint64
}

func (h *entryHeap) Len() int { return len(h.items) }
func (h *entryHeap) Less(i, j int) bool {
	if h.items[i].entry.DeadlineNs != h.items[j].entry.DeadlineNs {
		return h.items[i].entry.DeadlineNs < h.items[j].entry.DeadlineNs
	}
	return h.items[i].seq < h.items[j].seq
}
func (h *entryHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *entryHeap) Push(x interface{}) {
	h.items = append(h.items, x.(heapItem))
}
func (h *entryHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// Scheduler holds the pending-timer heap and the id generator.
type Scheduler struct {
	heap   entryHeap
	nextID uint64
	seq    uint64
}

// New creates an empty Scheduler with reserved heap capacity.
func New(capacityHint int) *Scheduler {
	if capacityHint <= 0 {
		capacityHint = 16
	}
	return &Scheduler{heap: entryHeap{items: make([]heapItem, 0, capacityHint)}}
}

// Schedule places a timer at nowNs+delayNs and returns its generated id.
func (s *Scheduler) Schedule(nowNs, delayNs int64, event string) uint64 {
	return s.ScheduleAt(nowNs+delayNs, event)
}

// ScheduleAt places a timer at the given absolute deadline and returns its
// generated id.
func (s *Scheduler) ScheduleAt(deadlineNs int64, event string) uint64 {
	s.nextID++
	id := s.nextID
	s.seq++
	heap.Push(&s.heap, heapItem{entry: Entry{ID: id, DeadlineNs: deadlineNs, Event: event}, seq: s.seq})
	return id
}

// Cancel removes the timer with the given id. Returns TimerNotFoundError if
// no such timer is pending.
func (s *Scheduler) Cancel(id uint64) error {
	for i, it := range s.heap.items {
		if it.entry.ID == id {
			heap.Remove(&s.heap, i)
			return nil
		}
	}
	return &rtcerrors.TimerNotFoundError{ID: id}
}

// CancelByName removes every pending timer whose Event matches name and
// returns the count removed.
func (s *Scheduler) CancelByName(name string) int {
	removed := 0
	// Repeatedly scan-and-remove rather than filtering in place, since
	// heap.Remove needs to re-establish the heap invariant after each
	// removal and the set of matches is typically small.
	for {
		found := -1
		for i, it := range s.heap.items {
			if it.entry.Event == name {
				found = i
				break
			}
		}
		if found < 0 {
			break
		}
		heap.Remove(&s.heap, found)
		removed++
	}
	return removed
}

// CancelAll removes every pending timer.
func (s *Scheduler) CancelAll() {
	s.heap.items = s.heap.items[:0]
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int { return len(s.heap.items) }

// FireFunc is invoked once per expired timer by Poll.
type FireFunc func(event string, nowNs int64)

// Poll fires every timer with DeadlineNs <= nowNs, removing each as it fires
// (deadline-then-insertion order), and returns the count fired.
func (s *Scheduler) Poll(nowNs int64, fire FireFunc) uint32 {
	var count uint32
	for s.heap.Len() > 0 && s.heap.items[0].entry.DeadlineNs <= nowNs {
		it := heap.Pop(&s.heap).(heapItem)
		fire(it.entry.Event, nowNs)
		count++
	}
	return count
}
