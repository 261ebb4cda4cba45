package sched

import "container/heap"

// timerEntry is one pending timer in the deadline heap.
type timerEntry struct {
	id       uint64
	deadline uint64
	tieBreak Seq // orders timers sharing a deadline by scheduling order
}

// timerHeap is a min-heap ordered by (deadline, tieBreak).
type timerHeap []timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].tieBreak < h[j].tieBreak
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timerEntry))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// timerStore holds not-yet-promoted timers plus the lazy-cancellation set.
// Cancelled timers stay in the heap and are discarded when they surface
// during promotion.
type timerStore struct {
	heap      timerHeap
	cancelled map[uint64]struct{}
	nextID    uint64
}

func newTimerStore() *timerStore {
	return &timerStore{cancelled: make(map[uint64]struct{})}
}

// schedule inserts a timer due at now+delay and returns its id. Timer ids
// start at 1 and are never reused. The deadline saturates on overflow.
func (s *timerStore) schedule(now, delay uint64, tieBreak Seq) uint64 {
	deadline := now + delay
	if deadline < now { // overflow
		deadline = ^uint64(0)
	}
	s.nextID++
	heap.Push(&s.heap, timerEntry{id: s.nextID, deadline: deadline, tieBreak: tieBreak})
	return s.nextID
}

// cancel marks a timer id for lazy removal. Returns true the first time an
// id is cancelled, false when it was already in the set. Ids unknown to the
// store also return true: the set cannot tell "never existed" apart from
// "exists, not yet cancelled", and callers depend on that observable
// behavior staying put.
func (s *timerStore) cancel(id uint64) bool {
	if _, ok := s.cancelled[id]; ok {
		return false
	}
	s.cancelled[id] = struct{}{}
	return true
}

// promoteDue pops every timer whose deadline is <= now, in
// (deadline, tieBreak) order. Cancelled ids are consumed from the
// cancellation set and dropped; the rest are returned for macrotask
// creation.
func (s *timerStore) promoteDue(now uint64) []uint64 {
	var due []uint64
	for len(s.heap) > 0 && s.heap[0].deadline <= now {
		e := heap.Pop(&s.heap).(timerEntry)
		if _, ok := s.cancelled[e.id]; ok {
			delete(s.cancelled, e.id)
			continue
		}
		due = append(due, e.id)
	}
	return due
}

// nextDeadline returns the earliest deadline among non-cancelled timers.
// Cancelled entries are skipped even though they are still physically in
// the heap, so the scan is linear rather than a root peek.
func (s *timerStore) nextDeadline() (uint64, bool) {
	found := false
	var min uint64
	for _, e := range s.heap {
		if _, ok := s.cancelled[e.id]; ok {
			continue
		}
		if !found || e.deadline < min {
			min = e.deadline
			found = true
		}
	}
	return min, found
}

// pending counts non-cancelled timers still awaiting promotion.
func (s *timerStore) pending() int {
	n := 0
	for _, e := range s.heap {
		if _, ok := s.cancelled[e.id]; !ok {
			n++
		}
	}
	return n
}
