package sched

import "testing"

func TestTimerStore_ScheduleAssignsSequentialIDs(t *testing.T) {
	ts := newTimerStore()
	var g seqGen
	for want := uint64(1); want <= 3; want++ {
		if id := ts.schedule(0, 10, g.next()); id != want {
			t.Fatalf("id = %d, want %d", id, want)
		}
	}
}

func TestTimerStore_PromoteDueOrder(t *testing.T) {
	ts := newTimerStore()
	var g seqGen

	// Scheduled out of deadline order; promotion must sort by deadline
	// with scheduling order breaking ties.
	late := ts.schedule(0, 300, g.next())
	earlyA := ts.schedule(0, 100, g.next())
	earlyB := ts.schedule(0, 100, g.next())

	due := ts.promoteDue(200)
	if len(due) != 2 || due[0] != earlyA || due[1] != earlyB {
		t.Fatalf("promoteDue(200) = %v, want [%d %d]", due, earlyA, earlyB)
	}

	due = ts.promoteDue(400)
	if len(due) != 1 || due[0] != late {
		t.Fatalf("promoteDue(400) = %v, want [%d]", due, late)
	}
	if got := ts.promoteDue(1000); len(got) != 0 {
		t.Fatalf("promoteDue on empty store = %v", got)
	}
}

func TestTimerStore_CancelConsumedAtPromotion(t *testing.T) {
	ts := newTimerStore()
	var g seqGen

	id := ts.schedule(0, 100, g.next())
	keep := ts.schedule(0, 100, g.next())
	ts.cancel(id)

	due := ts.promoteDue(150)
	if len(due) != 1 || due[0] != keep {
		t.Fatalf("promoteDue = %v, want [%d]", due, keep)
	}
	// The cancellation entry was consumed, so cancelling the same id again
	// reads as fresh.
	if !ts.cancel(id) {
		t.Fatal("cancel after consumption returned false")
	}
}

func TestTimerStore_DeadlineSaturatesOnOverflow(t *testing.T) {
	ts := newTimerStore()
	var g seqGen

	ts.schedule(^uint64(0)-5, 100, g.next())
	deadline, ok := ts.nextDeadline()
	if !ok || deadline != ^uint64(0) {
		t.Fatalf("deadline = %d ok=%v, want max uint64", deadline, ok)
	}
}

func TestTimerStore_NextDeadlineSkipsCancelled(t *testing.T) {
	ts := newTimerStore()
	var g seqGen

	a := ts.schedule(0, 50, g.next())
	ts.schedule(0, 200, g.next())
	ts.cancel(a)

	deadline, ok := ts.nextDeadline()
	if !ok || deadline != 200 {
		t.Fatalf("nextDeadline = %d ok=%v, want 200 true", deadline, ok)
	}
	if n := ts.pending(); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}

	ts.cancel(2)
	if _, ok := ts.nextDeadline(); ok {
		t.Fatal("nextDeadline found a timer after all were cancelled")
	}
}
