package sched

// Seq is the position of a scheduled entity in the host's total order.
// It is the sole ordering key for macrotasks and the tie-breaker for
// timers sharing a deadline.
type Seq uint64

// seqGen hands out strictly increasing Seq values. Not safe for
// concurrent use; the owning Scheduler is single-threaded.
type seqGen struct {
	last Seq
}

// next returns a Seq strictly greater than every previously returned value.
func (g *seqGen) next() Seq {
	g.last++
	return g.last
}
