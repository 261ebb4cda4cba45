package sched

// taskQueue holds ready-to-run macrotasks in Seq order. Because every Seq
// is assigned by the single monotonic generator at push time, insertion
// order and Seq order coincide, so a plain FIFO ring is sufficient.
type taskQueue struct {
	buf  []Macrotask
	head int
}

// push appends a macrotask. The caller stamps Seq before pushing.
func (q *taskQueue) push(t Macrotask) {
	q.buf = append(q.buf, t)
}

// pop removes and returns the lowest-Seq macrotask, or nil when empty.
func (q *taskQueue) pop() *Macrotask {
	if q.head >= len(q.buf) {
		return nil
	}
	t := q.buf[q.head]
	q.buf[q.head] = Macrotask{} // allow payload GC
	q.head++

	// Reclaim the consumed prefix once it dominates the backing slice.
	if q.head > 32 && q.head*2 >= len(q.buf) {
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		q.head = 0
	}
	return &t
}

func (q *taskQueue) len() int {
	return len(q.buf) - q.head
}

func (q *taskQueue) empty() bool {
	return q.len() == 0
}
