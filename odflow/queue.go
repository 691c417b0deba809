package odflow

// Queue is an ordered list of odflows: a hash bucket's FIFO chain, an
// odflow's protocol sub_queue, the HHH result queue (response.odfq), or a
// two-stage carry-over queue. Ownership is exclusive: an Odflow belongs to
// exactly one Queue (or hash bucket) at a time.
type Queue struct {
	items []*Odflow
}

// Len returns the number of odflows in the queue.
func (q *Queue) Len() int {
	return len(q.items)
}

// PushHead inserts o at the front of the queue.
func (q *Queue) PushHead(o *Odflow) {
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items[:len(q.items)-1])
	q.items[0] = o
}

// PushTail inserts o at the back of the queue.
func (q *Queue) PushTail(o *Odflow) {
	q.items = append(q.items, o)
}

// PopHead removes and returns the front odflow, or nil if empty.
func (q *Queue) PopHead() *Odflow {
	if len(q.items) == 0 {
		return nil
	}
	o := q.items[0]
	q.items = q.items[1:]
	return o
}

// First returns the front odflow without removing it, or nil if empty.
func (q *Queue) First() *Odflow {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Last returns the back odflow without removing it, or nil if empty.
func (q *Queue) Last() *Odflow {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[len(q.items)-1]
}

// RemoveLast removes and returns the back odflow, or nil if empty.
func (q *Queue) RemoveLast() *Odflow {
	if len(q.items) == 0 {
		return nil
	}
	o := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return o
}

// Remove deletes o from the queue, wherever it sits, by identity.
// No-op if o is not present.
func (q *Queue) Remove(o *Odflow) {
	for i, e := range q.items {
		if e == o {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// InsertAfter inserts o immediately after pivot. If pivot is nil, inserts
// at the head.
func (q *Queue) InsertAfter(pivot, o *Odflow) {
	if pivot == nil {
		q.PushHead(o)
		return
	}
	for i, e := range q.items {
		if e == pivot {
			q.items = append(q.items, nil)
			copy(q.items[i+2:], q.items[i+1:])
			q.items[i+1] = o
			return
		}
	}
	// pivot not found: fall back to tail
	q.PushTail(o)
}

// Each calls fn for every odflow in FIFO order. fn must not mutate the
// queue.
func (q *Queue) Each(fn func(*Odflow)) {
	for _, o := range q.items {
		fn(o)
	}
}

// Slice returns the queue's contents as a plain slice (owned by the
// queue; callers must not mutate it in place beyond element replacement
// intended to drain the queue).
func (q *Queue) Slice() []*Odflow {
	return q.items
}

// Reset drains the queue, dropping all references.
func (q *Queue) Reset() {
	q.items = nil
}

// MoveAll moves every odflow from src to the tail of dst, draining src.
// Returns the number of odflows moved. Mirrors odfq_moveall.
func MoveAll(dst, src *Queue) int {
	n := len(src.items)
	dst.items = append(dst.items, src.items...)
	src.items = nil
	return n
}
