package layerloop

import (
	"container/heap"
	"time"
)

// Appointment is a pending update of one layer.
type Appointment struct {
	// Due is when the layer wants its next update.
	Due time.Time
	// Handle refers to the layer, without keeping it alive.
	Handle Handle
	// Index is the stack position of the layer when the schedule was last
	// rebuilt, and breaks ties between equal due times.
	Index int
	// Seq is the insertion sequence, and breaks any remaining ties.
	Seq uint64
}

func (a Appointment) before(b Appointment) bool {
	if !a.Due.Equal(b.Due) {
		return a.Due.Before(b.Due)
	}
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Seq < b.Seq
}

// appointmentHeap is a min-heap of appointments
type appointmentHeap []Appointment

// Implement heap.Interface for appointmentHeap
func (h appointmentHeap) Len() int           { return len(h) }
func (h appointmentHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h appointmentHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *appointmentHeap) Push(x any) {
	*h = append(*h, x.(Appointment))
}

func (h *appointmentHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = Appointment{}
	*h = old[:n-1]
	return x
}

// Schedule orders layer updates by due time, then stack index. It holds at
// most one appointment per layer. A Schedule is not safe for concurrent use.
type Schedule struct {
	snapshot map[Handle]time.Time
	heap     appointmentHeap
	seq      uint64
	// expired counts appointments dropped because their layer was removed.
	expired uint64
}

// Len returns the number of pending appointments, including expired ones
// that have not been discovered yet.
func (s *Schedule) Len() int {
	return len(s.heap)
}

// Peek returns the earliest appointment without removing it.
func (s *Schedule) Peek() (Appointment, bool) {
	if len(s.heap) == 0 {
		return Appointment{}, false
	}
	return s.heap[0], true
}

// Expired returns the total number of appointments discarded because their
// layer was no longer in the stack.
func (s *Schedule) Expired() uint64 {
	return s.expired
}

// Rebuild replaces the membership of the schedule with exactly one
// appointment per handle in order, which must be the current stack order.
// Layers that were already scheduled keep their due time, and new layers are
// due at now. The position within order becomes each appointment's Index.
//
// Rebuild panics with an *InvariantError if the schedule holds two
// appointments for the same layer.
func (s *Schedule) Rebuild(order []Handle, now time.Time) {
	if s.snapshot == nil {
		s.snapshot = make(map[Handle]time.Time, len(s.heap))
	}
	for _, a := range s.heap {
		if _, ok := s.snapshot[a.Handle]; ok {
			clear(s.snapshot)
			panic(invariantf("layer %s was found twice in the update schedule", a.Handle))
		}
		s.snapshot[a.Handle] = a.Due
	}

	s.heap = s.heap[:0]
	var reused int
	for i, h := range order {
		due, ok := s.snapshot[h]
		if ok {
			reused++
		} else {
			due = now
		}
		s.heap = append(s.heap, Appointment{Due: due, Handle: h, Index: i, Seq: s.nextSeq()})
	}
	s.expired += uint64(len(s.snapshot) - reused)
	clear(s.snapshot)
	heap.Init(&s.heap)
}

// PopDue removes and returns the earliest appointment of a live layer, if it
// is due at or before deadline. Nothing is returned once now is past the
// deadline, so an overrunning frame cannot run catch-up updates beyond the
// render boundary. Appointments for which alive returns false are discarded.
func (s *Schedule) PopDue(deadline, now time.Time, alive func(Handle) bool) (Appointment, bool) {
	for len(s.heap) != 0 {
		next := s.heap[0]
		if next.Due.After(deadline) || now.After(deadline) {
			break
		}
		heap.Pop(&s.heap)
		if alive != nil && !alive(next.Handle) {
			s.expired++
			continue
		}
		return next, true
	}
	return Appointment{}, false
}

// Reinsert schedules the next update of the layer of a, popped by PopDue,
// at max(now, a.Due+delay), and returns the new appointment.
func (s *Schedule) Reinsert(a Appointment, delay time.Duration, now time.Time) Appointment {
	due := a.Due.Add(clampDelay(delay))
	if due.Before(now) {
		due = now
	}
	next := Appointment{Due: due, Handle: a.Handle, Index: a.Index, Seq: s.nextSeq()}
	heap.Push(&s.heap, next)
	return next
}

// restore puts back an appointment popped by PopDue, that was not run.
func (s *Schedule) restore(a Appointment) {
	heap.Push(&s.heap, a)
}

// Reset discards all appointments.
func (s *Schedule) Reset() {
	clear(s.heap)
	s.heap = s.heap[:0]
}

func (s *Schedule) nextSeq() uint64 {
	s.seq++
	return s.seq
}
