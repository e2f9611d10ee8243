package layerloop

import (
	"sync"
)

// EventQueue is a double buffered event queue. Events are enqueued into the
// incoming buffer, from any goroutine, and the loop swaps that buffer out
// once per frame, so events enqueued while dispatching are delivered in the
// next frame.
type EventQueue struct {
	incoming []Event
	dispatch []Event
	mu       sync.Mutex
}

// Enqueue appends event to the incoming buffer.
func (q *EventQueue) Enqueue(event Event) {
	q.mu.Lock()
	q.incoming = append(q.incoming, event)
	q.mu.Unlock()
}

// Len returns the number of events waiting for the next dispatch.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.incoming)
}

// Dispatch swaps the buffers, and calls fn for each event that was incoming,
// in enqueue order. It returns the number of events dispatched. Dispatch
// must not be called concurrently with itself.
func (q *EventQueue) Dispatch(fn func(event Event)) int {
	q.mu.Lock()
	batch := q.incoming
	q.incoming = q.dispatch[:0]
	q.dispatch = nil
	q.mu.Unlock()

	for _, event := range batch {
		fn(event)
	}

	clear(batch)
	q.dispatch = batch[:0]

	return len(batch)
}
