package layerloop

import (
	"sync"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_DispatchOrderAndReuse(t *testing.T) {
	var q EventQueue
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	assert.Equal(t, 3, q.Len())

	var got []Event
	n := q.Dispatch(func(event Event) { got = append(got, event) })
	assert.Equal(t, 3, n)
	assert.Equal(t, []Event{1, 2, 3}, got)
	assert.Equal(t, 0, q.Len())

	// the dispatched buffer becomes the next incoming buffer
	capacity := cap(q.dispatch)
	require.GreaterOrEqual(t, capacity, 3)
	q.Enqueue(4)
	assert.Equal(t, 1, q.Dispatch(func(Event) {}))
	assert.Equal(t, capacity, cap(q.incoming))
	assert.Equal(t, 0, len(q.incoming))

	assert.Equal(t, 0, func() int {
		var empty EventQueue
		return empty.Dispatch(func(Event) { t.Fatal("unexpected event") })
	}())
}

func TestEventQueue_EventsEnqueuedDuringDispatchWaitForNextDispatch(t *testing.T) {
	var q EventQueue
	q.Enqueue("a")

	var got []Event
	n := q.Dispatch(func(event Event) {
		got = append(got, event)
		q.Enqueue(event.(string) + "'")
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, []Event{"a"}, got)

	got = nil
	q.Dispatch(func(event Event) { got = append(got, event) })
	assert.Equal(t, []Event{"a'"}, got)
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	var q EventQueue
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q.Enqueue(i*100 + j)
			}
		}()
	}
	wg.Wait()

	seen := make(map[Event]bool)
	assert.Equal(t, 800, q.Dispatch(func(event Event) { seen[event] = true }))
	assert.Len(t, seen, 800)
}

func TestApp_DispatchIsolation(t *testing.T) {
	rec := new(recorder)
	logs := new(logCapture)
	app := newTestApp(t, nil, nil, WithLogger(logs.logger()))

	a := newTestLayer(rec, "a", Never)
	b := newTestLayer(rec, "b", Never)
	c := newTestLayer(rec, "c", Never)
	a.onEvent = func(app *App, event Event) error {
		if event == "x" {
			app.Enqueue("y")
		}
		return nil
	}
	b.onEvent = func(_ *App, event Event) error {
		switch event {
		case "x":
			return errBoom
		case "z":
			panic("b panicked")
		}
		return nil
	}
	for _, l := range []*testLayer{a, b, c} {
		app.Stack().PushLayer(l, -1)
	}
	app.Enqueue("x")
	app.Enqueue("z")

	step(t, app)

	assert.Equal(t, []Event{"x", "z"}, a.events, "y must not be delivered in the same pass")
	assert.Equal(t, []Event{"x", "z"}, c.events, "failures must not stop delivery")

	stats := app.Stats()
	assert.Equal(t, uint64(2), stats.Events)
	assert.Equal(t, uint64(2), stats.EventErrors)

	failures := logs.find("layer callback failed")
	require.Len(t, failures, 2)
	assert.Equal(t, "event", failures[0].fields["phase"])
	assert.ErrorIs(t, failures[0].fields["err"].(error), errBoom)
	assert.Equal(t, logiface.LevelError, failures[0].level)
	assert.Contains(t, failures[1].fields["err"].(error).Error(), "b panicked")

	step(t, app)
	assert.Equal(t, []Event{"x", "z", "y"}, a.events)
	assert.Equal(t, []Event{"x", "z", "y"}, b.events)
	assert.Equal(t, uint64(3), app.Stats().Events)
}
