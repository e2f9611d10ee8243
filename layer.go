package layerloop

import (
	"time"
)

// Event is an opaque event payload, as produced by a Backend. See the input
// package for the payloads produced by the bundled backends.
type Event = any

// Never may be returned from Layer.OnUpdate to request no further updates
// until the layer is rescheduled by a structural mutation.
const Never time.Duration = 1<<63 - 1

// maxDelay bounds reported delays so due times cannot overflow.
const maxDelay = 100 * 365 * 24 * time.Hour

// Layer is a component driven by the App. All methods are called on the
// loop goroutine, one at a time, and any of them may fail (or panic)
// without affecting other layers.
//
// Implementations must be comparable, and are typically pointers.
type Layer interface {
	// OnEvent receives one event. Events enqueued while handling it are
	// delivered in the next frame.
	OnEvent(app *App, event Event) error

	// OnUpdate advances the layer, returning the delay until it next wants
	// to be updated. A non-positive delay means as soon as possible.
	OnUpdate(app *App) (time.Duration, error)

	// OnRender draws the layer.
	OnRender(app *App) error
}

// Releaser may be implemented by a Layer that holds resources. Release is
// called exactly once, on the loop goroutine, when the mutation removing the
// layer is applied, or when the App is closed.
type Releaser interface {
	Release(app *App)
}

// Factory constructs a layer when a push mutation is applied.
type Factory func(app *App) (Layer, error)

// Base implements Layer with no-ops, and may be embedded to implement only
// the relevant callbacks.
type Base struct{}

var _ Layer = (*Base)(nil)

func (*Base) OnEvent(*App, Event) error { return nil }

func (*Base) OnUpdate(*App) (time.Duration, error) { return Never, nil }

func (*Base) OnRender(*App) error { return nil }

// LayerFunc adapts plain functions to a Layer. Nil fields behave as Base.
type LayerFunc struct {
	Event  func(app *App, event Event) error
	Update func(app *App) (time.Duration, error)
	Render func(app *App) error
}

var _ Layer = (*LayerFunc)(nil)

func (x *LayerFunc) OnEvent(app *App, event Event) error {
	if x.Event == nil {
		return nil
	}
	return x.Event(app, event)
}

func (x *LayerFunc) OnUpdate(app *App) (time.Duration, error) {
	if x.Update == nil {
		return Never, nil
	}
	return x.Update(app)
}

func (x *LayerFunc) OnRender(app *App) error {
	if x.Render == nil {
		return nil
	}
	return x.Render(app)
}

func clampDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}
