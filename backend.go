package layerloop

import (
	"github.com/joeycumines/go-layerloop/gpu"
)

// EventSink accepts events from a Backend. It is safe for concurrent use.
type EventSink interface {
	Enqueue(event Event)
}

// Backend is the windowing and presentation collaborator of an App.
//
// Open is called once by New, with the sink the backend must deliver its
// events to. PollEvents, SwapBuffers and ShouldClose are called from the
// loop goroutine, once per frame. Close is called once by App.Close.
type Backend interface {
	Open(sink EventSink) error
	PollEvents() error
	SwapBuffers() error
	ShouldClose() bool
	Close() error
}

// DeviceBackend may be implemented by a Backend that owns a GPU context, in
// which case App.Renderer exposes handle caches over its allocators.
type DeviceBackend interface {
	Backend
	Device() gpu.Device
}
