// Package headless implements a layerloop.Backend without a window, for
// tests, benchmarks and server side simulation. Events are injected via a
// channel, and a close is requested on an input.WindowCloseEvent, when the
// event channel is closed, or after a configured number of frames.
package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/joeycumines/go-layerloop"
	"github.com/joeycumines/go-layerloop/gpu"
	"github.com/joeycumines/go-layerloop/input"
	"github.com/joeycumines/go-longpoll"
	"github.com/joeycumines/logiface"
)

var (
	ErrNotOpen     = errors.New("headless: backend not open")
	ErrAlreadyOpen = errors.New("headless: backend already open")
)

// drains whatever is buffered, without blocking
var pollConfig = longpoll.ChannelConfig{
	MaxSize:        -1,
	MinSize:        -1,
	PartialTimeout: -1,
}

// Backend is an in-memory layerloop.DeviceBackend.
type Backend struct {
	events    chan layerloop.Event
	sink      layerloop.EventSink
	device    *gpu.CountingDevice
	logger    *logiface.Logger[logiface.Event]
	frames    atomic.Int64
	maxFrames int64
	closing   atomic.Bool
	inputDone atomic.Bool
	state     atomic.Int32
}

const (
	stateNew int32 = iota
	stateOpen
	stateClosed
)

var _ layerloop.DeviceBackend = (*Backend)(nil)

// New returns a Backend that has not been opened.
func New(opts ...Option) (*Backend, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Backend{
		events:    make(chan layerloop.Event, cfg.eventBuffer),
		device:    new(gpu.CountingDevice),
		logger:    cfg.logger,
		maxFrames: int64(cfg.maxFrames),
	}, nil
}

// Send injects an event, blocking until it is buffered or ctx is done.
// It is safe to call from any goroutine, and must not be called after
// CloseInput.
func (b *Backend) Send(ctx context.Context, event layerloop.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.events <- event:
		return nil
	}
}

// CloseInput closes the event channel. Buffered events are still delivered,
// after which a close is requested.
func (b *Backend) CloseInput() {
	if b.inputDone.CompareAndSwap(false, true) {
		close(b.events)
	}
}

// RequestClose causes ShouldClose to report true. Safe to call from any
// goroutine.
func (b *Backend) RequestClose() {
	b.closing.Store(true)
}

// Frames returns the number of buffers swapped.
func (b *Backend) Frames() int64 {
	return b.frames.Load()
}

// CountingDevice returns the device, for inspection.
func (b *Backend) CountingDevice() *gpu.CountingDevice {
	return b.device
}

func (b *Backend) Device() gpu.Device {
	return b.device
}

func (b *Backend) Open(sink layerloop.EventSink) error {
	if sink == nil {
		return errors.New("headless: nil event sink")
	}
	if !b.state.CompareAndSwap(stateNew, stateOpen) {
		return ErrAlreadyOpen
	}
	b.sink = sink
	b.logger.Debug().
		Int(`event_buffer`, cap(b.events)).
		Int64(`max_frames`, b.maxFrames).
		Log(`headless backend opened`)
	return nil
}

// PollEvents delivers every buffered event to the sink.
func (b *Backend) PollEvents() error {
	if b.state.Load() != stateOpen {
		return ErrNotOpen
	}
	err := longpoll.Channel(context.Background(), &pollConfig, b.events, b.deliver)
	if err == io.EOF {
		if !b.closing.Swap(true) {
			b.logger.Debug().Log(`headless input closed`)
		}
		return nil
	}
	return err
}

func (b *Backend) deliver(event layerloop.Event) error {
	switch event := event.(type) {
	case input.WindowCloseEvent:
		b.closing.Store(true)
	case input.ErrorEvent:
		b.logger.Warning().
			Int(`code`, event.Code).
			Str(`description`, event.Description).
			Log(`backend error event`)
	}
	b.sink.Enqueue(event)
	return nil
}

func (b *Backend) SwapBuffers() error {
	if b.state.Load() != stateOpen {
		return ErrNotOpen
	}
	if n := b.frames.Add(1); b.maxFrames > 0 && n >= b.maxFrames {
		b.closing.Store(true)
	}
	return nil
}

func (b *Backend) ShouldClose() bool {
	return b.closing.Load()
}

// Close fails if any GPU handles are still live, which indicates a layer or
// cache leaked them.
func (b *Backend) Close() error {
	if !b.state.CompareAndSwap(stateOpen, stateClosed) {
		return ErrNotOpen
	}
	b.logger.Debug().
		Int64(`frames`, b.frames.Load()).
		Log(`headless backend closed`)
	if live := b.device.Live(); live != 0 {
		return fmt.Errorf("headless: %d gpu handles leaked", live)
	}
	return nil
}
