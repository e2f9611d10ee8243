package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-layerloop"
	"github.com/joeycumines/go-layerloop/input"
	"github.com/joeycumines/go-layerloop/internal/config"
)

var errInjected = errors.New("injected failure")

// ticker is a periodic layer, standing in for a simulation. It holds a GPU
// buffer for its lifetime, acquired at construction.
type ticker struct {
	name      string
	period    time.Duration
	failEvery int
	buffer    uint32
	ticks     int
	rendered  int
	paused    bool
}

var (
	_ layerloop.Layer    = (*ticker)(nil)
	_ layerloop.Releaser = (*ticker)(nil)
)

func newTicker(app *layerloop.App, cfg config.LayerConfig) (layerloop.Layer, error) {
	x := &ticker{
		name:      cfg.Name,
		period:    time.Duration(cfg.Period),
		failEvery: cfg.FailEvery,
	}
	if r := app.Renderer(); r != nil {
		buffer, err := r.Buffers.Activate()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", x.name, err)
		}
		x.buffer = buffer
	}
	app.Logger().Debug().
		Str(`layer`, x.name).
		Dur(`period`, x.period).
		Int64(`buffer`, int64(x.buffer)).
		Log(`layer constructed`)
	return x, nil
}

func (x *ticker) OnEvent(_ *layerloop.App, event layerloop.Event) error {
	if key, ok := event.(input.KeyEvent); ok && key.Key == input.KeySpace && key.Action == input.Press {
		x.paused = !x.paused
	}
	return nil
}

func (x *ticker) OnUpdate(*layerloop.App) (time.Duration, error) {
	if x.paused {
		return x.period, nil
	}
	x.ticks++
	if x.failEvery > 0 && x.ticks%x.failEvery == 0 {
		return 0, fmt.Errorf("%s tick %d: %w", x.name, x.ticks, errInjected)
	}
	return x.period, nil
}

func (x *ticker) OnRender(*layerloop.App) error {
	x.rendered++
	return nil
}

func (x *ticker) Release(app *layerloop.App) {
	if x.buffer == 0 {
		return
	}
	if err := app.Renderer().Buffers.Deactivate(x.buffer); err != nil {
		app.Logger().Err().
			Str(`layer`, x.name).
			Err(err).
			Log(`failed to release buffer`)
	}
	x.buffer = 0
}
