package layerloop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-layerloop/gpu"
	"github.com/joeycumines/logiface"
	"github.com/petermattis/goid"
)

// App drives a LayerStack against a Backend, one frame at a time. Each frame
// runs four phases, in order:
//
//  1. mutate: apply queued structural mutations, then rebuild the schedule
//  2. events: poll the backend, then dispatch the events collected since
//     the previous frame to every layer, in stack order
//  3. updates: run the layer updates that are due before the render
//     deadline, sleeping until each is due
//  4. render: sleep until the render deadline, render every layer in stack
//     order, then swap buffers
//
// An App is driven by a single goroutine at a time, via Run or Step. Layer
// callbacks are always called from that goroutine.
type App struct {
	backend    Backend
	clock      Clock
	logger     *logiface.Logger[logiface.Event]
	errLimiter *catrate.Limiter
	stack      *LayerStack
	renderer   *gpu.Renderer
	stats      *statsRecorder
	deadline   time.Time
	events     EventQueue
	schedule   Schedule
	// period is the target render period, in nanoseconds
	period atomic.Int64
	// loopGoroutineID is the id of the goroutine driving the loop, or 0
	loopGoroutineID atomic.Int64
	closed          atomic.Bool
}

var _ EventSink = (*App)(nil)

// New opens backend and returns an App with an empty stack.
func New(backend Backend, opts ...Option) (*App, error) {
	if backend == nil {
		return nil, errors.New("layerloop: nil backend")
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter, err := newErrorLimiter(cfg.errorLogRates)
	if err != nil {
		return nil, err
	}

	a := &App{
		backend:    backend,
		clock:      cfg.clock,
		logger:     cfg.logger,
		errLimiter: limiter,
		stats:      newStatsRecorder(),
	}
	a.stack = newLayerStack(a)
	a.period.Store(int64(cfg.period))

	if err := backend.Open(a); err != nil {
		return nil, fmt.Errorf("layerloop: open backend: %w", err)
	}

	device := cfg.device
	if device == nil {
		if b, ok := backend.(DeviceBackend); ok {
			device = b.Device()
		}
	}
	if device != nil {
		a.renderer = gpu.NewRenderer(device)
	}

	a.deadline = a.clock.Now()

	a.logger.Debug().
		Dur(`target_period`, cfg.period).
		Bool(`renderer`, a.renderer != nil).
		Log(`app opened`)

	return a, nil
}

// Stack returns the layer stack.
func (a *App) Stack() *LayerStack {
	return a.stack
}

// Renderer returns the GPU handle caches, or nil if the backend provides no
// device.
func (a *App) Renderer() *gpu.Renderer {
	return a.renderer
}

// Logger returns the logger of the App, which may be nil.
func (a *App) Logger() *logiface.Logger[logiface.Event] {
	return a.logger
}

// Now returns the current time, per the clock of the App.
func (a *App) Now() time.Time {
	return a.clock.Now()
}

// Deadline returns the render deadline of the current (or last) frame.
// Only valid on the loop goroutine.
func (a *App) Deadline() time.Time {
	return a.deadline
}

// Enqueue adds an event to be dispatched in the next frame. It is safe to
// call from any goroutine, including from layer callbacks.
func (a *App) Enqueue(event Event) {
	a.events.Enqueue(event)
}

// TargetRenderPeriod returns the target duration of each frame.
func (a *App) TargetRenderPeriod() time.Duration {
	return time.Duration(a.period.Load())
}

// SetTargetRenderPeriod changes the target duration of each frame, taking
// effect when the next render deadline is computed. Safe to call from any
// goroutine.
func (a *App) SetTargetRenderPeriod(period time.Duration) error {
	if period <= 0 {
		return errors.New("layerloop: target render period must be positive")
	}
	a.period.Store(int64(period))
	return nil
}

// TargetRenderRate returns the target frames per second.
func (a *App) TargetRenderRate() float64 {
	return float64(time.Second) / float64(a.TargetRenderPeriod())
}

// SetTargetRenderRate sets the target frames per second.
func (a *App) SetTargetRenderRate(hz float64) error {
	period, err := rateToPeriod(hz)
	if err != nil {
		return err
	}
	a.period.Store(int64(period))
	return nil
}

// TargetRenderPeriodSeconds returns TargetRenderPeriod in seconds.
func (a *App) TargetRenderPeriodSeconds() float64 {
	return a.TargetRenderPeriod().Seconds()
}

// SetTargetRenderPeriodSeconds sets the target render period in seconds.
func (a *App) SetTargetRenderPeriodSeconds(seconds float64) error {
	if !(seconds > 0) || seconds > math.MaxInt64/float64(time.Second) {
		return fmt.Errorf("layerloop: invalid target render period: %vs", seconds)
	}
	return a.SetTargetRenderPeriod(max(time.Duration(seconds*float64(time.Second)), 1))
}

// Stats returns a snapshot of the runtime statistics. Safe to call from any
// goroutine.
func (a *App) Stats() Stats {
	s := a.stats.snapshot()
	s.TargetPeriod = a.TargetRenderPeriod()
	return s
}

// Run runs frames until the backend requests close (returning nil), ctx is
// done (returning its error), or the backend fails.
//
// Run returns ErrReentrantRun if called from a layer callback, ErrRunning if
// another goroutine is driving the App, and ErrClosed after Close.
func (a *App) Run(ctx context.Context) error {
	if err := a.acquire(); err != nil {
		return err
	}
	defer a.loopGoroutineID.Store(0)

	a.logger.Info().
		Int(`layers`, a.stack.Len()).
		Int(`pending`, a.stack.Pending()).
		Log(`loop started`)

	for {
		if err := ctx.Err(); err != nil {
			a.logger.Debug().Err(err).Log(`loop cancelled`)
			return err
		}
		ok, err := a.frame(ctx)
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Info().
				Uint64(`frames`, a.stats.snapshot().Frames).
				Log(`loop stopped: close requested`)
			return nil
		}
	}
}

// Step runs exactly one frame, for use by an externally driven main loop.
// It returns false if the backend requested close, in which case no frame
// was run.
func (a *App) Step(ctx context.Context) (bool, error) {
	if err := a.acquire(); err != nil {
		return false, err
	}
	defer a.loopGoroutineID.Store(0)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return a.frame(ctx)
}

// Close releases every layer, in stack order, then the renderer and the
// backend. Queued mutations are discarded. Close returns ErrRunning (or
// ErrReentrantRun from a layer callback) while the loop is being driven,
// and nil if already closed.
func (a *App) Close() error {
	if err := a.acquire(); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	defer a.loopGoroutineID.Store(0)
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error

	s := a.stack
	s.mu.Lock()
	clear(s.pending)
	s.pending = nil
	s.mu.Unlock()

	for _, h := range s.order {
		layer, ok := s.arena.remove(h)
		if !ok {
			continue
		}
		delete(s.byLayer, layer)
		if err := callSafe(func() error { s.release(layer); return nil }); err != nil {
			a.logger.Err().
				Str(`layer`, h.String()).
				Err(err).
				Log(`layer release failed`)
			errs = append(errs, err)
		}
	}
	s.order = nil
	a.schedule.Reset()

	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("layerloop: close backend: %w", err))
	}

	a.logger.Debug().Log(`app closed`)

	return errors.Join(errs...)
}

func (a *App) acquire() error {
	if a.closed.Load() {
		return ErrClosed
	}
	id := goid.Get()
	if a.loopGoroutineID.CompareAndSwap(0, id) {
		if a.closed.Load() {
			a.loopGoroutineID.Store(0)
			return ErrClosed
		}
		return nil
	}
	if a.loopGoroutineID.Load() == id {
		return ErrReentrantRun
	}
	return ErrRunning
}

// frame runs one iteration of the loop, returning false if the backend
// requested close.
func (a *App) frame(ctx context.Context) (bool, error) {
	if a.backend.ShouldClose() {
		return false, nil
	}

	start := a.clock.Now()

	a.mutate()

	if err := a.backend.PollEvents(); err != nil {
		return false, fmt.Errorf("layerloop: poll events: %w", err)
	}
	a.dispatch()

	// never regresses, so a slow frame does not push back later frames
	deadline := a.clock.Now()
	if deadline.Before(a.deadline) {
		deadline = a.deadline
	}
	deadline = deadline.Add(a.TargetRenderPeriod())
	a.deadline = deadline

	if err := a.runUpdates(ctx, deadline); err != nil {
		return false, err
	}

	overrun := a.clock.Now().After(deadline)
	a.clock.SleepUntil(ctx, deadline)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a.render()
	if err := a.backend.SwapBuffers(); err != nil {
		return false, fmt.Errorf("layerloop: swap buffers: %w", err)
	}

	a.stats.recordFrame(a.clock.Now().Sub(start), overrun)
	a.stats.update(func(s *Stats) {
		s.Expired = a.schedule.Expired()
		s.Layers = a.stack.Len()
		s.Appointments = a.schedule.Len()
	})

	return true, nil
}

func (a *App) mutate() {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(*InvariantError); ok {
				a.logCritical(err, `invariant violated`)
			}
			panic(r)
		}
	}()

	applied, failure := a.stack.apply()
	if !applied {
		return
	}
	if failure != nil {
		a.logMutationError(failure)
	}
	a.stats.update(func(s *Stats) {
		s.MutationBatches++
		if failure != nil {
			s.MutationErrors++
		}
	})

	a.schedule.Rebuild(a.stack.order, a.clock.Now())
}

func (a *App) dispatch() {
	n := a.events.Dispatch(func(event Event) {
		for _, h := range a.stack.order {
			layer, ok := a.stack.arena.get(h)
			if !ok {
				continue
			}
			if err := callSafe(func() error { return layer.OnEvent(a, event) }); err != nil {
				a.callbackFailed(PhaseEvent, h, layer, err)
			}
		}
	})
	if n != 0 {
		a.stats.update(func(s *Stats) { s.Events += uint64(n) })
	}
}

func (a *App) runUpdates(ctx context.Context, deadline time.Time) error {
	for {
		appointment, ok := a.schedule.PopDue(deadline, a.clock.Now(), a.stack.alive)
		if !ok {
			return nil
		}

		a.clock.SleepUntil(ctx, appointment.Due)
		if err := ctx.Err(); err != nil {
			a.schedule.restore(appointment)
			return err
		}

		layer, _ := a.stack.arena.get(appointment.Handle)
		started := a.clock.Now()
		var delay time.Duration
		err := callSafe(func() (err error) {
			delay, err = layer.OnUpdate(a)
			return err
		})
		now := a.clock.Now()
		a.stats.recordUpdate(now.Sub(started), err != nil)
		if err != nil {
			// rescheduled as due now, by the next rebuild
			a.callbackFailed(PhaseUpdate, appointment.Handle, layer, err)
			continue
		}

		a.schedule.Reinsert(appointment, delay, now)
	}
}

func (a *App) render() {
	for _, h := range a.stack.order {
		layer, ok := a.stack.arena.get(h)
		if !ok {
			continue
		}
		if err := callSafe(func() error { return layer.OnRender(a) }); err != nil {
			a.callbackFailed(PhaseRender, h, layer, err)
		}
	}
}

func (a *App) callbackFailed(phase Phase, h Handle, layer Layer, err error) {
	switch phase {
	case PhaseEvent:
		a.stats.update(func(s *Stats) { s.EventErrors++ })
	case PhaseRender:
		a.stats.update(func(s *Stats) { s.RenderErrors++ })
	}
	a.logCallbackError(&CallbackError{Err: err, Handle: h, Phase: phase}, layer)
}
