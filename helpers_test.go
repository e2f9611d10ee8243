package layerloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock is a simulated clock. Sleeping advances it instantly.
type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) SleepUntil(ctx context.Context, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() == nil && t.After(c.now) {
		c.now = t
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// elapsed is the simulated time since epoch
func (c *fakeClock) elapsed() time.Duration {
	return c.Now().Sub(epoch)
}

// fakeBackend closes once its predicate (or frame limit) says so.
type fakeBackend struct {
	sink        EventSink
	pollHook    func(sink EventSink)
	shouldClose func() bool
	pollErr     error
	swaps       int
	polls       int
	maxSwaps    int
	opened      bool
	closed      bool
}

func (b *fakeBackend) Open(sink EventSink) error {
	b.sink = sink
	b.opened = true
	return nil
}

func (b *fakeBackend) PollEvents() error {
	b.polls++
	if b.pollErr != nil {
		return b.pollErr
	}
	if b.pollHook != nil {
		b.pollHook(b.sink)
	}
	return nil
}

func (b *fakeBackend) SwapBuffers() error {
	b.swaps++
	return nil
}

func (b *fakeBackend) ShouldClose() bool {
	if b.maxSwaps > 0 && b.swaps >= b.maxSwaps {
		return true
	}
	return b.shouldClose != nil && b.shouldClose()
}

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

// recorder collects the callbacks of testLayers, in call order.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) reset() {
	r.calls = nil
}

// testLayer records every callback, and behaves per its fields.
type testLayer struct {
	rec      *recorder
	onEvent  func(app *App, event Event) error
	onUpdate func(app *App) (time.Duration, error)
	onRender func(app *App) error
	name     string
	updates  []time.Time
	events   []Event
	renders  int
	released int
	delay    time.Duration
}

func newTestLayer(rec *recorder, name string, delay time.Duration) *testLayer {
	return &testLayer{rec: rec, name: name, delay: delay}
}

func (l *testLayer) OnEvent(app *App, event Event) error {
	l.events = append(l.events, event)
	if l.rec != nil {
		l.rec.add("%s.event(%v)", l.name, event)
	}
	if l.onEvent != nil {
		return l.onEvent(app, event)
	}
	return nil
}

func (l *testLayer) OnUpdate(app *App) (time.Duration, error) {
	l.updates = append(l.updates, app.Now())
	if l.rec != nil {
		l.rec.add("%s.update", l.name)
	}
	if l.onUpdate != nil {
		return l.onUpdate(app)
	}
	return l.delay, nil
}

func (l *testLayer) OnRender(app *App) error {
	l.renders++
	if l.rec != nil {
		l.rec.add("%s.render", l.name)
	}
	if l.onRender != nil {
		return l.onRender(app)
	}
	return nil
}

func (l *testLayer) Release(*App) {
	l.released++
	if l.rec != nil {
		l.rec.add("%s.release", l.name)
	}
}

func (l *testLayer) String() string { return l.name }

// testEvent is a minimal logiface event, capturing fields.
type testEvent struct {
	logiface.UnimplementedEvent
	fields map[string]any
	level  logiface.Level
}

func (e *testEvent) Level() logiface.Level { return e.level }

func (e *testEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

// logCapture collects logged events.
type logCapture struct {
	events []*testEvent
	mu     sync.Mutex
}

func (c *logCapture) logger() *logiface.Logger[logiface.Event] {
	return logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *testEvent {
			return &testEvent{level: level}
		})),
		logiface.WithWriter[*testEvent](logiface.NewWriterFunc(func(event *testEvent) error {
			c.mu.Lock()
			c.events = append(c.events, event)
			c.mu.Unlock()
			return nil
		})),
		logiface.WithLevel[*testEvent](logiface.LevelDebug),
	).Logger()
}

// messages returns the messages of events at or above level.
func (c *logCapture) messages(level logiface.Level) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var msgs []string
	for _, e := range c.events {
		if e.level <= level {
			msgs = append(msgs, fmt.Sprint(e.fields["msg"]))
		}
	}
	return msgs
}

func (c *logCapture) find(msg string) []*testEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var found []*testEvent
	for _, e := range c.events {
		if e.fields["msg"] == msg {
			found = append(found, e)
		}
	}
	return found
}

func newTestApp(t *testing.T, backend *fakeBackend, clock *fakeClock, opts ...Option) *App {
	t.Helper()
	if backend == nil {
		backend = &fakeBackend{}
	}
	if clock == nil {
		clock = newFakeClock()
	}
	app, err := New(backend, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// step runs one frame, failing the test on error.
func step(t *testing.T, app *App) {
	t.Helper()
	ok, err := app.Step(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

var errBoom = errors.New("boom")
