package layers

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-layerloop"
	"github.com/joeycumines/go-layerloop/backend/headless"
	"github.com/joeycumines/go-layerloop/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, frames int) (*layerloop.App, *headless.Backend) {
	t.Helper()
	backend, err := headless.New(headless.WithFrameLimit(frames))
	require.NoError(t, err)
	app, err := layerloop.New(backend, layerloop.WithTargetRenderRate(1000))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, backend
}

type namedLayer struct {
	layerloop.Base
	name string
}

type factoryCounter map[string][]*namedLayer

func (x factoryCounter) entry(name string) Entry {
	return Entry{Name: name, Factory: func(*layerloop.App) (layerloop.Layer, error) {
		l := &namedLayer{name: name}
		x[name] = append(x[name], l)
		return l, nil
	}}
}

func TestNewSwitcher_validation(t *testing.T) {
	counter := make(factoryCounter)
	for _, tc := range [...]struct {
		name    string
		entries []Entry
		keep    []layerloop.Layer
		err     string
	}{
		{`empty`, nil, nil, `layers: switcher requires at least one entry`},
		{`no name`, []Entry{{Factory: counter.entry(`a`).Factory}}, nil, `layers: switcher entry 0 has no name`},
		{`no factory`, []Entry{{Name: `a`}}, nil, `layers: switcher entry "a" has no factory`},
		{`duplicate`, []Entry{counter.entry(`a`), counter.entry(`a`)}, nil, `layers: duplicate switcher entry "a"`},
		{`nil keep`, []Entry{counter.entry(`a`)}, []layerloop.Layer{nil}, layerloop.ErrNilLayer.Error()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSwitcher(tc.entries, tc.keep...)
			assert.EqualError(t, err, tc.err)
		})
	}
}

func TestSwitcher_altDigit(t *testing.T) {
	app, backend := newApp(t, 3)
	counter := make(factoryCounter)
	overlay := NewStatsOverlay(new(bytes.Buffer))
	sw, err := NewSwitcher([]Entry{counter.entry(`a`), counter.entry(`b`), counter.entry(`c`)}, overlay)
	require.NoError(t, err)
	assert.Equal(t, []string{`a`, `b`, `c`}, sw.Names())
	assert.Equal(t, ``, sw.Current())

	require.NoError(t, sw.Switch(app.Stack(), 1))
	assert.Equal(t, `b`, sw.Current())

	ctx := context.Background()
	for _, event := range []layerloop.Event{
		input.KeyEvent{Key: input.Key9, Action: input.Press, Mods: input.ModAlt},
		input.KeyEvent{Key: input.Key2, Action: input.Release, Mods: input.ModAlt},
		input.KeyEvent{Key: input.Key2, Action: input.Press},
		input.CharEvent{Char: '2'},
		input.KeyEvent{Key: input.Key2, Action: input.Press, Mods: input.ModAlt | input.ModShift},
	} {
		require.NoError(t, backend.Send(ctx, event))
	}

	require.NoError(t, app.Run(ctx))

	assert.Empty(t, counter[`a`])
	require.Len(t, counter[`b`], 1)
	require.Len(t, counter[`c`], 1)
	assert.Equal(t, `c`, sw.Current())
	assert.Equal(t, []layerloop.Layer{sw, overlay, counter[`c`][0]}, app.Stack().Layers())
	assert.Zero(t, app.Stats().MutationErrors)
}

func TestSwitcher_SwitchTo(t *testing.T) {
	app, _ := newApp(t, 1)
	counter := make(factoryCounter)
	sw, err := NewSwitcher([]Entry{counter.entry(`a`), counter.entry(`b`)})
	require.NoError(t, err)

	assert.ErrorIs(t, sw.SwitchTo(app.Stack(), `z`), ErrUnknownEntry)
	assert.ErrorIs(t, sw.Switch(app.Stack(), 2), ErrUnknownEntry)
	assert.Equal(t, 0, app.Stack().Pending())

	require.NoError(t, sw.SwitchTo(app.Stack(), `a`))
	assert.Equal(t, 2, app.Stack().Pending())
	require.NoError(t, app.Run(context.Background()))
	require.Len(t, counter[`a`], 1)
	assert.Equal(t, []layerloop.Layer{sw, counter[`a`][0]}, app.Stack().Layers())
}

type releasingLayer struct {
	layerloop.Base
	released int
}

func (x *releasingLayer) Release(*layerloop.App) { x.released++ }

func TestSwitcher_keptLayersAreNotReleased(t *testing.T) {
	app, backend := newApp(t, 4)
	counter := make(factoryCounter)
	kept := new(releasingLayer)
	sw, err := NewSwitcher([]Entry{counter.entry(`a`), counter.entry(`b`)}, kept)
	require.NoError(t, err)

	other := new(releasingLayer)
	app.Stack().PushLayer(other, -1)
	require.NoError(t, sw.Switch(app.Stack(), 0))

	ctx := context.Background()
	require.NoError(t, backend.Send(ctx, input.KeyEvent{Key: input.Key1, Action: input.Press, Mods: input.ModAlt}))
	require.NoError(t, backend.Send(ctx, input.KeyEvent{Key: input.Key0, Action: input.Press, Mods: input.ModAlt}))
	require.NoError(t, app.Run(ctx))

	require.Len(t, counter[`a`], 2)
	require.Len(t, counter[`b`], 1)
	assert.Equal(t, []layerloop.Layer{sw, kept, counter[`a`][1]}, app.Stack().Layers())
	assert.Equal(t, 0, kept.released)
	assert.Equal(t, 1, other.released)
	assert.Zero(t, app.Stats().MutationErrors)
}

func TestStatsRows(t *testing.T) {
	rows := statsRows(nil, layerloop.Stats{
		FrameTime: layerloop.DurationStats{Mean: 20 * time.Millisecond, P99: 25 * time.Millisecond},
		Frames:    7,
		Layers:    2,
		Updates:   3,
		// counted together
		EventErrors:    1,
		RenderErrors:   2,
		MutationErrors: 1,
	})
	got := make(map[string]string, len(rows))
	for _, row := range rows {
		got[row.title] = row.value
	}
	assert.Equal(t, `0.02000`, got[`s/frame`])
	assert.Equal(t, `50.00000`, got[`frames/s`])
	assert.Equal(t, `0.02500`, got[`p99 frame`])
	assert.Equal(t, `7`, got[`frames`])
	assert.Equal(t, `2`, got[`layers`])
	assert.Equal(t, `3`, got[`updates`])
	assert.Equal(t, `4`, got[`errors`])

	rows = statsRows(rows[:0], layerloop.Stats{})
	assert.Equal(t, `0.00000`, rows[1].value, "no frames yet")
}

func TestWriteANSITable(t *testing.T) {
	var buf bytes.Buffer
	writeANSITable(&buf, 40, []overlayRow{{`frames`, `12`}, {`layers`, `3`}})
	assert.Equal(t,
		"\033[s"+
			"\033[1;40H\033[46m     frames \033[42m         12 \033[m"+
			"\033[2;40H\033[46m     layers \033[42m          3 \033[m"+
			"\033[u",
		buf.String())
}

func TestStatsOverlay_render(t *testing.T) {
	app, _ := newApp(t, 3)
	var out bytes.Buffer
	overlay := NewStatsOverlay(&out, WithRefreshInterval(time.Hour), WithColumn(0))
	app.Stack().PushLayer(overlay, -1)
	require.NoError(t, app.Run(context.Background()))

	// sampled once, drawn once
	text := out.String()
	assert.Equal(t, 1, strings.Count(text, `frames/s`))
	assert.True(t, strings.HasSuffix(text, "\n\n"))
	assert.NotContains(t, text, "\033[")
	assert.Equal(t, defaultOverlayColumn, overlay.column)

	out.Reset()
	overlay.ansi = true
	overlay.dirty = true
	require.NoError(t, overlay.OnRender(app))
	assert.True(t, strings.HasPrefix(out.String(), "\033[s\033[1;80H"))
}
