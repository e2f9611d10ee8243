package layers

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/joeycumines/go-layerloop"
)

const (
	defaultOverlayInterval = 250 * time.Millisecond
	defaultOverlayColumn   = 80
	overlayCellWidth       = 10
)

// StatsOverlay is a layer that draws a table of the App statistics to a
// terminal. With ANSI enabled the table is drawn in place, at a fixed
// column, preserving the cursor, otherwise each refresh is appended as
// plain text.
type StatsOverlay struct {
	layerloop.Base
	w        io.Writer
	buf      bytes.Buffer
	rows     []overlayRow
	interval time.Duration
	column   int
	ansi     bool
	dirty    bool
}

type overlayRow struct {
	title string
	value string
}

var _ layerloop.Layer = (*StatsOverlay)(nil)

// OverlayOption configures a StatsOverlay.
type OverlayOption func(x *StatsOverlay)

// WithANSI enables drawing in place, using ANSI escape sequences, e.g. if
// the writer is a terminal.
func WithANSI(enabled bool) OverlayOption {
	return func(x *StatsOverlay) { x.ansi = enabled }
}

// WithColumn sets the (1-based) terminal column of the table, when drawing
// with ANSI. Defaults to 80.
func WithColumn(column int) OverlayOption {
	return func(x *StatsOverlay) {
		if column > 0 {
			x.column = column
		}
	}
}

// WithRefreshInterval sets how often the statistics are sampled. Defaults
// to 250ms.
func WithRefreshInterval(interval time.Duration) OverlayOption {
	return func(x *StatsOverlay) {
		if interval > 0 {
			x.interval = interval
		}
	}
}

// NewStatsOverlay returns a StatsOverlay writing to w.
func NewStatsOverlay(w io.Writer, opts ...OverlayOption) *StatsOverlay {
	x := &StatsOverlay{
		w:        w,
		interval: defaultOverlayInterval,
		column:   defaultOverlayColumn,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// OnUpdate samples the statistics.
func (x *StatsOverlay) OnUpdate(app *layerloop.App) (time.Duration, error) {
	x.rows = statsRows(x.rows[:0], app.Stats())
	x.dirty = true
	return x.interval, nil
}

// OnRender draws the last sample, once.
func (x *StatsOverlay) OnRender(*layerloop.App) error {
	if !x.dirty {
		return nil
	}
	x.dirty = false
	x.buf.Reset()
	if x.ansi {
		writeANSITable(&x.buf, x.column, x.rows)
	} else {
		writePlainTable(&x.buf, x.rows)
	}
	_, err := x.w.Write(x.buf.Bytes())
	return err
}

func statsRows(rows []overlayRow, stats layerloop.Stats) []overlayRow {
	frame := stats.FrameTime.Mean.Seconds()
	var rate float64
	if frame > 0 {
		rate = 1 / frame
	}
	return append(rows,
		overlayRow{`s/frame`, formatFloat(frame)},
		overlayRow{`frames/s`, formatFloat(rate)},
		overlayRow{`p99 frame`, formatFloat(stats.FrameTime.P99.Seconds())},
		overlayRow{`p99 update`, formatFloat(stats.UpdateTime.P99.Seconds())},
		overlayRow{`frames`, strconv.FormatUint(stats.Frames, 10)},
		overlayRow{`overruns`, strconv.FormatUint(stats.Overruns, 10)},
		overlayRow{`updates`, strconv.FormatUint(stats.Updates, 10)},
		overlayRow{`events`, strconv.FormatUint(stats.Events, 10)},
		overlayRow{`layers`, strconv.Itoa(stats.Layers)},
		overlayRow{`errors`, strconv.FormatUint(stats.EventErrors+stats.UpdateErrors+stats.RenderErrors+stats.MutationErrors, 10)},
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}

func writeANSITable(w *bytes.Buffer, column int, rows []overlayRow) {
	w.WriteString("\033[s")
	for i, row := range rows {
		fmt.Fprintf(w, "\033[%d;%dH\033[46m %*s \033[42m %*s \033[m", i+1, column, overlayCellWidth, row.title, overlayCellWidth, row.value)
	}
	w.WriteString("\033[u")
}

func writePlainTable(w *bytes.Buffer, rows []overlayRow) {
	for _, row := range rows {
		fmt.Fprintf(w, "%*s %*s\n", overlayCellWidth, row.title, overlayCellWidth, row.value)
	}
	w.WriteByte('\n')
}
