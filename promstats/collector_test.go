package promstats

import (
	"testing"
	"time"

	"github.com/joeycumines/go-layerloop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource layerloop.Stats

func (x staticSource) Stats() layerloop.Stats { return layerloop.Stats(x) }

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(New(staticSource{
		FrameTime: layerloop.DurationStats{
			P50:   10 * time.Millisecond,
			P90:   15 * time.Millisecond,
			P99:   20 * time.Millisecond,
			Max:   30 * time.Millisecond,
			Mean:  12 * time.Millisecond,
			Count: 100,
		},
		TargetPeriod: 16 * time.Millisecond,
		Frames:       100,
		Overruns:     2,
		Updates:      250,
		Events:       7,
		EventErrors:  1,
		UpdateErrors: 3,
		Layers:       4,
		Appointments: 4,
	}, `layerloop`, prometheus.Labels{`app`: `test`})))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case `app`:
					assert.Equal(t, `test`, l.GetValue())
				case `phase`:
					name += `{` + l.GetValue() + `}`
				}
			}
			switch {
			case m.GetCounter() != nil:
				values[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[name] = m.GetGauge().GetValue()
			case m.GetSummary() != nil:
				values[name+`_count`] = float64(m.GetSummary().GetSampleCount())
				values[name+`_sum`] = m.GetSummary().GetSampleSum()
				for _, q := range m.GetSummary().GetQuantile() {
					if q.GetQuantile() == 0.99 {
						values[name+`_p99`] = q.GetValue()
					}
				}
			}
		}
	}

	assert.Equal(t, 100.0, values[`layerloop_frames_total`])
	assert.Equal(t, 2.0, values[`layerloop_frame_overruns_total`])
	assert.Equal(t, 250.0, values[`layerloop_updates_total`])
	assert.Equal(t, 7.0, values[`layerloop_events_total`])
	assert.Equal(t, 1.0, values[`layerloop_errors_total{event}`])
	assert.Equal(t, 3.0, values[`layerloop_errors_total{update}`])
	assert.Equal(t, 0.0, values[`layerloop_errors_total{render}`])
	assert.Contains(t, values, `layerloop_errors_total{mutate}`)
	assert.Equal(t, 4.0, values[`layerloop_layers`])
	assert.Equal(t, 4.0, values[`layerloop_appointments`])
	assert.InDelta(t, 0.016, values[`layerloop_target_render_period_seconds`], 1e-9)
	assert.InDelta(t, 0.03, values[`layerloop_frame_duration_max_seconds`], 1e-9)
	assert.Equal(t, 100.0, values[`layerloop_frame_duration_seconds_count`])
	assert.InDelta(t, 1.2, values[`layerloop_frame_duration_seconds_sum`], 1e-9)
	assert.InDelta(t, 0.02, values[`layerloop_frame_duration_seconds_p99`], 1e-9)
	assert.Equal(t, 0.0, values[`layerloop_update_duration_seconds_count`])
}

func TestCollector_describe(t *testing.T) {
	ch := make(chan *prometheus.Desc, 32)
	New(staticSource{}, `x`, nil).Describe(ch)
	close(ch)
	var n int
	for range ch {
		n++
	}
	assert.Equal(t, 13, n)
}
