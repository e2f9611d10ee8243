// Package promstats exports the statistics of a layerloop.App as Prometheus
// metrics.
package promstats

import (
	"github.com/joeycumines/go-layerloop"
	"github.com/prometheus/client_golang/prometheus"
)

// Source provides statistics, e.g. *layerloop.App.
type Source interface {
	Stats() layerloop.Stats
}

// Collector is a prometheus.Collector that samples a Source on each scrape.
type Collector struct {
	source Source

	frames       *prometheus.Desc
	overruns     *prometheus.Desc
	updates      *prometheus.Desc
	events       *prometheus.Desc
	expired      *prometheus.Desc
	batches      *prometheus.Desc
	errors       *prometheus.Desc
	layers       *prometheus.Desc
	appointments *prometheus.Desc
	targetPeriod *prometheus.Desc
	frameTime    *prometheus.Desc
	updateTime   *prometheus.Desc
	maxFrameTime *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// New returns a Collector over source. Every metric name is prefixed with
// namespace, e.g. "layerloop", and constLabels are attached to every metric.
func New(source Source, namespace string, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, ``, name), help, labels, constLabels)
	}
	return &Collector{
		source:       source,
		frames:       desc(`frames_total`, `Number of completed frames.`),
		overruns:     desc(`frame_overruns_total`, `Number of frames that missed their render deadline.`),
		updates:      desc(`updates_total`, `Number of layer updates run.`),
		events:       desc(`events_total`, `Number of events dispatched.`),
		expired:      desc(`expired_appointments_total`, `Number of appointments dropped for removed layers.`),
		batches:      desc(`mutation_batches_total`, `Number of frames that applied structural mutations.`),
		errors:       desc(`errors_total`, `Number of failures, by phase.`, `phase`),
		layers:       desc(`layers`, `Number of layers in the stack.`),
		appointments: desc(`appointments`, `Number of pending update appointments.`),
		targetPeriod: desc(`target_render_period_seconds`, `Target duration of each frame.`),
		frameTime:    desc(`frame_duration_seconds`, `Estimated quantiles of the frame duration.`),
		updateTime:   desc(`update_duration_seconds`, `Estimated quantiles of the layer update duration.`),
		maxFrameTime: desc(`frame_duration_max_seconds`, `Longest observed frame duration.`),
	}
}

func (x *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range [...]*prometheus.Desc{
		x.frames,
		x.overruns,
		x.updates,
		x.events,
		x.expired,
		x.batches,
		x.errors,
		x.layers,
		x.appointments,
		x.targetPeriod,
		x.frameTime,
		x.updateTime,
		x.maxFrameTime,
	} {
		ch <- d
	}
}

func (x *Collector) Collect(ch chan<- prometheus.Metric) {
	s := x.source.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(x.frames, s.Frames)
	counter(x.overruns, s.Overruns)
	counter(x.updates, s.Updates)
	counter(x.events, s.Events)
	counter(x.expired, s.Expired)
	counter(x.batches, s.MutationBatches)
	counter(x.errors, s.MutationErrors, layerloop.PhaseMutate.String())
	counter(x.errors, s.EventErrors, layerloop.PhaseEvent.String())
	counter(x.errors, s.UpdateErrors, layerloop.PhaseUpdate.String())
	counter(x.errors, s.RenderErrors, layerloop.PhaseRender.String())

	ch <- prometheus.MustNewConstMetric(x.layers, prometheus.GaugeValue, float64(s.Layers))
	ch <- prometheus.MustNewConstMetric(x.appointments, prometheus.GaugeValue, float64(s.Appointments))
	ch <- prometheus.MustNewConstMetric(x.targetPeriod, prometheus.GaugeValue, s.TargetPeriod.Seconds())
	ch <- prometheus.MustNewConstMetric(x.maxFrameTime, prometheus.GaugeValue, s.FrameTime.Max.Seconds())

	ch <- summary(x.frameTime, s.FrameTime)
	ch <- summary(x.updateTime, s.UpdateTime)
}

func summary(d *prometheus.Desc, s layerloop.DurationStats) prometheus.Metric {
	return prometheus.MustNewConstSummary(
		d,
		uint64(s.Count),
		s.Mean.Seconds()*float64(s.Count),
		map[float64]float64{
			0.5:  s.P50.Seconds(),
			0.9:  s.P90.Seconds(),
			0.99: s.P99.Seconds(),
		},
	)
}
