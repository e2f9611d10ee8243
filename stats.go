package layerloop

import (
	"sync"
	"time"

	"github.com/joeycumines/go-layerloop/internal/quantile"
)

// Stats is a snapshot of the runtime statistics of an App.
//
// Example:
//
//	stats := app.Stats()
//	fmt.Printf("frames: %d, P99 frame time: %v\n",
//		stats.Frames, stats.FrameTime.P99)
type Stats struct {
	// Latency distributions
	FrameTime  DurationStats
	UpdateTime DurationStats

	// TargetPeriod is the target render period at the time of the snapshot.
	TargetPeriod time.Duration

	// Frames is the number of completed frames.
	Frames uint64
	// Overruns counts frames whose render deadline had already passed when
	// the render phase began.
	Overruns uint64
	// Updates is the number of layer updates run, including failed ones.
	Updates uint64
	// Events is the number of events dispatched.
	Events uint64
	// Expired counts appointments dropped because their layer was removed.
	Expired uint64

	// MutationBatches counts frames that applied structural mutations.
	MutationBatches uint64
	MutationErrors  uint64

	// Callback failures, per phase
	EventErrors  uint64
	UpdateErrors uint64
	RenderErrors uint64

	// Layers is the number of layers in the stack.
	Layers int
	// Appointments is the number of pending appointments.
	Appointments int
}

// DurationStats summarizes a distribution of durations, using streaming
// estimates for the quantiles.
type DurationStats struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// statsRecorder accumulates Stats. It is written by the loop goroutine, and
// may be read from any goroutine.
type statsRecorder struct {
	frameTime  *quantile.Multi
	updateTime *quantile.Multi
	stats      Stats
	mu         sync.Mutex
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		frameTime:  quantile.NewMulti(0.5, 0.9, 0.99),
		updateTime: quantile.NewMulti(0.5, 0.9, 0.99),
	}
}

func (r *statsRecorder) update(fn func(s *Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

func (r *statsRecorder) recordUpdate(d time.Duration, failed bool) {
	r.mu.Lock()
	r.stats.Updates++
	if failed {
		r.stats.UpdateErrors++
	}
	r.updateTime.Update(float64(d))
	r.mu.Unlock()
}

func (r *statsRecorder) recordFrame(d time.Duration, overrun bool) {
	r.mu.Lock()
	r.stats.Frames++
	if overrun {
		r.stats.Overruns++
	}
	r.frameTime.Update(float64(d))
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.FrameTime = durationStats(r.frameTime)
	s.UpdateTime = durationStats(r.updateTime)
	return s
}

func durationStats(m *quantile.Multi) DurationStats {
	return DurationStats{
		P50:   time.Duration(m.Quantile(0)),
		P90:   time.Duration(m.Quantile(1)),
		P99:   time.Duration(m.Quantile(2)),
		Max:   time.Duration(m.Max()),
		Mean:  time.Duration(m.Mean()),
		Count: m.Count(),
	}
}
