package layerloop

import (
	"context"
	"time"
)

// Clock is the source of time for an App. All pacing in the loop is
// expressed as sleeps until an absolute time.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t, or until ctx is done.
	SleepUntil(ctx context.Context, t time.Time)
}

// SystemClock is the wall clock.
type SystemClock struct{}

var _ Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) SleepUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
