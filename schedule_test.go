package layerloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func h(index uint32) Handle {
	return Handle{index: index, gen: 1}
}

func drain(s *Schedule, deadline, now time.Time, alive func(Handle) bool) []Appointment {
	var out []Appointment
	for {
		a, ok := s.PopDue(deadline, now, alive)
		if !ok {
			return out
		}
		out = append(out, a)
	}
}

func handles(appointments []Appointment) []Handle {
	out := make([]Handle, len(appointments))
	for i, a := range appointments {
		out[i] = a.Handle
	}
	return out
}

func TestSchedule_RebuildNewLayersDueNow(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0), h(1), h(2)}, epoch)
	require.Equal(t, 3, s.Len())

	got := drain(&s, epoch, epoch, nil)
	assert.Equal(t, []Handle{h(0), h(1), h(2)}, handles(got))
	for i, a := range got {
		assert.Equal(t, epoch, a.Due)
		assert.Equal(t, i, a.Index)
	}
}

func TestSchedule_TiebreakFollowsStackOrder(t *testing.T) {
	var s Schedule
	// b is scheduled first
	s.Rebuild([]Handle{h(1)}, epoch)
	// then the stack becomes [a, b], both due at epoch
	s.Rebuild([]Handle{h(0), h(1)}, epoch)

	got := drain(&s, epoch, epoch, nil)
	assert.Equal(t, []Handle{h(0), h(1)}, handles(got))
}

func TestSchedule_RebuildKeepsCadence(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0), h(1)}, epoch)
	a, ok := s.PopDue(epoch, epoch, nil)
	require.True(t, ok)
	s.Reinsert(a, 500*time.Millisecond, epoch)

	// reordered, plus a new layer
	later := epoch.Add(100 * time.Millisecond)
	s.Rebuild([]Handle{h(2), h(1), h(0)}, later)

	got := drain(&s, epoch.Add(time.Second), later, nil)
	require.Len(t, got, 3)
	assert.Equal(t, []Handle{h(1), h(2), h(0)}, handles(got))
	assert.Equal(t, epoch, got[0].Due, "kept its pending due time")
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, later, got[1].Due, "new layers are due now")
	assert.Equal(t, epoch.Add(500*time.Millisecond), got[2].Due)
	assert.Equal(t, 2, got[2].Index)
}

func TestSchedule_RebuildDropsRemovedLayers(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0), h(1)}, epoch)
	s.Rebuild([]Handle{h(1)}, epoch)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint64(1), s.Expired())
}

func TestSchedule_RebuildDuplicatePanics(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0)}, epoch)
	s.restore(Appointment{Due: epoch, Handle: h(0)})

	assert.PanicsWithError(t, "layerloop: invariant violated: layer 0#1 was found twice in the update schedule", func() {
		s.Rebuild([]Handle{h(0)}, epoch)
	})
}

func TestSchedule_PopDueRespectsDeadline(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0)}, epoch.Add(20*time.Millisecond))

	_, ok := s.PopDue(epoch.Add(10*time.Millisecond), epoch, nil)
	assert.False(t, ok, "due after the deadline")

	_, ok = s.PopDue(epoch.Add(30*time.Millisecond), epoch.Add(31*time.Millisecond), nil)
	assert.False(t, ok, "deadline already passed")
	assert.Equal(t, 1, s.Len())

	a, ok := s.PopDue(epoch.Add(20*time.Millisecond), epoch.Add(20*time.Millisecond), nil)
	assert.True(t, ok, "due exactly at the deadline")
	assert.Equal(t, h(0), a.Handle)
}

func TestSchedule_PopDueDiscardsExpired(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0), h(1), h(2)}, epoch)
	alive := func(handle Handle) bool { return handle != h(1) }

	got := drain(&s, epoch, epoch, alive)
	assert.Equal(t, []Handle{h(0), h(2)}, handles(got))
	assert.Equal(t, uint64(1), s.Expired())
	assert.Equal(t, 0, s.Len())
}

func TestSchedule_ReinsertClampsToNow(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0)}, epoch)
	a, ok := s.PopDue(epoch, epoch, nil)
	require.True(t, ok)

	// the update took longer than the delay
	now := epoch.Add(250 * time.Millisecond)
	next := s.Reinsert(a, 100*time.Millisecond, now)
	assert.Equal(t, now, next.Due)
	assert.Equal(t, a.Index, next.Index)
	assert.Greater(t, next.Seq, a.Seq)

	a, ok = s.PopDue(now, now, nil)
	require.True(t, ok)
	next = s.Reinsert(a, 100*time.Millisecond, now.Add(10*time.Millisecond))
	assert.Equal(t, now.Add(100*time.Millisecond), next.Due, "cadence is kept when on time")
}

func TestSchedule_ReinsertDelayBounds(t *testing.T) {
	var s Schedule
	s.Rebuild([]Handle{h(0)}, epoch)
	a, _ := s.PopDue(epoch, epoch, nil)

	next := s.Reinsert(a, -time.Second, epoch)
	assert.Equal(t, epoch, next.Due)

	a, _ = s.PopDue(epoch, epoch, nil)
	next = s.Reinsert(a, Never, epoch)
	assert.Equal(t, epoch.Add(maxDelay), next.Due)
	assert.True(t, next.Due.After(epoch))
}

func TestSchedule_Peek(t *testing.T) {
	var s Schedule
	_, ok := s.Peek()
	assert.False(t, ok)

	s.Rebuild([]Handle{h(3)}, epoch)
	a, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, h(3), a.Handle)
	assert.Equal(t, 1, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
}
