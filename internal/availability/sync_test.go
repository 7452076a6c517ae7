package availability

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-spot-reservation/internal/model"
	"github.com/iliyamo/parking-spot-reservation/internal/queue"
)

type stubReader struct {
	spots []model.Spot
	err   error
	calls int
}

func (r *stubReader) ReadAll(context.Context) ([]model.Spot, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.spots, nil
}

func spot(id, label string, status model.SpotStatus, version uint64) model.Spot {
	return model.Spot{ID: id, Label: label, Status: status, Version: version}
}

func event(id, label string, status model.SpotStatus, version uint64) queue.SpotChangedEvent {
	return queue.SpotChangedEvent{SpotID: id, Label: label, Status: status, Version: version}
}

func TestResyncReplacesProjection(t *testing.T) {
	reader := &stubReader{spots: []model.Spot{
		spot("s1", "A-01", model.SpotFree, 1),
		spot("s2", "A-02", model.SpotOccupied, 4),
	}}
	s := New(reader)

	// A spot that vanished from the store must vanish from the projection.
	s.Apply(event("gone", "Z-99", model.SpotFree, 1))

	require.NoError(t, s.Resync(context.Background()))
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "s1", snap[0].ID)
	require.Equal(t, "s2", snap[1].ID)
}

func TestResyncPropagatesReadError(t *testing.T) {
	reader := &stubReader{err: fmt.Errorf("store down")}
	require.Error(t, New(reader).Resync(context.Background()))
}

func TestApplyDropsStaleEvents(t *testing.T) {
	reader := &stubReader{spots: []model.Spot{spot("s1", "A-01", model.SpotFree, 5)}}
	s := New(reader)
	require.NoError(t, s.Resync(context.Background()))

	// At or below the projected version: redelivery, ignored.
	s.Apply(event("s1", "A-01", model.SpotReserved, 5))
	s.Apply(event("s1", "A-01", model.SpotReserved, 4))
	require.Equal(t, model.SpotFree, s.Snapshot()[0].Status)

	// Above it: applied.
	s.Apply(event("s1", "A-01", model.SpotReserved, 6))
	snap := s.Snapshot()
	require.Equal(t, model.SpotReserved, snap[0].Status)
	require.Equal(t, uint64(6), snap[0].Version)
}

func TestApplyOutOfOrderKeepsNewestState(t *testing.T) {
	s := New(&stubReader{})

	s.Apply(event("s1", "A-01", model.SpotOccupied, 3))
	// The older transition arrives late and must not win.
	s.Apply(event("s1", "A-01", model.SpotReserved, 2))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, model.SpotOccupied, snap[0].Status)
}

func TestSnapshotIsLabelOrderedCopy(t *testing.T) {
	reader := &stubReader{spots: []model.Spot{
		spot("s3", "C-01", model.SpotFree, 1),
		spot("s1", "A-01", model.SpotFree, 1),
		spot("s2", "B-01", model.SpotFree, 1),
	}}
	s := New(reader)
	require.NoError(t, s.Resync(context.Background()))

	snap := s.Snapshot()
	require.Equal(t, []string{"A-01", "B-01", "C-01"}, []string{snap[0].Label, snap[1].Label, snap[2].Label})

	// Mutating the returned slice must not touch the projection.
	snap[0].Status = model.SpotOutOfService
	require.Equal(t, model.SpotFree, s.Snapshot()[0].Status)
}

func TestSubscribeDeliversFreshEvents(t *testing.T) {
	s := New(&stubReader{})

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Apply(event("s1", "A-01", model.SpotReserved, 2))

	got := <-ch
	require.Equal(t, "s1", got.ID)
	require.Equal(t, model.SpotReserved, got.Status)
	require.Equal(t, uint64(2), got.Version)
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	s := New(&stubReader{})

	ch, cancel := s.Subscribe()
	cancel()
	// Applying after cancel must not panic on the closed channel.
	s.Apply(event("s1", "A-01", model.SpotReserved, 2))

	_, open := <-ch
	require.False(t, open)

	// cancel is safe to call twice.
	cancel()
}

func TestSlowSubscriberKeepsNewestNotifications(t *testing.T) {
	s := New(&stubReader{})

	ch, cancel := s.Subscribe()
	defer cancel()

	// Overflow the buffer without draining.  Apply must never block, and
	// the freshest event must survive the overflow.
	last := uint64(0)
	for v := uint64(1); v <= 40; v++ {
		s.Apply(event("s1", "A-01", model.SpotReserved, v))
		last = v
	}

	var newest uint64
	for {
		select {
		case got := <-ch:
			newest = got.Version
			continue
		default:
		}
		break
	}
	require.Equal(t, last, newest)
}

func TestSlowSubscriberKeepsOtherSpotsNotification(t *testing.T) {
	s := New(&stubReader{})

	ch, cancel := s.Subscribe()
	defer cancel()

	// One pending notification for s2, then a flood for s1 that overflows
	// the buffer many times over.  The s1 burst must coalesce onto its own
	// pending entry instead of evicting s2's only notification.
	s.Apply(event("s2", "B-01", model.SpotOccupied, 1))
	for v := uint64(1); v <= 100; v++ {
		s.Apply(event("s1", "A-01", model.SpotReserved, v))
	}

	seen := map[string]model.Spot{}
	for {
		select {
		case got := <-ch:
			seen[got.ID] = got
			continue
		default:
		}
		break
	}
	require.Contains(t, seen, "s2")
	require.Equal(t, model.SpotOccupied, seen["s2"].Status)
	require.Contains(t, seen, "s1")
	require.Equal(t, uint64(100), seen["s1"].Version)
}
