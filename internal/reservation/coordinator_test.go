package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-spot-reservation/internal/model"
	"github.com/iliyamo/parking-spot-reservation/internal/queue"
)

// memStore is an in-memory stand-in for the MySQL repositories.  Its
// guarded updates behave like the real conditional writes, including
// under concurrent callers, so the race scenarios below exercise the
// same arbitration the production store provides.
type memStore struct {
	mu           sync.Mutex
	spots        map[string]model.Spot
	reservations map[uint64]model.Reservation
	nextID       uint64
	createErr    error
}

func newMemStore(labels ...string) *memStore {
	s := &memStore{
		spots:        make(map[string]model.Spot),
		reservations: make(map[uint64]model.Reservation),
	}
	for i, l := range labels {
		id := fmt.Sprintf("spot-%d", i+1)
		s.spots[id] = model.Spot{ID: id, Label: l, Status: model.SpotFree, Version: 1}
	}
	return s
}

func (s *memStore) ConditionalUpdateStatus(_ context.Context, id string, expected, next model.SpotStatus) (model.Spot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spot, ok := s.spots[id]
	if !ok || spot.Status != expected {
		return model.Spot{}, false, nil
	}
	spot.Status = next
	spot.Version++
	s.spots[id] = spot
	return spot, true, nil
}

func (s *memStore) Create(_ context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	res.ID = s.nextID
	s.reservations[res.ID] = *res
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, fmt.Errorf("reservation %d not found", id)
	}
	return res, nil
}

func (s *memStore) ActiveByUser(_ context.Context, userID uint64, now time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.reservations {
		if res.UserID != userID {
			continue
		}
		if res.Status == model.ReservationConfirmed ||
			(res.Status == model.ReservationActive && now.Before(res.ExpiresAt)) {
			r := res
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memStore) ActiveBySpot(_ context.Context, spotID string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.reservations {
		if res.SpotID != spotID {
			continue
		}
		if res.Status == model.ReservationConfirmed || res.Status == model.ReservationActive {
			r := res
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memStore) SetStatus(_ context.Context, id uint64, from, to model.ReservationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok || res.Status != from {
		return false, nil
	}
	res.Status = to
	s.reservations[id] = res
	return true, nil
}

func (s *memStore) DueForExpiry(_ context.Context, now time.Time) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []model.Reservation
	for _, res := range s.reservations {
		if res.Status == model.ReservationActive && !now.Before(res.ExpiresAt) {
			due = append(due, res)
		}
	}
	return due, nil
}

// Snapshot returns the spots label-ordered, like the availability view.
func (s *memStore) Snapshot() []model.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Spot, 0, len(s.spots))
	for _, spot := range s.spots {
		out = append(out, spot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (s *memStore) spotStatus(id string) model.SpotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spots[id].Status
}

func (s *memStore) reservationStatus(id uint64) model.ReservationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id].Status
}

// eventLog captures published change-feed events.
type eventLog struct {
	mu     sync.Mutex
	events []queue.SpotChangedEvent
}

func (l *eventLog) publish(_ context.Context, ev queue.SpotChangedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) statuses() []model.SpotStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.SpotStatus, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Status)
	}
	return out
}

func newTestCoordinator(store *memStore, log *eventLog) *Coordinator {
	var pub Publisher
	if log != nil {
		pub = log.publish
	}
	return New(store, store, store, pub, 120*time.Second, 3)
}

func TestRequestPicksLowestLabelFirst(t *testing.T) {
	store := newMemStore("B-02", "A-01", "C-03")
	c := newTestCoordinator(store, nil)

	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "spot-2", res.SpotID) // label A-01
	require.Equal(t, model.ReservationActive, res.Status)
	require.Equal(t, model.SpotReserved, store.spotStatus("spot-2"))
}

func TestRequestConcurrentCallersGetDistinctSpots(t *testing.T) {
	store := newMemStore("A-01", "A-02", "A-03", "A-04", "A-05")
	c := newTestCoordinator(store, nil)

	const callers = 2
	results := make([]*model.Reservation, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Request(context.Background(), uint64(i+1))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotEqual(t, results[0].SpotID, results[1].SpotID)
}

func TestRequestContentionFoldsIntoNoAvailability(t *testing.T) {
	store := newMemStore("A-01")
	c := newTestCoordinator(store, nil)

	const callers = 3
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Request(context.Background(), uint64(i+1))
		}(i)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch err {
		case nil:
			won++
		case ErrNoAvailability:
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 2, lost)
}

func TestRequestReturnsExistingClaim(t *testing.T) {
	store := newMemStore("A-01", "A-02")
	c := newTestCoordinator(store, nil)

	first, err := c.Request(context.Background(), 7)
	require.NoError(t, err)
	second, err := c.Request(context.Background(), 7)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, store.reservations, 1)
	// The second spot must still be free for other users.
	require.Equal(t, model.SpotFree, store.spotStatus("spot-2"))
}

func TestRequestRollsBackSpotWhenCreateFails(t *testing.T) {
	store := newMemStore("A-01")
	store.createErr = fmt.Errorf("insert failed")
	c := newTestCoordinator(store, nil)

	_, err := c.Request(context.Background(), 7)
	require.Error(t, err)
	require.Equal(t, model.SpotFree, store.spotStatus("spot-1"))
}

func TestConfirmOccupiesSpot(t *testing.T) {
	store := newMemStore("A-01")
	log := &eventLog{}
	c := newTestCoordinator(store, log)

	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)

	confirmed, err := c.Confirm(context.Background(), 7, res.ID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationConfirmed, confirmed.Status)
	require.Equal(t, model.SpotOccupied, store.spotStatus(res.SpotID))
	require.Equal(t, []model.SpotStatus{model.SpotReserved, model.SpotOccupied}, log.statuses())
}

func TestConfirmAfterDeadlineExpiresClaim(t *testing.T) {
	store := newMemStore("A-01")
	c := newTestCoordinator(store, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.WithClock(func() time.Time { return base })

	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)

	// 121 seconds later with a 120 second timeout.
	c.WithClock(func() time.Time { return base.Add(121 * time.Second) })

	_, err = c.Confirm(context.Background(), 7, res.ID)
	require.ErrorIs(t, err, ErrStaleReservation)
	require.Equal(t, model.ReservationExpired, store.reservationStatus(res.ID))
	require.Equal(t, model.SpotFree, store.spotStatus(res.SpotID))
}

func TestConfirmRejectsNonOwner(t *testing.T) {
	store := newMemStore("A-01")
	c := newTestCoordinator(store, nil)

	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)

	_, err = c.Confirm(context.Background(), 8, res.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
	// The claim must be untouched by the failed attempt.
	require.Equal(t, model.ReservationActive, store.reservationStatus(res.ID))
	require.Equal(t, model.SpotReserved, store.spotStatus(res.SpotID))
}

func TestCancelFreesSpot(t *testing.T) {
	store := newMemStore("A-01")
	c := newTestCoordinator(store, nil)

	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)

	require.NoError(t, c.Cancel(context.Background(), 7, res.ID, false))
	require.Equal(t, model.ReservationReleased, store.reservationStatus(res.ID))
	require.Equal(t, model.SpotFree, store.spotStatus(res.SpotID))

	// A second cancel finds the claim already settled.
	require.ErrorIs(t, c.Cancel(context.Background(), 7, res.ID, false), ErrStaleReservation)
}

func TestCancelRequiresOwnerUnlessAdmin(t *testing.T) {
	store := newMemStore("A-01")
	c := newTestCoordinator(store, nil)

	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)

	require.ErrorIs(t, c.Cancel(context.Background(), 8, res.ID, false), ErrUnauthorized)
	require.NoError(t, c.Cancel(context.Background(), 0, res.ID, true))
}

func TestVacateClosesOutStay(t *testing.T) {
	store := newMemStore("A-01")
	c := newTestCoordinator(store, nil)

	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)
	_, err = c.Confirm(context.Background(), 7, res.ID)
	require.NoError(t, err)

	require.NoError(t, c.Vacate(context.Background(), res.SpotID))
	require.Equal(t, model.ReservationReleased, store.reservationStatus(res.ID))
	require.Equal(t, model.SpotFree, store.spotStatus(res.SpotID))

	// Vacating a free spot is a conflict, not a no-op.
	require.ErrorIs(t, c.Vacate(context.Background(), res.SpotID), ErrSpotUnavailable)
}

func TestOutOfServiceCycle(t *testing.T) {
	store := newMemStore("A-01")
	c := newTestCoordinator(store, nil)

	require.NoError(t, c.MarkOutOfService(context.Background(), "spot-1"))
	require.Equal(t, model.SpotOutOfService, store.spotStatus("spot-1"))

	// Withdrawn spots are never offered.
	_, err := c.Request(context.Background(), 7)
	require.ErrorIs(t, err, ErrNoAvailability)

	require.NoError(t, c.RestoreService(context.Background(), "spot-1"))
	require.Equal(t, model.SpotFree, store.spotStatus("spot-1"))

	// Only FREE spots can be withdrawn.
	res, err := c.Request(context.Background(), 7)
	require.NoError(t, err)
	require.ErrorIs(t, c.MarkOutOfService(context.Background(), res.SpotID), ErrSpotUnavailable)
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	store := newMemStore("A-01", "A-02", "A-03")
	c := newTestCoordinator(store, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.WithClock(func() time.Time { return base })

	r1, err := c.Request(context.Background(), 1)
	require.NoError(t, err)
	r2, err := c.Request(context.Background(), 2)
	require.NoError(t, err)

	// A third claim made later is still fresh when the others lapse.
	c.WithClock(func() time.Time { return base.Add(60 * time.Second) })
	r3, err := c.Request(context.Background(), 3)
	require.NoError(t, err)

	c.WithClock(func() time.Time { return base.Add(125 * time.Second) })

	swept, err := c.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, swept)
	require.Equal(t, model.ReservationExpired, store.reservationStatus(r1.ID))
	require.Equal(t, model.ReservationExpired, store.reservationStatus(r2.ID))
	require.Equal(t, model.ReservationActive, store.reservationStatus(r3.ID))
	require.Equal(t, model.SpotFree, store.spotStatus(r1.SpotID))
	require.Equal(t, model.SpotReserved, store.spotStatus(r3.SpotID))

	// A concurrent or repeated sweep finds nothing left to do.
	swept, err = c.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, swept)
}

func TestRequestAfterExpiryGrantsNewSpot(t *testing.T) {
	store := newMemStore("A-01", "A-02")
	c := newTestCoordinator(store, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.WithClock(func() time.Time { return base })

	first, err := c.Request(context.Background(), 7)
	require.NoError(t, err)

	c.WithClock(func() time.Time { return base.Add(121 * time.Second) })
	_, err = c.SweepExpired(context.Background())
	require.NoError(t, err)

	second, err := c.Request(context.Background(), 7)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, "spot-1", second.SpotID) // lowest label is free again
}
