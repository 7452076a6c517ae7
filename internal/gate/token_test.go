package gate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-spot-reservation/internal/model"
	"github.com/iliyamo/parking-spot-reservation/internal/reservation"
)

type fakeStore struct {
	spots        map[string]model.Spot
	reservations map[uint64]model.Reservation
}

func (f *fakeStore) ReadOne(_ context.Context, id string) (model.Spot, error) {
	s, ok := f.spots[id]
	if !ok {
		return model.Spot{}, fmt.Errorf("spot %s not found", id)
	}
	return s, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	r, ok := f.reservations[id]
	if !ok {
		return model.Reservation{}, fmt.Errorf("reservation %d not found", id)
	}
	return r, nil
}

const testSecret = "gate-test-secret"

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fixture: user 7 holds an ACTIVE claim on spot s1 with 2 minutes left.
func newFixture() (*fakeStore, *Issuer) {
	store := &fakeStore{
		spots: map[string]model.Spot{
			"s1": {ID: "s1", Label: "A-01", Status: model.SpotReserved, Version: 2},
		},
		reservations: map[uint64]model.Reservation{
			1: {ID: 1, UserID: 7, SpotID: "s1", Status: model.ReservationActive, ExpiresAt: baseTime.Add(2 * time.Minute)},
		},
	}
	issuer := NewIssuer(testSecret, store, store, 5*time.Minute).
		WithClock(func() time.Time { return baseTime })
	return store, issuer
}

func TestIssueAndValidate(t *testing.T) {
	_, issuer := newFixture()

	pass, err := issuer.Issue(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, "s1", pass.SpotID)
	require.Equal(t, uint64(1), pass.ReservationID)
	// The pass outlives the reservation deadline by the grace window.
	require.Equal(t, baseTime.Add(2*time.Minute).Add(5*time.Minute), pass.ExpiresAt)

	scan, err := issuer.Validate(context.Background(), pass.Token)
	require.NoError(t, err)
	require.Equal(t, "s1", scan.SpotID)
	require.Equal(t, uint64(7), scan.UserID)
	require.Equal(t, model.SpotReserved, scan.SpotStatus)
}

func TestIssueRejectsNonOwner(t *testing.T) {
	_, issuer := newFixture()
	_, err := issuer.Issue(context.Background(), 8, 1)
	require.ErrorIs(t, err, reservation.ErrUnauthorized)
}

func TestIssueRejectsSettledReservation(t *testing.T) {
	store, issuer := newFixture()
	r := store.reservations[1]
	r.Status = model.ReservationReleased
	store.reservations[1] = r

	_, err := issuer.Issue(context.Background(), 7, 1)
	require.ErrorIs(t, err, reservation.ErrStaleReservation)
}

func TestIssueRejectsExpiredReservation(t *testing.T) {
	_, issuer := newFixture()
	issuer.WithClock(func() time.Time { return baseTime.Add(3 * time.Minute) })

	_, err := issuer.Issue(context.Background(), 7, 1)
	require.ErrorIs(t, err, reservation.ErrStaleReservation)
}

func TestValidateRejectsGarbageAndWrongKey(t *testing.T) {
	_, issuer := newFixture()

	_, err := issuer.Validate(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrBadPass)

	store2, _ := newFixture()
	other := NewIssuer("some-other-secret", store2, store2, 5*time.Minute).
		WithClock(func() time.Time { return baseTime })
	pass, err := other.Issue(context.Background(), 7, 1)
	require.NoError(t, err)

	// Signed with a different key: the signature check fails first.
	_, err = issuer.Validate(context.Background(), pass.Token)
	require.ErrorIs(t, err, ErrBadPass)
}

func TestValidateHonorsConfirmedStay(t *testing.T) {
	store, issuer := newFixture()
	pass, err := issuer.Issue(context.Background(), 7, 1)
	require.NoError(t, err)

	// Driver confirmed: reservation CONFIRMED, spot OCCUPIED.
	r := store.reservations[1]
	r.Status = model.ReservationConfirmed
	store.reservations[1] = r
	s := store.spots["s1"]
	s.Status = model.SpotOccupied
	store.spots["s1"] = s

	// The same pass now works as the exit credential, even past the
	// reservation deadline.
	issuer.WithClock(func() time.Time { return baseTime.Add(4 * time.Minute) })
	scan, err := issuer.Validate(context.Background(), pass.Token)
	require.NoError(t, err)
	require.Equal(t, model.SpotOccupied, scan.SpotStatus)
}

func TestValidateRejectsFreedSpot(t *testing.T) {
	store, issuer := newFixture()
	pass, err := issuer.Issue(context.Background(), 7, 1)
	require.NoError(t, err)

	// The reservation was cancelled and the spot went back to FREE.
	r := store.reservations[1]
	r.Status = model.ReservationReleased
	store.reservations[1] = r
	s := store.spots["s1"]
	s.Status = model.SpotFree
	store.spots["s1"] = s

	_, err = issuer.Validate(context.Background(), pass.Token)
	require.ErrorIs(t, err, ErrPassRevoked)
}

func TestValidateRejectsReclaimedSpot(t *testing.T) {
	store, issuer := newFixture()
	pass, err := issuer.Issue(context.Background(), 7, 1)
	require.NoError(t, err)

	// The claim expired and another driver re-reserved the same spot.
	r := store.reservations[1]
	r.Status = model.ReservationExpired
	store.reservations[1] = r
	store.reservations[2] = model.Reservation{
		ID: 2, UserID: 9, SpotID: "s1",
		Status: model.ReservationActive, ExpiresAt: baseTime.Add(10 * time.Minute),
	}

	// The spot is RESERVED again, but not by reservation 1: the old pass
	// must not open the gate for the new claim.
	_, err = issuer.Validate(context.Background(), pass.Token)
	require.ErrorIs(t, err, ErrPassRevoked)
}

func TestValidateRejectsExpiredWindow(t *testing.T) {
	_, issuer := newFixture()
	pass, err := issuer.Issue(context.Background(), 7, 1)
	require.NoError(t, err)

	// Past the deadline but inside the pass's own expiry: live state
	// decides, and the ACTIVE claim is overdue.
	issuer.WithClock(func() time.Time { return baseTime.Add(4 * time.Minute) })
	_, err = issuer.Validate(context.Background(), pass.Token)
	require.ErrorIs(t, err, ErrPassRevoked)

	// Past the pass's own expiry the parse itself fails.
	issuer.WithClock(func() time.Time { return baseTime.Add(10 * time.Minute) })
	_, err = issuer.Validate(context.Background(), pass.Token)
	require.ErrorIs(t, err, ErrBadPass)
}
