package reservation

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/iliyamo/parking-spot-reservation/internal/model"
    "github.com/iliyamo/parking-spot-reservation/internal/queue"
)

// SpotStore is the registry slice the coordinator drives.  The conditional
// update is the sole concurrency-control primitive: there is no lock
// manager, so every transition is a compare-and-swap on one spot row.
type SpotStore interface {
    ConditionalUpdateStatus(ctx context.Context, id string, expected, next model.SpotStatus) (model.Spot, bool, error)
}

// ReservationStore persists reservations.  SetStatus has the same guarded
// shape as the spot writes; the reservation row transition is the
// arbitration point when confirm, cancel and expiry race each other.
type ReservationStore interface {
    Create(ctx context.Context, res *model.Reservation) error
    GetByID(ctx context.Context, id uint64) (model.Reservation, error)
    ActiveByUser(ctx context.Context, userID uint64, now time.Time) (*model.Reservation, error)
    ActiveBySpot(ctx context.Context, spotID string) (*model.Reservation, error)
    SetStatus(ctx context.Context, id uint64, from, to model.ReservationStatus) (bool, error)
    DueForExpiry(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// Snapshotter supplies the label-ordered spot view the selection policy
// works from.  The snapshot may be slightly behind the store; the
// conditional write catches that, never the snapshot itself.
type Snapshotter interface {
    Snapshot() []model.Spot
}

// Publisher pushes a spot transition onto the change feed.  Failures are
// non-fatal: the feed is repaired by resync, not by blocking a write.
type Publisher func(ctx context.Context, ev queue.SpotChangedEvent) error

// Coordinator owns the spot state machine:
//
//	FREE -> RESERVED -> OCCUPIED -> FREE        (normal cycle)
//	RESERVED -> FREE                            (timeout or cancel)
//	FREE <-> OUT_OF_SERVICE                     (administrative)
//
// An instance is safe for concurrent use; real contention comes from other
// instances writing to the same store, which the conditional writes absorb.
type Coordinator struct {
    spots        SpotStore
    reservations ReservationStore
    avail        Snapshotter
    publish      Publisher

    ttl         time.Duration // how long a reservation stays confirmable
    maxAttempts int           // spots tried per request before giving up
    now         func() time.Time
}

// New builds a Coordinator.  ttl is the reservation timeout
// (reservationTimeoutSeconds in configuration) and maxAttempts bounds the
// retry loop when conditional writes lose their race.
func New(spots SpotStore, reservations ReservationStore, avail Snapshotter, publish Publisher, ttl time.Duration, maxAttempts int) *Coordinator {
    if maxAttempts < 1 {
        maxAttempts = 1
    }
    return &Coordinator{
        spots:        spots,
        reservations: reservations,
        avail:        avail,
        publish:      publish,
        ttl:          ttl,
        maxAttempts:  maxAttempts,
        now:          func() time.Time { return time.Now().UTC() },
    }
}

// WithClock overrides the coordinator's clock.  Tests use this to simulate
// expiry without sleeping.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
    c.now = now
    return c
}

// Request claims one free spot for the user.  Selection is deterministic:
// candidates are taken in label order from the availability snapshot, and
// for each one a conditional write attempts FREE -> RESERVED.  Losing the
// race on a spot is recovered locally by moving to the next candidate, up
// to maxAttempts; exhaustion folds into ErrNoAvailability.  A user already
// holding a claim gets that same reservation back, never a second one.
func (c *Coordinator) Request(ctx context.Context, userID uint64) (*model.Reservation, error) {
    now := c.now()

    existing, err := c.reservations.ActiveByUser(ctx, userID, now)
    if err != nil {
        return nil, fmt.Errorf("lookup active reservation: %w", err)
    }
    if existing != nil {
        return existing, nil
    }

    attempts := 0
    for _, cand := range c.avail.Snapshot() {
        if cand.Status != model.SpotFree {
            continue
        }
        if attempts >= c.maxAttempts {
            break
        }
        attempts++

        spot, applied, err := c.spots.ConditionalUpdateStatus(ctx, cand.ID, model.SpotFree, model.SpotReserved)
        if err != nil {
            return nil, fmt.Errorf("reserve spot %s: %w", cand.ID, err)
        }
        if !applied {
            continue // another requester won this spot; try the next one
        }

        res := &model.Reservation{
            UserID:    userID,
            SpotID:    cand.ID,
            Status:    model.ReservationActive,
            ExpiresAt: now.Add(c.ttl),
            CreatedAt: now,
        }
        if err := c.reservations.Create(ctx, res); err != nil {
            // The CAS was won but the claim could not be recorded; put the
            // spot back so it is not stranded in RESERVED.
            if _, ok, cerr := c.spots.ConditionalUpdateStatus(ctx, cand.ID, model.SpotReserved, model.SpotFree); cerr != nil || !ok {
                log.Printf("coordinator: failed to roll back spot %s after create error: applied=%v err=%v", cand.ID, ok, cerr)
            }
            return nil, fmt.Errorf("record reservation: %w", err)
        }
        c.announce(ctx, spot)
        return res, nil
    }
    return nil, ErrNoAvailability
}

// Current returns the user's live claim, or nil when they hold none.
func (c *Coordinator) Current(ctx context.Context, userID uint64) (*model.Reservation, error) {
    return c.reservations.ActiveByUser(ctx, userID, c.now())
}

// Confirm marks the driver's arrival: RESERVED -> OCCUPIED.  Only the
// reservation owner (or the gate path acting for them) may confirm.  The
// reservation row transition arbitrates races with cancel and expiry, so a
// confirmation that lost to either reports ErrStaleReservation and the
// caller restarts the flow.
func (c *Coordinator) Confirm(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
    res, err := c.reservations.GetByID(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.UserID != userID {
        return nil, ErrUnauthorized
    }
    if res.Status != model.ReservationActive {
        return nil, ErrStaleReservation
    }
    now := c.now()
    if !now.Before(res.ExpiresAt) {
        // The deadline passed but no sweeper has processed it yet; expire
        // it here rather than honoring a dead claim.
        c.expireOne(ctx, res)
        return nil, ErrStaleReservation
    }

    applied, err := c.reservations.SetStatus(ctx, res.ID, model.ReservationActive, model.ReservationConfirmed)
    if err != nil {
        return nil, fmt.Errorf("confirm reservation %d: %w", res.ID, err)
    }
    if !applied {
        return nil, ErrStaleReservation
    }

    spot, ok, err := c.spots.ConditionalUpdateStatus(ctx, res.SpotID, model.SpotReserved, model.SpotOccupied)
    if err != nil {
        return nil, fmt.Errorf("occupy spot %s: %w", res.SpotID, err)
    }
    if !ok {
        // The row transition was won, so nothing in the reservation flow
        // can hold this spot in another state; this indicates an
        // out-of-band write.  Surface it rather than guessing.
        return nil, fmt.Errorf("spot %s not in reserved state during confirm: %w", res.SpotID, ErrStaleReservation)
    }
    c.announce(ctx, spot)
    res.Status = model.ReservationConfirmed
    return &res, nil
}

// Cancel releases an ACTIVE reservation: RESERVED -> FREE.  The owner may
// cancel their own claim; admin allows lot staff to cancel anyone's.
func (c *Coordinator) Cancel(ctx context.Context, userID, reservationID uint64, admin bool) error {
    res, err := c.reservations.GetByID(ctx, reservationID)
    if err != nil {
        return err
    }
    if res.UserID != userID && !admin {
        return ErrUnauthorized
    }
    if res.Status != model.ReservationActive {
        return ErrStaleReservation
    }
    applied, err := c.reservations.SetStatus(ctx, res.ID, model.ReservationActive, model.ReservationReleased)
    if err != nil {
        return fmt.Errorf("release reservation %d: %w", res.ID, err)
    }
    if !applied {
        return ErrStaleReservation
    }
    c.freeSpot(ctx, res.SpotID, model.SpotReserved)
    return nil
}

// Vacate processes a gate-exit or manual release: OCCUPIED -> FREE, and
// the confirmed reservation backing the spot becomes RELEASED.
func (c *Coordinator) Vacate(ctx context.Context, spotID string) error {
    res, err := c.reservations.ActiveBySpot(ctx, spotID)
    if err != nil {
        return fmt.Errorf("lookup reservation for spot %s: %w", spotID, err)
    }
    if res != nil && res.Status == model.ReservationConfirmed {
        applied, err := c.reservations.SetStatus(ctx, res.ID, model.ReservationConfirmed, model.ReservationReleased)
        if err != nil {
            return fmt.Errorf("release reservation %d: %w", res.ID, err)
        }
        if !applied {
            return ErrStaleReservation
        }
    }
    spot, ok, err := c.spots.ConditionalUpdateStatus(ctx, spotID, model.SpotOccupied, model.SpotFree)
    if err != nil {
        return fmt.Errorf("vacate spot %s: %w", spotID, err)
    }
    if !ok {
        return ErrSpotUnavailable
    }
    c.announce(ctx, spot)
    return nil
}

// MarkOutOfService administratively withdraws a FREE spot.  A spot that is
// reserved or occupied cannot be withdrawn until it cycles back to FREE.
func (c *Coordinator) MarkOutOfService(ctx context.Context, spotID string) error {
    spot, ok, err := c.spots.ConditionalUpdateStatus(ctx, spotID, model.SpotFree, model.SpotOutOfService)
    if err != nil {
        return fmt.Errorf("withdraw spot %s: %w", spotID, err)
    }
    if !ok {
        return ErrSpotUnavailable
    }
    c.announce(ctx, spot)
    return nil
}

// RestoreService returns a withdrawn spot to the FREE pool.
func (c *Coordinator) RestoreService(ctx context.Context, spotID string) error {
    spot, ok, err := c.spots.ConditionalUpdateStatus(ctx, spotID, model.SpotOutOfService, model.SpotFree)
    if err != nil {
        return fmt.Errorf("restore spot %s: %w", spotID, err)
    }
    if !ok {
        return ErrSpotUnavailable
    }
    c.announce(ctx, spot)
    return nil
}

// SweepExpired transitions every overdue ACTIVE reservation back to FREE.
// It is idempotent and safe to run redundantly from multiple instances:
// the guarded row transition lets exactly one sweeper process each
// reservation, and the losers simply move on.
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
    due, err := c.reservations.DueForExpiry(ctx, c.now())
    if err != nil {
        return 0, fmt.Errorf("list due reservations: %w", err)
    }
    swept := 0
    for i := range due {
        if c.expireOne(ctx, due[i]) {
            swept++
        }
    }
    return swept, nil
}

// RunSweeper runs SweepExpired on a fixed interval until ctx is cancelled.
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration) {
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            if n, err := c.SweepExpired(ctx); err != nil {
                log.Printf("coordinator: expiry sweep failed: %v", err)
            } else if n > 0 {
                log.Printf("coordinator: expired %d reservation(s)", n)
            }
        }
    }
}

// expireOne retires a single overdue reservation.  Reports whether this
// caller performed the transition.
func (c *Coordinator) expireOne(ctx context.Context, res model.Reservation) bool {
    applied, err := c.reservations.SetStatus(ctx, res.ID, model.ReservationActive, model.ReservationExpired)
    if err != nil {
        log.Printf("coordinator: expire reservation %d: %v", res.ID, err)
        return false
    }
    if !applied {
        return false // confirmed, cancelled or expired by someone else
    }
    c.freeSpot(ctx, res.SpotID, model.SpotReserved)
    return true
}

// freeSpot returns a spot to FREE from the given state and announces the
// transition.  A lost CAS here is logged, not surfaced: it means the spot
// already moved on, and the reservation row is the source of truth.
func (c *Coordinator) freeSpot(ctx context.Context, spotID string, from model.SpotStatus) {
    spot, ok, err := c.spots.ConditionalUpdateStatus(ctx, spotID, from, model.SpotFree)
    if err != nil {
        log.Printf("coordinator: free spot %s: %v", spotID, err)
        return
    }
    if !ok {
        log.Printf("coordinator: spot %s no longer %s while freeing", spotID, from)
        return
    }
    c.announce(ctx, spot)
}

// announce publishes a spot transition onto the change feed.
func (c *Coordinator) announce(ctx context.Context, spot model.Spot) {
    if c.publish == nil {
        return
    }
    ev := queue.SpotChangedEvent{
        SpotID:     spot.ID,
        Label:      spot.Label,
        Status:     spot.Status,
        Version:    spot.Version,
        OccurredAt: c.now().Format(time.RFC3339),
    }
    if err := c.publish(ctx, ev); err != nil {
        log.Printf("coordinator: publish spot %s change: %v", spot.ID, err)
    }
}
