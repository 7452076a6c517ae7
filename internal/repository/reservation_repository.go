package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/parking-spot-reservation/internal/model"
)

// ReservationRepo provides data access to the reservations table.  Like
// SpotRepo it carries no policy: guarded status updates expose the same
// compare-and-swap shape as the spot writes so that the coordinator's
// transitions stay race-safe without row locks.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = "id, user_id, spot_id, status, expires_at, created_at, updated_at"

// Create inserts a new ACTIVE reservation row and fills in the generated
// id.  The caller supplies UserID, SpotID and ExpiresAt.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
    out, err := r.db.ExecContext(ctx,
        `INSERT INTO reservations (user_id, spot_id, status, expires_at) VALUES (?, ?, ?, ?)`,
        res.UserID, res.SpotID, model.ReservationActive,
        res.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return err
    }
    id, err := out.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    res.Status = model.ReservationActive
    return nil
}

// GetByID fetches a reservation by id.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
    var res model.Reservation
    err := r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ? LIMIT 1`, id).
        Scan(&res.ID, &res.UserID, &res.SpotID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
    if err == sql.ErrNoRows {
        return model.Reservation{}, ErrReservationNotFound
    }
    return res, err
}

// ActiveByUser returns the user's current claim, if any: a CONFIRMED
// reservation, or an ACTIVE one whose deadline lies after now.  A nil
// result with a nil error means the user holds nothing.
func (r *ReservationRepo) ActiveByUser(ctx context.Context, userID uint64, now time.Time) (*model.Reservation, error) {
    var res model.Reservation
    err := r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations
          WHERE user_id = ?
            AND (status = ? OR (status = ? AND expires_at > ?))
          ORDER BY created_at DESC LIMIT 1`,
        userID, model.ReservationConfirmed, model.ReservationActive,
        now.UTC().Format("2006-01-02 15:04:05")).
        Scan(&res.ID, &res.UserID, &res.SpotID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &res, nil
}

// ActiveBySpot returns the non-terminal reservation currently bound to a
// spot, or nil when the spot is unclaimed.
func (r *ReservationRepo) ActiveBySpot(ctx context.Context, spotID string) (*model.Reservation, error) {
    var res model.Reservation
    err := r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations
          WHERE spot_id = ? AND status IN (?, ?)
          ORDER BY created_at DESC LIMIT 1`,
        spotID, model.ReservationActive, model.ReservationConfirmed).
        Scan(&res.ID, &res.UserID, &res.SpotID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &res, nil
}

// SetStatus transitions a reservation from one status to another with a
// guarded UPDATE.  applied=false means the reservation was no longer in
// the expected state, e.g. an expiry sweep and a confirmation racing each
// other; exactly one of them observes applied=true.
func (r *ReservationRepo) SetStatus(ctx context.Context, id uint64, from, to model.ReservationStatus) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
        to, id, from)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// DueForExpiry lists ACTIVE reservations whose deadline has passed.  The
// sweep built on top of this is idempotent: a reservation returned to two
// concurrent sweepers is expired by exactly one thanks to SetStatus.
func (r *ReservationRepo) DueForExpiry(ctx context.Context, now time.Time) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE status = ? AND expires_at <= ?`,
        model.ReservationActive, now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var due []model.Reservation
    for rows.Next() {
        var res model.Reservation
        if err := rows.Scan(&res.ID, &res.UserID, &res.SpotID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt); err != nil {
            return nil, err
        }
        due = append(due, res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return due, nil
}

// ListByUser returns the user's reservation history, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY created_at DESC`,
        userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var items []model.Reservation
    for rows.Next() {
        var res model.Reservation
        if err := rows.Scan(&res.ID, &res.UserID, &res.SpotID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt); err != nil {
            return nil, err
        }
        items = append(items, res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return items, nil
}
