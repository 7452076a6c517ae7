package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/iliyamo/parking-spot-reservation/internal/model"
)

// SpotRepo provides data access to the parking_spots table.  It is a pure
// data-access leaf: no retry or selection policy lives here, which keeps
// the conflict-resolution algorithm in one place (the coordinator) and
// this layer trivially replaceable with fakes in tests.
type SpotRepo struct {
    db *sql.DB
}

// NewSpotRepo returns a SpotRepo bound to the provided database.
func NewSpotRepo(db *sql.DB) *SpotRepo { return &SpotRepo{db: db} }

const spotColumns = "id, label, status, version, created_at, updated_at"

// ReadAll returns every spot ordered by label.  Label order is the
// coordinator's preference order, so keeping the ORDER BY here means every
// consumer sees spots in the same deterministic sequence.
func (r *SpotRepo) ReadAll(ctx context.Context) ([]model.Spot, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+spotColumns+` FROM parking_spots ORDER BY label`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var spots []model.Spot
    for rows.Next() {
        var s model.Spot
        if err := rows.Scan(&s.ID, &s.Label, &s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
            return nil, err
        }
        spots = append(spots, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return spots, nil
}

// ReadOne fetches a single spot by id.
func (r *SpotRepo) ReadOne(ctx context.Context, id string) (model.Spot, error) {
    var s model.Spot
    err := r.db.QueryRowContext(ctx,
        `SELECT `+spotColumns+` FROM parking_spots WHERE id = ? LIMIT 1`, id).
        Scan(&s.ID, &s.Label, &s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt)
    if err == sql.ErrNoRows {
        return model.Spot{}, ErrSpotNotFound
    }
    return s, err
}

// ConditionalUpdateStatus transitions a spot from expected to next in one
// guarded UPDATE.  The write succeeds only if the stored status still
// equals expected at write time; this compare-and-swap on a single row is
// the sole concurrency-control primitive of the reservation flow.  On
// success the fresh row is returned along with applied=true.  applied=false
// with a nil error means another writer won the race (or the spot does not
// exist); callers decide whether to retry elsewhere.
func (r *SpotRepo) ConditionalUpdateStatus(ctx context.Context, id string, expected, next model.SpotStatus) (model.Spot, bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE parking_spots
            SET status = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
          WHERE id = ? AND status = ?`,
        next, id, expected)
    if err != nil {
        return model.Spot{}, false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return model.Spot{}, false, err
    }
    if n == 0 {
        return model.Spot{}, false, nil
    }
    spot, err := r.ReadOne(ctx, id)
    if err != nil {
        return model.Spot{}, false, err
    }
    return spot, true, nil
}

// CreateBulk inserts multiple spots in one statement.  Provisioning is an
// administrative operation; new spots always start FREE at version 1 and
// rely on DB defaults for timestamps.
func (r *SpotRepo) CreateBulk(ctx context.Context, spots []model.Spot) error {
    if len(spots) == 0 {
        return nil
    }
    query := `INSERT INTO parking_spots (id, label, status, version) VALUES `
    args := make([]interface{}, 0, len(spots)*4)
    for i, s := range spots {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        status := s.Status
        if status == "" {
            status = model.SpotFree
        }
        args = append(args, s.ID, s.Label, status, 1)
    }
    if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return ErrDuplicateSpot
        }
        return err
    }
    return nil
}
