package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/iliyamo/parking-spot-reservation/internal/model"
)

// VehicleRepo provides data access to the vehicles table.  All queries are
// owner-scoped: a user can only see and mutate vehicles they registered.
type VehicleRepo struct {
    db *sql.DB
}

// NewVehicleRepo returns a VehicleRepo bound to the provided database.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

const vehicleColumns = "id, owner_id, brand, model, license_plate, created_at, updated_at"

// Create inserts a vehicle for the owner and fills in the generated id.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO vehicles (owner_id, brand, model, license_plate) VALUES (?, ?, ?, ?)`,
        v.OwnerID, v.Brand, v.Model, v.LicensePlate)
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return ErrDuplicatePlate
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    v.ID = uint64(id)
    return nil
}

// ListByOwner returns all vehicles registered by a user.
func (r *VehicleRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Vehicle, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+vehicleColumns+` FROM vehicles WHERE owner_id = ? ORDER BY created_at`,
        ownerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var items []model.Vehicle
    for rows.Next() {
        var v model.Vehicle
        if err := rows.Scan(&v.ID, &v.OwnerID, &v.Brand, &v.Model, &v.LicensePlate, &v.CreatedAt, &v.UpdatedAt); err != nil {
            return nil, err
        }
        items = append(items, v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return items, nil
}

// GetByIDForOwner fetches one vehicle, enforcing ownership in the query so
// a foreign id behaves exactly like a missing one.
func (r *VehicleRepo) GetByIDForOwner(ctx context.Context, id, ownerID uint64) (model.Vehicle, error) {
    var v model.Vehicle
    err := r.db.QueryRowContext(ctx,
        `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ? AND owner_id = ? LIMIT 1`,
        id, ownerID).
        Scan(&v.ID, &v.OwnerID, &v.Brand, &v.Model, &v.LicensePlate, &v.CreatedAt, &v.UpdatedAt)
    if err == sql.ErrNoRows {
        return model.Vehicle{}, ErrVehicleNotFound
    }
    return v, err
}

// DeleteForOwner removes a vehicle owned by the user.  Deleting a vehicle
// that does not exist (or belongs to someone else) returns ErrVehicleNotFound.
func (r *VehicleRepo) DeleteForOwner(ctx context.Context, id, ownerID uint64) error {
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM vehicles WHERE id = ? AND owner_id = ?`, id, ownerID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrVehicleNotFound
    }
    return nil
}
