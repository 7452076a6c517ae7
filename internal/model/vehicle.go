package model

import "time"

// Vehicle records a car registered by a driver.  Vehicles are plain CRUD
// records with no bearing on spot allocation; they exist so the gate staff
// can match a plate to the account that reserved a spot.
//
// Fields:
//  ID           – primary key identifier.
//  OwnerID      – user who registered the vehicle.
//  Brand        – manufacturer (e.g. "Toyota").
//  Model        – model name.
//  LicensePlate – plate string, unique per owner.
//  CreatedAt    – registration timestamp.
//  UpdatedAt    – last update timestamp.
type Vehicle struct {
    ID           uint64    `json:"id"`            // vehicles.id
    OwnerID      uint64    `json:"owner_id"`      // vehicles.owner_id
    Brand        string    `json:"brand"`         // vehicles.brand
    Model        string    `json:"model"`         // vehicles.model
    LicensePlate string    `json:"license_plate"` // vehicles.license_plate
    CreatedAt    time.Time `json:"created_at"`    // vehicles.created_at
    UpdatedAt    time.Time `json:"updated_at"`    // vehicles.updated_at
}
