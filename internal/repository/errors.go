// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers to distinguish
// between different failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrSpotNotFound is returned when a spot id does not exist in the
// parking_spots table.
var ErrSpotNotFound = errors.New("spot not found")

// ErrReservationNotFound is returned when a reservation id does not exist.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrVehicleNotFound is returned when a vehicle does not exist or does not
// belong to the requesting user.  Handlers translate this into 404.
var ErrVehicleNotFound = errors.New("vehicle not found")

// ErrDuplicateSpot is returned when provisioning attempts to insert a spot
// id or label that already exists.
var ErrDuplicateSpot = errors.New("spot already exists")

// ErrDuplicatePlate is returned when a user registers the same license
// plate twice.
var ErrDuplicatePlate = errors.New("license plate already registered")

// ErrEmailExists is returned when registration hits the unique email index.
var ErrEmailExists = errors.New("email already exists")
