package model

import "time"

// SpotStatus enumerates the states of the spot state machine.
//
//	FREE -> RESERVED -> OCCUPIED -> FREE        (normal cycle)
//	RESERVED -> FREE                            (timeout or cancel)
//	FREE <-> OUT_OF_SERVICE                     (administrative)
type SpotStatus string

const (
    SpotFree         SpotStatus = "FREE"           // available for reservation
    SpotReserved     SpotStatus = "RESERVED"       // held by an active reservation
    SpotOccupied     SpotStatus = "OCCUPIED"       // car parked, reservation confirmed
    SpotOutOfService SpotStatus = "OUT_OF_SERVICE" // withdrawn by an admin
)

// Valid reports whether s is one of the known spot states.
func (s SpotStatus) Valid() bool {
    switch s {
    case SpotFree, SpotReserved, SpotOccupied, SpotOutOfService:
        return true
    }
    return false
}

// Spot is one parking space in the lot.
//
// Fields:
//  ID        – opaque identifier, primary key.
//  Label     – human-readable position like "A-01"; unique, and the sort
//              key for deterministic spot selection.
//  Status    – current state machine position.
//  Version   – counter bumped by every conditional write; change feed
//              consumers use it to drop stale events.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last state change timestamp.
type Spot struct {
    ID        string     `json:"id"`         // parking_spots.id
    Label     string     `json:"label"`      // parking_spots.label
    Status    SpotStatus `json:"status"`     // parking_spots.status
    Version   uint64     `json:"version"`    // parking_spots.version
    CreatedAt time.Time  `json:"created_at"` // parking_spots.created_at
    UpdatedAt time.Time  `json:"updated_at"` // parking_spots.updated_at
}
