package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
// ACTIVE reservations hold a RESERVED spot; CONFIRMED ones back an
// OCCUPIED spot.  RELEASED and EXPIRED are terminal.
type ReservationStatus string

const (
    ReservationActive    ReservationStatus = "ACTIVE"    // spot is RESERVED for the holder
    ReservationConfirmed ReservationStatus = "CONFIRMED" // arrival confirmed, spot OCCUPIED
    ReservationReleased  ReservationStatus = "RELEASED"  // cancelled or vacated
    ReservationExpired   ReservationStatus = "EXPIRED"   // deadline passed without confirmation
)

// Reservation is the ephemeral association between one spot and one user.
// At most one non-terminal reservation exists per spot, and at most one
// per user, at any time.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – driver holding the reservation.
//  SpotID    – spot being claimed.
//  Status    – lifecycle state of the claim.
//  ExpiresAt – deadline by which arrival must be confirmed; past this
//              instant the reservation can only expire.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last state change timestamp.
type Reservation struct {
    ID        uint64            `json:"id"`         // reservations.id
    UserID    uint64            `json:"user_id"`    // reservations.user_id
    SpotID    string            `json:"spot_id"`    // reservations.spot_id
    Status    ReservationStatus `json:"status"`     // reservations.status
    ExpiresAt time.Time         `json:"expires_at"` // reservations.expires_at
    CreatedAt time.Time         `json:"created_at"` // reservations.created_at
    UpdatedAt time.Time         `json:"updated_at"` // reservations.updated_at
}

// Active reports whether the reservation still holds its spot: it must be
// in ACTIVE state and its deadline must lie after now.
func (r *Reservation) Active(now time.Time) bool {
    return r.Status == ReservationActive && now.Before(r.ExpiresAt)
}
