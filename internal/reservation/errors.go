// Package reservation implements the state machine and conflict-resolution
// policy that turns a driver's "I want to park" intent into a durable spot
// claim.  All race outcomes that have a well-defined local resolution are
// resolved here; only terminal decision outcomes surface to callers.
package reservation

import "errors"

// ErrNoAvailability means no free spot could be claimed after the bounded
// number of attempts.  There is no waiting line: the caller is told to try
// later.  Handlers translate this into HTTP 409.
var ErrNoAvailability = errors.New("no spot available")

// ErrUnauthorized means a confirmation, cancellation or token issuance was
// requested by an identity that does not own the reservation.  Never
// retried.  Handlers translate this into HTTP 403.
var ErrUnauthorized = errors.New("not the reservation owner")

// ErrStaleReservation means an expire or cancel got ahead of the requested
// transition; the reservation has already returned its spot.  The caller
// must restart the reservation flow.  Handlers translate this into 409.
var ErrStaleReservation = errors.New("reservation no longer active")

// ErrSpotUnavailable means an administrative or gate transition targeted a
// spot that is not in the required state (e.g. taking a reserved spot out
// of service).  Handlers translate this into HTTP 409.
var ErrSpotUnavailable = errors.New("spot not in required state")
