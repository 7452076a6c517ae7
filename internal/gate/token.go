// Package gate issues and validates the scannable pass a driver presents
// at the lot barrier.  The pass is an HS256 JWT whose payload is rendered
// as a QR code by the client; the gate reader re-validates the bound
// spot's live state before letting anyone through, so the token itself is
// an identifier, not a bearer proof.
package gate

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"

    "github.com/iliyamo/parking-spot-reservation/internal/model"
    "github.com/iliyamo/parking-spot-reservation/internal/reservation"
)

// ErrBadPass is returned for passes that cannot be parsed, carry a wrong
// signature, or have passed their own expiry.
var ErrBadPass = errors.New("invalid gate pass")

// ErrPassRevoked is returned for well-formed passes whose backing
// reservation no longer holds the spot: the spot returned to FREE, was
// re-reserved by someone else, or the reservation expired.
var ErrPassRevoked = errors.New("gate pass no longer valid")

// SpotReader looks up the live state of a single spot.
type SpotReader interface {
    ReadOne(ctx context.Context, id string) (model.Spot, error)
}

// ReservationReader looks up reservations during issuance and validation.
type ReservationReader interface {
    GetByID(ctx context.Context, id uint64) (model.Reservation, error)
}

// Pass is the issued token plus the metadata the client renders alongside
// the QR code.
type Pass struct {
    Token         string    `json:"token"`
    SpotID        string    `json:"spot_id"`
    ReservationID uint64    `json:"reservation_id"`
    ExpiresAt     time.Time `json:"expires_at"`
}

// Scan is the result of validating a presented pass.
type Scan struct {
    SpotID        string           `json:"spot_id"`
    ReservationID uint64           `json:"reservation_id"`
    UserID        uint64           `json:"user_id"`
    SpotStatus    model.SpotStatus `json:"spot_status"`
}

// Issuer mints and validates gate passes.  An instance is safe for
// concurrent use.
type Issuer struct {
    secret       string
    spots        SpotReader
    reservations ReservationReader
    grace        time.Duration // how long a pass outlives its reservation deadline
    now          func() time.Time
}

// NewIssuer builds an Issuer.  grace covers the driver who scans at the
// barrier moments after confirming: the pass outlives the reservation
// deadline by this much, while state re-validation still decides access.
func NewIssuer(secret string, spots SpotReader, reservations ReservationReader, grace time.Duration) *Issuer {
    return &Issuer{
        secret:       secret,
        spots:        spots,
        reservations: reservations,
        grace:        grace,
        now:          func() time.Time { return time.Now().UTC() },
    }
}

// WithClock overrides the issuer's clock for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
    i.now = now
    return i
}

// Issue mints a pass for an ACTIVE, unexpired reservation owned by the
// caller.  A reservation in any other state yields ErrStaleReservation; a
// non-owner yields ErrUnauthorized.  The jti claim makes concurrently
// active passes collision-free even for reused spot ids.
func (i *Issuer) Issue(ctx context.Context, userID, reservationID uint64) (Pass, error) {
    res, err := i.reservations.GetByID(ctx, reservationID)
    if err != nil {
        return Pass{}, err
    }
    if res.UserID != userID {
        return Pass{}, reservation.ErrUnauthorized
    }
    now := i.now()
    if !res.Active(now) {
        return Pass{}, reservation.ErrStaleReservation
    }

    exp := res.ExpiresAt.Add(i.grace)
    claims := jwt.MapClaims{
        "sub":  res.UserID,
        "spot": res.SpotID,
        "rid":  res.ID,
        "jti":  uuid.NewString(),
        "iat":  now.Unix(),
        "exp":  exp.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(i.secret))
    if err != nil {
        return Pass{}, fmt.Errorf("sign gate pass: %w", err)
    }
    return Pass{
        Token:         signed,
        SpotID:        res.SpotID,
        ReservationID: res.ID,
        ExpiresAt:     exp,
    }, nil
}

// Validate parses a presented pass and re-validates the live state it is
// bound to.  The pass is honored only while its own reservation instance
// holds the spot: ACTIVE on a RESERVED spot, or CONFIRMED on an OCCUPIED
// one.  Once the spot returns to FREE — or is claimed again by a different
// reservation — the pass is rejected with ErrPassRevoked.
func (i *Issuer) Validate(ctx context.Context, raw string) (Scan, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrBadPass
        }
        return []byte(i.secret), nil
    }, jwt.WithTimeFunc(func() time.Time { return i.now() }))
    if err != nil || !tok.Valid {
        return Scan{}, ErrBadPass
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Scan{}, ErrBadPass
    }
    spotID, _ := claims["spot"].(string)
    ridF, _ := claims["rid"].(float64)
    if spotID == "" || ridF <= 0 {
        return Scan{}, ErrBadPass
    }
    rid := uint64(ridF)

    res, err := i.reservations.GetByID(ctx, rid)
    if err != nil {
        return Scan{}, ErrPassRevoked
    }
    if res.SpotID != spotID {
        return Scan{}, ErrBadPass
    }
    spot, err := i.spots.ReadOne(ctx, spotID)
    if err != nil {
        return Scan{}, fmt.Errorf("load spot %s: %w", spotID, err)
    }

    now := i.now()
    valid := (spot.Status == model.SpotReserved && res.Status == model.ReservationActive && now.Before(res.ExpiresAt)) ||
        (spot.Status == model.SpotOccupied && res.Status == model.ReservationConfirmed)
    if !valid {
        return Scan{}, ErrPassRevoked
    }
    return Scan{
        SpotID:        spot.ID,
        ReservationID: res.ID,
        UserID:        res.UserID,
        SpotStatus:    spot.Status,
    }, nil
}
