package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-spot-reservation/internal/gate"
	"github.com/iliyamo/parking-spot-reservation/internal/model"
	"github.com/iliyamo/parking-spot-reservation/internal/repository"
	"github.com/iliyamo/parking-spot-reservation/internal/reservation"
)

// ReservationHandler serves the driver-facing reservation endpoints.
// All state transitions go through the coordinator; the handler only
// binds input, maps errors and shapes responses.
type ReservationHandler struct {
	Coord        *reservation.Coordinator
	Reservations *repository.ReservationRepo
	Passes       *gate.Issuer
}

func NewReservationHandler(coord *reservation.Coordinator, r *repository.ReservationRepo, passes *gate.Issuer) *ReservationHandler {
	return &ReservationHandler{Coord: coord, Reservations: r, Passes: passes}
}

type reservationPart struct {
	ID        uint64                  `json:"id"`
	SpotID    string                  `json:"spot_id"`
	Status    model.ReservationStatus `json:"status"`
	ExpiresAt time.Time               `json:"expires_at"`
	CreatedAt time.Time               `json:"created_at"`
}

func toReservationPart(r model.Reservation) reservationPart {
	return reservationPart{
		ID:        r.ID,
		SpotID:    r.SpotID,
		Status:    r.Status,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

// mapReservationErr translates coordinator sentinels to HTTP responses.
func mapReservationErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, reservation.ErrNoAvailability):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no spots available"})
	case errors.Is(err, reservation.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	case errors.Is(err, reservation.ErrStaleReservation):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation no longer active"})
	case errors.Is(err, reservation.ErrSpotUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "spot state changed"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation operation failed"})
	}
}

func reservationID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// Request claims the first free spot for the caller.  Calling it again
// while a claim is live returns the existing reservation unchanged.
func (h *ReservationHandler) Request(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Coord.Request(ctx, uid)
	if err != nil {
		return mapReservationErr(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationPart(*res))
}

// Current returns the caller's live reservation, 404 when there is none.
func (h *ReservationHandler) Current(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Coord.Current(ctx, uid)
	if err != nil {
		return mapReservationErr(c, err)
	}
	if res == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active reservation"})
	}
	return c.JSON(http.StatusOK, toReservationPart(*res))
}

// Confirm marks arrival: the reservation becomes CONFIRMED and the spot
// OCCUPIED.  Expired or already-settled claims come back 409.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rid, err := reservationID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Coord.Confirm(ctx, uid, rid)
	if err != nil {
		return mapReservationErr(c, err)
	}
	return c.JSON(http.StatusOK, toReservationPart(*res))
}

// Cancel releases the caller's claim and frees the spot.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rid, err := reservationID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.Cancel(ctx, uid, rid, false); err != nil {
		return mapReservationErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// History lists the caller's reservations, newest first.
func (h *ReservationHandler) History(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Reservations.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]reservationPart, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationPart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Pass issues a signed gate pass for the reservation.  The returned
// token is what the client renders as a QR code at the barrier.
func (h *ReservationHandler) Pass(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rid, err := reservationID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pass, err := h.Passes.Issue(ctx, uid, rid)
	if err != nil {
		return mapReservationErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token":          pass.Token,
		"spot_id":        pass.SpotID,
		"reservation_id": pass.ReservationID,
		"expires_at":     pass.ExpiresAt,
	})
}
