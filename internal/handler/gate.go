package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-spot-reservation/internal/gate"
	"github.com/iliyamo/parking-spot-reservation/internal/model"
	"github.com/iliyamo/parking-spot-reservation/internal/reservation"
)

// GateHandler is what the barrier terminal talks to.  A scan validates
// the presented pass against live state and then drives the matching
// transition: arrival confirms the reservation, departure vacates the
// spot.
type GateHandler struct {
	Passes *gate.Issuer
	Coord  *reservation.Coordinator
}

func NewGateHandler(passes *gate.Issuer, coord *reservation.Coordinator) *GateHandler {
	return &GateHandler{Passes: passes, Coord: coord}
}

type scanReq struct {
	Token string `json:"token"`
}

// Scan validates a pass and opens the barrier in the right direction.
// A pass on a RESERVED spot is an entry: the reservation gets confirmed
// and the spot becomes OCCUPIED.  A pass on an OCCUPIED spot is an
// exit: the spot is vacated.  Both legs re-check state, so a replayed
// or stale pass is refused even when its signature still verifies.
func (h *GateHandler) Scan(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	scan, err := h.Passes.Validate(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		switch {
		case errors.Is(err, gate.ErrBadPass):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid pass"})
		case errors.Is(err, gate.ErrPassRevoked):
			return c.JSON(http.StatusConflict, echo.Map{"error": "pass no longer valid"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan failed"})
		}
	}

	switch scan.SpotStatus {
	case model.SpotReserved:
		// Arrival: settle the reservation on behalf of the driver.
		if _, err := h.Coord.Confirm(ctx, scan.UserID, scan.ReservationID); err != nil {
			return mapReservationErr(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"action": "enter", "spot_id": scan.SpotID})
	case model.SpotOccupied:
		// Departure: free the spot and close out the stay.
		if err := h.Coord.Vacate(ctx, scan.SpotID); err != nil {
			return mapReservationErr(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"action": "exit", "spot_id": scan.SpotID})
	default:
		return c.JSON(http.StatusConflict, echo.Map{"error": "pass no longer valid"})
	}
}
