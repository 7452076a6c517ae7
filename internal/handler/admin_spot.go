package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-spot-reservation/internal/model"
	"github.com/iliyamo/parking-spot-reservation/internal/repository"
	"github.com/iliyamo/parking-spot-reservation/internal/reservation"
)

// AdminSpotHandler covers lot provisioning and manual interventions.
// Provisioning writes straight to the repo; everything that moves a
// spot between states goes through the coordinator so the change feed
// stays consistent.
type AdminSpotHandler struct {
	Spots *repository.SpotRepo
	Coord *reservation.Coordinator
}

func NewAdminSpotHandler(spots *repository.SpotRepo, coord *reservation.Coordinator) *AdminSpotHandler {
	return &AdminSpotHandler{Spots: spots, Coord: coord}
}

type provisionReq struct {
	// Explicit labels ("A-01", "A-02") or a zone plus count to generate
	// "B-01".."B-20" style labels.  Exactly one form must be used.
	Labels []string `json:"labels"`
	Zone   string   `json:"zone"`
	Count  int      `json:"count"`
}

// Provision creates a batch of spots, all starting FREE.
func (h *AdminSpotHandler) Provision(c echo.Context) error {
	var req provisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	labels := make([]string, 0, len(req.Labels))
	for _, l := range req.Labels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		zone := strings.ToUpper(strings.TrimSpace(req.Zone))
		if zone == "" || req.Count < 1 || req.Count > 500 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "labels or zone+count (1..500) required"})
		}
		for i := 1; i <= req.Count; i++ {
			labels = append(labels, fmt.Sprintf("%s-%02d", zone, i))
		}
	}

	spots := make([]model.Spot, 0, len(labels))
	for _, l := range labels {
		spots = append(spots, model.Spot{ID: uuid.NewString(), Label: l, Status: model.SpotFree})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Spots.CreateBulk(ctx, spots); err != nil {
		if err == repository.ErrDuplicateSpot {
			return c.JSON(http.StatusConflict, echo.Map{"error": "label already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "provision failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": len(spots), "spots": spots})
}

// OutOfService pulls a FREE spot from rotation.
func (h *AdminSpotHandler) OutOfService(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.MarkOutOfService(ctx, c.Param("id")); err != nil {
		return mapReservationErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Restore puts an OUT_OF_SERVICE spot back in rotation.
func (h *AdminSpotHandler) Restore(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.RestoreService(ctx, c.Param("id")); err != nil {
		return mapReservationErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Vacate frees an OCCUPIED spot after the car has left, releasing the
// confirmed reservation with it.  Normally driven by the gate's exit
// scan; this is the manual override.
func (h *AdminSpotHandler) Vacate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.Vacate(ctx, c.Param("id")); err != nil {
		return mapReservationErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelReservation force-releases any user's reservation.
func (h *AdminSpotHandler) CancelReservation(c echo.Context) error {
	rid, err := reservationID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.Cancel(ctx, 0, rid, true); err != nil {
		return mapReservationErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
