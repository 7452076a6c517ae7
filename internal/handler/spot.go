package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-spot-reservation/internal/availability"
	"github.com/iliyamo/parking-spot-reservation/internal/model"
	"github.com/iliyamo/parking-spot-reservation/internal/repository"
)

// SpotHandler serves spot listings.  The plain listing reads straight
// from the database; the live views are answered from the in-memory
// availability projection so they never touch the store.
type SpotHandler struct {
	Spots *repository.SpotRepo
	Avail *availability.Sync
}

func NewSpotHandler(spots *repository.SpotRepo, avail *availability.Sync) *SpotHandler {
	return &SpotHandler{Spots: spots, Avail: avail}
}

type spotPart struct {
	ID      string           `json:"id"`
	Label   string           `json:"label"`
	Status  model.SpotStatus `json:"status"`
	Version uint64           `json:"version"`
}

func toSpotPart(s model.Spot) spotPart {
	return spotPart{ID: s.ID, Label: s.Label, Status: s.Status, Version: s.Version}
}

// List returns every spot ordered by label, straight from the store.
// Sits behind the response cache; freshness is bounded by the cache TTL.
func (h *SpotHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spots, err := h.Spots.ReadAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]spotPart, 0, len(spots))
	for _, s := range spots {
		out = append(out, toSpotPart(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"spots": out})
}

// Live returns the current availability snapshot from the projection.
func (h *SpotHandler) Live(c echo.Context) error {
	spots := h.Avail.Snapshot()
	free := 0
	out := make([]spotPart, 0, len(spots))
	for _, s := range spots {
		if s.Status == model.SpotFree {
			free++
		}
		out = append(out, toSpotPart(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"free": free, "spots": out})
}

// NextChange long-polls the projection for the next spot status change.
// Returns the changed spot, or 204 when the wait times out.  Clients
// poll this in a loop instead of hammering Live.
func (h *SpotHandler) NextChange(c echo.Context) error {
	wait := 25 * time.Second
	if raw := c.QueryParam("timeout_sec"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 60 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "timeout_sec must be 1..60"})
		}
		wait = time.Duration(n) * time.Second
	}

	updates, cancel := h.Avail.Subscribe()
	defer cancel()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s, ok := <-updates:
		if !ok {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, toSpotPart(s))
	case <-timer.C:
		return c.NoContent(http.StatusNoContent)
	case <-c.Request().Context().Done():
		return c.NoContent(http.StatusNoContent)
	}
}
