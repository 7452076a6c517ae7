package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-spot-reservation/internal/handler"
	"github.com/iliyamo/parking-spot-reservation/internal/middleware"
)

// RegisterDriver registers driver-scoped endpoints under /v1.  All routes
// require a valid JWT and the DRIVER role.  Drivers can request a spot,
// inspect and settle their reservation, fetch a gate pass and manage
// their vehicles.  The optional limiter throttles reservation requests
// per user.
func RegisterDriver(e *echo.Echo, r *handler.ReservationHandler, v *handler.VehicleHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("DRIVER"),
	)

	// Requesting a spot is the only write worth throttling: it walks the
	// availability snapshot and races other callers for rows.
	if limiter != nil {
		g.POST("/reservations", r.Request, limiter)
	} else {
		g.POST("/reservations", r.Request)
	}
	g.GET("/reservations/current", r.Current)
	g.GET("/reservations", r.History)
	g.POST("/reservations/:id/confirm", r.Confirm)
	g.DELETE("/reservations/:id", r.Cancel)
	g.GET("/reservations/:id/pass", r.Pass)

	g.POST("/vehicles", v.Create)
	g.GET("/vehicles", v.List)
	g.GET("/vehicles/:id", v.Get)
	g.DELETE("/vehicles/:id", v.Delete)
}
