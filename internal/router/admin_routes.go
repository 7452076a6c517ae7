package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-spot-reservation/internal/handler"
	"github.com/iliyamo/parking-spot-reservation/internal/middleware"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
// Admins provision spots, take them in and out of service, vacate
// occupied spots and force-release reservations.
func RegisterAdmin(e *echo.Echo, a *handler.AdminSpotHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.POST("/spots", a.Provision)
	g.POST("/spots/:id/out-of-service", a.OutOfService)
	g.POST("/spots/:id/restore", a.Restore)
	g.POST("/spots/:id/vacate", a.Vacate)
	g.DELETE("/reservations/:id", a.CancelReservation)
}

// RegisterGate registers the barrier terminal endpoint.  Gate devices
// authenticate with their own service accounts carrying the GATE role.
func RegisterGate(e *echo.Echo, gh *handler.GateHandler, jwtSecret string) {
	g := e.Group(
		"/v1/gate",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("GATE"),
	)
	g.POST("/scan", gh.Scan)
}
