package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/parking-spot-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/parking-spot-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session (register, login,
	// refresh).  Each handler is responsible for generating or exchanging
	// tokens.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout does not require JWT authentication: the handler accepts a
	// JSON body containing a `refresh_token` or a bearer header and
	// invalidates the matching session(s).
	g.POST("/logout", a.Logout)

	// Routes that require a valid access token.  Any authenticated role
	// may call them.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("DRIVER", "ADMIN", "GATE"))
	auth.GET("/me", a.Me)

	// Also reachable outside the auth prefix so clients can call either
	// /v1/auth/logout or /v1/logout.
	e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests can
// inspect the lot before creating an account.  The spot listing sits
// behind the Redis response cache when one is configured.
func RegisterPublic(e *echo.Echo, s *handler.SpotHandler, cache echo.MiddlewareFunc) {
	if cache != nil {
		e.GET("/v1/spots", s.List, cache)
	} else {
		e.GET("/v1/spots", s.List)
	}
	// Live views are answered from the in-memory projection; no cache.
	e.GET("/v1/spots/live", s.Live)
	e.GET("/v1/spots/next-change", s.NextChange)
}
