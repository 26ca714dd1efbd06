// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/handler"
)

// RegisterRoutes registers routes that require no authentication:
// the health check and the public browse endpoints.  Guests can
// inspect the catalog, the seat map and the live seat stream before
// registering; only holding a seat requires an account.
func RegisterRoutes(e *echo.Echo, events *handler.EventHandler, sessions *handler.SessionHandler) {
	e.GET("/healthz", handler.Health)

	// Public event catalog
	e.GET("/v1/events", events.ListEvents)
	e.GET("/v1/events/:id", events.GetEvent)

	// Public session views: details, projected seat map and the
	// server-sent seat-update stream.
	e.GET("/v1/sessions/:id", sessions.GetSession)
	e.GET("/v1/sessions/:id/seats", sessions.ListSeats)
	e.GET("/v1/sessions/:id/stream", sessions.StreamSeats)
}
