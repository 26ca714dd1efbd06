package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
)

// RegisterAdmin registers the management endpoints under /v1/admin.
// Every route requires a valid JWT with the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.POST("/events", h.CreateEvent)
	g.PUT("/events/:id", h.UpdateEvent)
	g.DELETE("/events/:id", h.DeleteEvent)
	g.POST("/sessions", h.CreateSession)
	g.GET("/reservations", h.ListAllReservations)
	g.GET("/analytics", h.Analytics)
}
