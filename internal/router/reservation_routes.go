package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
)

// RegisterReservations registers the hold / confirm / cancel flow and
// the personal reservation listing.  All routes require a valid JWT;
// both roles may reserve seats.  The rate limiter guards the two
// write-heavy endpoints that open ledger transactions.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("USER", "ADMIN"),
	)
	g.POST("/sessions/:id/hold", h.HoldSeats, limiter)
	g.POST("/reservations/:id/confirm", h.Confirm, limiter)
	g.POST("/reservations/:id/cancel", h.Cancel)
	g.GET("/my-reservations", h.ListReservations)
}
