package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
)

// RegisterAuth registers the authentication endpoints.  Register and
// login live under /v1/auth and need no token; /v1/me requires a valid
// access token of either role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("USER", "ADMIN"))
	auth.GET("/me", a.Me)
}
