package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ev-charging-reservation/internal/config"
	"github.com/iliyamo/ev-charging-reservation/internal/handler"
	"github.com/iliyamo/ev-charging-reservation/internal/middleware"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring systems to verify that the
	// service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts a refresh_token in the body or a Bearer access token
	// and does not require the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleDriver, model.RoleOperator))
	auth.GET("/me", a.Me)

	// Alias outside the protected group so a refresh token alone can end
	// a session.
	e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers unauthenticated station discovery endpoints.
// Responses are cached in Redis because availability queries dominate
// traffic; the short TTL keeps the displayed counters close to live.
func RegisterPublic(e *echo.Echo, s *handler.StationHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	e.GET("/v1/stations", s.List, cache)
	e.GET("/v1/stations/:id", s.Get, cache)
}

// RegisterBookings registers driver-scoped booking endpoints under /v1.
// All routes require a valid JWT; both DRIVER and OPERATOR roles may
// book.  The rate limiter protects the write path against bursts.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleDriver, model.RoleOperator),
		middleware.NewTokenBucket(rlCfg, rdb),
	)
	g.POST("/bookings", b.Create)
	g.GET("/bookings", b.List)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id/cancel", b.Cancel)
}

// RegisterOperator registers OPERATOR-scoped station management
// endpoints under /v1.
func RegisterOperator(e *echo.Echo, s *handler.StationHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOperator),
	)
	g.POST("/stations", s.Create)
	g.PUT("/stations/:id", s.Update)
	g.PATCH("/stations/:id", s.Update) // alias for clients that use PATCH
}
