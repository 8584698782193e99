// Package router registers the HTTP routes on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/ticket-exchange/internal/handler"
	"github.com/iliyamo/ticket-exchange/internal/middleware"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// Handlers are the route targets.
type Handlers struct {
	Auth     *handler.AuthHandler
	Tickets  *handler.TicketHandler
	Pairings *handler.PairingHandler
	Matches  *handler.MatchHandler
	Admin    *handler.AdminHandler
	Board    *handler.BoardHandler
	DB       handler.Pinger
}

// Options carry the cross-cutting middleware.  Nil middleware is skipped.
type Options struct {
	JWTSecret string
	// Limiter guards mutation routes.
	Limiter echo.MiddlewareFunc
	// Cache fronts the public game board.
	Cache echo.MiddlewareFunc
}

// Register wires every route.
func Register(e *echo.Echo, h Handlers, o Options) {
	RegisterOps(e, h.DB)
	RegisterAuth(e, h.Auth, o)
	RegisterPublic(e, h.Board, o)
	RegisterUser(e, h, o)
	RegisterAdmin(e, h.Admin, o)
}

// RegisterOps exposes the health check and Prometheus metrics.
func RegisterOps(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers /v1/auth and the authenticated /v1/me profile.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, o Options) {
	g := e.Group("/v1/auth", optional(o.Limiter)...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts either a refresh token or a bearer, so no JWT middleware
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, authenticated(o)...)
}

// RegisterPublic registers the unauthenticated game board.
func RegisterPublic(e *echo.Echo, b *handler.BoardHandler, o Options) {
	cache := optional(o.Cache)
	e.GET("/v1/games", b.ListGames, cache...)
	e.GET("/v1/games/:id/tickets", b.ListTickets, cache...)
}

func authenticated(o Options) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(o.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	}
}

func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
