package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterUser registers ticket, pairing and match routes under /v1.  All
// of them require a USER or ADMIN token; mutations are rate limited.
func RegisterUser(e *echo.Echo, h Handlers, o Options) {
	g := e.Group("/v1", authenticated(o)...)
	limited := optional(o.Limiter)

	g.POST("/tickets", h.Tickets.Create, limited...)
	g.GET("/tickets/:id", h.Tickets.Get)
	g.PATCH("/tickets/:id", h.Tickets.Update, limited...)
	g.DELETE("/tickets/:id", h.Tickets.Withdraw, limited...)
	g.GET("/me/tickets", h.Tickets.ListMine)

	g.POST("/score", h.Pairings.Score)
	g.GET("/tickets/:id/pairings", h.Pairings.Pairings)
	g.GET("/tickets/:id/pairings/best", h.Pairings.Best)
	g.GET("/me/pairings", h.Pairings.Mine)

	g.POST("/matches", h.Matches.Initiate, limited...)
	g.POST("/tickets/:id/direct-match", h.Matches.InitiateDirect, limited...)
	g.POST("/matches/:id/accept", h.Matches.Accept, limited...)
	g.POST("/matches/:id/cancel", h.Matches.Cancel, limited...)
	g.POST("/matches/:id/complete", h.Matches.Complete, limited...)
	g.GET("/matches/:id", h.Matches.Get)
	g.GET("/me/matches", h.Matches.ListMine)
}
