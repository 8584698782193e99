package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-exchange/internal/handler"
	"github.com/iliyamo/ticket-exchange/internal/middleware"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// RegisterAdmin registers /v1/admin.  Every route requires the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, o Options) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(o.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/games", h.CreateGame)
	g.DELETE("/games/:id", h.DeleteGame)
	g.POST("/matches/expire", h.ExpireMatches)
	g.POST("/users/:id/deactivate", h.DeactivateUser)
}
