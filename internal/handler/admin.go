package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/model"
)

// GameStore manages games.
type GameStore interface {
	GameLookup
	Create(ctx context.Context, g model.Game) (model.Game, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]model.Game, error)
	SoftDelete(ctx context.Context, id uint64) error
}

// AdminHandler serves /v1/admin.  Routes are guarded by RequireRole(ADMIN);
// the engine checks the actor again.
type AdminHandler struct {
	Games  GameStore
	Engine Lifecycle
	Log    zerolog.Logger
}

func NewAdminHandler(games GameStore, engine Lifecycle, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{Games: games, Engine: engine, Log: log}
}

type gameReq struct {
	Opponent string    `json:"opponent"`
	StartsAt time.Time `json:"starts_at"`
	Venue    string    `json:"venue"`
}

// CreateGame handles POST /v1/admin/games.
func (h *AdminHandler) CreateGame(c echo.Context) error {
	var req gameReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	g, err := h.Games.Create(ctx, model.Game{Opponent: req.Opponent, StartsAt: req.StartsAt, Venue: req.Venue})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, g)
}

// DeleteGame handles DELETE /v1/admin/games/:id.  Tickets referencing the
// game keep the reference, which becomes dangling.
func (h *AdminHandler) DeleteGame(c echo.Context) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Games.SoftDelete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExpireMatches handles POST /v1/admin/matches/expire.
func (h *AdminHandler) ExpireMatches(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	expired, err := h.Engine.ExpireDue(ctx, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if expired == nil {
		expired = []model.Match{}
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": expired})
}

// DeactivateUser handles POST /v1/admin/users/:id/deactivate.
func (h *AdminHandler) DeactivateUser(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := uintParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Engine.DeactivateOwner(ctx, id, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
