package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/matching"
)

// BoardHandler serves the unauthenticated game board.  Listed tickets are
// redacted exactly like pairing results.
type BoardHandler struct {
	Games   GameStore
	Tickets TicketStore
	Log     zerolog.Logger

	now func() time.Time
}

func NewBoardHandler(games GameStore, tickets TicketStore, log zerolog.Logger) *BoardHandler {
	return &BoardHandler{Games: games, Tickets: tickets, Log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ListGames handles GET /v1/games: live games that have not started yet.
func (h *BoardHandler) ListGames(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	games, err := h.Games.ListUpcoming(ctx, h.now())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": games})
}

// ListTickets handles GET /v1/games/:id/tickets.
func (h *BoardHandler) ListTickets(c echo.Context) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	game, err := h.Games.Game(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ts, err := h.Tickets.ListOpenForGame(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	items := make([]TicketView, 0, len(ts))
	for _, t := range ts {
		items = append(items, publicView(matching.Redact(t)))
	}
	return c.JSON(http.StatusOK, echo.Map{"game": game, "items": items})
}
