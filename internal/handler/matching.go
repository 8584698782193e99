package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/matching"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// Pairer is the matchmaker as seen by the HTTP layer.
type Pairer interface {
	Scorer() matching.Scorer
	FindPairings(ctx context.Context, ticketID string, includeAll bool) (matching.Pairings, error)
	FindBestPairings(ctx context.Context, ticketID string) (matching.Pairings, error)
	FindAllPairingsForUser(ctx context.Context, userID uint64) ([]matching.Pairings, error)
}

// PairingHandler serves scoring and pairing discovery.
type PairingHandler struct {
	Matchmaker Pairer
	Tickets    TicketStore
	Log        zerolog.Logger
}

func NewPairingHandler(m Pairer, tickets TicketStore, log zerolog.Logger) *PairingHandler {
	return &PairingHandler{Matchmaker: m, Tickets: tickets, Log: log}
}

type scoreReq struct {
	SellSide ticketReq `json:"sell_side"`
	BuySide  ticketReq `json:"buy_side"`
}

// Score handles POST /v1/score.  Both sides are ad-hoc requests that are
// validated but not stored.  Sides are oriented by kind, so a trade pair
// may use either slot.
func (h *PairingHandler) Score(c echo.Context) error {
	var req scoreReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	a, err := req.SellSide.toTicket(model.User{})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	b, err := req.BuySide.toTicket(model.User{})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Matchmaker.Scorer().Pair(a, b)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ownSource checks that the caller may run discovery for ticketID.
func (h *PairingHandler) ownSource(ctx context.Context, c echo.Context) (string, error) {
	a, err := actor(c)
	if err != nil {
		return "", err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return "", err
	}
	t, err := h.Tickets.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !a.Admin && t.OwnerID != a.UserID {
		return "", apperr.Unauthorized("ticket %s is not yours", id)
	}
	return id, nil
}

// Pairings handles GET /v1/tickets/:id/pairings?all=true.
func (h *PairingHandler) Pairings(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	id, err := h.ownSource(ctx, c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	all := false
	if v := c.QueryParam("all"); v != "" {
		if all, err = strconv.ParseBool(v); err != nil {
			return writeError(c, h.Log, apperr.Validation("all must be a boolean"))
		}
	}
	p, err := h.Matchmaker.FindPairings(ctx, id, all)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pairingsView(p))
}

// Best handles GET /v1/tickets/:id/pairings/best.
func (h *PairingHandler) Best(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	id, err := h.ownSource(ctx, c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	p, err := h.Matchmaker.FindBestPairings(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pairingsView(p))
}

// Mine handles GET /v1/me/pairings.
func (h *PairingHandler) Mine(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	all, err := h.Matchmaker.FindAllPairingsForUser(ctx, a.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	items := make([]PairingsView, 0, len(all))
	for _, p := range all {
		items = append(items, pairingsView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
