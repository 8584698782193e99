package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/exchange"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// Lifecycle is the exchange engine as seen by the HTTP layer.
type Lifecycle interface {
	Initiate(ctx context.Context, initiatorTicketID, matchedTicketID string, actor exchange.Actor) (model.Match, error)
	InitiateDirect(ctx context.Context, targetTicketID string, actor exchange.Actor) (model.Match, model.TicketRequest, error)
	Accept(ctx context.Context, matchID string, actor exchange.Actor) (model.Match, error)
	Cancel(ctx context.Context, matchID string, actor exchange.Actor, reason string) (model.Match, error)
	Complete(ctx context.Context, matchID string, actor exchange.Actor) (model.Match, error)
	Get(ctx context.Context, matchID string, actor exchange.Actor) (model.Match, error)
	MatchesFor(ctx context.Context, userID uint64) ([]model.Match, error)
	ExpireDue(ctx context.Context, actor exchange.Actor) ([]model.Match, error)
	DeactivateOwner(ctx context.Context, ownerID uint64, actor exchange.Actor) (exchange.Deactivation, error)
}

var _ Lifecycle = (*exchange.Engine)(nil)

// MatchHandler serves the match lifecycle.
type MatchHandler struct {
	Engine Lifecycle
	Log    zerolog.Logger
}

func NewMatchHandler(engine Lifecycle, log zerolog.Logger) *MatchHandler {
	return &MatchHandler{Engine: engine, Log: log}
}

type initiateReq struct {
	InitiatorTicketID string `json:"initiator_ticket_id"`
	MatchedTicketID   string `json:"matched_ticket_id"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Initiate handles POST /v1/matches.
func (h *MatchHandler) Initiate(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req initiateReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	req.InitiatorTicketID = strings.TrimSpace(req.InitiatorTicketID)
	req.MatchedTicketID = strings.TrimSpace(req.MatchedTicketID)
	if req.InitiatorTicketID == "" || req.MatchedTicketID == "" {
		return writeError(c, h.Log, apperr.Validation("initiator_ticket_id and matched_ticket_id are required"))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	m, err := h.Engine.Initiate(ctx, req.InitiatorTicketID, req.MatchedTicketID, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// InitiateDirect handles POST /v1/tickets/:id/direct-match.  The response
// carries the proxy ticket created for the caller.
func (h *MatchHandler) InitiateDirect(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	m, t, err := h.Engine.InitiateDirect(ctx, id, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"match": m, "ticket": ownView(t)})
}

func (h *MatchHandler) Accept(c echo.Context) error {
	return h.transition(c, func(ctx context.Context, id string, a exchange.Actor) (model.Match, error) {
		return h.Engine.Accept(ctx, id, a)
	})
}

// Cancel accepts an optional {"reason": "..."} body.
func (h *MatchHandler) Cancel(c echo.Context) error {
	var req cancelReq
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return writeError(c, h.Log, err)
		}
	}
	return h.transition(c, func(ctx context.Context, id string, a exchange.Actor) (model.Match, error) {
		return h.Engine.Cancel(ctx, id, a, strings.TrimSpace(req.Reason))
	})
}

func (h *MatchHandler) Complete(c echo.Context) error {
	return h.transition(c, func(ctx context.Context, id string, a exchange.Actor) (model.Match, error) {
		return h.Engine.Complete(ctx, id, a)
	})
}

func (h *MatchHandler) transition(c echo.Context, fn func(context.Context, string, exchange.Actor) (model.Match, error)) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	m, err := fn(ctx, id, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Get handles GET /v1/matches/:id.
func (h *MatchHandler) Get(c echo.Context) error {
	return h.transition(c, h.Engine.Get)
}

// ListMine handles GET /v1/me/matches.
func (h *MatchHandler) ListMine(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	ms, err := h.Engine.MatchesFor(ctx, a.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if ms == nil {
		ms = []model.Match{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": ms})
}
