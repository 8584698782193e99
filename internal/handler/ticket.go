package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// TicketStore is the ticket persistence used by the HTTP layer.
type TicketStore interface {
	Create(ctx context.Context, t model.TicketRequest) error
	Get(ctx context.Context, id string) (model.TicketRequest, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.TicketRequest, error)
	ListOpenForGame(ctx context.Context, gameID uint64) ([]model.TicketRequest, error)
	UpdateTerms(ctx context.Context, t model.TicketRequest) error
	Withdraw(ctx context.Context, id string, ownerID uint64) error
}

// UserLookup loads user records.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// GameLookup resolves a live game; deleted games are dangling.
type GameLookup interface {
	Game(ctx context.Context, id uint64) (model.Game, error)
}

// TicketHandler serves ticket management.
type TicketHandler struct {
	Tickets TicketStore
	Users   UserLookup
	Games   GameLookup
	Log     zerolog.Logger

	now   func() time.Time
	newID func() string
}

func NewTicketHandler(tickets TicketStore, users UserLookup, games GameLookup, log zerolog.Logger) *TicketHandler {
	return &TicketHandler{
		Tickets: tickets,
		Users:   users,
		Games:   games,
		Log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// ticketReq is the create and edit body.  Only the terms matching the
// ticket's kind are read.
type ticketReq struct {
	Kind            string            `json:"kind"`
	GameID          *uint64           `json:"game_id"`
	NumTickets      int               `json:"num_tickets"`
	TicketsTogether bool              `json:"tickets_together"`
	Buy             *model.BuyTerms   `json:"buy"`
	Sell            *model.SellTerms  `json:"sell"`
	Trade           *model.TradeTerms `json:"trade"`
}

// apply copies the editable fields onto t, keeping only t's kind of terms.
func (r ticketReq) apply(t *model.TicketRequest) {
	t.GameID = r.GameID
	t.NumTickets = r.NumTickets
	t.TicketsTogether = r.TicketsTogether
	t.Buy, t.Sell, t.Trade = nil, nil, nil
	switch t.Kind {
	case model.KindBuy:
		t.Buy = r.Buy
	case model.KindSell:
		t.Sell = r.Sell
	case model.KindTrade:
		t.Trade = r.Trade
	}
}

// toTicket validates a create body into a fresh ticket for owner.
func (r ticketReq) toTicket(owner model.User) (model.TicketRequest, error) {
	kind, ok := model.ParseKind(r.Kind)
	if !ok {
		return model.TicketRequest{}, apperr.Validation("kind must be buy, sell or trade")
	}
	t := model.TicketRequest{Kind: kind, OwnerID: owner.ID, Status: model.TicketOpen, UserSnapshot: owner.Snapshot()}
	r.apply(&t)
	t.Normalize()
	if err := t.Validate(); err != nil {
		return model.TicketRequest{}, err
	}
	return t, nil
}

func (h *TicketHandler) checkGame(ctx context.Context, id *uint64) error {
	if id == nil {
		return nil
	}
	_, err := h.Games.Game(ctx, *id)
	return err
}

// Create handles POST /v1/tickets.
func (h *TicketHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req ticketReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	owner, err := h.Users.GetByID(ctx, a.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !owner.IsActive {
		return writeError(c, h.Log, apperr.Unauthorized("account %d is deactivated", owner.ID))
	}
	t, err := req.toTicket(owner)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.checkGame(ctx, t.GameID); err != nil {
		return writeError(c, h.Log, err)
	}
	t.ID = h.newID()
	t.CreatedAt = h.now()
	t.UpdatedAt = t.CreatedAt
	if err := h.Tickets.Create(ctx, t); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, ownView(t))
}

// Get handles GET /v1/tickets/:id.  Other users see the redacted form.
func (h *TicketHandler) Get(c echo.Context) error {
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

	t, err := h.Tickets.Get(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, viewFor(t, a.UserID, a.Admin))
}

// ListMine handles GET /v1/me/tickets.
func (h *TicketHandler) ListMine(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	ts, err := h.Tickets.ListByOwner(ctx, a.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	items := make([]TicketView, 0, len(ts))
	for _, t := range ts {
		items = append(items, ownView(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Update handles PATCH /v1/tickets/:id.  The body replaces the editable
// fields; kind, owner and snapshots never change.
func (h *TicketHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req ticketReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.Tickets.Get(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if t.OwnerID != a.UserID {
		return writeError(c, h.Log, apperr.Unauthorized("ticket %s is not yours", id))
	}
	if t.Status != model.TicketOpen {
		return writeError(c, h.Log, apperr.InvalidState(string(t.Status), "ticket %s can only be changed while open", id))
	}
	if k, ok := model.ParseKind(req.Kind); ok && k != t.Kind {
		return writeError(c, h.Log, apperr.Validation("kind cannot be changed"))
	}
	req.apply(&t)
	t.Normalize()
	if err := t.Validate(); err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.checkGame(ctx, t.GameID); err != nil {
		return writeError(c, h.Log, err)
	}
	t.UpdatedAt = h.now()
	if err := h.Tickets.UpdateTerms(ctx, t); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ownView(t))
}

// Withdraw handles DELETE /v1/tickets/:id: an open ticket is cancelled,
// never removed.
func (h *TicketHandler) Withdraw(c echo.Context) error {
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

	if err := h.Tickets.Withdraw(ctx, id, a.UserID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": model.TicketCancelled})
}
