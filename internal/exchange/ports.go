package exchange

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-exchange/internal/model"
)

// Store is the persistence port of the engine.  Reads happen outside any
// transaction; every state change goes through InTx so a transition's
// match and ticket writes commit or roll back together.
type Store interface {
	Ticket(ctx context.Context, id string) (model.TicketRequest, error)
	Match(ctx context.Context, id string) (model.Match, error)
	MatchesForOwner(ctx context.Context, ownerID uint64) ([]model.Match, error)
	UnresolvedMatchesForOwner(ctx context.Context, ownerID uint64) ([]model.Match, error)
	MatchesDue(ctx context.Context, now time.Time) ([]model.Match, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of a single unit of work.  The Swap methods are
// compare-and-set updates: when the row is not in one of the expected
// states they return apperr.ErrStale and write nothing.
type Tx interface {
	InsertTicket(ctx context.Context, t model.TicketRequest) error
	InsertMatch(ctx context.Context, m model.Match) error
	SwapMatchStatus(ctx context.Context, id string, from, to model.MatchStatus, entry model.HistoryEntry) error
	SwapTicketStatus(ctx context.Context, id string, from []model.TicketStatus, to model.TicketStatus) error
	SetCounterparty(ctx context.Context, ticketID string, snap model.ContactSnapshot) error
	DeactivateUser(ctx context.Context, userID uint64) error
	// DeactivateOpenTickets moves the owner's open tickets to deactivated.
	DeactivateOpenTickets(ctx context.Context, ownerID uint64) (int64, error)
}

// UserDirectory resolves user identity for snapshots and authorization.
type UserDirectory interface {
	User(ctx context.Context, id uint64) (model.User, error)
}

// GameResolver resolves game references.  Deleted games are reported as
// apperr.KindDangling.
type GameResolver interface {
	Game(ctx context.Context, id uint64) (model.Game, error)
}

// EventSink receives lifecycle events.  It is called off the request path
// and its failures never affect a transition.
type EventSink interface {
	Publish(ctx context.Context, ev LifecycleEvent) error
}

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID uint64
	Admin  bool
}
