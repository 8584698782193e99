package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/exchange"
	"github.com/iliyamo/ticket-exchange/internal/matching"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// Store adapts the repositories to the ports of the matchmaker and the
// exchange engine.
type Store struct {
	DB      *sql.DB
	Tickets *TicketRepo
	Matches *MatchRepo
	Users   *UserRepo
	Games   *GameRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:      db,
		Tickets: NewTicketRepo(db),
		Matches: NewMatchRepo(db),
		Users:   NewUserRepo(db),
		Games:   NewGameRepo(db),
	}
}

var (
	_ matching.Source        = (*Store)(nil)
	_ matching.GameResolver  = (*Store)(nil)
	_ exchange.Store         = (*Store)(nil)
	_ exchange.UserDirectory = (*Store)(nil)
	_ exchange.GameResolver  = (*Store)(nil)
)

func (s *Store) Ticket(ctx context.Context, id string) (model.TicketRequest, error) {
	return s.Tickets.Get(ctx, id)
}

func (s *Store) OpenCandidates(ctx context.Context, q matching.CandidateQuery) ([]model.TicketRequest, error) {
	return s.Tickets.OpenCandidates(ctx, q)
}

func (s *Store) OpenTicketsByOwner(ctx context.Context, ownerID uint64) ([]model.TicketRequest, error) {
	return s.Tickets.ListOpenByOwner(ctx, ownerID)
}

func (s *Store) Game(ctx context.Context, id uint64) (model.Game, error) {
	return s.Games.Game(ctx, id)
}

func (s *Store) User(ctx context.Context, id uint64) (model.User, error) {
	return s.Users.GetByID(ctx, id)
}

func (s *Store) Match(ctx context.Context, id string) (model.Match, error) {
	return s.Matches.Get(ctx, id)
}

func (s *Store) MatchesForOwner(ctx context.Context, ownerID uint64) ([]model.Match, error) {
	return s.Matches.ListForOwner(ctx, ownerID)
}

func (s *Store) UnresolvedMatchesForOwner(ctx context.Context, ownerID uint64) ([]model.Match, error) {
	return s.Matches.ListUnresolvedForOwner(ctx, ownerID)
}

func (s *Store) MatchesDue(ctx context.Context, now time.Time) ([]model.Match, error) {
	return s.Matches.ListDue(ctx, now)
}

// InTx runs fn inside one SQL transaction and commits when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx exchange.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(sqlTx{tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}

// sqlTx implements exchange.Tx on a *sql.Tx.
type sqlTx struct{ tx *sql.Tx }

func (t sqlTx) InsertTicket(ctx context.Context, tk model.TicketRequest) error {
	return insertTicket(ctx, t.tx, tk)
}

func (t sqlTx) InsertMatch(ctx context.Context, m model.Match) error {
	return insertMatch(ctx, t.tx, m)
}

func (t sqlTx) SwapMatchStatus(ctx context.Context, id string, from, to model.MatchStatus, entry model.HistoryEntry) error {
	return swapMatchStatus(ctx, t.tx, id, from, to, entry)
}

func (t sqlTx) SwapTicketStatus(ctx context.Context, id string, from []model.TicketStatus, to model.TicketStatus) error {
	return swapTicketStatus(ctx, t.tx, id, from, to)
}

func (t sqlTx) SetCounterparty(ctx context.Context, ticketID string, snap model.ContactSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "encode counterparty snapshot")
	}
	_, err = t.tx.ExecContext(ctx,
		"UPDATE tickets SET counterparty_snapshot=?, updated_at=? WHERE id=?",
		raw, time.Now().UTC(), ticketID)
	return eris.Wrapf(err, "set counterparty of ticket %s", ticketID)
}

func (t sqlTx) DeactivateUser(ctx context.Context, userID uint64) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE users SET is_active=0 WHERE id=?", userID)
	return eris.Wrapf(err, "deactivate user %d", userID)
}

func (t sqlTx) DeactivateOpenTickets(ctx context.Context, ownerID uint64) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE tickets SET status=?, updated_at=? WHERE owner_id=? AND status=?",
		model.TicketDeactivated, time.Now().UTC(), ownerID, model.TicketOpen)
	if err != nil {
		return 0, eris.Wrapf(err, "deactivate tickets of user %d", ownerID)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "count deactivated tickets")
}
