package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/matching"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so the same statements
// serve plain reads and transactional writes.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TicketRepo stores ticket requests document-style: the shared fields are
// columns, kind-specific terms and the snapshots are JSON.
type TicketRepo struct{ DB *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{DB: db} }

const ticketColumns = "id,kind,owner_id,game_id,num_tickets,status,tickets_together,section_type," +
	"terms,user_snapshot,counterparty_snapshot,is_direct_match,created_at,updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (model.TicketRequest, error) {
	var (
		t            model.TicketRequest
		gameID       sql.NullInt64
		section      string
		terms        []byte
		snapshot     []byte
		counterparty []byte
	)
	err := row.Scan(&t.ID, &t.Kind, &t.OwnerID, &gameID, &t.NumTickets, &t.Status, &t.TicketsTogether,
		&section, &terms, &snapshot, &counterparty, &t.IsDirectMatch, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.TicketRequest{}, err
	}
	if gameID.Valid {
		id := uint64(gameID.Int64)
		t.GameID = &id
	}
	if err := decodeTerms(&t, terms); err != nil {
		return model.TicketRequest{}, err
	}
	if err := json.Unmarshal(snapshot, &t.UserSnapshot); err != nil {
		return model.TicketRequest{}, eris.Wrapf(err, "decode user snapshot of ticket %s", t.ID)
	}
	if len(counterparty) > 0 && string(counterparty) != "null" {
		var c model.ContactSnapshot
		if err := json.Unmarshal(counterparty, &c); err != nil {
			return model.TicketRequest{}, eris.Wrapf(err, "decode counterparty snapshot of ticket %s", t.ID)
		}
		t.CounterpartySnapshot = &c
	}
	return t, nil
}

func encodeTerms(t model.TicketRequest) ([]byte, error) {
	var v any
	switch t.Kind {
	case model.KindBuy:
		v = t.Buy
	case model.KindSell:
		v = t.Sell
	case model.KindTrade:
		v = t.Trade
	default:
		return nil, apperr.Validation("unknown ticket kind %q", t.Kind)
	}
	return json.Marshal(v)
}

func decodeTerms(t *model.TicketRequest, raw []byte) error {
	var err error
	switch t.Kind {
	case model.KindBuy:
		t.Buy = &model.BuyTerms{}
		err = json.Unmarshal(raw, t.Buy)
	case model.KindSell:
		t.Sell = &model.SellTerms{}
		err = json.Unmarshal(raw, t.Sell)
	case model.KindTrade:
		t.Trade = &model.TradeTerms{}
		err = json.Unmarshal(raw, t.Trade)
	default:
		return eris.Errorf("ticket %s has unknown kind %q", t.ID, t.Kind)
	}
	return eris.Wrapf(err, "decode terms of ticket %s", t.ID)
}

func nullableGame(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}

func insertTicket(ctx context.Context, q queryer, t model.TicketRequest) error {
	terms, err := encodeTerms(t)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(t.UserSnapshot)
	if err != nil {
		return eris.Wrap(err, "encode user snapshot")
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO tickets (id, kind, owner_id, game_id, num_tickets, status, tickets_together, section_type,
		                      terms, user_snapshot, is_direct_match, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Kind, t.OwnerID, nullableGame(t.GameID), t.NumTickets, t.Status, t.TicketsTogether, t.SectionType(),
		terms, snapshot, t.IsDirectMatch, t.CreatedAt, t.UpdatedAt)
	return eris.Wrapf(err, "insert ticket %s", t.ID)
}

func getTicket(ctx context.Context, q queryer, id string) (model.TicketRequest, error) {
	t, err := scanTicket(q.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id=? LIMIT 1", id))
	return t, lookup(err, "ticket", id)
}

func queryTickets(ctx context.Context, q queryer, where string, args ...any) ([]model.TicketRequest, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE "+where+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, eris.Wrap(err, "query tickets")
	}
	defer rows.Close()
	out := []model.TicketRequest{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan ticket")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "iterate tickets")
}

// swapTicketStatus is the guarded status update used by every lifecycle
// transition.
func swapTicketStatus(ctx context.Context, q queryer, id string, from []model.TicketStatus, to model.TicketStatus) error {
	if len(from) == 0 {
		return eris.Errorf("swap ticket %s: no expected status", id)
	}
	args := make([]any, 0, len(from)+3)
	args = append(args, to, time.Now().UTC(), id)
	for _, s := range from {
		args = append(args, s)
	}
	query := "UPDATE tickets SET status=?, updated_at=? WHERE id=? AND status IN (" + placeholders(len(from)) + ")"
	return affected(q.ExecContext(ctx, query, args...))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Create stores a new ticket.
func (r *TicketRepo) Create(ctx context.Context, t model.TicketRequest) error {
	return insertTicket(ctx, r.DB, t)
}

// Get fetches a ticket by id.
func (r *TicketRepo) Get(ctx context.Context, id string) (model.TicketRequest, error) {
	return getTicket(ctx, r.DB, id)
}

// ListByOwner returns every ticket of ownerID, oldest first.
func (r *TicketRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.TicketRequest, error) {
	return queryTickets(ctx, r.DB, "owner_id=?", ownerID)
}

// ListOpenByOwner returns the open tickets of ownerID.
func (r *TicketRepo) ListOpenByOwner(ctx context.Context, ownerID uint64) ([]model.TicketRequest, error) {
	return queryTickets(ctx, r.DB, "owner_id=? AND status=?", ownerID, model.TicketOpen)
}

// ListOpenForGame returns the open tickets listed for a game.
func (r *TicketRepo) ListOpenForGame(ctx context.Context, gameID uint64) ([]model.TicketRequest, error) {
	return queryTickets(ctx, r.DB, "game_id=? AND status=?", gameID, model.TicketOpen)
}

// OpenCandidates runs a candidate query.  Rows come back oldest first,
// which the matchmaker relies on for its tie-break.
func (r *TicketRepo) OpenCandidates(ctx context.Context, q matching.CandidateQuery) ([]model.TicketRequest, error) {
	where := "kind=? AND status=? AND owner_id<>?"
	args := []any{q.Kind, model.TicketOpen, q.ExcludeOwner}
	if q.GameID != nil {
		if q.IncludeAnyGame {
			where += " AND (game_id=? OR game_id IS NULL)"
		} else {
			where += " AND game_id=?"
		}
		args = append(args, *q.GameID)
	}
	return queryTickets(ctx, r.DB, where, args...)
}

// UpdateTerms rewrites the editable fields of an open ticket owned by
// t.OwnerID.  Kind, owner and snapshots are never touched.
func (r *TicketRepo) UpdateTerms(ctx context.Context, t model.TicketRequest) error {
	terms, err := encodeTerms(t)
	if err != nil {
		return err
	}
	err = affected(r.DB.ExecContext(ctx,
		`UPDATE tickets SET game_id=?, num_tickets=?, tickets_together=?, section_type=?, terms=?, updated_at=?
		  WHERE id=? AND owner_id=? AND status=?`,
		nullableGame(t.GameID), t.NumTickets, t.TicketsTogether, t.SectionType(), terms, time.Now().UTC(),
		t.ID, t.OwnerID, model.TicketOpen))
	if errors.Is(err, apperr.ErrStale) {
		return r.explain(ctx, t.ID, t.OwnerID)
	}
	return eris.Wrapf(err, "update ticket %s", t.ID)
}

// Withdraw cancels an open ticket of ownerID.
func (r *TicketRepo) Withdraw(ctx context.Context, id string, ownerID uint64) error {
	err := affected(r.DB.ExecContext(ctx,
		"UPDATE tickets SET status=?, updated_at=? WHERE id=? AND owner_id=? AND status=?",
		model.TicketCancelled, time.Now().UTC(), id, ownerID, model.TicketOpen))
	if errors.Is(err, apperr.ErrStale) {
		return r.explain(ctx, id, ownerID)
	}
	return eris.Wrapf(err, "withdraw ticket %s", id)
}

// explain reports why a guarded owner update matched no row.
func (r *TicketRepo) explain(ctx context.Context, id string, ownerID uint64) error {
	t, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.OwnerID != ownerID {
		return apperr.Unauthorized("ticket %s is not yours", id)
	}
	if t.Status.Terminal() {
		return apperr.InvalidState(string(t.Status), "ticket %s is %s and can no longer be changed", id, t.Status)
	}
	return apperr.InvalidState(string(t.Status), "ticket %s can only be changed while open", id)
}
