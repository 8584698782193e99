package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/model"
)

// MatchRepo reads matches together with their history.  Writes happen
// through Store.InTx only.
type MatchRepo struct{ DB *sql.DB }

func NewMatchRepo(db *sql.DB) *MatchRepo { return &MatchRepo{DB: db} }

const matchColumns = "m.id,m.initiator_ticket_id,m.matched_ticket_id,m.status,m.expires_at,m.created_at,m.updated_at"

// ownedBy restricts a match query to matches touching a ticket of one owner.
const ownedBy = ` FROM matches m
	JOIN tickets a ON a.id = m.initiator_ticket_id
	JOIN tickets b ON b.id = m.matched_ticket_id
	WHERE (a.owner_id=? OR b.owner_id=?)`

func scanMatch(row rowScanner) (model.Match, error) {
	var (
		m       model.Match
		expires sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.InitiatorTicketID, &m.MatchedTicketID, &m.Status, &expires, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return model.Match{}, err
	}
	if expires.Valid {
		t := expires.Time
		m.ExpiresAt = &t
	}
	return m, nil
}

func loadHistory(ctx context.Context, q queryer, matchID string) ([]model.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT status, changed_by, changed_at, notes FROM match_history WHERE match_id=? ORDER BY id", matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "load history of match %s", matchID)
	}
	defer rows.Close()
	history := []model.HistoryEntry{}
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.Status, &h.ChangedBy, &h.ChangedAt, &h.Notes); err != nil {
			return nil, eris.Wrap(err, "scan history entry")
		}
		history = append(history, h)
	}
	return history, eris.Wrap(rows.Err(), "iterate history")
}

func (r *MatchRepo) query(ctx context.Context, query string, args ...any) ([]model.Match, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query matches")
	}
	out := []model.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "scan match")
		}
		out = append(out, m)
	}
	if err := rows.Close(); err != nil {
		return nil, eris.Wrap(err, "close match rows")
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate matches")
	}
	// history is loaded after the cursor is released; a pool of one
	// connection would otherwise deadlock
	for i := range out {
		if out[i].History, err = loadHistory(ctx, r.DB, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Get fetches a match with its full history.
func (r *MatchRepo) Get(ctx context.Context, id string) (model.Match, error) {
	m, err := scanMatch(r.DB.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches m WHERE m.id=? LIMIT 1", id))
	if err != nil {
		return model.Match{}, lookup(err, "match", id)
	}
	if m.History, err = loadHistory(ctx, r.DB, id); err != nil {
		return model.Match{}, err
	}
	return m, nil
}

// ListForOwner returns every match touching a ticket of ownerID, newest first.
func (r *MatchRepo) ListForOwner(ctx context.Context, ownerID uint64) ([]model.Match, error) {
	return r.query(ctx, "SELECT "+matchColumns+ownedBy+" ORDER BY m.created_at DESC, m.id", ownerID, ownerID)
}

// ListUnresolvedForOwner returns initiated and accepted matches of ownerID.
func (r *MatchRepo) ListUnresolvedForOwner(ctx context.Context, ownerID uint64) ([]model.Match, error) {
	return r.query(ctx, "SELECT "+matchColumns+ownedBy+" AND m.status IN (?,?) ORDER BY m.created_at, m.id",
		ownerID, ownerID, model.MatchInitiated, model.MatchAccepted)
}

// ListDue returns unresolved matches whose deadline is at or before now.
func (r *MatchRepo) ListDue(ctx context.Context, now time.Time) ([]model.Match, error) {
	return r.query(ctx,
		"SELECT "+matchColumns+" FROM matches m WHERE m.status IN (?,?) AND m.expires_at IS NOT NULL AND m.expires_at<=? ORDER BY m.expires_at, m.id",
		model.MatchInitiated, model.MatchAccepted, now.UTC())
}

func insertMatch(ctx context.Context, q queryer, m model.Match) error {
	var expires any
	if m.ExpiresAt != nil {
		expires = m.ExpiresAt.UTC()
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO matches (id, initiator_ticket_id, matched_ticket_id, status, expires_at, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)`,
		m.ID, m.InitiatorTicketID, m.MatchedTicketID, m.Status, expires, m.CreatedAt, m.UpdatedAt); err != nil {
		return eris.Wrapf(err, "insert match %s", m.ID)
	}
	for _, h := range m.History {
		if err := insertHistory(ctx, q, m.ID, h); err != nil {
			return err
		}
	}
	return nil
}

func insertHistory(ctx context.Context, q queryer, matchID string, h model.HistoryEntry) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO match_history (match_id, status, changed_by, changed_at, notes) VALUES (?,?,?,?,?)",
		matchID, h.Status, h.ChangedBy, h.ChangedAt, h.Notes)
	return eris.Wrapf(err, "append history to match %s", matchID)
}

// swapMatchStatus is the compare-and-set on matches.status.  Zero affected
// rows means another transition won and yields apperr.ErrStale.
func swapMatchStatus(ctx context.Context, q queryer, id string, from, to model.MatchStatus, entry model.HistoryEntry) error {
	if err := affected(q.ExecContext(ctx,
		"UPDATE matches SET status=?, updated_at=? WHERE id=? AND status=?",
		to, entry.ChangedAt, id, from)); err != nil {
		return err
	}
	return insertHistory(ctx, q, id, entry)
}
