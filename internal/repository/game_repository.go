package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// GameRepo provides access to the games table.  Games are soft-deleted so
// tickets keep a resolvable, if dangling, reference.
type GameRepo struct{ DB *sql.DB }

func NewGameRepo(db *sql.DB) *GameRepo { return &GameRepo{DB: db} }

const gameColumns = "id,opponent,starts_at,venue,deleted_at,created_at"

// Create inserts a game and returns it with its ID.
func (r *GameRepo) Create(ctx context.Context, g model.Game) (model.Game, error) {
	g.Opponent = strings.TrimSpace(g.Opponent)
	g.Venue = strings.TrimSpace(g.Venue)
	if g.Opponent == "" {
		return model.Game{}, apperr.Validation("opponent is required")
	}
	if g.StartsAt.IsZero() {
		return model.Game{}, apperr.Validation("starts_at is required")
	}
	g.StartsAt = g.StartsAt.UTC()
	g.CreatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO games (opponent, starts_at, venue, created_at) VALUES (?,?,?,?)",
		g.Opponent, g.StartsAt, g.Venue, g.CreatedAt)
	if err != nil {
		return model.Game{}, eris.Wrap(err, "insert game")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Game{}, eris.Wrap(err, "read game id")
	}
	g.ID = uint64(id)
	return g, nil
}

// Game resolves a live game.  A soft-deleted game yields a
// dangling_reference error, an unknown id a not_found error.
func (r *GameRepo) Game(ctx context.Context, id uint64) (model.Game, error) {
	var (
		g       model.Game
		deleted sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE id=? LIMIT 1", id).
		Scan(&g.ID, &g.Opponent, &g.StartsAt, &g.Venue, &deleted, &g.CreatedAt)
	if err != nil {
		return model.Game{}, lookup(err, "game", id)
	}
	if deleted.Valid {
		return model.Game{}, apperr.Dangling("game %d has been deleted", id)
	}
	return g, nil
}

// ListUpcoming returns live games starting after now, soonest first.
func (r *GameRepo) ListUpcoming(ctx context.Context, now time.Time) ([]model.Game, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+gameColumns+" FROM games WHERE deleted_at IS NULL AND starts_at >= ? ORDER BY starts_at, id",
		now.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "list games")
	}
	defer rows.Close()
	games := []model.Game{}
	for rows.Next() {
		var (
			g       model.Game
			deleted sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.Opponent, &g.StartsAt, &g.Venue, &deleted, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "scan game")
		}
		games = append(games, g)
	}
	return games, eris.Wrap(rows.Err(), "iterate games")
}

// SoftDelete marks a game deleted.  Deleting twice is a not_found.
func (r *GameRepo) SoftDelete(ctx context.Context, id uint64) error {
	err := affected(r.DB.ExecContext(ctx,
		"UPDATE games SET deleted_at=UTC_TIMESTAMP() WHERE id=? AND deleted_at IS NULL", id))
	if errors.Is(err, apperr.ErrStale) {
		return apperr.NotFound("game %d not found", id)
	}
	return eris.Wrapf(err, "delete game %d", id)
}
