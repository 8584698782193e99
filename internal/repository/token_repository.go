package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC())
	return eris.Wrapf(err, "store refresh token of user %d", userID)
}

// ValidateRefresh returns the owner of a live token.  Unknown, revoked and
// expired tokens are reported as unauthorized, as is a token whose owner
// has been deactivated.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
		active    bool
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT t.user_id, t.expires_at, t.revoked_at, u.is_active
		   FROM refresh_tokens t JOIN users u ON u.id = t.user_id
		  WHERE t.token_hash=? LIMIT 1`,
		tokenHash).Scan(&userID, &expiresAt, &revokedAt, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return 0, eris.Wrap(err, "validate refresh token")
	}
	if revokedAt.Valid || !active || time.Now().UTC().After(expiresAt) {
		return 0, apperr.Unauthorized("invalid refresh token")
	}
	return userID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return eris.Wrap(err, "revoke refresh token")
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return eris.Wrapf(err, "revoke refresh tokens of user %d", userID)
}
