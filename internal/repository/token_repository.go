package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/jobboard-auth/internal/model"
)

const insertRefreshSQL = `INSERT INTO refresh_tokens (user_id, token_hash, device_info, issued_at, expires_at, revoked)
	VALUES (:user_id, :token_hash, :device_info, :issued_at, :expires_at, :revoked)`

// TokenRepo persists refresh tokens keyed by the digest of the signed token.
type TokenRepo struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db, Now: time.Now} }

// Store inserts a refresh token row.
func (r *TokenRepo) Store(ctx context.Context, rec model.RefreshToken) error {
	if _, err := r.DB.NamedExecContext(ctx, insertRefreshSQL, rec); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetByHash returns the row whatever its state; callers decide with
// RefreshToken.State.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.GetContext(ctx, &t,
		`SELECT id, user_id, token_hash, device_info, issued_at, expires_at, last_used_at, revoked
		 FROM refresh_tokens WHERE token_hash=? LIMIT 1`, tokenHash)
	return t, notFound(err, ErrTokenNotFound)
}

// Rotate revokes oldHash and inserts next in one transaction. The revoke is
// conditional on the row still being active, and the insert only happens
// when exactly one row was revoked, so two concurrent rotations of the same
// token cannot both succeed: the loser blocks on the row lock and then
// matches nothing.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, next model.RefreshToken) (err error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit rotate: %w", cerr)
		}
	}()

	now := r.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked=1, last_used_at=?
		 WHERE token_hash=? AND revoked=0 AND expires_at > ?`,
		now, oldHash, now)
	if err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	if n != 1 {
		return ErrTokenNotActive
	}
	if _, err = tx.NamedExecContext(ctx, insertRefreshSQL, next); err != nil {
		return fmt.Errorf("insert rotated token: %w", err)
	}
	return nil
}

// Revoke marks a token as revoked. Unknown or already revoked tokens are not
// an error.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE token_hash=? AND revoked=0",
		tokenHash); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE user_id=? AND revoked=0",
		userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}
