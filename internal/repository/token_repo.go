package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-service/internal/model"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, t model.RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, token, user_id, expires_at, is_revoked, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		t.ID, t.Token, t.UserID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// FindByToken only matches live rows; revoked tokens are invisible here.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.pool.QueryRow(ctx,
		`SELECT id, token, user_id, expires_at, is_revoked, created_at
		 FROM refresh_tokens WHERE token = $1 AND is_revoked = false`, token).
		Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return t, nil
}

// RevokeByToken reports whether this call transitioned the row. The
// conditional update is the arbiter for concurrent rotation attempts:
// exactly one caller observes true.
func (r *TokenRepository) RevokeByToken(ctx context.Context, token string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET is_revoked = true WHERE token = $1 AND is_revoked = false`,
		token)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TokenRepository) RevokeAllByUser(ctx context.Context, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET is_revoked = true WHERE user_id = $1 AND is_revoked = false`,
		userID)
	if err != nil {
		return false, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpiredBefore removes rows past their expiry. The predicate is
// row-scoped so the sweep never blocks concurrent inserts.
func (r *TokenRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
