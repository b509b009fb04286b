package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prismfx/internal/models"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

type ResetTokenRepository struct {
	pool *pgxpool.Pool
}

func NewResetTokenRepository(pool *pgxpool.Pool) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

func (r *ResetTokenRepository) Create(ctx context.Context, token models.PasswordResetToken) error {
	const query = `
		INSERT INTO password_reset_tokens (
			id, user_id, token_hash, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
	)
	return err
}

// FindValidByHash returns an unused, unexpired token matching the hash.
func (r *ResetTokenRepository) FindValidByHash(ctx context.Context, tokenHash []byte) (models.PasswordResetToken, error) {
	const query = `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
	`

	row := r.pool.QueryRow(ctx, query, tokenHash)
	var token models.PasswordResetToken
	if err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PasswordResetToken{}, ErrResetTokenNotFound
		}
		return models.PasswordResetToken{}, err
	}
	return token, nil
}

func (r *ResetTokenRepository) MarkUsed(ctx context.Context, id string) error {
	const query = `
		UPDATE password_reset_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrResetTokenNotFound
	}
	return nil
}

// InvalidateByUser retires any outstanding tokens, used when a new one is
// issued or the password changes.
func (r *ResetTokenRepository) InvalidateByUser(ctx context.Context, userID string) error {
	const query = `
		UPDATE password_reset_tokens SET used_at = NOW() WHERE user_id = $1 AND used_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}
