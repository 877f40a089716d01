package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/nebulium/authcore/structs"
)

type verificationTokenRepository struct {
	db *sql.DB
}

func (r *verificationTokenRepository) Replace(ctx context.Context, token *structs.VerificationToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM verification_tokens WHERE user_id = $1 AND purpose = $2
	`, token.UserID, token.Purpose)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO verification_tokens (token, user_id, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.Token, token.UserID, token.Purpose, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Consume deletes the token and returns its owner in one statement, so a
// token can be redeemed at most once.
func (r *verificationTokenRepository) Consume(ctx context.Context, token, purpose string, now time.Time) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM verification_tokens
		WHERE token = $1 AND purpose = $2 AND expires_at > $3
		RETURNING user_id
	`, token, purpose, now).Scan(&userID)
	if err != nil {
		return "", wrapNotFound(err)
	}
	return userID, nil
}

func (r *verificationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM verification_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
