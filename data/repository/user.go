package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/nebulium/authcore/structs"
)

type userRepository struct {
	db *sql.DB
}

const userColumns = `id, email, password_hash, name, phone, email_verified,
	two_factor_enabled, two_factor_secret, failed_attempts, locked_until,
	last_login_at, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *structs.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, email_verified,
			two_factor_enabled, two_factor_secret, failed_attempts, locked_until,
			last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Phone,
		user.EmailVerified,
		user.TwoFactorEnabled,
		user.TwoFactorSecret,
		user.FailedAttempts,
		user.LockedUntil,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*structs.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*structs.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, id, passwordHash, at)
	return err
}

func (r *userRepository) SetEmailVerified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1
	`, id, at)
	return err
}

func (r *userRepository) SetTwoFactor(ctx context.Context, id, secret string, enabled bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET two_factor_secret = $2, two_factor_enabled = $3, updated_at = $4
		WHERE id = $1
	`, id, secret, enabled, at)
	return err
}

// IncrementFailedAttempts is a single read-increment-write statement; the
// storage engine serializes it, so concurrent failures each observe a
// distinct count.
func (r *userRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET failed_attempts = failed_attempts + 1
		WHERE id = $1
		RETURNING failed_attempts
	`, id).Scan(&count)
	if err != nil {
		return 0, wrapNotFound(err)
	}
	return count, nil
}

func (r *userRepository) Lock(ctx context.Context, id string, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET locked_until = $2, failed_attempts = 0 WHERE id = $1
	`, id, until)
	return err
}

func (r *userRepository) ResetLockout(ctx context.Context, id string, lastLogin time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login_at = $2
		WHERE id = $1
	`, id, lastLogin)
	return err
}

func (r *userRepository) CountLocked(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE locked_until IS NOT NULL AND locked_until > $1
	`, now).Scan(&count)
	return count, err
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*structs.User, error) {
	user := &structs.User{}
	var lockedUntil, lastLoginAt sql.NullTime

	err := scanner.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Phone,
		&user.EmailVerified,
		&user.TwoFactorEnabled,
		&user.TwoFactorSecret,
		&user.FailedAttempts,
		&lockedUntil,
		&lastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err)
	}

	if lockedUntil.Valid {
		user.LockedUntil = &lockedUntil.Time
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	return user, nil
}
