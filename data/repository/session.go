package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/nebulium/authcore/structs"
)

type sessionRepository struct {
	db *sql.DB
}

const sessionColumns = `id, user_id, bearer_token, refresh_token, expires_at,
	last_used_at, ip_address, user_agent, created_at`

func (r *sessionRepository) Create(ctx context.Context, session *structs.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, bearer_token, refresh_token, expires_at,
			last_used_at, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		session.ID,
		session.UserID,
		session.BearerToken,
		session.RefreshToken,
		session.ExpiresAt,
		session.LastUsedAt,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
	)
	return err
}

func (r *sessionRepository) FindByID(ctx context.Context, id string) (*structs.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// Touch only moves last_used_at forward, so a delayed write cannot rewind a
// newer timestamp.
func (r *sessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_used_at = $2 WHERE id = $1 AND last_used_at < $2
	`, id, at)
	return err
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *sessionRepository) DeleteByUserIDExcept(ctx context.Context, userID, keepSessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE user_id = $1 AND id <> $2
	`, userID, keepSessionID)
	return err
}

func (r *sessionRepository) ListByUserID(ctx context.Context, userID string, now time.Time) ([]*structs.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY last_used_at DESC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*structs.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*structs.Session, error) {
	session := &structs.Session{}
	err := scanner.Scan(
		&session.ID,
		&session.UserID,
		&session.BearerToken,
		&session.RefreshToken,
		&session.ExpiresAt,
		&session.LastUsedAt,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return session, nil
}
