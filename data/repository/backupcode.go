package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/nebulium/authcore/structs"
)

type backupCodeRepository struct {
	db *sql.DB
}

func (r *backupCodeRepository) Replace(ctx context.Context, userID string, codes []*structs.BackupCode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, code := range codes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO backup_codes (id, user_id, code_hash, used)
			VALUES ($1, $2, $3, FALSE)
		`, code.ID, code.UserID, code.CodeHash)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *backupCodeRepository) ListUnused(ctx context.Context, userID string) ([]*structs.BackupCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, code_hash, used, used_at FROM backup_codes
		WHERE user_id = $1 AND used = FALSE
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*structs.BackupCode
	for rows.Next() {
		code := &structs.BackupCode{}
		var usedAt sql.NullTime
		if err := rows.Scan(&code.ID, &code.UserID, &code.CodeHash, &code.Used, &usedAt); err != nil {
			return nil, err
		}
		if usedAt.Valid {
			code.UsedAt = &usedAt.Time
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Consume flips used on the single unused row. The used = FALSE guard makes
// concurrent consumptions of the same code mutually exclusive: exactly one
// update reports an affected row.
func (r *backupCodeRepository) Consume(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE backup_codes SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE
	`, id, usedAt)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *backupCodeRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID)
	return err
}
