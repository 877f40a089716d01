package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/nebulium/authcore/structs"
)

type smsCodeRepository struct {
	db *sql.DB
}

func (r *smsCodeRepository) Upsert(ctx context.Context, code *structs.SmsCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sms_codes (phone, code, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET code = $2, expires_at = $3
	`, code.Phone, code.Code, code.ExpiresAt)
	return err
}

// Consume verifies and deletes in one statement. A wrong guess deletes
// nothing, so the live code survives until its expiry.
func (r *smsCodeRepository) Consume(ctx context.Context, phone, code string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sms_codes WHERE phone = $1 AND code = $2 AND expires_at > $3
	`, phone, code, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *smsCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sms_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
