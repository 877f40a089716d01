package repository

import (
	"context"
	"database/sql"
)

// initSchema creates the authcore tables when they do not exist. The DDL
// sticks to the dialect intersection of postgres and sqlite.
func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			two_factor_secret TEXT NOT NULL DEFAULT '',
			failed_attempts INTEGER NOT NULL DEFAULT 0,
			locked_until TIMESTAMP,
			last_login_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			bearer_token TEXT NOT NULL UNIQUE,
			refresh_token TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			last_used_at TIMESTAMP NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id)`,
		`CREATE TABLE IF NOT EXISTS roles (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			permissions TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT NOT NULL,
			role_name TEXT NOT NULL,
			PRIMARY KEY (user_id, role_name)
		)`,
		`CREATE TABLE IF NOT EXISTS backup_codes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			code_hash TEXT NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE,
			used_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backup_codes_user ON backup_codes (user_id)`,
		`CREATE TABLE IF NOT EXISTS sms_codes (
			phone TEXT PRIMARY KEY,
			code TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS security_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON security_events (created_at)`,
		`CREATE TABLE IF NOT EXISTS verification_tokens (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			purpose TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
