// Package repository defines the persistence contracts for authcore and
// their relational implementations.
//
// Operations that back security invariants are phrased as single atomic
// statements: the failed-attempt increment, backup-code consumption, and
// SMS-code verify-and-delete never read-modify-write across round trips.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nebulium/authcore/structs"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// UserRepository persists principals and their lockout state.
type UserRepository interface {
	Create(ctx context.Context, user *structs.User) error
	FindByID(ctx context.Context, id string) (*structs.User, error)
	FindByEmail(ctx context.Context, email string) (*structs.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	SetEmailVerified(ctx context.Context, id string, at time.Time) error
	SetTwoFactor(ctx context.Context, id, secret string, enabled bool, at time.Time) error

	// IncrementFailedAttempts atomically bumps the counter and returns the
	// new value. Two concurrent failures must never observe the same count.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	// Lock sets the lock expiry and zeroes the counter in one statement.
	Lock(ctx context.Context, id string, until time.Time) error
	// ResetLockout zeroes the counter, clears the lock, and stamps the
	// last successful login.
	ResetLockout(ctx context.Context, id string, lastLogin time.Time) error
	// CountLocked counts principals whose lock expiry is in the future.
	CountLocked(ctx context.Context, now time.Time) (int64, error)
}

// SessionRepository persists session records.
type SessionRepository interface {
	Create(ctx context.Context, session *structs.Session) error
	FindByID(ctx context.Context, id string) (*structs.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteByUserIDExcept(ctx context.Context, userID, keepSessionID string) error
	ListByUserID(ctx context.Context, userID string, now time.Time) ([]*structs.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RoleRepository resolves the roles granted to a principal.
type RoleRepository interface {
	Upsert(ctx context.Context, role *structs.Role) error
	Grant(ctx context.Context, userID, roleName string) error
	ListByUser(ctx context.Context, userID string) ([]*structs.Role, error)
}

// BackupCodeRepository persists hashed single-use recovery codes.
type BackupCodeRepository interface {
	// Replace persists the new set and removes any prior set atomically.
	Replace(ctx context.Context, userID string, codes []*structs.BackupCode) error
	ListUnused(ctx context.Context, userID string) ([]*structs.BackupCode, error)
	// Consume marks one code used. It reports false when the code was
	// already used, so two concurrent verifications of the same code
	// cannot both succeed.
	Consume(ctx context.Context, id string, usedAt time.Time) (bool, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

// SmsCodeRepository persists one-time SMS codes, at most one live code per
// phone number.
type SmsCodeRepository interface {
	// Upsert stores the code, replacing any prior code for the phone.
	Upsert(ctx context.Context, code *structs.SmsCode) error
	// Consume deletes the code iff it matches and is unexpired, in one
	// statement. A mismatch does not burn a still-valid code.
	Consume(ctx context.Context, phone, code string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// EventRepository appends and aggregates security events.
type EventRepository interface {
	Insert(ctx context.Context, event *structs.SecurityEvent) error
	Statistics(ctx context.Context, since time.Time) (*structs.EventStatistics, error)
}

// VerificationTokenRepository persists expiring single-use tokens for the
// email-verification and password-reset flows.
type VerificationTokenRepository interface {
	// Replace stores the token, displacing any prior token for the same
	// user and purpose.
	Replace(ctx context.Context, token *structs.VerificationToken) error
	// Consume deletes the token iff it matches the purpose and is
	// unexpired, returning the owning user ID.
	Consume(ctx context.Context, token, purpose string, now time.Time) (string, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Repositories bundles every repository over one database handle.
type Repositories struct {
	Users              UserRepository
	Sessions           SessionRepository
	Roles              RoleRepository
	BackupCodes        BackupCodeRepository
	SmsCodes           SmsCodeRepository
	Events             EventRepository
	VerificationTokens VerificationTokenRepository
}

// NewSQL initializes the schema and returns SQL-backed repositories.
func NewSQL(ctx context.Context, db *sql.DB) (*Repositories, error) {
	if err := initSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Repositories{
		Users:              &userRepository{db: db},
		Sessions:           &sessionRepository{db: db},
		Roles:              &roleRepository{db: db},
		BackupCodes:        &backupCodeRepository{db: db},
		SmsCodes:           &smsCodeRepository{db: db},
		Events:             &eventRepository{db: db},
		VerificationTokens: &verificationTokenRepository{db: db},
	}, nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
