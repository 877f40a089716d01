// Package structs defines the authentication domain models.
package structs

import "time"

// User is the principal owning sessions, second factors, and audit events.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone,omitempty"`
	EmailVerified    bool       `json:"email_verified"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	TwoFactorSecret  string     `json:"-"`
	FailedAttempts   int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Session is the server-side record backing a token pair. It is revocable
// independently of token expiry.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	BearerToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role names a set of permission strings. The literal "*" grants
// unrestricted access.
type Role struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
}

// BackupCode is a single-use second-factor recovery credential. Only the
// one-way hash of the code is ever persisted.
type BackupCode struct {
	ID       string     `json:"id"`
	UserID   string     `json:"user_id"`
	CodeHash string     `json:"-"`
	Used     bool       `json:"used"`
	UsedAt   *time.Time `json:"used_at,omitempty"`
}

// SmsCode is a short-lived one-time code. At most one live code exists per
// phone number; issuing a new one replaces any prior code.
type SmsCode struct {
	Phone     string    `json:"phone"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationToken is a persisted, expiring, single-use token backing the
// email-verification and password-reset flows.
type VerificationToken struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Purpose   string    `json:"purpose"` // "email_verify" or "password_reset"
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationToken purposes.
const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)

// TokenPair is the minted access/refresh pair returned at login and
// refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TotpEnrollment is returned when a user begins time-based second-factor
// enrollment. BackupCodes are shown exactly once; only their hashes are
// kept.
type TotpEnrollment struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}
