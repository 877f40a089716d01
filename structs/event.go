package structs

import "time"

// EventType enumerates the security-relevant actions the auditor records.
type EventType string

const (
	EventLoginSuccess         EventType = "login_success"
	EventLoginFailure         EventType = "login_failure"
	EventLoginLocked          EventType = "login_locked"
	EventPasswordChanged      EventType = "password_changed"
	EventPasswordResetRequest EventType = "password_reset_requested"
	EventPasswordResetDone    EventType = "password_reset_completed"
	EventTwoFactorEnabled     EventType = "two_factor_enabled"
	EventTwoFactorDisabled    EventType = "two_factor_disabled"
	EventBackupCodeUsed       EventType = "backup_code_used"
	EventSuspiciousActivity   EventType = "suspicious_activity"
	EventSessionCreated       EventType = "session_created"
	EventSessionRevoked       EventType = "session_revoked"
	EventPermissionDenied     EventType = "permission_denied"
	EventEmailVerified        EventType = "email_verified"
	EventAccountCreated       EventType = "account_created"
)

// Severity classifies how urgently an event needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Escalates reports whether the severity triggers the notification path.
func (s Severity) Escalates() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// SecurityEvent is an immutable, append-only audit record.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	UserID    string            `json:"user_id,omitempty"`
	IPAddress string            `json:"ip_address"`
	UserAgent string            `json:"user_agent"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// EventStatistics aggregates the event log over a window for operational
// dashboards. It plays no part in authorization decisions.
type EventStatistics struct {
	TotalEvents        int64            `json:"total_events"`
	ByType             map[string]int64 `json:"by_type"`
	BySeverity         map[string]int64 `json:"by_severity"`
	SuspiciousActivity int64            `json:"suspicious_activity_count"`
	LockedAccounts     int64            `json:"locked_account_count"`
}
