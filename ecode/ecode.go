// Package ecode defines the business error codes surfaced by authcore.
//
// Codes are stable strings carried in the response envelope next to the
// HTTP status, so clients can branch on them without parsing messages.
package ecode

import "net/http"

const (
	AuthRequired      = "AUTH_REQUIRED"
	AuthFailed        = "AUTH_FAILED"
	TokenInvalid      = "TOKEN_INVALID"
	SessionInvalid    = "SESSION_INVALID"
	AccountLocked     = "ACCOUNT_LOCKED"
	TwoFactorRequired = "TWO_FACTOR_REQUIRED"
	TwoFactorInvalid  = "TWO_FACTOR_INVALID"
	PermissionDenied  = "PERMISSION_DENIED"
	RoleDenied        = "ROLE_DENIED"
	RateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	EmailExists       = "EMAIL_EXISTS"
	StateConflict     = "STATE_CONFLICT"
	ValidationFailed  = "VALIDATION_FAILED"
	RequestErr        = "BAD_REQUEST"
	ServerErr         = "SERVER_ERROR"
	NotFound          = "NOT_FOUND"
)

var texts = map[string]string{
	AuthRequired:      "authentication required",
	AuthFailed:        "invalid credentials",
	TokenInvalid:      "token is invalid or expired",
	SessionInvalid:    "session is invalid or expired",
	AccountLocked:     "account is temporarily locked",
	TwoFactorRequired: "a second factor is required",
	TwoFactorInvalid:  "second factor verification failed",
	PermissionDenied:  "permission denied",
	RoleDenied:        "role denied",
	RateLimitExceeded: "too many requests",
	EmailExists:       "a user with this email already exists",
	StateConflict:     "operation conflicts with current state",
	ValidationFailed:  "request validation failed",
	RequestErr:        "invalid request",
	ServerErr:         "internal server error",
	NotFound:          "not found",
}

var statuses = map[string]int{
	AuthRequired:      http.StatusUnauthorized,
	AuthFailed:        http.StatusUnauthorized,
	TokenInvalid:      http.StatusUnauthorized,
	SessionInvalid:    http.StatusUnauthorized,
	AccountLocked:     http.StatusLocked,
	TwoFactorRequired: http.StatusForbidden,
	TwoFactorInvalid:  http.StatusForbidden,
	PermissionDenied:  http.StatusForbidden,
	RoleDenied:        http.StatusForbidden,
	RateLimitExceeded: http.StatusTooManyRequests,
	EmailExists:       http.StatusConflict,
	StateConflict:     http.StatusConflict,
	ValidationFailed:  http.StatusUnprocessableEntity,
	RequestErr:        http.StatusBadRequest,
	ServerErr:         http.StatusInternalServerError,
	NotFound:          http.StatusNotFound,
}

// Text returns the human-readable message for a code.
func Text(code string) string {
	if msg, ok := texts[code]; ok {
		return msg
	}
	return texts[ServerErr]
}

// ToHTTPStatus returns the HTTP status a code maps to.
func ToHTTPStatus(code string) int {
	if status, ok := statuses[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
