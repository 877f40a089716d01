// Package service implements the authentication flows: session lifecycle,
// lockout accounting, second factors, auditing, and the login control flow
// that ties them together.
package service

import "errors"

// Sentinel errors mapped to business codes at the handler boundary.
// Anything else returned by a service is treated as a server fault.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrTwoFactorRequired  = errors.New("two-factor proof required")
	ErrTwoFactorInvalid   = errors.New("two-factor proof invalid")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrEmailExists        = errors.New("email already registered")
	ErrStateConflict      = errors.New("conflicting second-factor state")
	ErrNotFound           = errors.New("not found")
)
