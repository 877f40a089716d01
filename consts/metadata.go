package consts

// AuthorizationKey Authorization header key
const AuthorizationKey string = "Authorization"

// BearerKey Bearer token prefix
const BearerKey string = "Bearer "

// TwoFactorTokenKey header carrying a time-based second-factor code
const TwoFactorTokenKey string = "X-Two-Factor-Token"

// BackupCodeKey header carrying a single-use backup code
const BackupCodeKey string = "X-Backup-Code"

// GinContextKey gin context key
const GinContextKey = "gin-context"

// TraceKey global trace id
const TraceKey string = "x-md-trace"

// UserKey global user id
const UserKey string = "x-md-uid"

// UserEmailKey global user email
const UserEmailKey = "x-md-email"

// SessionKey global session id
const SessionKey string = "x-md-sid"

// TokenKey global token
const TokenKey string = "x-md-token"
