package config

import (
	"fmt"
	"time"

	securityjwt "github.com/nebulium/authcore/security/jwt"
	"github.com/spf13/viper"
)

// Auth auth config struct
type Auth struct {
	JWT     *JWT
	Lockout *Lockout
	MFA     *MFA

	// PasswordHashCost is the bcrypt cost factor for credential digests.
	PasswordHashCost int
}

// JWT jwt config struct. Expiry strings follow the compact grammar
// <integer><unit>, unit in {s, m, h, d}.
type JWT struct {
	Secret        string
	Issuer        string
	Audience      string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// Lockout failed-attempt lockout config struct
type Lockout struct {
	Threshold int
	Duration  time.Duration
}

// MFA second-factor config struct
type MFA struct {
	TOTPIssuer      string
	SMSCodeLifetime time.Duration
	BackupCodeCount int
}

// getAuth returns the auth config. Missing secret or malformed expiry
// grammar is a configuration error, fatal at startup.
func getAuth(v *viper.Viper) (*Auth, error) {
	jwt, err := getJWT(v)
	if err != nil {
		return nil, err
	}
	return &Auth{
		JWT:              jwt,
		Lockout:          getLockout(v),
		MFA:              getMFA(v),
		PasswordHashCost: getIntOrDefault(v, "auth.password_hash_cost", 12),
	}, nil
}

func getJWT(v *viper.Viper) (*JWT, error) {
	secret := v.GetString("auth.jwt.secret")
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt.secret is required")
	}

	accessExpiry, err := securityjwt.ParseExpiry(getStringOrDefault(v, "auth.jwt.access_expiry", "15m"))
	if err != nil {
		return nil, fmt.Errorf("auth.jwt.access_expiry: %w", err)
	}
	refreshExpiry, err := securityjwt.ParseExpiry(getStringOrDefault(v, "auth.jwt.refresh_expiry", "7d"))
	if err != nil {
		return nil, fmt.Errorf("auth.jwt.refresh_expiry: %w", err)
	}

	return &JWT{
		Secret:        secret,
		Issuer:        getStringOrDefault(v, "auth.jwt.issuer", "authcore"),
		Audience:      getStringOrDefault(v, "auth.jwt.audience", "authcore"),
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

func getLockout(v *viper.Viper) *Lockout {
	return &Lockout{
		Threshold: getIntOrDefault(v, "auth.lockout.threshold", 5),
		Duration:  getDurationOrDefault(v, "auth.lockout.duration", 30*time.Minute),
	}
}

func getMFA(v *viper.Viper) *MFA {
	return &MFA{
		TOTPIssuer:      getStringOrDefault(v, "auth.mfa.totp_issuer", "authcore"),
		SMSCodeLifetime: getDurationOrDefault(v, "auth.mfa.sms_code_lifetime", 5*time.Minute),
		BackupCodeCount: getIntOrDefault(v, "auth.mfa.backup_code_count", 10),
	}
}

// RateLimit per-endpoint-class rate limit config struct
type RateLimit struct {
	Login *Window
	MFA   *Window
	Reset *Window
}

// Window is a fixed attempt window.
type Window struct {
	MaxAttempts int
	Window      time.Duration
}

func getRateLimit(v *viper.Viper) *RateLimit {
	return &RateLimit{
		Login: getWindow(v, "rate_limit.login", 10, 15*time.Minute),
		MFA:   getWindow(v, "rate_limit.mfa", 5, 5*time.Minute),
		Reset: getWindow(v, "rate_limit.reset", 3, time.Hour),
	}
}

func getWindow(v *viper.Viper, key string, maxAttempts int, window time.Duration) *Window {
	return &Window{
		MaxAttempts: getIntOrDefault(v, key+".max_attempts", maxAttempts),
		Window:      getDurationOrDefault(v, key+".window", window),
	}
}
