// Package jwt mints and verifies the signed, time-bounded tokens backing
// authcore sessions.
//
// Two token kinds exist: access tokens carry the full identity and
// authorization claim set; refresh tokens carry only the user and session
// IDs to limit their replay value. Verification is a pure function of the
// token and the server secret; it never consults storage.
package jwt

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	jwtstd "github.com/golang-jwt/jwt/v5"
)

// TokenError represents JWT token related errors
type TokenError string

func (e TokenError) Error() string {
	return string(e)
}

const (
	SubjectAccess  = "access"
	SubjectRefresh = "refresh"

	ErrNeedSigningKey = TokenError("cannot sign token without signing key")
	ErrInvalidToken   = TokenError("invalid token")
	ErrTokenParsing   = TokenError("token parsing error")
)

// expiryPattern is the compact duration grammar: <integer><unit>,
// unit in {s, m, h, d}.
var expiryPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseExpiry parses a compact duration string such as "90s", "15m",
// "24h", or "7d".
func ParseExpiry(s string) (time.Duration, error) {
	m := expiryPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid expiry %q: want <integer><unit>, unit in s/m/h/d", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid expiry %q: %w", s, err)
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// TokenManager handles JWT token operations
type TokenManager struct {
	key      string
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenManager creates a new TokenManager instance
func NewTokenManager(key, issuer, audience string) *TokenManager {
	return &TokenManager{
		key:      key,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// WithClock overrides the token clock; tests use this to drive expiry.
func (jtm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	jtm.now = now
	return jtm
}

// validateKey validates the signing key
func (jtm *TokenManager) validateKey() error {
	if jtm.key == "" {
		return ErrNeedSigningKey
	}
	return nil
}

// generateToken generates a signed JWT with the given subject and payload.
func (jtm *TokenManager) generateToken(jti, subject string, payload map[string]any, ttl time.Duration) (string, error) {
	if err := jtm.validateKey(); err != nil {
		return "", err
	}

	now := jtm.now()
	claims := jwtstd.MapClaims{
		"jti":     jti,
		"sub":     subject,
		"iss":     jtm.issuer,
		"aud":     jtm.audience,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
		"payload": payload,
	}

	t := jwtstd.NewWithClaims(jwtstd.SigningMethodHS256, claims)
	return t.SignedString([]byte(jtm.key))
}

// GenerateAccessToken mints an access token carrying the full claim set.
func (jtm *TokenManager) GenerateAccessToken(jti string, payload map[string]any, ttl time.Duration) (string, error) {
	return jtm.generateToken(jti, SubjectAccess, payload, ttl)
}

// GenerateRefreshToken mints a refresh token; callers pass the minimal
// payload (user id and session id only).
func (jtm *TokenManager) GenerateRefreshToken(jti string, payload map[string]any, ttl time.Duration) (string, error) {
	return jtm.generateToken(jti, SubjectRefresh, payload, ttl)
}

// DecodeToken verifies signature, expiry, issuer, and audience, and returns
// the claims. Any failure surfaces as ErrInvalidToken.
func (jtm *TokenManager) DecodeToken(tokenString string) (map[string]any, error) {
	if err := jtm.validateKey(); err != nil {
		return nil, err
	}

	token, err := jwtstd.Parse(tokenString, func(token *jwtstd.Token) (any, error) {
		return []byte(jtm.key), nil
	},
		jwtstd.WithValidMethods([]string{jwtstd.SigningMethodHS256.Alg()}),
		jwtstd.WithIssuer(jtm.issuer),
		jwtstd.WithAudience(jtm.audience),
		jwtstd.WithExpirationRequired(),
		jwtstd.WithTimeFunc(jtm.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwtstd.MapClaims)
	if !ok {
		return nil, ErrTokenParsing
	}
	return claims, nil
}

// GetTokenExpiryTime extracts the expiration time from decoded claims.
func GetTokenExpiryTime(claims map[string]any) (time.Time, error) {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, ErrTokenParsing
	}
	return time.Unix(int64(exp), 0), nil
}

// IsAccessToken reports whether the claims belong to an access token.
func IsAccessToken(claims map[string]any) bool {
	sub, _ := claims["sub"].(string)
	return sub == SubjectAccess
}

// IsRefreshToken reports whether the claims belong to a refresh token.
func IsRefreshToken(claims map[string]any) bool {
	sub, _ := claims["sub"].(string)
	return sub == SubjectRefresh
}

// GetJTI returns the token's jti claim.
func GetJTI(claims map[string]any) string {
	jti, _ := claims["jti"].(string)
	return jti
}

// getPayloadFromClaims extracts the payload from token claims
func getPayloadFromClaims(claims map[string]any) (map[string]any, bool) {
	payloadAny, ok := claims["payload"]
	if !ok {
		return nil, false
	}
	payload, ok := payloadAny.(map[string]any)
	return payload, ok
}

// GetPayloadString gets a string payload field from the token claims.
func GetPayloadString(claims map[string]any, key string) string {
	if payload, ok := getPayloadFromClaims(claims); ok {
		if s, ok := payload[key].(string); ok {
			return s
		}
	}
	return ""
}

// extractStringSlice extracts a string slice from the payload
func extractStringSlice(payload map[string]any, key string) []string {
	if valAny, ok := payload[key]; ok {
		switch slice := valAny.(type) {
		case []string:
			return slice
		case []any:
			result := make([]string, 0, len(slice))
			for _, item := range slice {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return []string{}
}

// GetRolesFromToken extracts role names from token claims
func GetRolesFromToken(claims map[string]any) []string {
	if payload, ok := getPayloadFromClaims(claims); ok {
		return extractStringSlice(payload, "roles")
	}
	return []string{}
}

// GetPermissionsFromToken extracts permissions from token claims
func GetPermissionsFromToken(claims map[string]any) []string {
	if payload, ok := getPayloadFromClaims(claims); ok {
		return extractStringSlice(payload, "permissions")
	}
	return []string{}
}

// GetUserIDFromToken gets the user ID from the token
func GetUserIDFromToken(claims map[string]any) string {
	return GetPayloadString(claims, "user_id")
}

// GetSessionIDFromToken gets the backing session ID from the token
func GetSessionIDFromToken(claims map[string]any) string {
	return GetPayloadString(claims, "session_id")
}
