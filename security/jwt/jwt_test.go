package jwt

import (
	"testing"
	"time"
)

func TestParseExpiry(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"15m", 15 * time.Minute},
		{"24h", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"1s", time.Second},
	}
	for _, tc := range cases {
		got, err := ParseExpiry(tc.in)
		if err != nil {
			t.Fatalf("ParseExpiry(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseExpiry(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseExpiryRejectsBadGrammar(t *testing.T) {
	for _, in := range []string{"", "15", "m15", "1.5h", "-3m", "15 m", "15M", "3w"} {
		if _, err := ParseExpiry(in); err == nil {
			t.Errorf("ParseExpiry(%q) accepted, want error", in)
		}
	}
}

func TestGenerateAndDecodeAccessToken(t *testing.T) {
	tm := NewTokenManager("secret", "authcore", "authcore")

	token, err := tm.GenerateAccessToken("jti-1", map[string]any{
		"user_id":     "u1",
		"email":       "a@example.com",
		"roles":       []string{"admin"},
		"permissions": []string{"*"},
		"session_id":  "s1",
	}, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	claims, err := tm.DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken error: %v", err)
	}
	if !IsAccessToken(claims) {
		t.Error("expected access token")
	}
	if IsRefreshToken(claims) {
		t.Error("did not expect refresh token")
	}
	if got := GetUserIDFromToken(claims); got != "u1" {
		t.Errorf("user id = %q, want u1", got)
	}
	if got := GetSessionIDFromToken(claims); got != "s1" {
		t.Errorf("session id = %q, want s1", got)
	}
	if got := GetJTI(claims); got != "jti-1" {
		t.Errorf("jti = %q, want jti-1", got)
	}
	roles := GetRolesFromToken(claims)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("roles = %v, want [admin]", roles)
	}
	perms := GetPermissionsFromToken(claims)
	if len(perms) != 1 || perms[0] != "*" {
		t.Errorf("permissions = %v, want [*]", perms)
	}
}

func TestDecodeTokenRejectsExpired(t *testing.T) {
	current := time.Now()
	tm := NewTokenManager("secret", "authcore", "authcore").WithClock(func() time.Time { return current })

	token, err := tm.GenerateAccessToken("jti", map[string]any{"user_id": "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	if _, err := tm.DecodeToken(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := tm.DecodeToken(token); err != ErrInvalidToken {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}
}

func TestDecodeTokenRejectsWrongKeyIssuerAudience(t *testing.T) {
	tm := NewTokenManager("secret", "authcore", "authcore")
	token, err := tm.GenerateAccessToken("jti", map[string]any{"user_id": "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	for name, other := range map[string]*TokenManager{
		"wrong key":      NewTokenManager("other", "authcore", "authcore"),
		"wrong issuer":   NewTokenManager("secret", "someone", "authcore"),
		"wrong audience": NewTokenManager("secret", "authcore", "someone"),
	} {
		if _, err := other.DecodeToken(token); err != ErrInvalidToken {
			t.Errorf("%s: error = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestGenerateRequiresSigningKey(t *testing.T) {
	tm := NewTokenManager("", "authcore", "authcore")
	if _, err := tm.GenerateAccessToken("jti", nil, time.Minute); err != ErrNeedSigningKey {
		t.Errorf("error = %v, want ErrNeedSigningKey", err)
	}
}

func TestRefreshTokenSubject(t *testing.T) {
	tm := NewTokenManager("secret", "authcore", "authcore")
	token, err := tm.GenerateRefreshToken("jti", map[string]any{"user_id": "u1", "session_id": "s1"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateRefreshToken error: %v", err)
	}
	claims, err := tm.DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken error: %v", err)
	}
	if !IsRefreshToken(claims) {
		t.Error("expected refresh token")
	}
	if IsAccessToken(claims) {
		t.Error("did not expect access token")
	}
}
