package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nebulium/authcore/cache"
	"github.com/nebulium/authcore/crypto"
	"github.com/nebulium/authcore/data/repository/memory"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/messaging/email"
	securityjwt "github.com/nebulium/authcore/security/jwt"
	"github.com/nebulium/authcore/security/totp"
	"github.com/nebulium/authcore/structs"
)

type capturingMailer struct {
	mu        sync.Mutex
	templates []email.Template
}

func (m *capturingMailer) SendTemplateEmail(_ string, t email.Template) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, t)
	return "queued", nil
}

// lastToken pulls the token query parameter out of the most recent mail.
func (m *capturingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.templates) == 0 {
		t.Fatal("no mail captured")
	}
	u, err := url.Parse(m.templates[len(m.templates)-1].URL)
	if err != nil {
		t.Fatalf("parse mail URL: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("mail URL %q carries no token", u)
	}
	return token
}

type authFixture struct {
	svc      *AuthService
	sessions *SessionService
	mfa      *MfaService
	users    *memory.UserRepository
	roles    *memory.RoleRepository
	events   *memory.EventRepository
	mailer   *capturingMailer
	now      time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  memory.NewUserRepository(),
		roles:  memory.NewRoleRepository(),
		events: memory.NewEventRepository(),
		mailer: &capturingMailer{},
		now:    time.Unix(1700000000, 0),
	}
	clock := func() time.Time { return f.now }
	log := logger.StdLogger()
	hasher := crypto.NewHasher(bcrypt.MinCost)

	f.sessions = NewSessionService(
		memory.NewSessionRepository(),
		cache.NewCache[structs.Session](nil, "session"),
		24*time.Hour,
		log,
	).WithClock(clock)
	lockout := NewLockoutService(f.users, 5, 30*time.Minute, log).WithClock(clock)
	f.mfa = NewMfaService(
		f.users,
		memory.NewBackupCodeRepository(),
		memory.NewSmsCodeRepository(),
		hasher,
		&capturingSmsSender{},
		"authcore",
		5*time.Minute,
		10,
		log,
	).WithClock(clock)
	audit := NewAuditService(f.events, f.users, nil, log).WithClock(clock)
	tokenManager := securityjwt.NewTokenManager("test-signing-key", "authcore", "authcore").WithClock(clock)

	f.svc = NewAuthService(AuthServiceParams{
		Users:        f.users,
		Roles:        f.roles,
		Tokens:       memory.NewVerificationTokenRepository(),
		Sessions:     f.sessions,
		Lockout:      lockout,
		Mfa:          f.mfa,
		Audit:        audit,
		Hasher:       hasher,
		TokenManager: tokenManager,
		Mailer:       f.mailer,
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
		BaseURL:      "http://localhost:3000",
		Logger:       log,
	}).WithClock(clock)
	return f
}

func (f *authFixture) register(t *testing.T, emailAddr, password string) *structs.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), "Test User", emailAddr, password)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	return user
}

func (f *authFixture) hasEvent(eventType structs.EventType) bool {
	for _, event := range f.events.Events() {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "dup@example.com", "hunter2hunter2")

	_, err := f.svc.Register(context.Background(), "Other", "dup@example.com", "different9pass")
	if err != ErrEmailExists {
		t.Fatalf("error = %v, want ErrEmailExists", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")

	result, err := f.svc.Login(context.Background(), LoginInput{
		Email:     "a@example.com",
		Password:  "hunter2hunter2",
		IPAddress: "10.0.0.1",
		UserAgent: "test",
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("token pair incomplete")
	}
	if result.Tokens.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d, want %d", result.Tokens.ExpiresIn, int64((15 * time.Minute).Seconds()))
	}
	if result.Session == nil || result.Session.UserID != result.User.ID {
		t.Fatal("session missing or misattributed")
	}
	if !f.hasEvent(structs.EventLoginSuccess) || !f.hasEvent(structs.EventSessionCreated) {
		t.Error("login events not recorded")
	}

	claims, err := securityjwt.NewTokenManager("test-signing-key", "authcore", "authcore").
		WithClock(func() time.Time { return f.now }).
		DecodeToken(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("DecodeToken error: %v", err)
	}
	if got := securityjwt.GetUserIDFromToken(claims); got != result.User.ID {
		t.Errorf("token user_id = %q, want %q", got, result.User.ID)
	}
	if got := securityjwt.GetSessionIDFromToken(claims); got != result.Session.ID {
		t.Errorf("token session_id = %q, want %q", got, result.Session.ID)
	}
}

func TestLoginUnknownAccountLooksLikeBadPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")

	_, unknownErr := f.svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "whatever123"})
	_, wrongErr := f.svc.Login(context.Background(), LoginInput{Email: "a@example.com", Password: "wrongwrong1"})

	if unknownErr != ErrInvalidCredentials || wrongErr != ErrInvalidCredentials {
		t.Fatalf("errors = (%v, %v), want both ErrInvalidCredentials", unknownErr, wrongErr)
	}
}

func TestLoginLocksAfterThreshold(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrongwrong1"}); err != ErrInvalidCredentials {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i+1, err)
		}
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrongwrong1"}); err != ErrAccountLocked {
		t.Fatalf("fifth attempt error = %v, want ErrAccountLocked", err)
	}
	if !f.hasEvent(structs.EventLoginLocked) {
		t.Error("lock event not recorded")
	}

	// Correct credentials are refused while the lock holds.
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"}); err != ErrAccountLocked {
		t.Fatalf("locked login error = %v, want ErrAccountLocked", err)
	}

	f.now = f.now.Add(30*time.Minute + time.Second)
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("post-expiry login error: %v", err)
	}
}

func TestLoginSecondFactor(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	enrollment, err := f.mfa.Enroll(ctx, user.ID)
	if err != nil {
		t.Fatalf("Enroll error: %v", err)
	}
	code, err := totp.CodeAt(enrollment.Secret, f.now)
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	if err := f.mfa.Enable(ctx, user.ID, code); err != nil {
		t.Fatalf("Enable error: %v", err)
	}

	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"}); err != ErrTwoFactorRequired {
		t.Fatalf("no-proof login error = %v, want ErrTwoFactorRequired", err)
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2", TotpCode: "000000"}); err != ErrTwoFactorInvalid {
		t.Fatalf("bad-code login error = %v, want ErrTwoFactorInvalid", err)
	}

	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2", TotpCode: code}); err != nil {
		t.Fatalf("totp login error: %v", err)
	}

	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2", BackupCode: enrollment.BackupCodes[0]}); err != nil {
		t.Fatalf("backup-code login error: %v", err)
	}
	if !f.hasEvent(structs.EventBackupCodeUsed) {
		t.Error("backup-code event not recorded")
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2", BackupCode: enrollment.BackupCodes[0]}); err != ErrTwoFactorInvalid {
		t.Fatalf("spent backup-code login error = %v, want ErrTwoFactorInvalid", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2", IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	refreshed, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if refreshed.Session.ID == login.Session.ID {
		t.Fatal("refresh reused the session instead of rotating")
	}
	if refreshed.Session.IPAddress != login.Session.IPAddress {
		t.Error("rotated session lost the request metadata")
	}

	// The old session is gone, so replaying the old refresh token fails.
	if _, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken); err != ErrSessionInvalid {
		t.Fatalf("replay error = %v, want ErrSessionInvalid", err)
	}

	if _, err := f.svc.Refresh(ctx, "not.a.token"); err != ErrTokenInvalid {
		t.Fatalf("garbage token error = %v, want ErrTokenInvalid", err)
	}

	// An access token is not accepted on the refresh path.
	if _, err := f.svc.Refresh(ctx, refreshed.Tokens.AccessToken); err != ErrTokenInvalid {
		t.Fatalf("access-token refresh error = %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if err := f.svc.Logout(ctx, login.User.ID, login.Session.ID); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	session, err := f.sessions.Validate(ctx, login.Session.ID)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if session != nil {
		t.Error("session survived logout")
	}
	if !f.hasEvent(structs.EventSessionRevoked) {
		t.Error("revocation event not recorded")
	}
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	first, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	second, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	err = f.svc.ChangePassword(ctx, first.User.ID, first.Session.ID, "wrongwrong1", "newpassword9")
	if err != ErrInvalidCredentials {
		t.Fatalf("wrong current password error = %v, want ErrInvalidCredentials", err)
	}

	if err := f.svc.ChangePassword(ctx, first.User.ID, first.Session.ID, "hunter2hunter2", "newpassword9"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	if s, _ := f.sessions.Validate(ctx, first.Session.ID); s == nil {
		t.Error("current session was revoked by its own password change")
	}
	if s, _ := f.sessions.Validate(ctx, second.Session.ID); s != nil {
		t.Error("other session survived the password change")
	}

	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"}); err != ErrInvalidCredentials {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "newpassword9"}); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	// Unknown addresses get the same silent success.
	if err := f.svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown-address request error: %v", err)
	}
	if len(f.mailer.templates) != 0 {
		t.Fatal("mail sent for an unknown address")
	}

	login, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if err := f.svc.RequestPasswordReset(ctx, "a@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}
	token := f.mailer.lastToken(t)
	if !strings.Contains(f.mailer.templates[len(f.mailer.templates)-1].URL, "/auth/password/reset/confirm") {
		t.Error("reset mail points at the wrong path")
	}

	if err := f.svc.ConfirmPasswordReset(ctx, token, "resetpass123"); err != nil {
		t.Fatalf("ConfirmPasswordReset error: %v", err)
	}
	if s, _ := f.sessions.Validate(ctx, login.Session.ID); s != nil {
		t.Error("session survived a password reset")
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "resetpass123"}); err != nil {
		t.Errorf("reset password rejected: %v", err)
	}

	// The token is single-use.
	if err := f.svc.ConfirmPasswordReset(ctx, token, "anotherpass1"); err != ErrTokenInvalid {
		t.Fatalf("token replay error = %v, want ErrTokenInvalid", err)
	}
	if !f.hasEvent(structs.EventPasswordResetDone) {
		t.Error("reset completion event not recorded")
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	if err := f.svc.RequestPasswordReset(ctx, "a@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}
	token := f.mailer.lastToken(t)

	f.now = f.now.Add(time.Hour + time.Second)
	if err := f.svc.ConfirmPasswordReset(ctx, token, "resetpass123"); err != ErrTokenInvalid {
		t.Fatalf("expired token error = %v, want ErrTokenInvalid", err)
	}
}

func TestEmailVerificationFlow(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	if err := f.svc.RequestEmailVerification(ctx, "a@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification error: %v", err)
	}
	token := f.mailer.lastToken(t)

	if err := f.svc.ConfirmEmailVerification(ctx, token); err != nil {
		t.Fatalf("ConfirmEmailVerification error: %v", err)
	}
	got, err := f.svc.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if !got.EmailVerified {
		t.Error("address not marked verified")
	}
	if !f.hasEvent(structs.EventEmailVerified) {
		t.Error("verification event not recorded")
	}

	// Already-verified addresses get the same silent success, no mail.
	sent := len(f.mailer.templates)
	if err := f.svc.RequestEmailVerification(ctx, "a@example.com"); err != nil {
		t.Fatalf("re-request error: %v", err)
	}
	if len(f.mailer.templates) != sent {
		t.Error("mail sent for an already-verified address")
	}
}

func TestSuspiciousActivityFlagged(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2")
	ctx := context.Background()

	// An established session from the usual address.
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2", IPAddress: "10.0.0.1"}); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	// A failure, then success from an address no session has seen.
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrongwrong1", IPAddress: "203.0.113.9"}); err != ErrInvalidCredentials {
		t.Fatalf("failure error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "hunter2hunter2", IPAddress: "203.0.113.9"}); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if !f.hasEvent(structs.EventSuspiciousActivity) {
		t.Fatal("suspicious-activity event not recorded")
	}
}

func TestGetUserNotFound(t *testing.T) {
	f := newAuthFixture(t)
	if _, err := f.svc.GetUser(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
