package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/nebulium/authcore/cache"
	"github.com/nebulium/authcore/config"
	"github.com/nebulium/authcore/consts"
	"github.com/nebulium/authcore/crypto"
	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/data/repository/memory"
	"github.com/nebulium/authcore/ecode"
	"github.com/nebulium/authcore/logging/logger"
	securityjwt "github.com/nebulium/authcore/security/jwt"
	"github.com/nebulium/authcore/security/ratelimit"
	"github.com/nebulium/authcore/security/totp"
	"github.com/nebulium/authcore/service"
	"github.com/nebulium/authcore/structs"
)

var setupOnce sync.Once

// failure mirrors the error response envelope for assertions.
type failure struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Errors  map[string]any `json:"errors"`
}

type testServer struct {
	engine *gin.Engine
	roles  *memory.RoleRepository
	events *memory.EventRepository
	mfa    *service.MfaService
}

func newTestServer(t *testing.T, rateCfg *config.RateLimit) *testServer {
	t.Helper()
	return buildTestServer(t, rateCfg, memory.NewUserRepository(), 0)
}

func buildTestServer(t *testing.T, rateCfg *config.RateLimit, users repository.UserRepository, queryTimeout time.Duration) *testServer {
	t.Helper()
	setupOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		if err := RegisterValidations(); err != nil {
			t.Fatalf("RegisterValidations error: %v", err)
		}
	})

	log := logger.StdLogger()
	hasher := crypto.NewHasher(bcrypt.MinCost)
	roles := memory.NewRoleRepository()
	events := memory.NewEventRepository()

	sessions := service.NewSessionService(
		memory.NewSessionRepository(),
		cache.NewCache[structs.Session](nil, "session"),
		24*time.Hour,
		log,
	)
	lockout := service.NewLockoutService(users, 5, 30*time.Minute, log)
	mfa := service.NewMfaService(
		users,
		memory.NewBackupCodeRepository(),
		memory.NewSmsCodeRepository(),
		hasher,
		nil,
		"authcore",
		5*time.Minute,
		10,
		log,
	)
	audit := service.NewAuditService(events, users, nil, log)
	tokenManager := securityjwt.NewTokenManager("test-signing-key", "authcore", "authcore")

	auth := service.NewAuthService(service.AuthServiceParams{
		Users:        users,
		Roles:        roles,
		Tokens:       memory.NewVerificationTokenRepository(),
		Sessions:     sessions,
		Lockout:      lockout,
		Mfa:          mfa,
		Audit:        audit,
		Hasher:       hasher,
		TokenManager: tokenManager,
		Mailer:       nil,
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
		BaseURL:      "http://localhost:3000",
		Logger:       log,
	})

	if rateCfg == nil {
		rateCfg = &config.RateLimit{
			Login: &config.Window{MaxAttempts: 100, Window: time.Minute},
			MFA:   &config.Window{MaxAttempts: 100, Window: time.Minute},
			Reset: &config.Window{MaxAttempts: 100, Window: time.Minute},
		}
	}
	cfg := &config.Config{RateLimit: rateCfg}
	if queryTimeout > 0 {
		cfg.Data = &config.Data{QueryTimeout: queryTimeout}
	}

	engine := gin.New()
	h := New(auth, sessions, mfa, audit, nil, log)
	h.RegisterRoutes(engine, tokenManager, ratelimit.NewLimiter(), cfg, log)
	return &testServer{engine: engine, roles: roles, events: events, mfa: mfa}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) *failure {
	t.Helper()
	var f failure
	decodeBody(t, rec, &f)
	return &f
}

func (ts *testServer) register(t *testing.T, emailAddr, password string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Test User",
		"email":    emailAddr,
		"password": password,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func (ts *testServer) login(t *testing.T, emailAddr, password string) *structs.TokenPair {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    emailAddr,
		"password": password,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var pair structs.TokenPair
	decodeBody(t, rec, &pair)
	return &pair
}

func bearer(pair *structs.TokenPair) map[string]string {
	return map[string]string{consts.AuthorizationKey: consts.BearerKey + pair.AccessToken}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Weak",
		"email":    "weak@example.com",
		"password": "short",
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	f := decodeFailure(t, rec)
	if f.Code != ecode.ValidationFailed {
		t.Errorf("code = %q, want %q", f.Code, ecode.ValidationFailed)
	}
	if _, ok := f.Errors["Password"]; !ok {
		t.Errorf("errors %v missing the password field", f.Errors)
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "dup@example.com", "hunter2hunter2")

	rec := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Again",
		"email":    "dup@example.com",
		"password": "hunter2hunter2",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.EmailExists {
		t.Errorf("code = %q, want %q", f.Code, ecode.EmailExists)
	}
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "a@example.com", "hunter2hunter2")

	rec := ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@example.com",
		"password": "wrongwrong1",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.AuthFailed {
		t.Errorf("code = %q, want %q", f.Code, ecode.AuthFailed)
	}
}

func TestLockedAccountAnswers423(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "a@example.com", "hunter2hunter2")

	var rec *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		rec = ts.do(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "a@example.com",
			"password": "wrongwrong1",
		}, nil)
	}
	if rec.Code != http.StatusLocked {
		t.Fatalf("status = %d, want 423", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.AccountLocked {
		t.Errorf("code = %q, want %q", f.Code, ecode.AccountLocked)
	}
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t, &config.RateLimit{
		Login: &config.Window{MaxAttempts: 3, Window: time.Minute},
		MFA:   &config.Window{MaxAttempts: 100, Window: time.Minute},
		Reset: &config.Window{MaxAttempts: 100, Window: time.Minute},
	})
	ts.register(t, "a@example.com", "hunter2hunter2")

	body := map[string]string{"email": "a@example.com", "password": "wrongwrong1"}
	for i := 0; i < 3; i++ {
		if rec := ts.do(t, http.MethodPost, "/auth/login", body, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, rec.Code)
		}
	}
	rec := ts.do(t, http.MethodPost, "/auth/login", body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.RateLimitExceeded {
		t.Errorf("code = %q, want %q", f.Code, ecode.RateLimitExceeded)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestPasswordResetRequestAccepted(t *testing.T) {
	ts := newTestServer(t, nil)

	// Identical answer whether or not the account exists.
	rec := ts.do(t, http.MethodPost, "/auth/password/reset", map[string]string{
		"email": "nobody@example.com",
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	unknownBody := rec.Body.String()

	ts.register(t, "a@example.com", "hunter2hunter2")
	rec = ts.do(t, http.MethodPost, "/auth/password/reset", map[string]string{
		"email": "a@example.com",
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if rec.Body.String() != unknownBody {
		t.Error("response bodies differ between known and unknown accounts")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.AuthRequired {
		t.Errorf("code = %q, want %q", f.Code, ecode.AuthRequired)
	}

	rec = ts.do(t, http.MethodGet, "/me", nil, map[string]string{
		consts.AuthorizationKey: consts.BearerKey + "garbage",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.TokenInvalid {
		t.Errorf("code = %q, want %q", f.Code, ecode.TokenInvalid)
	}
}

func TestMeAndLogoutRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "a@example.com", "hunter2hunter2")
	pair := ts.login(t, "a@example.com", "hunter2hunter2")

	rec := ts.do(t, http.MethodGet, "/me", nil, bearer(pair))
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", rec.Code, rec.Body.String())
	}
	var user structs.User
	decodeBody(t, rec, &user)
	if user.Email != "a@example.com" {
		t.Errorf("email = %q, want a@example.com", user.Email)
	}

	if rec = ts.do(t, http.MethodPost, "/auth/logout", nil, bearer(pair)); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	// The token outlives the session but the session is gone.
	rec = ts.do(t, http.MethodGet, "/me", nil, bearer(pair))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("post-logout status = %d, want 401", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.SessionInvalid {
		t.Errorf("code = %q, want %q", f.Code, ecode.SessionInvalid)
	}
}

func TestRefreshEndpointRotates(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "a@example.com", "hunter2hunter2")
	pair := ts.login(t, "a@example.com", "hunter2hunter2")

	rec := ts.do(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	var fresh structs.TokenPair
	decodeBody(t, rec, &fresh)
	if fresh.AccessToken == "" || fresh.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh did not mint a fresh pair")
	}

	rec = ts.do(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.SessionInvalid {
		t.Errorf("code = %q, want %q", f.Code, ecode.SessionInvalid)
	}
}

func TestSecurityStatsNeedsPermission(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "user@example.com", "hunter2hunter2")
	ts.register(t, "auditor@example.com", "hunter2hunter2")

	ctx := context.Background()
	if err := ts.roles.Upsert(ctx, &structs.Role{
		Name:        "security-auditor",
		Permissions: []string{"security:stats:read"},
	}); err != nil {
		t.Fatalf("seed role: %v", err)
	}

	userPair := ts.login(t, "user@example.com", "hunter2hunter2")

	// Grants key off the user ID; read it from the profile endpoint.
	auditorPair := ts.login(t, "auditor@example.com", "hunter2hunter2")
	rec := ts.do(t, http.MethodGet, "/me", nil, bearer(auditorPair))
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var auditor structs.User
	decodeBody(t, rec, &auditor)
	if err := ts.roles.Grant(ctx, auditor.ID, "security-auditor"); err != nil {
		t.Fatalf("grant role: %v", err)
	}

	rec = ts.do(t, http.MethodGet, "/admin/security/stats", nil, bearer(userPair))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unprivileged status = %d, want 403", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.PermissionDenied {
		t.Errorf("code = %q, want %q", f.Code, ecode.PermissionDenied)
	}

	// The denial itself is part of the security trail.
	var denial *structs.SecurityEvent
	for _, event := range ts.events.Events() {
		if event.Type == structs.EventPermissionDenied {
			denial = event
		}
	}
	if denial == nil {
		t.Fatal("permission denial left no security event")
	}
	if denial.UserID == "" {
		t.Error("denial event missing user id")
	}
	if denial.Metadata["required_permission"] != "security:stats:read" {
		t.Errorf("denial metadata = %v", denial.Metadata)
	}

	// Permissions ride in the token, so mint one after the grant.
	auditorPair = ts.login(t, "auditor@example.com", "hunter2hunter2")
	rec = ts.do(t, http.MethodGet, "/admin/security/stats?days=7", nil, bearer(auditorPair))
	if rec.Code != http.StatusOK {
		t.Fatalf("auditor status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestTotpDisableRequiresFreshProof(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "a@example.com", "hunter2hunter2")
	pair := ts.login(t, "a@example.com", "hunter2hunter2")

	rec := ts.do(t, http.MethodGet, "/me", nil, bearer(pair))
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var user structs.User
	decodeBody(t, rec, &user)

	ctx := context.Background()
	enrollment, err := ts.mfa.Enroll(ctx, user.ID)
	if err != nil {
		t.Fatalf("Enroll error: %v", err)
	}
	code, err := totp.CodeAt(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	if err := ts.mfa.Enable(ctx, user.ID, code); err != nil {
		t.Fatalf("Enable error: %v", err)
	}

	// A valid bearer alone must not disable the second factor.
	rec = ts.do(t, http.MethodPost, "/auth/mfa/totp/disable", nil, bearer(pair))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("no-proof status = %d, want 403", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.TwoFactorRequired {
		t.Errorf("code = %q, want %q", f.Code, ecode.TwoFactorRequired)
	}

	headers := bearer(pair)
	headers[consts.TwoFactorTokenKey] = "000000"
	rec = ts.do(t, http.MethodPost, "/auth/mfa/totp/disable", nil, headers)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad-proof status = %d, want 403", rec.Code)
	}
	if f := decodeFailure(t, rec); f.Code != ecode.TwoFactorInvalid {
		t.Errorf("code = %q, want %q", f.Code, ecode.TwoFactorInvalid)
	}

	code, err = totp.CodeAt(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	headers[consts.TwoFactorTokenKey] = code
	if rec = ts.do(t, http.MethodPost, "/auth/mfa/totp/disable", nil, headers); rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/me", nil, bearer(pair))
	decodeBody(t, rec, &user)
	if user.TwoFactorEnabled {
		t.Error("second factor still enabled after disable")
	}
}

func TestTotpDisableAcceptsBackupCode(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "a@example.com", "hunter2hunter2")
	pair := ts.login(t, "a@example.com", "hunter2hunter2")

	rec := ts.do(t, http.MethodGet, "/me", nil, bearer(pair))
	var user structs.User
	decodeBody(t, rec, &user)

	ctx := context.Background()
	enrollment, err := ts.mfa.Enroll(ctx, user.ID)
	if err != nil {
		t.Fatalf("Enroll error: %v", err)
	}
	code, err := totp.CodeAt(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	if err := ts.mfa.Enable(ctx, user.ID, code); err != nil {
		t.Fatalf("Enable error: %v", err)
	}

	headers := bearer(pair)
	headers[consts.BackupCodeKey] = enrollment.BackupCodes[0]
	if rec = ts.do(t, http.MethodPost, "/auth/mfa/totp/disable", nil, headers); rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d, body %s", rec.Code, rec.Body.String())
	}
}

// stallingUsers hangs every lookup until the request deadline fires.
type stallingUsers struct {
	repository.UserRepository
}

func (stallingUsers) FindByEmail(ctx context.Context, _ string) (*structs.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStalledStoreAnswersServerFault(t *testing.T) {
	ts := buildTestServer(t, nil, stallingUsers{memory.NewUserRepository()}, 50*time.Millisecond)

	rec := ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@example.com",
		"password": "hunter2hunter2",
	}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	// A store that cannot answer is a server fault, never a verdict on the
	// credentials.
	if f := decodeFailure(t, rec); f.Code != ecode.ServerErr {
		t.Errorf("code = %q, want %q", f.Code, ecode.ServerErr)
	}
}
