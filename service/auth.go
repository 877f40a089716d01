package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nebulium/authcore/crypto"
	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/messaging/email"
	securityjwt "github.com/nebulium/authcore/security/jwt"
	"github.com/nebulium/authcore/security/permission"
	"github.com/nebulium/authcore/structs"
)

const verificationTokenLifetime = time.Hour

// AuthService ties the collaborators into the account flows: registration,
// the login control flow, token refresh, and the password and email
// verification loops.
type AuthService struct {
	users        repository.UserRepository
	roles        repository.RoleRepository
	tokens       repository.VerificationTokenRepository
	sessions     *SessionService
	lockout      *LockoutService
	mfa          *MfaService
	audit        *AuditService
	hasher       *crypto.Hasher
	tokenManager *securityjwt.TokenManager
	mailer       email.Sender
	accessTTL    time.Duration
	refreshTTL   time.Duration
	baseURL      string
	logger       *logger.Logger
	now          func() time.Time
}

type AuthServiceParams struct {
	Users        repository.UserRepository
	Roles        repository.RoleRepository
	Tokens       repository.VerificationTokenRepository
	Sessions     *SessionService
	Lockout      *LockoutService
	Mfa          *MfaService
	Audit        *AuditService
	Hasher       *crypto.Hasher
	TokenManager *securityjwt.TokenManager
	Mailer       email.Sender
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	BaseURL      string
	Logger       *logger.Logger
}

func NewAuthService(p AuthServiceParams) *AuthService {
	return &AuthService{
		users:        p.Users,
		roles:        p.Roles,
		tokens:       p.Tokens,
		sessions:     p.Sessions,
		lockout:      p.Lockout,
		mfa:          p.Mfa,
		audit:        p.Audit,
		hasher:       p.Hasher,
		tokenManager: p.TokenManager,
		mailer:       p.Mailer,
		accessTTL:    p.AccessTTL,
		refreshTTL:   p.RefreshTTL,
		baseURL:      p.BaseURL,
		logger:       p.Logger,
		now:          time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Register creates an account. Duplicate emails conflict; the caller's
// validation layer has already enforced password strength.
func (s *AuthService) Register(ctx context.Context, name, emailAddr, password string) (*structs.User, error) {
	if _, err := s.users.FindByEmail(ctx, emailAddr); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &structs.User{
		ID:           uuid.New().String(),
		Email:        emailAddr,
		PasswordHash: digest,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:     structs.EventAccountCreated,
		Severity: structs.SeverityLow,
		UserID:   user.ID,
	})
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "email", emailAddr)
	return user, nil
}

// LoginInput carries the credentials and request metadata for one attempt.
type LoginInput struct {
	Email      string
	Password   string
	TotpCode   string
	BackupCode string
	IPAddress  string
	UserAgent  string
}

// LoginResult is a successful authentication.
type LoginResult struct {
	User    *structs.User
	Session *structs.Session
	Tokens  *structs.TokenPair
}

// Login runs the full control flow: lockout gate, credential check with
// failure accounting, second-factor proof where enabled, then session and
// token issuance. Unknown accounts and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn comparable time so missing accounts do not answer faster.
			_, _ = s.hasher.Hash(ctx, in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	locked, _, err := s.lockout.IsLocked(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrAccountLocked
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, s.recordFailure(ctx, user, in, "wrong password")
	}

	if user.TwoFactorEnabled {
		ok, err := s.verifySecondFactor(ctx, user, in)
		if err != nil {
			return nil, err
		}
		if !ok {
			if in.TotpCode == "" && in.BackupCode == "" {
				return nil, ErrTwoFactorRequired
			}
			if failErr := s.recordFailure(ctx, user, in, "second factor rejected"); errors.Is(failErr, ErrAccountLocked) {
				return nil, failErr
			}
			return nil, ErrTwoFactorInvalid
		}
	}

	hadFailures := user.FailedAttempts > 0
	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		return nil, err
	}

	s.flagSuspicious(ctx, user, in, hadFailures)

	session, err := s.sessions.Create(ctx, user.ID, in.IPAddress, in.UserAgent)
	if err != nil {
		return nil, err
	}
	tokens, err := s.mintTokens(ctx, user, session.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:      structs.EventLoginSuccess,
		Severity:  structs.SeverityLow,
		UserID:    user.ID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	})
	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:      structs.EventSessionCreated,
		Severity:  structs.SeverityLow,
		UserID:    user.ID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Metadata:  map[string]string{"session_id": session.ID},
	})

	return &LoginResult{User: user, Session: session, Tokens: tokens}, nil
}

// verifySecondFactor tries the time-based code first, then a backup code.
// A missing proof reads as not-ok with no error.
func (s *AuthService) verifySecondFactor(ctx context.Context, user *structs.User, in LoginInput) (bool, error) {
	if in.TotpCode != "" {
		ok, err := s.mfa.VerifyTotp(ctx, user.ID, in.TotpCode)
		if err != nil || ok {
			return ok, err
		}
	}
	if in.BackupCode != "" {
		ok, err := s.mfa.VerifyAndConsumeBackupCode(ctx, user.ID, in.BackupCode)
		if err != nil {
			return false, err
		}
		if ok {
			s.audit.Record(ctx, &structs.SecurityEvent{
				Type:      structs.EventBackupCodeUsed,
				Severity:  structs.SeverityHigh,
				UserID:    user.ID,
				IPAddress: in.IPAddress,
				UserAgent: in.UserAgent,
			})
		}
		return ok, nil
	}
	return false, nil
}

// recordFailure counts the failed attempt and returns the error the caller
// should surface: ErrAccountLocked when this failure crossed the threshold,
// ErrInvalidCredentials otherwise.
func (s *AuthService) recordFailure(ctx context.Context, user *structs.User, in LoginInput, reason string) error {
	lockedNow, err := s.lockout.RecordFailure(ctx, user.ID)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:      structs.EventLoginFailure,
		Severity:  structs.SeverityMedium,
		UserID:    user.ID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Metadata:  map[string]string{"reason": reason},
	})
	if lockedNow {
		s.audit.Record(ctx, &structs.SecurityEvent{
			Type:      structs.EventLoginLocked,
			Severity:  structs.SeverityHigh,
			UserID:    user.ID,
			IPAddress: in.IPAddress,
			UserAgent: in.UserAgent,
		})
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// flagSuspicious records a high-severity event when a login succeeds from
// an address no live session has seen while the account carried recent
// failures.
func (s *AuthService) flagSuspicious(ctx context.Context, user *structs.User, in LoginInput, hadFailures bool) {
	if !hadFailures || in.IPAddress == "" {
		return
	}
	sessions, err := s.sessions.List(ctx, user.ID)
	if err != nil {
		logger.Warn(ctx, "suspicious-activity session lookup failed", "user_id", user.ID, "error", err)
		return
	}
	for _, session := range sessions {
		if session.IPAddress == in.IPAddress {
			return
		}
	}
	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:      structs.EventSuspiciousActivity,
		Severity:  structs.SeverityHigh,
		UserID:    user.ID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Metadata:  map[string]string{"reason": "login from unseen address after failures"},
	})
}

// mintTokens issues the pair: the access token carries identity and the
// resolved authorization set, the refresh token only enough to find its
// session.
func (s *AuthService) mintTokens(ctx context.Context, user *structs.User, sessionID string) (*structs.TokenPair, error) {
	roles, err := s.roles.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	roleNames := make([]string, 0, len(roles))
	permRoles := make([]permission.Role, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
		permRoles = append(permRoles, permission.Role{Name: role.Name, Permissions: role.Permissions})
	}
	effective := permission.Effective(permRoles)

	perms := effective.Members()
	if effective.IsUnrestricted() {
		perms = []string{permission.Wildcard}
	}

	accessToken, err := s.tokenManager.GenerateAccessToken(uuid.New().String(), map[string]any{
		"user_id":     user.ID,
		"email":       user.Email,
		"roles":       roleNames,
		"permissions": perms,
		"session_id":  sessionID,
	}, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenManager.GenerateRefreshToken(uuid.New().String(), map[string]any{
		"user_id":    user.ID,
		"session_id": sessionID,
	}, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &structs.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Refresh rotates the session: the presented refresh token is verified,
// its session revoked, and a fresh session with a fresh pair issued. A
// replayed refresh token finds no session and fails closed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokenManager.DecodeToken(refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if !securityjwt.IsRefreshToken(claims) {
		return nil, ErrTokenInvalid
	}

	sessionID := securityjwt.GetSessionIDFromToken(claims)
	session, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionInvalid
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return nil, err
	}
	newSession, err := s.sessions.Create(ctx, user.ID, session.IPAddress, session.UserAgent)
	if err != nil {
		return nil, err
	}
	tokens, err := s.mintTokens(ctx, user, newSession.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "token refreshed", "user_id", user.ID, "session_id", newSession.ID)
	return &LoginResult{User: user, Session: newSession, Tokens: tokens}, nil
}

// Logout revokes the current session.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:     structs.EventSessionRevoked,
		Severity: structs.SeverityLow,
		UserID:   userID,
		Metadata: map[string]string{"session_id": sessionID},
	})
	return nil
}

// ChangePassword requires the current password, then revokes every other
// session so a stolen credential cannot keep riding an old session.
func (s *AuthService) ChangePassword(ctx context.Context, userID, sessionID, currentPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	digest, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, digest, s.now()); err != nil {
		return err
	}
	if err := s.sessions.RevokeOthers(ctx, userID, sessionID); err != nil {
		return err
	}

	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:     structs.EventPasswordChanged,
		Severity: structs.SeverityHigh,
		UserID:   userID,
	})
	return nil
}

// RequestPasswordReset issues a single-use expiring token and mails a
// reset link. The response is identical whether or not the account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := s.issueVerificationToken(ctx, user.ID, structs.PurposePasswordReset)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:     structs.EventPasswordResetRequest,
		Severity: structs.SeverityMedium,
		UserID:   user.ID,
	})
	s.sendMail(ctx, user.Email, email.Template{
		Subject: "Reset your password",
		URL:     fmt.Sprintf("%s/auth/password/reset/confirm?token=%s", s.baseURL, token),
		Body:    "Use the link below to choose a new password. The link expires in one hour.",
	})
	return nil
}

// ConfirmPasswordReset consumes the token, sets the new password, and
// revokes every session.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.Consume(ctx, token, structs.PurposePasswordReset, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	digest, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, digest, s.now()); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:     structs.EventPasswordResetDone,
		Severity: structs.SeverityHigh,
		UserID:   userID,
	})
	return nil
}

// RequestEmailVerification mails a confirmation link. Identical responses
// regardless of account existence or prior verification.
func (s *AuthService) RequestEmailVerification(ctx context.Context, emailAddr string) error {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	token, err := s.issueVerificationToken(ctx, user.ID, structs.PurposeEmailVerify)
	if err != nil {
		return err
	}
	s.sendMail(ctx, user.Email, email.Template{
		Subject: "Confirm your email address",
		URL:     fmt.Sprintf("%s/auth/email/verify/confirm?token=%s", s.baseURL, token),
		Body:    "Confirm your email address with the link below. The link expires in one hour.",
	})
	return nil
}

// ConfirmEmailVerification consumes the token and marks the address
// verified.
func (s *AuthService) ConfirmEmailVerification(ctx context.Context, token string) error {
	userID, err := s.tokens.Consume(ctx, token, structs.PurposeEmailVerify, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	if err := s.users.SetEmailVerified(ctx, userID, s.now()); err != nil {
		return err
	}
	s.audit.Record(ctx, &structs.SecurityEvent{
		Type:     structs.EventEmailVerified,
		Severity: structs.SeverityLow,
		UserID:   userID,
	})
	return nil
}

// GetUser loads a profile by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*structs.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueVerificationToken(ctx context.Context, userID, purpose string) (string, error) {
	token := crypto.MustOpaqueToken()
	record := &structs.VerificationToken{
		Token:     token,
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(verificationTokenLifetime),
		CreatedAt: s.now(),
	}
	if err := s.tokens.Replace(ctx, record); err != nil {
		return "", err
	}
	return token, nil
}

// sendMail delivers best-effort; a broken provider must not reveal account
// existence through the response.
func (s *AuthService) sendMail(ctx context.Context, recipient string, template email.Template) {
	if s.mailer == nil {
		logger.Infof(ctx, "mail delivery disabled, skipping %q to %s", template.Subject, recipient)
		return
	}
	if _, err := s.mailer.SendTemplateEmail(recipient, template); err != nil {
		s.logger.Error(ctx, "mail delivery failed", "subject", template.Subject, "error", err)
	}
}
