package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nebulium/authcore/cache"
	"github.com/nebulium/authcore/crypto"
	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/structs"
)

// SessionService owns the server-side session records that make issued
// tokens revocable. Sessions expire on a fixed deadline from creation;
// using a session never extends it.
type SessionService struct {
	sessions repository.SessionRepository
	cache    cache.ICache[structs.Session]
	lifetime time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

func NewSessionService(sessions repository.SessionRepository, sessionCache cache.ICache[structs.Session], lifetime time.Duration, log *logger.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		cache:    sessionCache,
		lifetime: lifetime,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the session clock for tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Create opens a session with two independent high-entropy opaque secrets.
// Knowing one token must not reveal the other.
func (s *SessionService) Create(ctx context.Context, userID, ipAddress, userAgent string) (*structs.Session, error) {
	now := s.now()
	session := &structs.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		BearerToken:  crypto.MustOpaqueToken(),
		RefreshToken: crypto.MustOpaqueToken(),
		ExpiresAt:    now.Add(s.lifetime),
		LastUsedAt:   now,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		CreatedAt:    now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, session.ID, session, s.lifetime); err != nil {
		logger.Warn(ctx, "session cache set failed", "session_id", session.ID, "error", err)
	}

	s.logger.Info(ctx, "session created", "session_id", session.ID, "user_id", userID)
	return session, nil
}

// Validate returns the live session or nil. Expired and missing sessions
// are indistinguishable to the caller. A valid lookup stamps last-used.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (*structs.Session, error) {
	session, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		logger.Warn(ctx, "session cache get failed", "session_id", sessionID, "error", err)
	}
	if session == nil {
		session, err = s.sessions.FindByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
	}

	now := s.now()
	if !session.ExpiresAt.After(now) {
		return nil, nil
	}

	if err := s.Touch(ctx, session.ID); err != nil {
		logger.Warn(ctx, "session touch failed", "session_id", session.ID, "error", err)
	}
	if session.LastUsedAt.Before(now) {
		session.LastUsedAt = now
	}
	return session, nil
}

// Touch stamps last-used. The stamp never moves backwards.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	return s.sessions.Touch(ctx, sessionID, s.now())
}

// Revoke deletes the session. The cache entry goes first: if the cache
// delete fails the database row survives and the session stays revocable,
// never the other way around. Revoking an unknown session is a no-op.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}

// RevokeAll deletes every session belonging to the user. Cache entries are
// evicted before the rows go, so a cache failure aborts the revoke with the
// sessions still present and retryable.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) error {
	sessions, err := s.sessions.ListByUserID(ctx, userID, s.now())
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if err := s.cache.Delete(ctx, session.ID); err != nil {
			return err
		}
	}
	return s.sessions.DeleteByUserID(ctx, userID)
}

// RevokeOthers deletes every session of the user except the current one.
func (s *SessionService) RevokeOthers(ctx context.Context, userID, keepSessionID string) error {
	sessions, err := s.sessions.ListByUserID(ctx, userID, s.now())
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if session.ID == keepSessionID {
			continue
		}
		if err := s.cache.Delete(ctx, session.ID); err != nil {
			return err
		}
	}
	return s.sessions.DeleteByUserIDExcept(ctx, userID, keepSessionID)
}

// List returns the user's live sessions, most recently used first.
func (s *SessionService) List(ctx context.Context, userID string) ([]*structs.Session, error) {
	return s.sessions.ListByUserID(ctx, userID, s.now())
}

// SweepExpired deletes expired session rows and reports how many went.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}
