package service

import (
	"context"
	"time"

	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/logging/logger"
)

// LockoutService tracks consecutive authentication failures per account and
// locks the account for a fixed duration at the threshold.
type LockoutService struct {
	users     repository.UserRepository
	threshold int
	duration  time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewLockoutService(users repository.UserRepository, threshold int, duration time.Duration, log *logger.Logger) *LockoutService {
	return &LockoutService{
		users:     users,
		threshold: threshold,
		duration:  duration,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the lockout clock for tests.
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// RecordFailure counts one failed attempt. It reports whether this failure
// locked the account. The counter increment is a single atomic statement,
// so N concurrent failures produce N distinct counts and the threshold
// fires exactly once.
func (s *LockoutService) RecordFailure(ctx context.Context, userID string) (locked bool, err error) {
	count, err := s.users.IncrementFailedAttempts(ctx, userID)
	if err != nil {
		return false, err
	}
	if count < s.threshold {
		return false, nil
	}

	until := s.now().Add(s.duration)
	if err := s.users.Lock(ctx, userID, until); err != nil {
		return false, err
	}
	s.logger.Warn(ctx, "account locked after repeated failures", "user_id", userID, "until", until)
	return true, nil
}

// IsLocked reports whether the account is currently locked and, if so, how
// long until the lock expires. An expired lock reads as unlocked with no
// separate unlock step.
func (s *LockoutService) IsLocked(ctx context.Context, userID string) (bool, time.Duration, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	if user.LockedUntil == nil {
		return false, 0, nil
	}
	remaining := user.LockedUntil.Sub(s.now())
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// RecordSuccess clears the failure count and any lock, and stamps the last
// successful login.
func (s *LockoutService) RecordSuccess(ctx context.Context, userID string) error {
	return s.users.ResetLockout(ctx, userID, s.now())
}

// Duration returns the configured lock duration.
func (s *LockoutService) Duration() time.Duration {
	return s.duration
}
