package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/google/uuid"
	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/events"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/messaging/email"
	"github.com/nebulium/authcore/observes"
	"github.com/nebulium/authcore/structs"
)

// AuditService appends security events to the immutable log and publishes
// them to the event sink. Recording never fails a caller's flow: a broken
// sink or a failed escalation is logged and swallowed.
type AuditService struct {
	events repository.EventRepository
	users  repository.UserRepository
	sink   events.Sink
	logger *logger.Logger
	now    func() time.Time
}

func NewAuditService(eventRepo repository.EventRepository, users repository.UserRepository, sink events.Sink, log *logger.Logger) *AuditService {
	return &AuditService{
		events: eventRepo,
		users:  users,
		sink:   sink,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the audit clock for tests.
func (s *AuditService) WithClock(now func() time.Time) *AuditService {
	s.now = now
	return s
}

// Record appends the event and publishes it. The append is the source of
// truth; publish failures are logged, never propagated.
func (s *AuditService) Record(ctx context.Context, event *structs.SecurityEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Error(ctx, "audit insert failed", "type", event.Type, "error", err)
		return
	}
	if s.sink != nil {
		if err := s.sink.Publish(ctx, event); err != nil {
			s.logger.Warn(ctx, "audit publish failed", "type", event.Type, "error", err)
		}
	}
}

// Statistics aggregates the event log over the trailing window.
func (s *AuditService) Statistics(ctx context.Context, windowDays int) (*structs.EventStatistics, error) {
	since := s.now().AddDate(0, 0, -windowDays)
	stats, err := s.events.Statistics(ctx, since)
	if err != nil {
		return nil, err
	}
	locked, err := s.users.CountLocked(ctx, s.now())
	if err != nil {
		return nil, err
	}
	stats.LockedAccounts = locked
	return stats, nil
}

// Escalator notifies operators about high and critical events: it resolves
// the affected account's contact, renders a message per event type, and
// sends it, mirroring the raw event to sentry. The email path sits behind a
// circuit breaker so a struggling provider cannot stall the event stream.
type Escalator struct {
	users   repository.UserRepository
	sender  email.Sender
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

func NewEscalator(users repository.UserRepository, sender email.Sender, log *logger.Logger) *Escalator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "escalation-email",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Escalator{users: users, sender: sender, breaker: breaker, logger: log}
}

// Handle is subscribed to the event dispatcher. Failures are logged only.
func (e *Escalator) Handle(ctx context.Context, event *structs.SecurityEvent) {
	if !event.Severity.Escalates() {
		return
	}

	observes.CaptureSecurityEvent(event)

	if e.sender == nil || event.UserID == "" {
		return
	}
	user, err := e.users.FindByID(ctx, event.UserID)
	if err != nil {
		e.logger.Warn(ctx, "escalation contact lookup failed", "user_id", event.UserID, "error", err)
		return
	}

	template := renderEscalation(event)
	_, err = e.breaker.Execute(func() (any, error) {
		return e.sender.SendTemplateEmail(user.Email, template)
	})
	if err != nil {
		e.logger.Warn(ctx, "escalation email failed", "type", event.Type, "error", err)
	}
}

func renderEscalation(event *structs.SecurityEvent) email.Template {
	switch event.Type {
	case structs.EventLoginLocked:
		return email.Template{
			Subject: "Your account has been temporarily locked",
			Body:    "Repeated failed sign-in attempts locked your account. If this wasn't you, reset your password once the lock expires.",
		}
	case structs.EventPasswordChanged:
		return email.Template{
			Subject: "Your password was changed",
			Body:    "Your account password was just changed. If this wasn't you, contact support immediately.",
		}
	case structs.EventTwoFactorDisabled:
		return email.Template{
			Subject: "Two-factor authentication was disabled",
			Body:    "Two-factor authentication was turned off for your account. If this wasn't you, re-enable it and change your password.",
		}
	case structs.EventBackupCodeUsed:
		return email.Template{
			Subject: "A backup code was used to sign in",
			Body:    "One of your single-use backup codes was just used. If this wasn't you, regenerate your backup codes now.",
		}
	case structs.EventSuspiciousActivity:
		return email.Template{
			Subject: "Suspicious sign-in activity on your account",
			Body:    fmt.Sprintf("We noticed a sign-in from an address we haven't seen before (%s). If this wasn't you, change your password.", event.IPAddress),
		}
	default:
		return email.Template{
			Subject: "Security alert for your account",
			Body:    fmt.Sprintf("A security event of type %q was recorded on your account.", event.Type),
		}
	}
}
