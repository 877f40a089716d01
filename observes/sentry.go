// Package observes wires the monitoring collaborators: sentry for security
// escalations and an OTLP tracer for request tracing.
package observes

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nebulium/authcore/structs"
)

type SentryOptions struct {
	Dsn         string
	Name        string
	Release     string
	Environment string
	SampleRate  float64
}

// NewSentry is the register sentry
func NewSentry(opt *SentryOptions) error {
	// if not exist sentry config, break
	if opt == nil || opt.Dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              opt.Dsn,
		AttachStacktrace: true,
		TracesSampleRate: opt.SampleRate,
		ServerName:       opt.Name,
		Release:          opt.Release,
		Environment:      opt.Environment,
	})
}

// CaptureSecurityEvent forwards an escalated audit event to sentry. It is a
// no-op when sentry was never initialized.
func CaptureSecurityEvent(event *structs.SecurityEvent) {
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}

	level := sentry.LevelWarning
	if event.Severity == structs.SeverityCritical {
		level = sentry.LevelError
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetTag("event_type", string(event.Type))
		scope.SetTag("severity", string(event.Severity))
		if event.UserID != "" {
			scope.SetUser(sentry.User{ID: event.UserID, IPAddress: event.IPAddress})
		}
		for k, v := range event.Metadata {
			scope.SetExtra(k, v)
		}
		hub.CaptureMessage(fmt.Sprintf("security event: %s", event.Type))
	})
}

// FlushSentry drains buffered events, typically on shutdown.
func FlushSentry(timeout time.Duration) {
	if sentry.CurrentHub().Client() != nil {
		sentry.Flush(timeout)
	}
}
