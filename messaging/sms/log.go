package sms

import (
	"context"

	"github.com/nebulium/authcore/logging/logger"
)

// LogSender writes codes to the log instead of delivering them. It is the
// development fallback when no SMS provider is configured.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, phoneNumber, _ string) error {
	logger.Infof(ctx, "sms code issued for %s (delivery disabled)", phoneNumber)
	return nil
}
