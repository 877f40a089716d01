// Package email sends transactional mail through a configured provider.
package email

import (
	"errors"
)

// Email holds the configuration for all email providers
type Email struct {
	Provider string          `json:"provider" yaml:"provider"`
	Mailgun  *MailgunConfig  `json:"mailgun" yaml:"mailgun"`
	SendGrid *SendGridConfig `json:"sendgrid" yaml:"sendgrid"`
	SMTP     *SMTPConfig     `json:"smtp" yaml:"smtp"`
}

// Template represents the email template
type Template struct {
	Subject string `json:"subject"`
	Keyword string `json:"keyword"`
	URL     string `json:"url"`
	Body    string `json:"body"`
}

// Config is a generic email configuration interface
type Config any

// Sender is a generic interface for sending emails
type Sender interface {
	SendTemplateEmail(recipientEmail string, template Template) (string, error)
}

// validateEmailConfig validates the common email configuration
func validateEmailConfig(config Config) error {
	switch c := config.(type) {
	case *MailgunConfig:
		return validateMailgunConfig(c)
	case *SendGridConfig:
		return validateSendGridConfig(c)
	case *SMTPConfig:
		return validateSMTPConfig(c)
	default:
		return errors.New("invalid email configuration")
	}
}

// NewSender returns a new Sender
func NewSender(config Config) (Sender, error) {
	if err := validateEmailConfig(config); err != nil {
		return nil, err
	}
	switch c := config.(type) {
	case *MailgunConfig:
		return &MailgunSender{Config: c}, nil
	case *SendGridConfig:
		return &SendGridSender{Config: c}, nil
	case *SMTPConfig:
		return &LocalSMTPSender{Config: c}, nil
	default:
		return nil, errors.New("create email sender failed")
	}
}

// FromConfig creates a Sender from the Email section. Returns (nil, nil)
// when no provider is configured.
func FromConfig(cfg *Email) (Sender, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Provider {
	case "mailgun":
		return NewSender(cfg.Mailgun)
	case "sendgrid":
		return NewSender(cfg.SendGrid)
	case "smtp":
		return NewSender(cfg.SMTP)
	default:
		return nil, nil
	}
}
