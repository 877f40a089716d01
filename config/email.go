package config

import (
	"github.com/nebulium/authcore/messaging/email"
	"github.com/spf13/viper"
)

// Email notification config struct
type Email = email.Email

// getEmailConfig returns the email configuration
func getEmailConfig(v *viper.Viper) *Email {
	return &Email{
		Provider: v.GetString("email.provider"),
		Mailgun: &email.MailgunConfig{
			Key:    v.GetString("email.mailgun.key"),
			Domain: v.GetString("email.mailgun.domain"),
			From:   v.GetString("email.mailgun.from"),
		},
		SendGrid: &email.SendGridConfig{
			Key:  v.GetString("email.sendgrid.key"),
			From: v.GetString("email.sendgrid.from"),
		},
		SMTP: &email.SMTPConfig{
			SMTPHost: v.GetString("email.smtp.host"),
			SMTPPort: v.GetString("email.smtp.port"),
			Username: v.GetString("email.smtp.username"),
			Password: v.GetString("email.smtp.password"),
			From:     v.GetString("email.smtp.from"),
		},
	}
}
