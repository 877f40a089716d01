package logger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nebulium/authcore/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// Field names that always carry credential material in an auth service.
var defaultSensitiveFields = []string{
	"password",
	"password_hash",
	"secret",
	"token",
	"access_token",
	"refresh_token",
	"bearer_token",
	"authorization",
	"code",
	"backup_code",
	"totp_code",
	"sms_code",
}

// Values that look like keys or tokens regardless of the field name.
var defaultValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Za-z0-9._-]{48,}\b`), // JWTs, API keys
}

// Desensitizer handles sensitive data masking in log fields
type Desensitizer struct {
	enabled  bool
	fields   map[string]struct{}
	patterns []*regexp.Regexp
}

// NewDesensitizer creates a new desensitizer instance. A nil config enables
// the defaults: an auth service never logs raw credentials by accident.
func NewDesensitizer(cfg *config.Desensitization) *Desensitizer {
	d := &Desensitizer{
		enabled:  true,
		fields:   make(map[string]struct{}),
		patterns: defaultValuePatterns,
	}
	for _, f := range defaultSensitiveFields {
		d.fields[f] = struct{}{}
	}
	if cfg != nil {
		d.enabled = cfg.Enabled
		for _, f := range cfg.SensitiveFields {
			d.fields[strings.ToLower(f)] = struct{}{}
		}
	}
	return d
}

// DesensitizeFields processes log fields and masks sensitive data
func (d *Desensitizer) DesensitizeFields(fields logrus.Fields) logrus.Fields {
	if !d.enabled {
		return fields
	}

	result := make(logrus.Fields, len(fields))
	for key, value := range fields {
		if d.isSensitiveField(key) {
			result[key] = maskValue(value)
			continue
		}
		if s, ok := value.(string); ok {
			result[key] = d.maskPatterns(s)
			continue
		}
		result[key] = value
	}
	return result
}

func (d *Desensitizer) isSensitiveField(key string) bool {
	_, ok := d.fields[strings.ToLower(key)]
	return ok
}

func (d *Desensitizer) maskPatterns(s string) string {
	for _, p := range d.patterns {
		s = p.ReplaceAllStringFunc(s, func(m string) string { return maskString(m) })
	}
	return s
}

func maskValue(value any) string {
	switch v := value.(type) {
	case string:
		return maskString(v)
	case nil:
		return ""
	default:
		return maskString(fmt.Sprintf("%v", v))
	}
}

// maskString keeps a short prefix for correlation and hides the rest.
func maskString(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", 6)
}
