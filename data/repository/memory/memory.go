// Package memory provides mutex-guarded in-memory repositories for tests.
// Each double honors the same atomicity contracts as the SQL layer.
package memory

import (
	"github.com/nebulium/authcore/data/repository"
)

// NewRepositories returns a fully in-memory repository bundle.
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Users:              NewUserRepository(),
		Sessions:           NewSessionRepository(),
		Roles:              NewRoleRepository(),
		BackupCodes:        NewBackupCodeRepository(),
		SmsCodes:           NewSmsCodeRepository(),
		Events:             NewEventRepository(),
		VerificationTokens: NewVerificationTokenRepository(),
	}
}
