package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/nebulium/authcore/crypto"
	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/messaging/sms"
	"github.com/nebulium/authcore/nanoid"
	"github.com/nebulium/authcore/security/totp"
	"github.com/nebulium/authcore/structs"
)

// MfaService manages second factors: time-based codes, SMS codes, and
// single-use backup codes.
type MfaService struct {
	users       repository.UserRepository
	backupCodes repository.BackupCodeRepository
	smsCodes    repository.SmsCodeRepository
	hasher      *crypto.Hasher
	smsSender   sms.Sender
	issuer      string
	smsLifetime time.Duration
	codeCount   int
	logger      *logger.Logger
	now         func() time.Time
}

func NewMfaService(
	users repository.UserRepository,
	backupCodes repository.BackupCodeRepository,
	smsCodes repository.SmsCodeRepository,
	hasher *crypto.Hasher,
	smsSender sms.Sender,
	issuer string,
	smsLifetime time.Duration,
	codeCount int,
	log *logger.Logger,
) *MfaService {
	return &MfaService{
		users:       users,
		backupCodes: backupCodes,
		smsCodes:    smsCodes,
		hasher:      hasher,
		smsSender:   smsSender,
		issuer:      issuer,
		smsLifetime: smsLifetime,
		codeCount:   codeCount,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the MFA clock for tests.
func (s *MfaService) WithClock(now func() time.Time) *MfaService {
	s.now = now
	return s
}

// Enroll generates a fresh shared secret, provisioning URI, and a new set
// of backup codes. The plaintext codes are returned exactly once; only
// their hashes are stored. The secret is persisted as a candidate: the
// account's two-factor flag stays off until Enable confirms a code.
func (s *MfaService) Enroll(ctx context.Context, userID string) (*structs.TotpEnrollment, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	enrollment, err := totp.Generate(s.issuer, user.Email)
	if err != nil {
		return nil, err
	}

	plaintext, hashed, err := s.generateBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetTwoFactor(ctx, userID, enrollment.Secret, false, s.now()); err != nil {
		return nil, err
	}
	if err := s.backupCodes.Replace(ctx, userID, hashed); err != nil {
		return nil, err
	}

	return &structs.TotpEnrollment{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		BackupCodes:     plaintext,
	}, nil
}

// Enable turns the second factor on, but only when the confirmation code
// verifies against the candidate secret stored by Enroll.
func (s *MfaService) Enable(ctx context.Context, userID, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return ErrStateConflict
	}
	if user.TwoFactorSecret == "" {
		return ErrStateConflict
	}
	if !totp.VerifyAt(user.TwoFactorSecret, code, s.now()) {
		return ErrTwoFactorInvalid
	}
	return s.users.SetTwoFactor(ctx, userID, user.TwoFactorSecret, true, s.now())
}

// Disable turns the second factor off and discards the secret and any
// remaining backup codes.
func (s *MfaService) Disable(ctx context.Context, userID string) error {
	if err := s.users.SetTwoFactor(ctx, userID, "", false, s.now()); err != nil {
		return err
	}
	return s.backupCodes.DeleteByUserID(ctx, userID)
}

// Enabled reports whether the account has an active second factor.
func (s *MfaService) Enabled(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.TwoFactorEnabled, nil
}

// VerifyTotp checks a time-based code against the account's active secret.
func (s *MfaService) VerifyTotp(ctx context.Context, userID, code string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return false, nil
	}
	return totp.VerifyAt(user.TwoFactorSecret, code, s.now()), nil
}

// IssueSmsCode generates a 6-digit code, stores it with a short expiry, and
// hands it to the SMS sender. Reissuing replaces any live code for the
// phone, so at most one code is ever valid.
func (s *MfaService) IssueSmsCode(ctx context.Context, phone string) error {
	code, err := randomDigits(6)
	if err != nil {
		return err
	}

	record := &structs.SmsCode{
		Phone:     phone,
		Code:      code,
		ExpiresAt: s.now().Add(s.smsLifetime),
	}
	if err := s.smsCodes.Upsert(ctx, record); err != nil {
		return err
	}

	if err := s.smsSender.SendCode(ctx, phone, code); err != nil {
		s.logger.Error(ctx, "sms delivery failed", "phone", phone, "error", err)
		return err
	}
	return nil
}

// VerifySmsCode checks and consumes the live code for the phone. A match
// deletes the code in the same statement; a mismatch leaves it intact.
func (s *MfaService) VerifySmsCode(ctx context.Context, phone, code string) (bool, error) {
	return s.smsCodes.Consume(ctx, phone, code, s.now())
}

// VerifyAndConsumeBackupCode burns one unused backup code matching the
// input. The consume is guarded, so two concurrent presentations of the
// same code succeed at most once.
func (s *MfaService) VerifyAndConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	candidates, err := s.backupCodes.ListUnused(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, candidate := range candidates {
		if !s.hasher.Verify(code, candidate.CodeHash) {
			continue
		}
		consumed, err := s.backupCodes.Consume(ctx, candidate.ID, s.now())
		if err != nil {
			return false, err
		}
		return consumed, nil
	}
	return false, nil
}

// RegenerateBackupCodes replaces the full set, invalidating any unused
// codes from the prior set.
func (s *MfaService) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	plaintext, hashed, err := s.generateBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.backupCodes.Replace(ctx, userID, hashed); err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (s *MfaService) generateBackupCodes(ctx context.Context, userID string) ([]string, []*structs.BackupCode, error) {
	plaintext := make([]string, 0, s.codeCount)
	hashed := make([]*structs.BackupCode, 0, s.codeCount)
	for i := 0; i < s.codeCount; i++ {
		code := nanoid.BackupCode()
		digest, err := s.hasher.Hash(ctx, code)
		if err != nil {
			return nil, nil, err
		}
		plaintext = append(plaintext, code)
		hashed = append(hashed, &structs.BackupCode{
			ID:       nanoid.PrimaryKey(),
			UserID:   userID,
			CodeHash: digest,
		})
	}
	return plaintext, hashed, nil
}

// randomDigits draws n digits from the system CSPRNG.
func randomDigits(n int) (string, error) {
	max := big.NewInt(10)
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}
