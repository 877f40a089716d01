package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nebulium/authcore/structs"
)

// BackupCodeRepository is an in-memory repository.BackupCodeRepository.
type BackupCodeRepository struct {
	mu    sync.Mutex
	codes map[string]*structs.BackupCode
}

func NewBackupCodeRepository() *BackupCodeRepository {
	return &BackupCodeRepository{codes: make(map[string]*structs.BackupCode)}
}

func (r *BackupCodeRepository) Replace(_ context.Context, userID string, codes []*structs.BackupCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, code := range r.codes {
		if code.UserID == userID {
			delete(r.codes, id)
		}
	}
	for _, code := range codes {
		clone := *code
		r.codes[code.ID] = &clone
	}
	return nil
}

func (r *BackupCodeRepository) ListUnused(_ context.Context, userID string) ([]*structs.BackupCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var codes []*structs.BackupCode
	for _, code := range r.codes {
		if code.UserID == userID && !code.Used {
			clone := *code
			codes = append(codes, &clone)
		}
	}
	return codes, nil
}

func (r *BackupCodeRepository) Consume(_ context.Context, id string, usedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[id]
	if !ok || code.Used {
		return false, nil
	}
	code.Used = true
	code.UsedAt = &usedAt
	return true, nil
}

func (r *BackupCodeRepository) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, code := range r.codes {
		if code.UserID == userID {
			delete(r.codes, id)
		}
	}
	return nil
}

// SmsCodeRepository is an in-memory repository.SmsCodeRepository.
type SmsCodeRepository struct {
	mu    sync.Mutex
	codes map[string]*structs.SmsCode
}

func NewSmsCodeRepository() *SmsCodeRepository {
	return &SmsCodeRepository{codes: make(map[string]*structs.SmsCode)}
}

func (r *SmsCodeRepository) Upsert(_ context.Context, code *structs.SmsCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *code
	r.codes[code.Phone] = &clone
	return nil
}

func (r *SmsCodeRepository) Consume(_ context.Context, phone, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.codes[phone]
	if !ok || stored.Code != code || !stored.ExpiresAt.After(now) {
		return false, nil
	}
	delete(r.codes, phone)
	return true, nil
}

func (r *SmsCodeRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for phone, code := range r.codes {
		if !code.ExpiresAt.After(now) {
			delete(r.codes, phone)
			deleted++
		}
	}
	return deleted, nil
}
