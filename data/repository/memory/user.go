package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/structs"
)

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]*structs.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*structs.User)}
}

func (r *UserRepository) Create(_ context.Context, user *structs.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*structs.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*structs.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = at
	return nil
}

func (r *UserRepository) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.EmailVerified = true
	user.UpdatedAt = at
	return nil
}

func (r *UserRepository) SetTwoFactor(_ context.Context, id, secret string, enabled bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.TwoFactorSecret = secret
	user.TwoFactorEnabled = enabled
	user.UpdatedAt = at
	return nil
}

func (r *UserRepository) IncrementFailedAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	user.FailedAttempts++
	return user.FailedAttempts, nil
}

func (r *UserRepository) Lock(_ context.Context, id string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LockedUntil = &until
	user.FailedAttempts = 0
	return nil
}

func (r *UserRepository) ResetLockout(_ context.Context, id string, lastLogin time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &lastLogin
	return nil
}

func (r *UserRepository) CountLocked(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, user := range r.users {
		if user.LockedUntil != nil && user.LockedUntil.After(now) {
			count++
		}
	}
	return count, nil
}
