package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/structs"
)

// RoleRepository is an in-memory repository.RoleRepository.
type RoleRepository struct {
	mu     sync.Mutex
	roles  map[string]*structs.Role
	grants map[string]map[string]bool // user id -> role names
}

func NewRoleRepository() *RoleRepository {
	return &RoleRepository{
		roles:  make(map[string]*structs.Role),
		grants: make(map[string]map[string]bool),
	}
}

func (r *RoleRepository) Upsert(_ context.Context, role *structs.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *role
	clone.Permissions = append([]string(nil), role.Permissions...)
	r.roles[role.Name] = &clone
	return nil
}

func (r *RoleRepository) Grant(_ context.Context, userID, roleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[userID] == nil {
		r.grants[userID] = make(map[string]bool)
	}
	r.grants[userID][roleName] = true
	return nil
}

func (r *RoleRepository) ListByUser(_ context.Context, userID string) ([]*structs.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var roles []*structs.Role
	for name := range r.grants[userID] {
		if role, ok := r.roles[name]; ok {
			clone := *role
			clone.Permissions = append([]string(nil), role.Permissions...)
			roles = append(roles, &clone)
		}
	}
	return roles, nil
}

// EventRepository is an in-memory repository.EventRepository.
type EventRepository struct {
	mu     sync.Mutex
	events []*structs.SecurityEvent
}

func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

func (r *EventRepository) Insert(_ context.Context, event *structs.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *event
	r.events = append(r.events, &clone)
	return nil
}

// Events returns a snapshot of everything inserted, for assertions.
func (r *EventRepository) Events() []*structs.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*structs.SecurityEvent(nil), r.events...)
}

func (r *EventRepository) Statistics(_ context.Context, since time.Time) (*structs.EventStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &structs.EventStatistics{
		ByType:     make(map[string]int64),
		BySeverity: make(map[string]int64),
	}
	for _, event := range r.events {
		if event.CreatedAt.Before(since) {
			continue
		}
		stats.TotalEvents++
		stats.ByType[string(event.Type)]++
		stats.BySeverity[string(event.Severity)]++
		if event.Type == structs.EventSuspiciousActivity {
			stats.SuspiciousActivity++
		}
	}
	return stats, nil
}

// VerificationTokenRepository is an in-memory
// repository.VerificationTokenRepository.
type VerificationTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*structs.VerificationToken
}

func NewVerificationTokenRepository() *VerificationTokenRepository {
	return &VerificationTokenRepository{tokens: make(map[string]*structs.VerificationToken)}
}

func (r *VerificationTokenRepository) Replace(_ context.Context, token *structs.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, existing := range r.tokens {
		if existing.UserID == token.UserID && existing.Purpose == token.Purpose {
			delete(r.tokens, key)
		}
	}
	clone := *token
	r.tokens[token.Token] = &clone
	return nil
}

func (r *VerificationTokenRepository) Consume(_ context.Context, token, purpose string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tokens[token]
	if !ok || stored.Purpose != purpose || !stored.ExpiresAt.After(now) {
		return "", repository.ErrNotFound
	}
	delete(r.tokens, token)
	return stored.UserID, nil
}

func (r *VerificationTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, token := range r.tokens {
		if !token.ExpiresAt.After(now) {
			delete(r.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
