package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/structs"
)

// SessionRepository is an in-memory repository.SessionRepository.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*structs.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*structs.Session)}
}

func (r *SessionRepository) Create(_ context.Context, session *structs.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *SessionRepository) FindByID(_ context.Context, id string) (*structs.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (r *SessionRepository) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil
	}
	if session.LastUsedAt.Before(at) {
		session.LastUsedAt = at
	}
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *SessionRepository) DeleteByUserIDExcept(_ context.Context, userID, keepSessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.UserID == userID && id != keepSessionID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *SessionRepository) ListByUserID(_ context.Context, userID string, now time.Time) ([]*structs.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sessions []*structs.Session
	for _, session := range r.sessions {
		if session.UserID == userID && session.ExpiresAt.After(now) {
			clone := *session
			sessions = append(sessions, &clone)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastUsedAt.After(sessions[j].LastUsedAt)
	})
	return sessions, nil
}

func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, session := range r.sessions {
		if !session.ExpiresAt.After(now) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
