package memory

import (
	"context"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

// SessionRepository keeps session snapshots in process memory. The
// engine runs one session at a time, but snapshots are keyed by id so
// a just-ended session stays queryable until replaced.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.StreamSession
	current  domain.SessionID
}

func NewSessionRepository() ports.SessionRepository {
	return &SessionRepository{
		sessions: make(map[domain.SessionID]*domain.StreamSession),
	}
}

func (r *SessionRepository) Save(ctx context.Context, session *domain.StreamSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := *session
	r.sessions[session.ID] = &snap
	r.current = session.ID
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id domain.SessionID) (*domain.StreamSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	snap := *session
	return &snap, nil
}

func (r *SessionRepository) GetCurrent(ctx context.Context) (*domain.StreamSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[r.current]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	snap := *session
	return &snap, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	if r.current == id {
		r.current = ""
	}
	return nil
}
