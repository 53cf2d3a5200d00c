// Package memory holds the in-process session repository used when no
// database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

// SessionRepository keeps sessions in a map guarded by a RWMutex.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[session.ID]*session.Session
}

var _ session.Repository = (*SessionRepository)(nil)

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[session.ID]*session.Session)}
}

func (r *SessionRepository) Get(ctx context.Context, id session.ID) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return clone(s), nil
}

func (r *SessionRepository) Save(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = clone(s)
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id session.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, idleBefore, busyBefore time.Time) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*session.Session
	for id, s := range r.sessions {
		if s.Expired(idleBefore, busyBefore) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	return expired, nil
}

// Len reports the number of live sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Check always succeeds; it lets the repository sit behind the health endpoint.
func (r *SessionRepository) Check(ctx context.Context) error { return nil }

// clone copies the mutable parts so callers never share state with the map.
// Results are never mutated after decoding and are shared.
func clone(s *session.Session) *session.Session {
	c := *s
	if s.Image != nil {
		img := *s.Image
		c.Image = &img
	}
	if s.Notice != nil {
		n := *s.Notice
		c.Notice = &n
	}
	return &c
}
