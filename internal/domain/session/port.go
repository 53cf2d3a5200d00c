package session

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	// Get returns ErrNotFound when the id is unknown.
	Get(ctx context.Context, id ID) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id ID) error
	// DeleteExpired removes sessions untouched since idleBefore and returns them.
	// Sessions in StateAnalyzing are kept until busyBefore.
	DeleteExpired(ctx context.Context, idleBefore, busyBefore time.Time) ([]*Session, error)
}

// ImageStore port (interface untuk penyimpanan gambar)
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Notifier pushes a notice to whoever is watching the session.
type Notifier interface {
	Notify(ctx context.Context, id ID, n Notice)
}
