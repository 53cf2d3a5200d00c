package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

// data is json, not jsonb, so object key order survives.
const schema = `
CREATE TABLE IF NOT EXISTS leafscan_sessions (
  id         UUID        PRIMARY KEY,
  crop       TEXT        NOT NULL,
  state      TEXT        NOT NULL,
  data       JSON        NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leafscan_sessions_updated_at ON leafscan_sessions (updated_at);`

type SessionRepository struct{ db *sql.DB }

var _ session.Repository = (*SessionRepository)(nil)

func NewSessionRepository(db *sql.DB) *SessionRepository { return &SessionRepository{db: db} }

// Migrate creates the sessions table when it does not exist.
func (r *SessionRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Save insert/update session row
func (r *SessionRepository) Save(ctx context.Context, s *session.Session) error {
	const q = `
INSERT INTO leafscan_sessions (id, crop, state, data, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
 crop = EXCLUDED.crop,
 state = EXCLUDED.state,
 data = EXCLUDED.data,
 updated_at = EXCLUDED.updated_at;`

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = r.db.ExecContext(ctx, q, string(s.ID), s.Crop, string(s.State), string(data), updated)
	return err
}

func (r *SessionRepository) Get(ctx context.Context, id session.ID) (*session.Session, error) {
	const q = `SELECT data FROM leafscan_sessions WHERE id=$1 LIMIT 1;`

	var data []byte
	if err := r.db.QueryRowContext(ctx, q, string(id)).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return decodeSession(data)
}

func (r *SessionRepository) Delete(ctx context.Context, id session.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM leafscan_sessions WHERE id=$1;`, string(id))
	return err
}

// DeleteExpired removes rows untouched since their cutoff, returning what was removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, idleBefore, busyBefore time.Time) ([]*session.Session, error) {
	const q = `
DELETE FROM leafscan_sessions
WHERE (state <> 'analyzing' AND updated_at < $1) OR (state = 'analyzing' AND updated_at < $2)
RETURNING data;`
	rows, err := r.db.QueryContext(ctx, q, idleBefore.UTC(), busyBefore.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []*session.Session
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		s, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		expired = append(expired, s)
	}
	return expired, rows.Err()
}

// Check pings the database for the health endpoint.
func (r *SessionRepository) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func decodeSession(data []byte) (*session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session row: %w", err)
	}
	return &s, nil
}
