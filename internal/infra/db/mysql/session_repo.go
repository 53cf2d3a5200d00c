package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS leafscan_sessions (
  id         VARCHAR(36)  NOT NULL PRIMARY KEY,
  crop       VARCHAR(64)  NOT NULL,
  state      VARCHAR(16)  NOT NULL,
  data       LONGTEXT     NOT NULL,
  updated_at DATETIME(6)  NOT NULL,
  INDEX idx_leafscan_sessions_updated_at (updated_at)
)`

// SessionRepository stores the live session as a JSON document per row. The
// column is LONGTEXT because the JSON type reorders keys and the probability
// distribution must keep the order the model reported.
type SessionRepository struct {
	db *sql.DB
}

var _ session.Repository = (*SessionRepository)(nil)

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

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
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 crop=VALUES(crop), state=VALUES(state), data=VALUES(data), updated_at=VALUES(updated_at);
`
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = r.db.ExecContext(ctx, q,
		string(s.ID), stringOrDash(s.Crop), stringOrDash(string(s.State)), string(data), updated.UTC(),
	)
	return err
}

func (r *SessionRepository) Get(ctx context.Context, id session.ID) (*session.Session, error) {
	const q = `SELECT data FROM leafscan_sessions WHERE id=? LIMIT 1;`

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
	_, err := r.db.ExecContext(ctx, `DELETE FROM leafscan_sessions WHERE id=?;`, string(id))
	return err
}

const expiredWhere = `(state <> 'analyzing' AND updated_at < ?) OR (state = 'analyzing' AND updated_at < ?)`

// DeleteExpired removes rows untouched since their cutoff, returning what was removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, idleBefore, busyBefore time.Time) ([]*session.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT data FROM leafscan_sessions WHERE `+expiredWhere+` FOR UPDATE;`,
		idleBefore.UTC(), busyBefore.UTC())
	if err != nil {
		return nil, err
	}
	var expired []*session.Session
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return nil, err
		}
		s, err := decodeSession(data)
		if err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM leafscan_sessions WHERE `+expiredWhere+`;`,
		idleBefore.UTC(), busyBefore.UTC()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

// Check pings the database for the health endpoint.
func (r *SessionRepository) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}
