package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glunkad/caresimplfyservice/internal/domain"
)

// SQLiteSessionStore implements session.Store backed by SQLite.
type SQLiteSessionStore struct {
	db          *DB
	maxSessions int           // 0 means unlimited
	ttl         time.Duration // 0 disables lazy expiry
	now         func() time.Time
}

// SessionStoreOption configures a SQLiteSessionStore.
type SessionStoreOption func(*SQLiteSessionStore)

// WithMaxSessions caps the number of live sessions.
func WithMaxSessions(n int) SessionStoreOption {
	return func(s *SQLiteSessionStore) { s.maxSessions = n }
}

// WithTTL makes reads treat sessions idle longer than ttl as gone, so a
// stale session is unreachable even before the next sweep removes it.
func WithTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SQLiteSessionStore) { s.ttl = ttl }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SQLiteSessionStore) { s.now = now }
}

// NewSQLiteSessionStore creates a session store using the given database.
func NewSQLiteSessionStore(db *DB, opts ...SessionStoreOption) *SQLiteSessionStore {
	s := &SQLiteSessionStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timestamps are stored as UTC time.DateTime strings, which compare
// correctly as text.
func (s *SQLiteSessionStore) stamp() string {
	return s.now().UTC().Format(time.DateTime)
}

// stale reports whether a last-active stamp falls behind the ttl cutoff.
// A stale row is left in place for the sweeper to remove.
func (s *SQLiteSessionStore) stale(lastActiveAt string) bool {
	if s.ttl <= 0 {
		return false
	}
	return lastActiveAt < s.now().Add(-s.ttl).UTC().Format(time.DateTime)
}

func (s *SQLiteSessionStore) Create(ctx context.Context, seedDocument string) (string, error) {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	if s.maxSessions > 0 {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sessions WHERE state = 'active'`,
		).Scan(&count); err != nil {
			return "", fmt.Errorf("counting sessions: %w", err)
		}
		if count >= s.maxSessions {
			return "", domain.NewExhausted(fmt.Sprintf("session limit reached (%d)", s.maxSessions))
		}
	}

	id := uuid.New().String()
	now := s.stamp()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, seed_document, state, created_at, last_active_at)
		 VALUES (?, ?, 'active', ?, ?)`,
		id, seedDocument, now, now,
	); err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit create: %w", err)
	}
	return id, nil
}

func (s *SQLiteSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess := domain.Session{ID: id}
	var createdAt, lastActiveAt string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT seed_document, state, created_at, last_active_at
		 FROM sessions WHERE id = ? AND state = 'active'`, id,
	).Scan(&sess.SeedDocument, &sess.State, &createdAt, &lastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if s.stale(lastActiveAt) {
		return nil, domain.NewNotFound(id)
	}
	sess.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	sess.LastActiveAt, _ = time.Parse(time.DateTime, lastActiveAt)

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT seq, role, content, timestamp
		 FROM turns WHERE session_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn domain.Turn
		var ts string
		if err := rows.Scan(&turn.Seq, &turn.Role, &turn.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Timestamp, _ = time.Parse(time.DateTime, ts)
		sess.Turns = append(sess.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteSessionStore) AppendTurn(ctx context.Context, id string, role domain.Role, content string) (int, error) {
	return s.appendBatch(ctx, id, []domain.Turn{{Role: role, Content: content}})
}

func (s *SQLiteSessionStore) AppendExchange(ctx context.Context, id, question, answer string) (int, error) {
	return s.appendBatch(ctx, id, []domain.Turn{
		{Role: domain.RoleUser, Content: question},
		{Role: domain.RoleAssistant, Content: answer},
	})
}

// appendBatch inserts turns inside one transaction so a pair either lands
// whole or not at all, and sequence numbers stay gap-free.
func (s *SQLiteSessionStore) appendBatch(ctx context.Context, id string, turns []domain.Turn) (int, error) {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var state, lastActiveAt string
	err = tx.QueryRowContext(ctx,
		`SELECT state, last_active_at FROM sessions WHERE id = ?`, id,
	).Scan(&state, &lastActiveAt)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && state != string(domain.StateActive)) {
		return 0, domain.NewNotFound(id)
	}
	if err != nil {
		return 0, fmt.Errorf("checking session: %w", err)
	}
	if s.stale(lastActiveAt) {
		return 0, domain.NewNotFound(id)
	}

	var lastSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM turns WHERE session_id = ?`, id,
	).Scan(&lastSeq); err != nil {
		return 0, fmt.Errorf("reading last seq: %w", err)
	}

	now := s.stamp()
	seq := lastSeq
	for _, turn := range turns {
		seq++
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (session_id, seq, role, content, timestamp)
			 VALUES (?, ?, ?, ?, ?)`,
			id, seq, turn.Role, turn.Content, now,
		); err != nil {
			return 0, fmt.Errorf("inserting turn %d: %w", seq, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE id = ?`, now, id,
	); err != nil {
		return 0, fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return seq, nil
}

// End removes a session and its turns. Ending an unknown session is a no-op.
func (s *SQLiteSessionStore) End(ctx context.Context, id string) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) SweepExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	cutoff := now.Add(-ttl).UTC().Format(time.DateTime)
	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM sessions WHERE state = 'active' AND last_active_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting swept sessions: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteSessionStore) Len() int {
	var count int
	if err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM sessions WHERE state = 'active'`).Scan(&count); err != nil {
		s.db.log.Error().Err(err).Msg("failed to count sessions")
		return 0
	}
	return count
}
