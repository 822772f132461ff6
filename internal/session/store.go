// Package session owns conversation session state: creation on upload,
// per-turn mutation during chat, idempotent teardown, and TTL expiry.
//
// The Store is the only shared mutable state in the service. Callers pass
// session ids and receive copies; nothing outside this package (or the
// sqlite implementation in internal/store) holds a session across calls.
package session

import (
	"context"
	"time"

	"github.com/glunkad/caresimplfyservice/internal/domain"
)

// Store is the contract both the in-memory and SQLite session stores
// implement.
type Store interface {
	// Create allocates a fresh session seeded with the simplified report
	// and returns its id. Fails only when the store is at capacity.
	Create(ctx context.Context, seedDocument string) (string, error)

	// Get returns a snapshot copy of the session, or a not-found error if
	// the id is unknown, ended, or expired.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// AppendTurn atomically assigns the next sequence number, appends the
	// turn, and refreshes the session's last-active time. Concurrent
	// appends to the same id never observe the same sequence number.
	AppendTurn(ctx context.Context, id string, role domain.Role, content string) (int, error)

	// AppendExchange appends a user/assistant pair in one atomic step and
	// returns the assistant turn's sequence number. Chat uses this so a
	// failed completion leaves no half-recorded exchange.
	AppendExchange(ctx context.Context, id, question, answer string) (int, error)

	// End marks the session ended and removes it. Unknown ids are a
	// successful no-op, so callers always see the same outcome shape.
	End(ctx context.Context, id string) error

	// SweepExpired removes sessions idle longer than ttl and returns how
	// many were removed. It takes the same per-session exclusion as
	// appends, so it never deletes a session mid-append.
	SweepExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error)

	// Len reports the number of live sessions.
	Len() int
}
