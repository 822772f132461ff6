package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glunkad/caresimplfyservice/internal/domain"
)

// entry pairs a session with its own mutex. The map-level lock is only
// held long enough to find the entry; all per-session work happens under
// the entry lock, so sessions never block each other.
type entry struct {
	mu   sync.Mutex
	sess domain.Session
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	maxSessions int           // 0 means unlimited
	ttl         time.Duration // 0 disables lazy expiry
	now         func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxSessions caps the number of live sessions.
func WithMaxSessions(n int) MemoryOption {
	return func(s *MemoryStore) { s.maxSessions = n }
}

// WithTTL makes reads treat sessions idle longer than ttl as gone, so a
// stale session is unreachable even before the next sweep removes it.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, seedDocument string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.entries) >= s.maxSessions {
		return "", domain.NewExhausted(fmt.Sprintf("session limit reached (%d)", s.maxSessions))
	}

	now := s.now()
	id := uuid.New().String()
	s.entries[id] = &entry{
		sess: domain.Session{
			ID:           id,
			SeedDocument: seedDocument,
			State:        domain.StateActive,
			CreatedAt:    now,
			LastActiveAt: now,
		},
	}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, domain.NewNotFound(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.liveLocked(e) {
		return nil, domain.NewNotFound(id)
	}

	snap := e.sess
	snap.Turns = make([]domain.Turn, len(e.sess.Turns))
	copy(snap.Turns, e.sess.Turns)
	return &snap, nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, id string, role domain.Role, content string) (int, error) {
	e := s.lookup(id)
	if e == nil {
		return 0, domain.NewNotFound(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.liveLocked(e) {
		return 0, domain.NewNotFound(id)
	}
	return s.appendLocked(e, role, content), nil
}

func (s *MemoryStore) AppendExchange(_ context.Context, id, question, answer string) (int, error) {
	e := s.lookup(id)
	if e == nil {
		return 0, domain.NewNotFound(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.liveLocked(e) {
		return 0, domain.NewNotFound(id)
	}
	s.appendLocked(e, domain.RoleUser, question)
	return s.appendLocked(e, domain.RoleAssistant, answer), nil
}

// liveLocked reports whether the session is active and, when a ttl is
// set, not idle past it. Caller holds e.mu. A stale entry is left in
// place for the sweeper to remove.
func (s *MemoryStore) liveLocked(e *entry) bool {
	if e.sess.State != domain.StateActive {
		return false
	}
	if s.ttl > 0 && s.now().Sub(e.sess.LastActiveAt) > s.ttl {
		return false
	}
	return true
}

// appendLocked assigns the next sequence number and refreshes the
// last-active time. Caller holds e.mu.
func (s *MemoryStore) appendLocked(e *entry, role domain.Role, content string) int {
	now := s.now()
	seq := len(e.sess.Turns) + 1
	e.sess.Turns = append(e.sess.Turns, domain.Turn{
		Role:      role,
		Content:   content,
		Seq:       seq,
		Timestamp: now,
	})
	e.sess.LastActiveAt = now
	return seq
}

func (s *MemoryStore) End(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if ok {
		// Mark ended under the entry lock so an in-flight append observes
		// the transition rather than writing to a deleted session.
		e.mu.Lock()
		e.sess.State = domain.StateEnded
		e.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time, ttl time.Duration) (int, error) {
	cutoff := now.Add(-ttl)

	s.mu.RLock()
	candidates := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		candidates[id] = e
	}
	s.mu.RUnlock()

	removed := 0
	for id, e := range candidates {
		e.mu.Lock()
		expired := e.sess.State == domain.StateActive && e.sess.LastActiveAt.Before(cutoff)
		if expired {
			e.sess.State = domain.StateEnded
		}
		e.mu.Unlock()

		if !expired {
			continue
		}

		s.mu.Lock()
		// Re-check identity: the id may have been ended and reused slots
		// are impossible (uuids), but the entry may already be gone.
		if cur, ok := s.entries[id]; ok && cur == e {
			delete(s.entries, id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}
