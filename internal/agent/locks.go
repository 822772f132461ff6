package agent

import "sync"

// sessionLocks serializes whole chat turns per session. The store guards
// individual appends, but a turn spans a read, an LLM call, and a write;
// holding the session's lock across all three keeps interleaved questions
// from seeing each other's half-finished exchanges.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire locks the mutex for id, creating it on first use.
func (s *sessionLocks) acquire(id string) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
}

// release unlocks the mutex for id and drops it once no turn holds or
// waits on it.
func (s *sessionLocks) release(id string) {
	s.mu.Lock()
	l := s.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
	s.mu.Unlock()

	l.mu.Unlock()
}
