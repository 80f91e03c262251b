package bus

import "sync"

// SessionLocks serializes read-modify-write cycles over one identity's
// local lists. The envelope log and the directory tolerate concurrent
// writers, but a contact or group list is a single record: every component
// that loads, modifies and saves one must hold the owner's lock for the
// whole cycle, or a concurrent save wins and the other's changes are lost.
//
// One SessionLocks instance is shared by everything in the process that
// mutates lists. Locks for distinct identities are independent.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionLocks creates an empty lock set.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the canonical identity and returns the release func.
func (s *SessionLocks) Acquire(identity string) func() {
	key := Canonicalize(identity)

	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
