package cat

import (
	"sync"
	"time"
)

// Registry stores sessions keyed by user id.
//
// Implementations guard only their own map; mutation of a session is
// serialized by the session's lock, so callers for different users never
// contend beyond the map access itself. Sessions leave the registry only
// through Delete or EvictIdle.
type Registry interface {
	// Get returns the session for userID.
	Get(userID string) (*Session, bool)
	// GetOrCreate returns the existing session for userID, or stores and
	// returns the one produced by build. created reports which happened.
	// build may run even if a concurrent caller wins the insertion.
	GetOrCreate(userID string, build func() (*Session, error)) (sess *Session, created bool, err error)
	// Delete removes the session for userID and reports whether it existed.
	Delete(userID string) bool
	// EvictIdle removes sessions not updated since cutoff and returns how
	// many were removed.
	EvictIdle(cutoff time.Time) int
	// Len returns the number of stored sessions.
	Len() int
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: map[string]*Session{}}
}

func (r *MemoryRegistry) Get(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *MemoryRegistry) GetOrCreate(userID string, build func() (*Session, error)) (*Session, bool, error) {
	if s, ok := r.Get(userID); ok {
		return s, false, nil
	}

	s, err := build()
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[userID]; ok {
		return existing, false, nil
	}
	r.sessions[userID] = s
	return s, true, nil
}

func (r *MemoryRegistry) Delete(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	delete(r.sessions, userID)
	return ok
}

func (r *MemoryRegistry) EvictIdle(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.lastActive().Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
