package session

import (
	"sync"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// Store is the session persistence contract. Implementations must be safe
// for concurrent use; the Manager serializes read-modify-write cycles per
// session above this interface.
type Store interface {
	// GetSession returns the session and whether it exists.
	GetSession(id string) (model.Session, bool)
	// UpsertSession inserts or replaces the session.
	UpsertSession(sess model.Session)
	// SessionsByUser returns snapshots of every session the user owns.
	SessionsByUser(userID string) []model.Session
	// SessionIDs returns every stored session id.
	SessionIDs() []string
}

// InMemorySessionStore keeps sessions in a process-local map.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

// NewInMemorySessionStore creates an empty session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]model.Session)}
}

func (s *InMemorySessionStore) GetSession(id string) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *InMemorySessionStore) UpsertSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *InMemorySessionStore) SessionsByUser(userID string) []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out
}

func (s *InMemorySessionStore) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
