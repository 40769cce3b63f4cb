package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// ErrSessionNotFound is returned when no session has the given id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when an interaction targets an expired
// session. Callers distinguish it from ErrSessionNotFound so they can decide
// whether to open a fresh session.
var ErrSessionExpired = errors.New("session expired")

// Config tunes the session organizer.
type Config struct {
	// Timeout is the idle duration after which a session expires.
	Timeout time.Duration
	// MaxPerUser caps a user's active sessions; the least-recently-active
	// session is expired when a creation would exceed it.
	MaxPerUser int
	// SweepInterval is the background sweep period.
	SweepInterval time.Duration
	// Now is the clock; tests may pin it.
	Now func() time.Time
}

// DefaultConfig returns the standard session limits.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Minute,
		MaxPerUser:    10,
		SweepInterval: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = def.MaxPerUser
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Stats summarizes one session's bookkeeping counters.
type Stats struct {
	InteractionCount int           `json:"interaction_count"`
	MemoryCount      int           `json:"memory_count"`
	Age              time.Duration `json:"age"`
}

// Manager organizes sessions: creation, interaction bookkeeping, idle
// expiry, and per-user LRU eviction. Every read-modify-write cycle runs
// under per-session mutual exclusion, so an interaction racing the
// background sweep resolves to one winner.
type Manager struct {
	cfg   Config
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a session manager with in-memory persistence.
func NewManager(cfg Config) *Manager {
	return NewManagerWithStore(NewInMemorySessionStore(), cfg)
}

// NewManagerWithStore creates a session manager over the given store.
func NewManagerWithStore(store Store, cfg Config) *Manager {
	return &Manager{
		cfg:   cfg.withDefaults(),
		store: store,
		locks: make(map[string]*sync.Mutex),
		stop:  make(chan struct{}),
	}
}

// lockFor hands out the session's mutex. Per-session locks are only ever
// acquired after m.mu is released, so lock ordering stays acyclic.
func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Create opens a new active session for the user. If the user's active
// session count would exceed the cap, the least-recently-active sessions are
// expired first, never the newest.
func (m *Manager) Create(userID, name string) (model.Session, error) {
	if userID == "" {
		return model.Session{}, errors.New("session requires a user id")
	}
	now := m.cfg.Now()
	sess := model.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         name,
		Status:       model.SessionActive,
		CreatedAt:    now,
		LastActivity: now,
	}
	m.store.UpsertSession(sess)
	m.evictLRU(userID)
	return sess, nil
}

// evictLRU expires the user's least-recently-active sessions until the
// active count fits the cap.
func (m *Manager) evictLRU(userID string) {
	for {
		var (
			active int
			oldest model.Session
			found  bool
		)
		for _, s := range m.store.SessionsByUser(userID) {
			if s.Status != model.SessionActive {
				continue
			}
			active++
			if !found || s.LastActivity.Before(oldest.LastActivity) {
				oldest, found = s, true
			}
		}
		if active <= m.cfg.MaxPerUser || !found {
			return
		}
		lock := m.lockFor(oldest.ID)
		lock.Lock()
		// Re-read under the lock; a racing interaction may have refreshed
		// or expired it since the scan.
		if cur, ok := m.store.GetSession(oldest.ID); ok && cur.Status == model.SessionActive {
			cur.Status = model.SessionExpired
			m.store.UpsertSession(cur)
		}
		lock.Unlock()
	}
}

// Get returns a snapshot of the session.
func (m *Manager) Get(id string) (model.Session, error) {
	sess, ok := m.store.GetSession(id)
	if !ok {
		return model.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Touch records one interaction: bumps last_activity and the interaction
// counter. Expired sessions reject interactions.
func (m *Manager) Touch(id string) error {
	return m.interact(id, func(s *model.Session) {
		s.InteractionCount++
	})
}

// AttachMemory records that a memory was stored under the session.
func (m *Manager) AttachMemory(id string) error {
	return m.interact(id, func(s *model.Session) {
		s.InteractionCount++
		s.MemoryCount++
	})
}

func (m *Manager) interact(id string, update func(*model.Session)) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	sess, ok := m.store.GetSession(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if sess.Status != model.SessionActive {
		return fmt.Errorf("%w: %s", ErrSessionExpired, id)
	}
	now := m.cfg.Now()
	// last_activity never moves backwards, even with a pinned test clock.
	if now.After(sess.LastActivity) {
		sess.LastActivity = now
	}
	update(&sess)
	m.store.UpsertSession(sess)
	return nil
}

// Expire transitions the session to expired. Idempotent: expiring an already
// expired session is a no-op, not an error.
func (m *Manager) Expire(id string) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	sess, ok := m.store.GetSession(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if sess.Status != model.SessionExpired {
		sess.Status = model.SessionExpired
		m.store.UpsertSession(sess)
	}
	return nil
}

// Stats reports the session's counters and age.
func (m *Manager) Stats(id string) (Stats, error) {
	sess, ok := m.store.GetSession(id)
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return Stats{
		InteractionCount: sess.InteractionCount,
		MemoryCount:      sess.MemoryCount,
		Age:              sess.Age(m.cfg.Now()),
	}, nil
}

// ActiveSessions returns snapshots of the user's active sessions.
func (m *Manager) ActiveSessions(userID string) []model.Session {
	var out []model.Session
	for _, s := range m.store.SessionsByUser(userID) {
		if s.Status == model.SessionActive {
			out = append(out, s)
		}
	}
	return out
}

// SweepOnce expires every session idle past the timeout and returns how many
// it transitioned. Already expired sessions are skipped, so repeated sweeps
// are no-ops.
func (m *Manager) SweepOnce() int {
	swept := 0
	for _, id := range m.store.SessionIDs() {
		lock := m.lockFor(id)
		lock.Lock()
		sess, ok := m.store.GetSession(id)
		if ok && sess.Status == model.SessionActive && sess.Idle(m.cfg.Now()) > m.cfg.Timeout {
			sess.Status = model.SessionExpired
			m.store.UpsertSession(sess)
			swept++
		}
		lock.Unlock()
	}
	return swept
}

// StartSweeper launches the background expiry sweep. It runs until Stop.
func (m *Manager) StartSweeper() {
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.SweepOnce()
			}
		}
	}()
}

// Stop cancels the background sweep and waits for it to exit. Safe to call
// multiple times and without a prior StartSweeper.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.done != nil {
		<-m.done
	}
}
