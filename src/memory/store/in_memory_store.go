package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// InMemoryStore keeps memories in a process-local map. Suitable for tests
// and single-process deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[int64]model.MemoryRecord
	nextID  int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[int64]model.MemoryRecord)}
}

func (s *InMemoryStore) WriteMemory(_ context.Context, rec model.MemoryRecord) (int64, error) {
	if rec.UserID == "" {
		return 0, errors.New("memory record requires a user id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.records[rec.ID] = rec
	return rec.ID, nil
}

func (s *InMemoryStore) ListMemories(_ context.Context, userID, sessionID string) ([]model.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MemoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		if sessionID != "" && rec.SessionID != "" && rec.SessionID != sessionID {
			continue
		}
		cp := rec
		cp.Embedding = append([]float32(nil), rec.Embedding...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) UpdateEmbedding(_ context.Context, id int64, embedding []float32, lastEmbedded time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return errors.New("memory not found")
	}
	rec.Embedding = append([]float32(nil), embedding...)
	rec.LastEmbedded = lastEmbedded
	s.records[id] = rec
	return nil
}

func (s *InMemoryStore) DeleteMemory(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *InMemoryStore) Count(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}
