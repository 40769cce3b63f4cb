package store

import (
	"context"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// MemoryStore defines the contract for memory persistence backends. The
// engine treats it as a flat record store; all ranking happens above it.
//
// ListMemories scoping: an empty sessionID returns every memory the user
// owns; a non-empty sessionID returns that session's memories plus the
// user's global ones (records with no session). Results are ordered by
// CreatedAt ascending, then ID, so candidate order is deterministic.
type MemoryStore interface {
	WriteMemory(ctx context.Context, rec model.MemoryRecord) (int64, error)
	ListMemories(ctx context.Context, userID, sessionID string) ([]model.MemoryRecord, error)
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32, lastEmbedded time.Time) error
	DeleteMemory(ctx context.Context, ids []int64) error
	Count(ctx context.Context, userID string) (int, error)
}

// SchemaInitializer allows stores to expose optional schema/bootstrap routines.
type SchemaInitializer interface {
	CreateSchema(ctx context.Context) error
}
