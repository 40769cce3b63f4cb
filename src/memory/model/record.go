package model

import "time"

// MemoryRecord is one stored unit of conversational content. Records are
// immutable once written; the engine only backfills Embedding lazily via the
// store's UpdateEmbedding.
type MemoryRecord struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id,omitempty"` // empty = global memory
	Content      string    `json:"content"`
	Embedding    []float32 `json:"embedding,omitempty"` // nil until computed
	MemoryType   string    `json:"memory_type"`
	CreatedAt    time.Time `json:"created_at"`
	LastEmbedded time.Time `json:"last_embedded,omitempty"`
	Metadata     string    `json:"metadata,omitempty"` // JSON object, opaque except where read
}

// ScoreBreakdown lists the sub-scores that contributed to a composite score.
// A signal that was not computable for the record is reported as zero.
type ScoreBreakdown struct {
	Semantic    float64 `json:"semantic"`
	Keyword     float64 `json:"keyword"`
	Recency     float64 `json:"recency"`
	Frequency   float64 `json:"frequency"`
	Interaction float64 `json:"interaction"`
}

// ScoredMemory pairs a record with its composite relevance score. Derived and
// ephemeral; recomputed per query, never persisted.
type ScoredMemory struct {
	MemoryRecord
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`

	// Seq is the record's position in the candidate list, used as the final
	// tie-break so rankings stay reproducible.
	Seq int `json:"-"`
}

// Cluster is a derived grouping of memories sharing a topic, time window or
// semantic neighborhood. Best-effort: cluster keys come from heuristics, not
// a ground-truth classifier.
type Cluster struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	IDs     []int64 `json:"ids"`
	Size    int     `json:"size"`
	Summary string  `json:"summary,omitempty"`
}

// SessionStatus enumerates the lifecycle states of a session. The only legal
// transition is active -> expired.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
)

// Session is one bounded interaction window scoping a set of memories.
type Session struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Name             string         `json:"name,omitempty"`
	Status           SessionStatus  `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	LastActivity     time.Time      `json:"last_activity"`
	InteractionCount int            `json:"interaction_count"`
	MemoryCount      int            `json:"memory_count"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Active reports whether the session can still accept interactions.
func (s Session) Active() bool { return s.Status == SessionActive }

// Age returns how long the session has existed relative to now.
func (s Session) Age(now time.Time) time.Duration { return now.Sub(s.CreatedAt) }

// Idle returns how long the session has been without activity relative to now.
func (s Session) Idle(now time.Time) time.Duration { return now.Sub(s.LastActivity) }
