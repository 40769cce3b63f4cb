package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Protocol-Lattice/go-recall/src/concurrent"
	"github.com/Protocol-Lattice/go-recall/src/memory/embed"
	"github.com/Protocol-Lattice/go-recall/src/memory/model"
	"github.com/Protocol-Lattice/go-recall/src/memory/session"
	"github.com/Protocol-Lattice/go-recall/src/memory/store"
)

// ErrInvalidQuery is returned when the retrieval query is empty or blank.
var ErrInvalidQuery = errors.New("query must not be empty")

// Engine is the memory relevance and retrieval engine. It scores stored
// memories against queries, falls back through retrieval tiers, clusters
// result sets, and assembles bounded context strings.
//
// An Engine is safe for concurrent use: per-query work touches no shared
// mutable state beyond the store, the session manager and the metrics
// counters.
type Engine struct {
	store      store.MemoryStore
	embedder   embed.Embedder
	scorer     *Scorer
	summarizer Summarizer
	sessions   *session.Manager
	pool       *concurrent.WorkerPool
	opts       Options
	metrics    *Metrics
}

// NewEngine builds an engine over the given store. Collaborators attach via
// the With* chain; without an embedder the semantic signal is skipped and
// ranking rests on the keyword and recency signals.
func NewEngine(st store.MemoryStore, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		store:   st,
		scorer:  NewScorer(opts),
		pool:    concurrent.NewWorkerPool(opts.MaxWorkers),
		opts:    opts,
		metrics: NewMetrics(),
	}
}

// WithEmbedder attaches an embedding provider. The provider is wrapped with a
// per-call timeout and a single bounded retry.
func (e *Engine) WithEmbedder(embedder embed.Embedder) *Engine {
	if embedder != nil {
		e.embedder = embed.NewTimeoutEmbedder(embedder, e.opts.EmbedTimeout)
	}
	return e
}

// WithSessions attaches a session manager so retrieval records interactions
// and session-scoped queries validate their session first.
func (e *Engine) WithSessions(mgr *session.Manager) *Engine {
	e.sessions = mgr
	return e
}

// WithSummarizer attaches a summarizer used for overflow condensation during
// context assembly and for cluster summaries.
func (e *Engine) WithSummarizer(s Summarizer) *Engine {
	e.summarizer = s
	return e
}

// Store exposes the underlying memory store for write-path callers.
func (e *Engine) Store() store.MemoryStore { return e.store }

// Sessions exposes the attached session manager, nil when none is attached.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Options returns a copy of the engine's configuration.
func (e *Engine) Options() Options { return e.opts }

// RetrieveRequest names the inputs of one retrieval.
type RetrieveRequest struct {
	UserID    string
	SessionID string // optional; empty retrieves across all of the user's memories
	Query     string
	Limit     int
	// MaxContextLength overrides the engine default when positive.
	MaxContextLength int
}

// RetrieveResult is the assembled outcome of one retrieval.
type RetrieveResult struct {
	Context      string               `json:"context"`
	MemoriesUsed []int64              `json:"memories_used"`
	Memories     []model.ScoredMemory `json:"memories"`
	Truncated    bool                 `json:"truncated"`
	Summarized   bool                 `json:"summarized"`
	// Degraded is set when the semantic signal was unavailable for this
	// query (provider failure or timeout) and ranking fell back to the
	// remaining signals.
	Degraded bool `json:"degraded"`
}

// RetrieveContext runs the full pipeline: validate, search tiers, rank, and
// assemble a bounded context string. Store and provider failures degrade the
// result instead of failing it; only invalid caller input is an error.
func (e *Engine) RetrieveContext(ctx context.Context, req RetrieveRequest) (*RetrieveResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: user %q", ErrInvalidQuery, req.UserID)
	}
	if req.UserID == "" {
		return nil, errors.New("user id must not be empty")
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}
	maxLen := req.MaxContextLength
	if maxLen <= 0 {
		maxLen = e.opts.MaxContextLength
	}

	if e.sessions != nil && req.SessionID != "" {
		if err := e.sessions.Touch(req.SessionID); err != nil {
			return nil, err
		}
	}

	e.metrics.queries.Add(1)

	ranked, degraded := e.search(ctx, req.UserID, req.SessionID, req.Query, req.Limit)
	assembled := e.assemble(ctx, ranked, maxLen)

	ids := make([]int64, 0, len(assembled.Included))
	for _, m := range assembled.Included {
		ids = append(ids, m.ID)
	}
	return &RetrieveResult{
		Context:      assembled.Context,
		MemoriesUsed: ids,
		Memories:     ranked,
		Truncated:    assembled.Truncated,
		Summarized:   assembled.Summarized,
		Degraded:     degraded,
	}, nil
}

// ClusterMemories groups a user's memories using the named strategy.
func (e *Engine) ClusterMemories(ctx context.Context, userID string, strategy ClusterStrategy) ([]model.Cluster, error) {
	if userID == "" {
		return nil, errors.New("user id must not be empty")
	}
	records, err := e.listCandidates(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return e.Cluster(ctx, records, strategy)
}

// listCandidates loads the candidate pool for a user, optionally scoped to a
// session (session memories plus global ones).
func (e *Engine) listCandidates(ctx context.Context, userID, sessionID string) ([]model.MemoryRecord, error) {
	if e.store == nil {
		return nil, nil
	}
	records, err := e.store.ListMemories(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// embedQuery computes the query vector, reporting degradation rather than
// failing when the provider is unavailable.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	if e.embedder == nil {
		return nil, false
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		e.metrics.embedFailures.Add(1)
		log.Printf("engine: query embedding unavailable, degrading to keyword/recency: %v", err)
		return nil, true
	}
	return vec, false
}
