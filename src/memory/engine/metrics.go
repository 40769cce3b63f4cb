package engine

import "sync/atomic"

// Metrics counts engine activity. All counters are atomic and cheap enough
// to update on every query.
type Metrics struct {
	queries         atomic.Int64
	fallbackKeyword atomic.Int64
	fallbackRecency atomic.Int64
	embedFailures   atomic.Int64
	backfilled      atomic.Int64
	summaries       atomic.Int64
	clusterRuns     atomic.Int64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics { return &Metrics{} }

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Queries         int64 `json:"queries"`
	FallbackKeyword int64 `json:"fallback_keyword"`
	FallbackRecency int64 `json:"fallback_recency"`
	EmbedFailures   int64 `json:"embed_failures"`
	Backfilled      int64 `json:"backfilled"`
	Summaries       int64 `json:"summaries"`
	ClusterRuns     int64 `json:"cluster_runs"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Queries:         m.queries.Load(),
		FallbackKeyword: m.fallbackKeyword.Load(),
		FallbackRecency: m.fallbackRecency.Load(),
		EmbedFailures:   m.embedFailures.Load(),
		Backfilled:      m.backfilled.Load(),
		Summaries:       m.summaries.Load(),
		ClusterRuns:     m.clusterRuns.Load(),
	}
}
