// Package recall is the top-level entry point: a memory relevance and
// retrieval engine that scores stored conversational memories against
// queries, retrieves with tiered fallback, clusters, and assembles bounded
// context strings. It re-exports the src/memory surface so most callers need
// a single import.
package recall

import (
	"github.com/Protocol-Lattice/go-recall/src/memory"
)

type (
	Engine          = memory.Engine
	Options         = memory.Options
	ScoreWeights    = memory.ScoreWeights
	RetrieveRequest = memory.RetrieveRequest
	RetrieveResult  = memory.RetrieveResult
	ClusterStrategy = memory.ClusterStrategy

	MemoryRecord = memory.MemoryRecord
	ScoredMemory = memory.ScoredMemory
	Cluster      = memory.Cluster
	Session      = memory.Session

	MemoryStore    = memory.MemoryStore
	Embedder       = memory.Embedder
	Summarizer     = memory.Summarizer
	SessionManager = memory.SessionManager
	SessionConfig  = memory.SessionConfig
)

const (
	ClusterByTopic    = memory.ClusterByTopic
	ClusterByTime     = memory.ClusterByTime
	ClusterBySemantic = memory.ClusterBySemantic
)

var (
	NewEngine           = memory.NewEngine
	DefaultOptions      = memory.DefaultOptions
	DefaultScoreWeights = memory.DefaultScoreWeights

	NewSessionManager    = memory.NewSessionManager
	DefaultSessionConfig = memory.DefaultSessionConfig

	NewInMemoryStore = memory.NewInMemoryStore
	NewPostgresStore = memory.NewPostgresStore
	NewMongoStore    = memory.NewMongoStore
	NewQdrantStore   = memory.NewQdrantStore

	AutoEmbedder      = memory.AutoEmbedder
	NewCachedEmbedder = memory.NewCachedEmbedder

	ErrInvalidQuery    = memory.ErrInvalidQuery
	ErrSessionNotFound = memory.ErrSessionNotFound
	ErrSessionExpired  = memory.ErrSessionExpired
)
