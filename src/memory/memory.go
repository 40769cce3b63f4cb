// Package memory bundles the relevance engine, session organizer, stores and
// embedding providers under one import for callers that want the whole
// retrieval pipeline without wiring subpackages themselves.
package memory

import (
	embedpkg "github.com/Protocol-Lattice/go-recall/src/memory/embed"
	memengine "github.com/Protocol-Lattice/go-recall/src/memory/engine"
	"github.com/Protocol-Lattice/go-recall/src/memory/model"
	sessionpkg "github.com/Protocol-Lattice/go-recall/src/memory/session"
	storepkg "github.com/Protocol-Lattice/go-recall/src/memory/store"
)

// Type aliases preserving one flat public API.
type (
	Engine              = memengine.Engine
	Options             = memengine.Options
	ScoreWeights        = memengine.ScoreWeights
	Metrics             = memengine.Metrics
	MetricsSnapshot     = memengine.MetricsSnapshot
	RetrieveRequest     = memengine.RetrieveRequest
	RetrieveResult      = memengine.RetrieveResult
	ClusterStrategy     = memengine.ClusterStrategy
	ClusterConfig       = memengine.ClusterConfig
	Summarizer          = memengine.Summarizer
	HeuristicSummarizer = memengine.HeuristicSummarizer
	ClaudeSummarizer    = memengine.ClaudeSummarizer

	MemoryRecord   = model.MemoryRecord
	ScoredMemory   = model.ScoredMemory
	ScoreBreakdown = model.ScoreBreakdown
	Cluster        = model.Cluster
	Session        = model.Session
	SessionStatus  = model.SessionStatus

	SessionManager       = sessionpkg.Manager
	SessionConfig        = sessionpkg.Config
	SessionStats         = sessionpkg.Stats
	SessionStore         = sessionpkg.Store
	InMemorySessionStore = sessionpkg.InMemorySessionStore

	MemoryStore       = storepkg.MemoryStore
	SchemaInitializer = storepkg.SchemaInitializer
	InMemoryStore     = storepkg.InMemoryStore
	PostgresStore     = storepkg.PostgresStore
	MongoStore        = storepkg.MongoStore
	QdrantStore       = storepkg.QdrantStore

	Embedder        = embedpkg.Embedder
	DummyEmbedder   = embedpkg.DummyEmbedder
	CachedEmbedder  = embedpkg.CachedEmbedder
	TimeoutEmbedder = embedpkg.TimeoutEmbedder
	OpenAIEmbedder  = embedpkg.OpenAIEmbedder
	GeminiEmbedder  = embedpkg.GeminiEmbedder
	OllamaEmbedder  = embedpkg.OllamaEmbedder
	VoyageEmbedder  = embedpkg.VoyageEmbedder
)

const (
	SessionActive  = model.SessionActive
	SessionExpired = model.SessionExpired

	ClusterByTopic    = memengine.ClusterByTopic
	ClusterByTime     = memengine.ClusterByTime
	ClusterBySemantic = memengine.ClusterBySemantic
)

// Errors re-exported for callers matching with errors.Is.
var (
	ErrInvalidQuery    = memengine.ErrInvalidQuery
	ErrSessionNotFound = sessionpkg.ErrSessionNotFound
	ErrSessionExpired  = sessionpkg.ErrSessionExpired
	ErrNotSupported    = embedpkg.ErrNotSupported
	ErrUnavailable     = embedpkg.ErrUnavailable
)

// Constructors re-exported for the flat API.
var (
	NewEngine           = memengine.NewEngine
	DefaultOptions      = memengine.DefaultOptions
	DefaultScoreWeights = memengine.DefaultScoreWeights

	NewSessionManager          = sessionpkg.NewManager
	NewSessionManagerWithStore = sessionpkg.NewManagerWithStore
	NewInMemorySessionStore    = sessionpkg.NewInMemorySessionStore
	DefaultSessionConfig       = sessionpkg.DefaultConfig

	NewInMemoryStore = storepkg.NewInMemoryStore
	NewPostgresStore = storepkg.NewPostgresStore
	NewMongoStore    = storepkg.NewMongoStore
	NewQdrantStore   = storepkg.NewQdrantStore

	AutoEmbedder        = embedpkg.AutoEmbedder
	NewCachedEmbedder   = embedpkg.NewCachedEmbedder
	NewOpenAIEmbedder   = embedpkg.NewOpenAIEmbedder
	NewGeminiEmbedder   = embedpkg.NewGeminiEmbedder
	NewOllamaEmbedder   = embedpkg.NewOllamaEmbedder
	NewVoyageEmbedder   = embedpkg.NewVoyageEmbedder
	NewClaudeSummarizer = memengine.NewClaudeSummarizer
)
