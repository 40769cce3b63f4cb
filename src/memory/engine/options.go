package engine

import "time"

// ScoreWeights controls the contribution of each relevance signal. Weights
// are renormalized per record over the signals that were actually computable,
// so they need not sum to 1.
type ScoreWeights struct {
	Semantic    float64
	Keyword     float64
	Recency     float64
	Frequency   float64
	Interaction float64
}

// DefaultScoreWeights returns the standard signal mix.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Semantic:    0.40,
		Keyword:     0.25,
		Recency:     0.20,
		Frequency:   0.10,
		Interaction: 0.05,
	}
}

// Options is the engine's immutable configuration, fixed at construction.
// Nothing is read from global state mid-computation.
type Options struct {
	Weights ScoreWeights

	// RelevanceThreshold discards primary-tier candidates scoring below it.
	RelevanceThreshold float64

	// HalfLife controls recency decay: a memory this old scores 0.5 on the
	// recency signal. Decay is exponential, so the signal approaches but
	// never reaches zero.
	HalfLife time.Duration

	// EmbedTimeout bounds each embedding-provider call. On timeout the
	// semantic signal is skipped for that query, not retried indefinitely.
	EmbedTimeout time.Duration

	// FuzzyMaxEdits is the per-token edit-distance tolerance of the keyword
	// fallback tier.
	FuzzyMaxEdits int

	// FrequencyThreshold is the cosine similarity above which two memories
	// count as recurrences of each other.
	FrequencyThreshold float64

	// InteractionSaturation is the engagement count at which the
	// interaction signal saturates to 1.
	InteractionSaturation float64

	// MaxContextLength bounds the assembled context string.
	MaxContextLength int

	// EnableSummarization condenses overflow memories into a single note
	// instead of dropping them silently.
	EnableSummarization bool

	// BackfillLimit caps how many missing embeddings one query may compute
	// and cache back onto the store.
	BackfillLimit int

	// MaxWorkers bounds concurrent embedding backfill calls.
	MaxWorkers int

	// Now is the clock used for recency scoring; tests may pin it.
	Now func() time.Time
}

// DefaultOptions returns a ready-to-use configuration.
func DefaultOptions() Options {
	return Options{
		Weights:               DefaultScoreWeights(),
		RelevanceThreshold:    0.35,
		HalfLife:              24 * time.Hour,
		EmbedTimeout:          5 * time.Second,
		FuzzyMaxEdits:         2,
		FrequencyThreshold:    0.90,
		InteractionSaturation: 10,
		MaxContextLength:      4000,
		BackfillLimit:         8,
		MaxWorkers:            4,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	zero := ScoreWeights{}
	if o.Weights == zero {
		o.Weights = def.Weights
	}
	if o.HalfLife <= 0 {
		o.HalfLife = def.HalfLife
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = def.EmbedTimeout
	}
	if o.FuzzyMaxEdits <= 0 {
		o.FuzzyMaxEdits = def.FuzzyMaxEdits
	}
	if o.FrequencyThreshold <= 0 {
		o.FrequencyThreshold = def.FrequencyThreshold
	}
	if o.InteractionSaturation <= 0 {
		o.InteractionSaturation = def.InteractionSaturation
	}
	if o.MaxContextLength <= 0 {
		o.MaxContextLength = def.MaxContextLength
	}
	if o.BackfillLimit <= 0 {
		o.BackfillLimit = def.BackfillLimit
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = def.MaxWorkers
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
