package engine

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// Scorer computes composite relevance scores from independent signals. A
// signal that cannot be computed for a record (no embedding, no engagement
// data) is excluded and the remaining weights are renormalized, so a memory
// is not punished for data it never had. If no signal is computable the
// composite score is 0; there is deliberately no non-zero floor.
type Scorer struct {
	weights               ScoreWeights
	halfLife              time.Duration
	interactionSaturation float64
	now                   func() time.Time
}

// NewScorer builds a scorer from engine options.
func NewScorer(opts Options) *Scorer {
	opts = opts.withDefaults()
	return &Scorer{
		weights:               opts.Weights,
		halfLife:              opts.HalfLife,
		interactionSaturation: opts.InteractionSaturation,
		now:                   opts.Now,
	}
}

// Score computes the composite relevance of one memory against a query. The
// frequency signal defaults to unavailable; retrieval supplies it via
// scoreWithFrequency when it has computed recurrence counts.
func (s *Scorer) Score(query string, queryVec []float32, rec model.MemoryRecord) (float64, model.ScoreBreakdown) {
	return s.scoreWithFrequency(query, queryVec, rec, 0, false)
}

func (s *Scorer) scoreWithFrequency(query string, queryVec []float32, rec model.MemoryRecord, frequency float64, hasFrequency bool) (float64, model.ScoreBreakdown) {
	var breakdown model.ScoreBreakdown
	var weighted, totalWeight float64

	if len(queryVec) > 0 && len(rec.Embedding) > 0 {
		breakdown.Semantic = model.ClampedSimilarity(queryVec, rec.Embedding)
		weighted += s.weights.Semantic * breakdown.Semantic
		totalWeight += s.weights.Semantic
	}

	// Keyword overlap is always computable: empty query or empty content
	// simply scores 0 rather than dropping the signal.
	breakdown.Keyword = KeywordOverlap(query, rec.Content)
	weighted += s.weights.Keyword * breakdown.Keyword
	totalWeight += s.weights.Keyword

	if !rec.CreatedAt.IsZero() {
		breakdown.Recency = s.recency(rec.CreatedAt)
		weighted += s.weights.Recency * breakdown.Recency
		totalWeight += s.weights.Recency
	}

	if hasFrequency {
		breakdown.Frequency = clamp01(frequency)
		weighted += s.weights.Frequency * breakdown.Frequency
		totalWeight += s.weights.Frequency
	}

	if n, ok := model.InteractionCount(rec); ok {
		breakdown.Interaction = clamp01(n / s.interactionSaturation)
		weighted += s.weights.Interaction * breakdown.Interaction
		totalWeight += s.weights.Interaction
	}

	if totalWeight == 0 {
		return 0, breakdown
	}
	return clamp01(weighted / totalWeight), breakdown
}

// recency decays exponentially with age: 1 at age zero, 0.5 at one
// half-life, approaching but never reaching 0.
func (s *Scorer) recency(createdAt time.Time) float64 {
	age := s.now().Sub(createdAt)
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Seconds() / s.halfLife.Seconds())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortScored orders memories by composite score descending, breaking ties by
// more recent CreatedAt, then by candidate position, so rankings are stable
// and reproducible.
func SortScored(list []model.ScoredMemory) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Seq < list[j].Seq
	})
}

// ---------- tokenization ----------

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {},
	"but": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "by": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "it": {},
	"i": {}, "you": {}, "my": {}, "your": {}, "we": {},
}

// Tokenize lowercases text and splits it on non-alphanumeric runes,
// dropping stop words and single-character tokens. Deterministic and
// order-independent consumers should use TokenSet.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// TokenSet returns the deduplicated token set of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// KeywordOverlap measures token-set overlap between two texts using the
// overlap coefficient |A∩B| / min(|A|,|B|). It is symmetric and returns 0
// when either side has no usable tokens.
func KeywordOverlap(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	smaller, larger := setA, setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}
	shared := 0
	for tok := range smaller {
		if _, ok := larger[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}
