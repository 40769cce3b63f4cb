package engine

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// search runs the tiered retrieval pipeline and returns the final ranked
// list, at most limit entries. Tiers run in strict sequence: each fallback
// fires only when the earlier tiers underfill the limit. The boolean reports
// whether the semantic signal was unavailable for this query.
func (e *Engine) search(ctx context.Context, userID, sessionID, query string, limit int) ([]model.ScoredMemory, bool) {
	records, err := e.listCandidates(ctx, userID, sessionID)
	if err != nil {
		// Store failures degrade to an empty result; retrieval promises
		// best effort, not an exception path.
		log.Printf("engine: listing memories for %q failed: %v", userID, err)
		return nil, true
	}
	if len(records) == 0 {
		return nil, false
	}

	queryVec, degraded := e.embedQuery(ctx, query)
	if len(queryVec) > 0 {
		records = e.backfillEmbeddings(ctx, records)
	}
	frequencies := e.frequencySignals(records)

	scored := make([]model.ScoredMemory, 0, len(records))
	for i, rec := range records {
		freq, hasFreq := frequencies[rec.ID]
		score, breakdown := e.scorer.scoreWithFrequency(query, queryVec, rec, freq, hasFreq)
		scored = append(scored, model.ScoredMemory{
			MemoryRecord: rec,
			Score:        score,
			Breakdown:    breakdown,
			Seq:          i,
		})
	}

	picked := make([]model.ScoredMemory, 0, limit)
	seen := make(map[int64]struct{})
	add := func(list []model.ScoredMemory) {
		for _, m := range list {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			picked = append(picked, m)
		}
	}

	add(e.tierPrimary(scored))
	if len(picked) < limit {
		e.metrics.fallbackKeyword.Add(1)
		add(e.tierFuzzy(query, scored))
	}
	if len(picked) < limit {
		e.metrics.fallbackRecency.Add(1)
		add(e.tierRecency(scored, limit-len(picked)))
	}

	SortScored(picked)
	if len(picked) > limit {
		picked = picked[:limit]
	}
	return picked, degraded
}

// tierPrimary keeps hybrid-scored candidates at or above the relevance
// threshold.
func (e *Engine) tierPrimary(scored []model.ScoredMemory) []model.ScoredMemory {
	out := make([]model.ScoredMemory, 0, len(scored))
	for _, m := range scored {
		if m.Score >= e.opts.RelevanceThreshold {
			out = append(out, m)
		}
	}
	return out
}

// tierFuzzy matches query tokens against content tokens tolerating small
// typos, so "pyton" still reaches "python" memories the threshold dropped.
func (e *Engine) tierFuzzy(query string, scored []model.ScoredMemory) []model.ScoredMemory {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	out := make([]model.ScoredMemory, 0, len(scored))
	for _, m := range scored {
		if e.fuzzyMatches(queryTokens, m.Content) {
			out = append(out, m)
		}
	}
	return out
}

func (e *Engine) fuzzyMatches(queryTokens []string, content string) bool {
	for tok := range TokenSet(content) {
		for _, q := range queryTokens {
			if withinEditDistance(q, tok, e.opts.FuzzyMaxEdits) {
				return true
			}
		}
	}
	return false
}

// tierRecency returns the freshest memories regardless of textual relevance,
// a better-than-nothing floor when matching found too little.
func (e *Engine) tierRecency(scored []model.ScoredMemory, n int) []model.ScoredMemory {
	byRecency := make([]model.ScoredMemory, len(scored))
	copy(byRecency, scored)
	sort.SliceStable(byRecency, func(i, j int) bool {
		ri, rj := byRecency[i], byRecency[j]
		if !ri.CreatedAt.Equal(rj.CreatedAt) {
			return ri.CreatedAt.After(rj.CreatedAt)
		}
		return ri.Breakdown.Frequency > rj.Breakdown.Frequency
	})
	if n < 0 {
		n = 0
	}
	if len(byRecency) > n {
		byRecency = byRecency[:n]
	}
	return byRecency
}

// frequencySignals counts near-duplicate neighbors per memory: two memories
// recur when their embeddings' cosine similarity reaches the frequency
// threshold. The count is normalized against the largest neighborhood so the
// signal lands in [0,1]. Memories without embeddings get no frequency signal.
func (e *Engine) frequencySignals(records []model.MemoryRecord) map[int64]float64 {
	counts := make(map[int64]int)
	maxCount := 0
	for i := range records {
		if len(records[i].Embedding) == 0 {
			continue
		}
		n := 0
		for j := range records {
			if i == j || len(records[j].Embedding) == 0 {
				continue
			}
			if model.ClampedSimilarity(records[i].Embedding, records[j].Embedding) >= e.opts.FrequencyThreshold {
				n++
			}
		}
		counts[records[i].ID] = n
		if n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		// All neighborhoods empty: the signal carries no information, so
		// report it as unavailable rather than scoring everyone 0.
		return nil
	}
	out := make(map[int64]float64, len(counts))
	for id, n := range counts {
		out[id] = float64(n) / float64(maxCount)
	}
	return out
}

// backfillEmbeddings computes missing embeddings for up to BackfillLimit
// records concurrently and caches them onto the store. Failures leave the
// record unembedded; the semantic signal simply stays unavailable for it.
func (e *Engine) backfillEmbeddings(ctx context.Context, records []model.MemoryRecord) []model.MemoryRecord {
	if e.embedder == nil {
		return records
	}
	missing := make([]int, 0, e.opts.BackfillLimit)
	for i := range records {
		if len(records[i].Embedding) == 0 && records[i].Content != "" {
			missing = append(missing, i)
			if len(missing) >= e.opts.BackfillLimit {
				break
			}
		}
	}
	if len(missing) == 0 {
		return records
	}
	err := e.pool.ParallelForEach(ctx, len(missing), func(k int) error {
		idx := missing[k]
		vec, err := e.embedder.Embed(ctx, records[idx].Content)
		if err != nil || len(vec) == 0 {
			e.metrics.embedFailures.Add(1)
			return nil
		}
		records[idx].Embedding = vec
		records[idx].LastEmbedded = time.Now().UTC()
		if e.store != nil {
			if err := e.store.UpdateEmbedding(ctx, records[idx].ID, vec, records[idx].LastEmbedded); err != nil {
				log.Printf("engine: caching embedding for memory %d failed: %v", records[idx].ID, err)
			}
		}
		e.metrics.backfilled.Add(1)
		return nil
	})
	if err != nil {
		log.Printf("engine: embedding backfill aborted: %v", err)
	}
	return records
}

// withinEditDistance reports whether the Levenshtein distance between a and b
// is at most max, with a cheap length pre-check.
func withinEditDistance(a, b string, max int) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	if la-lb > max || lb-la > max {
		return false
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		best := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
			if curr[j] < best {
				best = curr[j]
			}
		}
		if best > max {
			return false
		}
		prev, curr = curr, prev
	}
	return prev[lb] <= max
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
