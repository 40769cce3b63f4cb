package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// ClusterStrategy names a grouping heuristic. Clusters are best-effort
// groupings for pattern analysis, not a ground-truth classifier.
type ClusterStrategy string

const (
	ClusterByTopic    ClusterStrategy = "topic"
	ClusterByTime     ClusterStrategy = "temporal"
	ClusterBySemantic ClusterStrategy = "semantic"
)

// UncategorizedKey collects memories no topic heuristic could place. Nothing
// is ever dropped from a clustering pass.
const UncategorizedKey = "uncategorized"

// TemporalWindow is the default bucket width for temporal clustering;
// override via ClusterWith.
const TemporalWindow = 24 * time.Hour

// ClusterConfig tunes a single clustering pass.
type ClusterConfig struct {
	// Window is the bucket width for temporal clustering.
	Window time.Duration
	// SimilarityThreshold is the minimum centroid cosine similarity for a
	// memory to join an existing semantic cluster.
	SimilarityThreshold float64
}

// Cluster groups memories with the default configuration.
func (e *Engine) Cluster(ctx context.Context, records []model.MemoryRecord, strategy ClusterStrategy) ([]model.Cluster, error) {
	return e.ClusterWith(ctx, records, strategy, ClusterConfig{})
}

// ClusterWith groups memories using the named strategy. Iteration order is
// fixed at created_at ascending so results are deterministic.
func (e *Engine) ClusterWith(ctx context.Context, records []model.MemoryRecord, strategy ClusterStrategy, cfg ClusterConfig) ([]model.Cluster, error) {
	if cfg.Window <= 0 {
		cfg.Window = TemporalWindow
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = e.opts.FrequencyThreshold
	}
	ordered := make([]model.MemoryRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	var clusters []model.Cluster
	switch strategy {
	case ClusterByTime:
		clusters = clusterTemporal(ordered, cfg.Window)
	case ClusterBySemantic:
		clusters = clusterSemantic(ordered, cfg.SimilarityThreshold)
	case ClusterByTopic, "":
		clusters = clusterTopic(ordered)
	default:
		return nil, fmt.Errorf("unknown cluster strategy %q", strategy)
	}

	e.metrics.clusterRuns.Add(1)
	e.summarizeClusters(ctx, clusters, ordered)
	return clusters, nil
}

// clusterTopic groups by the metadata topic tag when present, otherwise by
// the memory's dominant keyword. Memories with neither land in the
// uncategorized cluster.
func clusterTopic(records []model.MemoryRecord) []model.Cluster {
	byKey := map[string]*model.Cluster{}
	var order []string
	assign := func(key, label string, id int64) {
		c, ok := byKey[key]
		if !ok {
			c = &model.Cluster{Key: key, Label: label}
			byKey[key] = c
			order = append(order, key)
		}
		c.IDs = append(c.IDs, id)
		c.Size++
	}
	for _, rec := range records {
		if topic := model.Topic(rec); topic != "" {
			assign("topic:"+topic, topic, rec.ID)
			continue
		}
		if kw := dominantKeyword(rec.Content); kw != "" {
			assign("keyword:"+kw, kw, rec.ID)
			continue
		}
		assign(UncategorizedKey, "uncategorized", rec.ID)
	}
	out := make([]model.Cluster, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// dominantKeyword picks the most frequent token of the content, breaking
// frequency ties by first appearance.
func dominantKeyword(content string) string {
	tokens := Tokenize(content)
	if len(tokens) == 0 {
		return ""
	}
	counts := make(map[string]int, len(tokens))
	best, bestCount := "", 0
	for _, tok := range tokens {
		counts[tok]++
		if counts[tok] > bestCount {
			best, bestCount = tok, counts[tok]
		}
	}
	return best
}

// clusterTemporal buckets memories into fixed windows anchored at the Unix
// epoch, so the same record always lands in the same bucket.
func clusterTemporal(records []model.MemoryRecord, window time.Duration) []model.Cluster {
	byBucket := map[int64]*model.Cluster{}
	var order []int64
	for _, rec := range records {
		bucket := rec.CreatedAt.UTC().UnixNano() / int64(window)
		if rec.CreatedAt.IsZero() {
			bucket = -1
		}
		c, ok := byBucket[bucket]
		if !ok {
			label := "undated"
			if bucket >= 0 {
				start := time.Unix(0, bucket*int64(window)).UTC()
				label = start.Format("2006-01-02 15:04")
			}
			c = &model.Cluster{
				Key:   fmt.Sprintf("window:%d", bucket),
				Label: label,
			}
			byBucket[bucket] = c
			order = append(order, bucket)
		}
		c.IDs = append(c.IDs, rec.ID)
		c.Size++
	}
	out := make([]model.Cluster, 0, len(order))
	for _, bucket := range order {
		out = append(out, *byBucket[bucket])
	}
	return out
}

// semanticGroup accumulates a running centroid for greedy assignment.
type semanticGroup struct {
	cluster  model.Cluster
	centroid []float32
	members  [][]float32
}

// clusterSemantic assigns each memory to the first cluster whose centroid
// similarity clears the threshold, else opens a new cluster. Greedy and
// order-dependent, which the fixed iteration order makes deterministic.
// Memories without embeddings go to the uncategorized cluster.
func clusterSemantic(records []model.MemoryRecord, threshold float64) []model.Cluster {
	var groups []*semanticGroup
	uncategorized := model.Cluster{Key: UncategorizedKey, Label: "uncategorized"}

	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			uncategorized.IDs = append(uncategorized.IDs, rec.ID)
			uncategorized.Size++
			continue
		}
		placed := false
		for _, g := range groups {
			if model.ClampedSimilarity(rec.Embedding, g.centroid) >= threshold {
				g.cluster.IDs = append(g.cluster.IDs, rec.ID)
				g.cluster.Size++
				g.members = append(g.members, rec.Embedding)
				g.centroid = model.Centroid(g.members)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &semanticGroup{
				cluster: model.Cluster{
					Key:   fmt.Sprintf("semantic:%d", len(groups)),
					Label: fmt.Sprintf("group %d", len(groups)+1),
					IDs:   []int64{rec.ID},
					Size:  1,
				},
				centroid: rec.Embedding,
				members:  [][]float32{rec.Embedding},
			})
		}
	}

	out := make([]model.Cluster, 0, len(groups)+1)
	for _, g := range groups {
		out = append(out, g.cluster)
	}
	if uncategorized.Size > 0 {
		out = append(out, uncategorized)
	}
	return out
}

// summarizeClusters fills in short representative summaries. Without a
// summarizer each cluster gets a naive excerpt of its first member.
func (e *Engine) summarizeClusters(ctx context.Context, clusters []model.Cluster, records []model.MemoryRecord) {
	byID := make(map[int64]string, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec.Content
	}
	for i := range clusters {
		contents := make([]string, 0, len(clusters[i].IDs))
		for _, id := range clusters[i].IDs {
			if body := byID[id]; body != "" {
				contents = append(contents, body)
			}
		}
		clusters[i].Summary = e.summarize(ctx, contents, 160)
	}
}
