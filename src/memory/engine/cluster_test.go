package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
	"github.com/Protocol-Lattice/go-recall/src/memory/store"
)

func clusterFixture(now time.Time) []model.MemoryRecord {
	return []model.MemoryRecord{
		{ID: 1, UserID: "alice", Content: "python decorators python", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 2, UserID: "alice", Content: "python generators", Metadata: `{"topic":"python"}`, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 3, UserID: "alice", Content: "", CreatedAt: now.Add(-time.Hour)},
	}
}

func TestTopicClusteringNeverDropsMemories(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(store.NewInMemoryStore(), Options{Now: fixedClock(now)})

	clusters, err := e.Cluster(context.Background(), clusterFixture(now), ClusterByTopic)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	total := 0
	sawUncategorized := false
	for _, c := range clusters {
		total += c.Size
		if c.Key == UncategorizedKey {
			sawUncategorized = true
		}
		if c.Size != len(c.IDs) {
			t.Fatalf("cluster %q size %d disagrees with id count %d", c.Key, c.Size, len(c.IDs))
		}
	}
	if total != 3 {
		t.Fatalf("expected all 3 memories clustered, got %d", total)
	}
	if !sawUncategorized {
		t.Fatal("expected the contentless memory in the uncategorized cluster")
	}
}

func TestTopicClusteringPrefersMetadataTag(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(store.NewInMemoryStore(), Options{Now: fixedClock(now)})

	clusters, err := e.Cluster(context.Background(), clusterFixture(now), ClusterByTopic)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for _, c := range clusters {
		if c.Key == "topic:python" {
			if len(c.IDs) != 1 || c.IDs[0] != 2 {
				t.Fatalf("expected the tagged memory in topic:python, got %v", c.IDs)
			}
			return
		}
	}
	t.Fatal("expected a cluster keyed by the metadata topic tag")
}

func TestTemporalClusteringBucketsByWindow(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(store.NewInMemoryStore(), Options{Now: fixedClock(now)})
	records := []model.MemoryRecord{
		{ID: 1, Content: "a", CreatedAt: time.Date(2025, time.June, 1, 1, 0, 0, 0, time.UTC)},
		{ID: 2, Content: "b", CreatedAt: time.Date(2025, time.June, 1, 2, 0, 0, 0, time.UTC)},
		{ID: 3, Content: "c", CreatedAt: time.Date(2025, time.June, 3, 1, 0, 0, 0, time.UTC)},
	}
	clusters, err := e.ClusterWith(context.Background(), records, ClusterByTime, ClusterConfig{Window: 24 * time.Hour})
	if err != nil {
		t.Fatalf("ClusterWith: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 day buckets, got %d: %+v", len(clusters), clusters)
	}
	if clusters[0].Size != 2 || clusters[1].Size != 1 {
		t.Fatalf("unexpected bucket sizes %+v", clusters)
	}
}

func TestSemanticClusteringIsGreedyAndDeterministic(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(store.NewInMemoryStore(), Options{Now: fixedClock(now)})
	records := []model.MemoryRecord{
		{ID: 1, Content: "a", Embedding: []float32{1, 0}, CreatedAt: now.Add(-4 * time.Hour)},
		{ID: 2, Content: "b", Embedding: []float32{0.99, 0.1}, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 3, Content: "c", Embedding: []float32{0, 1}, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 4, Content: "d", CreatedAt: now.Add(-time.Hour)},
	}
	clusters, err := e.ClusterWith(context.Background(), records, ClusterBySemantic, ClusterConfig{SimilarityThreshold: 0.9})
	if err != nil {
		t.Fatalf("ClusterWith: %v", err)
	}
	if len(clusters) != 3 {
		t.Fatalf("expected two semantic groups plus uncategorized, got %d: %+v", len(clusters), clusters)
	}
	if clusters[0].Size != 2 {
		t.Fatalf("expected ids 1 and 2 grouped, got %+v", clusters[0])
	}
	if last := clusters[len(clusters)-1]; last.Key != UncategorizedKey || last.IDs[0] != 4 {
		t.Fatalf("expected the unembedded memory in uncategorized, got %+v", last)
	}
	// Same input, same grouping.
	again, _ := e.ClusterWith(context.Background(), records, ClusterBySemantic, ClusterConfig{SimilarityThreshold: 0.9})
	if len(again) != len(clusters) {
		t.Fatal("expected deterministic clustering for a fixed input")
	}
}

func TestClusterSummariesArePopulated(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(store.NewInMemoryStore(), Options{Now: fixedClock(now)})
	clusters, err := e.Cluster(context.Background(), clusterFixture(now)[:2], ClusterByTopic)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for _, c := range clusters {
		if c.Summary == "" {
			t.Fatalf("expected a representative summary for cluster %q", c.Key)
		}
	}
}

func TestUnknownClusterStrategyIsRejected(t *testing.T) {
	e := NewEngine(store.NewInMemoryStore(), Options{})
	if _, err := e.Cluster(context.Background(), nil, ClusterStrategy("astrological")); err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
}
