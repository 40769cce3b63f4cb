package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/embed"
	"github.com/Protocol-Lattice/go-recall/src/memory/model"
	"github.com/Protocol-Lattice/go-recall/src/memory/store"
)

// stubEmbedder returns a fixed vector, or an error when failing is set.
type stubEmbedder struct {
	vec     []float32
	failing bool
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.failing {
		return nil, errors.New("provider down")
	}
	return s.vec, nil
}

func testEngine(t *testing.T, now time.Time, embedder embed.Embedder) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Now = fixedClock(now)
	e := NewEngine(store.NewInMemoryStore(), opts)
	if embedder != nil {
		e = e.WithEmbedder(embedder)
	}
	return e
}

func mustWrite(t *testing.T, e *Engine, rec model.MemoryRecord) int64 {
	t.Helper()
	id, err := e.Store().WriteMemory(context.Background(), rec)
	if err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	return id
}

func TestSemanticSignalDominatesRecency(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, stubEmbedder{vec: []float32{1, 0}})
	ctx := context.Background()

	idA := mustWrite(t, e, model.MemoryRecord{
		UserID:    "alice",
		Content:   "Python list comprehensions are fast",
		Embedding: []float32{0.9, 0.43588989},
		CreatedAt: now.Add(-24 * time.Hour),
	})
	idB := mustWrite(t, e, model.MemoryRecord{
		UserID:    "alice",
		Content:   "I like coffee",
		Embedding: []float32{0.1, 0.99498744},
		CreatedAt: now.Add(-time.Hour),
	})

	result, err := e.RetrieveContext(ctx, RetrieveRequest{UserID: "alice", Query: "python tips", Limit: 2})
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if len(result.Memories) != 2 {
		t.Fatalf("expected both memories, got %d", len(result.Memories))
	}
	if result.Memories[0].ID != idA || result.Memories[1].ID != idB {
		t.Fatalf("expected the semantically close memory ranked first despite being older, got %v then %v",
			result.Memories[0].ID, result.Memories[1].ID)
	}
	if result.Degraded {
		t.Fatal("expected no degradation with a healthy provider")
	}
}

func TestEmptyStoreYieldsEmptyResult(t *testing.T) {
	now := time.Now()
	e := testEngine(t, now, stubEmbedder{vec: []float32{1}})
	result, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "ghost", Query: "anything"})
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if result.Context != "" || len(result.MemoriesUsed) != 0 || result.Truncated {
		t.Fatalf("expected empty untruncated result, got %+v", result)
	}
}

func TestBlankQueryIsRejected(t *testing.T) {
	e := testEngine(t, time.Now(), nil)
	if _, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "alice", Query: "   "}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestProviderFailureDegradesInsteadOfFailing(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, stubEmbedder{failing: true})
	mustWrite(t, e, model.MemoryRecord{
		UserID:    "alice",
		Content:   "python tips and tricks",
		CreatedAt: now.Add(-time.Hour),
	})

	result, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "alice", Query: "python tips"})
	if err != nil {
		t.Fatalf("expected degraded success, got error %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected Degraded to be set when the provider is down")
	}
	if len(result.Memories) == 0 {
		t.Fatal("expected keyword/recency signals to still surface the memory")
	}
}

func TestFuzzyTierToleratesTypos(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, nil)
	id := mustWrite(t, e, model.MemoryRecord{
		UserID:    "alice",
		Content:   "python environment setup notes",
		CreatedAt: now.Add(-240 * time.Hour), // old enough to miss the primary tier
	})

	result, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "alice", Query: "pyton setup", Limit: 3})
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	found := false
	for _, m := range result.Memories {
		if m.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the fuzzy tier to match despite the typo")
	}
	if e.Metrics().Snapshot().FallbackKeyword == 0 {
		t.Fatal("expected the keyword fallback tier to have fired")
	}
}

func TestRecencyTierFillsWhenNothingMatches(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, nil)
	oldID := mustWrite(t, e, model.MemoryRecord{
		UserID: "alice", Content: "grocery list", CreatedAt: now.Add(-300 * time.Hour),
	})
	newID := mustWrite(t, e, model.MemoryRecord{
		UserID: "alice", Content: "weekend plans", CreatedAt: now.Add(-299 * time.Hour),
	})

	result, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "alice", Query: "quantum chromodynamics", Limit: 1})
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if len(result.Memories) != 1 {
		t.Fatalf("expected exactly one better-than-nothing memory, got %d", len(result.Memories))
	}
	if result.Memories[0].ID != newID {
		t.Fatalf("expected the most recent memory %d, got %d (old=%d)", newID, result.Memories[0].ID, oldID)
	}
	if e.Metrics().Snapshot().FallbackRecency == 0 {
		t.Fatal("expected the recency fallback tier to have fired")
	}
}

func TestNoMemoryAppearsTwice(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, nil)
	for i := 0; i < 6; i++ {
		mustWrite(t, e, model.MemoryRecord{
			UserID:    "alice",
			Content:   "python tips collection entry",
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	result, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "alice", Query: "python tips", Limit: 10})
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	seen := map[int64]bool{}
	for _, m := range result.Memories {
		if seen[m.ID] {
			t.Fatalf("memory %d appeared twice", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestBackfillComputesAndCachesMissingEmbeddings(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, stubEmbedder{vec: []float32{0.5, 0.5}})
	id := mustWrite(t, e, model.MemoryRecord{
		UserID: "alice", Content: "needs an embedding", CreatedAt: now.Add(-time.Hour),
	})

	if _, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "alice", Query: "embedding backfill"}); err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	records, err := e.Store().ListMemories(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("unexpected records %+v", records)
	}
	if len(records[0].Embedding) == 0 || records[0].LastEmbedded.IsZero() {
		t.Fatal("expected the missing embedding to be computed and cached onto the store")
	}
	if e.Metrics().Snapshot().Backfilled == 0 {
		t.Fatal("expected the backfill counter to move")
	}
}

func TestWithinEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		max  int
		want bool
	}{
		{"python", "python", 2, true},
		{"python", "pyton", 2, true},
		{"python", "pythin", 1, true},
		{"python", "java", 2, false},
		{"tips", "like", 2, false},
		{"", "ab", 2, true},
		{"", "abc", 2, false},
	}
	for _, c := range cases {
		if got := withinEditDistance(c.a, c.b, c.max); got != c.want {
			t.Fatalf("withinEditDistance(%q,%q,%d) = %v, want %v", c.a, c.b, c.max, got, c.want)
		}
	}
}
