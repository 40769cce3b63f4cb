package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
	"github.com/Protocol-Lattice/go-recall/src/memory/session"
)

func TestRetrieveRecordsSessionInteraction(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	mgr := session.NewManager(session.Config{Now: fixedClock(now)})
	e := testEngine(t, now, nil).WithSessions(mgr)

	sess, err := mgr.Create("alice", "support")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mustWrite(t, e, model.MemoryRecord{
		UserID: "alice", SessionID: sess.ID, Content: "password reset walkthrough", CreatedAt: now.Add(-time.Minute),
	})

	if _, err := e.RetrieveContext(context.Background(), RetrieveRequest{
		UserID: "alice", SessionID: sess.ID, Query: "password reset",
	}); err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	stats, err := mgr.Stats(sess.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.InteractionCount != 1 {
		t.Fatalf("expected the retrieval to count as one interaction, got %d", stats.InteractionCount)
	}
}

func TestRetrieveOnExpiredSessionSurfacesCondition(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	mgr := session.NewManager(session.Config{Now: fixedClock(now)})
	e := testEngine(t, now, nil).WithSessions(mgr)

	sess, _ := mgr.Create("alice", "")
	mgr.Expire(sess.ID)

	_, err := e.RetrieveContext(context.Background(), RetrieveRequest{
		UserID: "alice", SessionID: sess.ID, Query: "anything",
	})
	if !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	_, err = e.RetrieveContext(context.Background(), RetrieveRequest{
		UserID: "alice", SessionID: "missing", Query: "anything",
	})
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionScopedRetrievalSeesGlobalMemories(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, nil)

	inSession := mustWrite(t, e, model.MemoryRecord{
		UserID: "alice", SessionID: "s1", Content: "python debugging session", CreatedAt: now.Add(-time.Minute),
	})
	global := mustWrite(t, e, model.MemoryRecord{
		UserID: "alice", Content: "python style preferences", CreatedAt: now.Add(-2 * time.Minute),
	})
	other := mustWrite(t, e, model.MemoryRecord{
		UserID: "alice", SessionID: "s2", Content: "python packaging question", CreatedAt: now.Add(-3 * time.Minute),
	})

	result, err := e.RetrieveContext(context.Background(), RetrieveRequest{
		UserID: "alice", SessionID: "s1", Query: "python", Limit: 10,
	})
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	got := map[int64]bool{}
	for _, m := range result.Memories {
		got[m.ID] = true
	}
	if !got[inSession] || !got[global] {
		t.Fatalf("expected session and global memories, got %v", got)
	}
	if got[other] {
		t.Fatal("expected the other session's memory to be excluded")
	}
}

func TestClusterMemoriesReadsFromStore(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, nil)
	mustWrite(t, e, model.MemoryRecord{UserID: "alice", Content: "python notes", CreatedAt: now.Add(-time.Hour)})
	mustWrite(t, e, model.MemoryRecord{UserID: "alice", Content: "python snippets", CreatedAt: now})

	clusters, err := e.ClusterMemories(context.Background(), "alice", ClusterByTopic)
	if err != nil {
		t.Fatalf("ClusterMemories: %v", err)
	}
	total := 0
	for _, c := range clusters {
		total += c.Size
	}
	if total != 2 {
		t.Fatalf("expected both memories clustered, got %d", total)
	}
	if e.Metrics().Snapshot().ClusterRuns != 1 {
		t.Fatal("expected the cluster counter to move")
	}
}

func TestMetricsCountQueries(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(t, now, nil)
	for i := 0; i < 3; i++ {
		if _, err := e.RetrieveContext(context.Background(), RetrieveRequest{UserID: "alice", Query: "anything"}); err != nil {
			t.Fatalf("RetrieveContext: %v", err)
		}
	}
	if got := e.Metrics().Snapshot().Queries; got != 3 {
		t.Fatalf("expected 3 queries counted, got %d", got)
	}
}
