package store

import (
	"context"
	"testing"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

func TestInMemoryStoreWriteAssignsIDAndTimestamp(t *testing.T) {
	s := NewInMemoryStore()
	id, err := s.WriteMemory(context.Background(), model.MemoryRecord{
		UserID:  "alice",
		Content: "first",
	})
	if err != nil {
		t.Fatalf("WriteMemory returned error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}
	records, err := s.ListMemories(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("ListMemories returned error: %v", err)
	}
	if len(records) != 1 || records[0].CreatedAt.IsZero() {
		t.Fatalf("expected one record with timestamp, got %#v", records)
	}
}

func TestInMemoryStoreRejectsMissingUser(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.WriteMemory(context.Background(), model.MemoryRecord{Content: "orphan"}); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestInMemoryStoreSessionScoping(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	write := func(sessionID, content string) {
		t.Helper()
		if _, err := s.WriteMemory(ctx, model.MemoryRecord{UserID: "alice", SessionID: sessionID, Content: content}); err != nil {
			t.Fatalf("write %q: %v", content, err)
		}
	}
	write("s1", "session one")
	write("s2", "session two")
	write("", "global")

	scoped, err := s.ListMemories(ctx, "alice", "s1")
	if err != nil {
		t.Fatalf("ListMemories returned error: %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("expected session memory plus global, got %d", len(scoped))
	}
	for _, rec := range scoped {
		if rec.SessionID == "s2" {
			t.Fatal("expected other session's memories to be excluded")
		}
	}

	all, err := s.ListMemories(ctx, "alice", "")
	if err != nil {
		t.Fatalf("ListMemories returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all user memories, got %d", len(all))
	}
}

func TestInMemoryStoreListOrderIsDeterministic(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := s.WriteMemory(ctx, model.MemoryRecord{
			UserID:    "alice",
			Content:   "entry",
			CreatedAt: base.Add(time.Duration(4-i) * time.Minute),
		}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	records, err := s.ListMemories(ctx, "alice", "")
	if err != nil {
		t.Fatalf("ListMemories returned error: %v", err)
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.Before(records[i-1].CreatedAt) {
			t.Fatal("expected records ordered by created_at ascending")
		}
	}
}

func TestInMemoryStoreUpdateEmbedding(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	id, _ := s.WriteMemory(ctx, model.MemoryRecord{UserID: "alice", Content: "body"})
	at := time.Now().UTC()
	if err := s.UpdateEmbedding(ctx, id, []float32{1, 2, 3}, at); err != nil {
		t.Fatalf("UpdateEmbedding returned error: %v", err)
	}
	records, _ := s.ListMemories(ctx, "alice", "")
	if len(records[0].Embedding) != 3 || !records[0].LastEmbedded.Equal(at) {
		t.Fatalf("embedding not persisted: %#v", records[0])
	}
	if err := s.UpdateEmbedding(ctx, 999, []float32{1}, at); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestInMemoryStoreDeleteAndCount(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	id1, _ := s.WriteMemory(ctx, model.MemoryRecord{UserID: "alice", Content: "a"})
	s.WriteMemory(ctx, model.MemoryRecord{UserID: "alice", Content: "b"})
	s.WriteMemory(ctx, model.MemoryRecord{UserID: "bob", Content: "c"})

	if err := s.DeleteMemory(ctx, []int64{id1}); err != nil {
		t.Fatalf("DeleteMemory returned error: %v", err)
	}
	n, err := s.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 memory for alice, got %d", n)
	}
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	s.WriteMemory(ctx, model.MemoryRecord{UserID: "alice", Content: "a", Embedding: []float32{1}})
	records, _ := s.ListMemories(ctx, "alice", "")
	records[0].Embedding[0] = 99
	again, _ := s.ListMemories(ctx, "alice", "")
	if again[0].Embedding[0] != 1 {
		t.Fatal("expected stored embedding to be isolated from caller mutation")
	}
}
