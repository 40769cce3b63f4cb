package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolDo(t *testing.T) {
	pool := NewWorkerPool(2)
	var ran atomic.Int32
	if err := pool.Do(context.Background(), func() error {
		ran.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran.Load() != 1 {
		t.Fatalf("expected fn to run once, got %d", ran.Load())
	}
}

func TestWorkerPoolDoCancelled(t *testing.T) {
	pool := NewWorkerPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Do(ctx, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParallelForEachRunsAllItems(t *testing.T) {
	pool := NewWorkerPool(4)
	var count atomic.Int32
	err := pool.ParallelForEach(context.Background(), 20, func(int) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count.Load() != 20 {
		t.Fatalf("expected 20 executions, got %d", count.Load())
	}
}

func TestParallelForEachCollectsErrorWithoutCancelling(t *testing.T) {
	pool := NewWorkerPool(2)
	boom := errors.New("boom")
	var count atomic.Int32
	err := pool.ParallelForEach(context.Background(), 10, func(idx int) error {
		count.Add(1)
		if idx == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if count.Load() != 10 {
		t.Fatalf("expected all items attempted, got %d", count.Load())
	}
}
