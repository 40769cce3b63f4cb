package concurrent

import (
	"context"
	"sync"
)

// WorkerPool bounds the number of goroutines performing blocking work, such
// as embedding-provider calls during retrieval.
type WorkerPool struct {
	maxWorkers int
	sem        chan struct{}
}

// NewWorkerPool creates a worker pool with the specified max workers.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		sem:        make(chan struct{}, maxWorkers),
	}
}

// Do executes fn once a worker slot is available, or returns the context
// error if the caller gave up first.
func (wp *WorkerPool) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.sem <- struct{}{}:
		defer func() { <-wp.sem }()
		return fn()
	}
}

// ParallelForEach runs fn over every item with bounded concurrency. Item
// errors are collected; the first non-nil error is returned after all items
// have been attempted, so a single failure does not cancel the batch.
func (wp *WorkerPool) ParallelForEach(ctx context.Context, n int, fn func(idx int) error) error {
	if n <= 0 {
		return nil
	}
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				errs[idx] = ctx.Err()
			case wp.sem <- struct{}{}:
				defer func() { <-wp.sem }()
				errs[idx] = fn(idx)
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
