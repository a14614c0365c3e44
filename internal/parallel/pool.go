package parallel

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of one submitted job.
type Result[T any] struct {
	TaskID   int64
	Value    T
	Err      error
	Duration time.Duration
	// Skipped is set when the pool was cancelled before the job ran.
	Skipped bool
}

// WorkerPool runs jobs with bounded concurrency.
type WorkerPool[T any] struct {
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	results    []Result[T]
	errors     []error
	failFast   bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a new worker pool with bounded concurrency.
// If maxWorkers is 0, unlimited workers are allowed (bounded by submitted jobs).
// If failFast is true, the context will be cancelled on the first error.
func NewWorkerPool[T any](ctx context.Context, maxWorkers int, failFast bool) *WorkerPool[T] {
	if maxWorkers < 0 {
		maxWorkers = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool[T]{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
		failFast:   failFast,
		ctx:        ctx,
		cancel:     cancel,
		results:    make([]Result[T], 0),
	}
}

// Submit schedules fn for the given task id. fn receives the pool context,
// which is cancelled by Cancel, by the parent context, or by the first
// error in fail-fast mode.
func (p *WorkerPool[T]) Submit(taskID int64, fn func(ctx context.Context) (T, error)) {
	if p.ctx.Err() != nil {
		p.skip(taskID)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.maxWorkers > 0 {
			select {
			case p.semaphore <- struct{}{}:
				defer func() { <-p.semaphore }()
			case <-p.ctx.Done():
				p.skip(taskID)
				return
			}
		}

		// Cancelled while waiting for a slot.
		if p.ctx.Err() != nil {
			p.skip(taskID)
			return
		}

		start := time.Now()
		value, err := fn(p.ctx)
		result := Result[T]{
			TaskID:   taskID,
			Value:    value,
			Err:      err,
			Duration: time.Since(start),
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		p.results = append(p.results, result)
		if err != nil {
			p.errors = append(p.errors, fmt.Errorf("task %d: %w", taskID, err))
			if p.failFast {
				p.cancel()
			}
		}
	}()
}

func (p *WorkerPool[T]) skip(taskID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, Result[T]{TaskID: taskID, Err: p.ctx.Err(), Skipped: true})
}

// Wait waits for all submitted jobs and returns their results and the
// errors of jobs that ran. Skipped jobs appear in the results only.
func (p *WorkerPool[T]) Wait() ([]Result[T], []error) {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancel()

	results := make([]Result[T], len(p.results))
	copy(results, p.results)

	errors := make([]error, len(p.errors))
	copy(errors, p.errors)

	return results, errors
}

// Results returns a snapshot of current results without waiting.
func (p *WorkerPool[T]) Results() []Result[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]Result[T], len(p.results))
	copy(results, p.results)
	return results
}

// Errors returns a snapshot of current errors without waiting.
func (p *WorkerPool[T]) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errors := make([]error, len(p.errors))
	copy(errors, p.errors)
	return errors
}

// Cancel cancels all pending work in the pool.
func (p *WorkerPool[T]) Cancel() {
	p.cancel()
}

// ByID indexes results by task id. When an id was submitted more than
// once the last result wins.
func ByID[T any](results []Result[T]) map[int64]Result[T] {
	out := make(map[int64]Result[T], len(results))
	for _, r := range results {
		out[r.TaskID] = r
	}
	return out
}
