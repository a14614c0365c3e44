// Package board holds the client-side view state: the task list last
// fetched from the service and the single error line shown above it.
//
// Every write goes to the service first. Create refetches the whole list
// afterwards; Complete merges the one record the service returns; Delete
// drops the record locally. A failed load keeps the previous list.
package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskman-go/internal/logging"
	"github.com/nibzard/taskman-go/internal/parallel"
	"github.com/nibzard/taskman-go/internal/task"
)

// Messages shown on the error line.
const (
	LoadErrorMessage     = "Could not load tasks. Is the task service running on the correct port?"
	CreateErrorMessage   = "Could not create task."
	CompleteErrorMessage = "Could not complete task."
	DeleteErrorMessage   = "Could not delete task."
)

// DefaultConcurrency bounds batch operations when no option is given.
const DefaultConcurrency = 4

// Service is the part of the task service the board needs.
type Service interface {
	List(ctx context.Context) ([]task.Task, error)
	Create(ctx context.Context, d task.Draft) (task.Task, error)
	Complete(ctx context.Context, id int64) (task.Task, error)
	Delete(ctx context.Context, id int64) error
}

// Option configures a Board.
type Option func(*Board)

// WithConcurrency bounds how many requests a batch operation runs at once.
func WithConcurrency(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets the logger used for board events.
func WithLogger(l *log.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// Snapshot is a copy of the board state.
type Snapshot struct {
	Tasks  []task.Task
	Error  string
	Loaded bool
}

// Board is safe for concurrent use.
type Board struct {
	svc         Service
	concurrency int
	logger      *log.Logger

	mu     sync.RWMutex
	tasks  []task.Task
	gen    uint64 // bumped on every change to tasks
	errMsg string
	loaded bool
}

// New returns an empty board backed by svc.
func New(svc Service, opts ...Option) *Board {
	b := &Board{
		svc:         svc,
		concurrency: DefaultConcurrency,
		logger:      logging.Discard(),
		tasks:       []task.Task{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tasks := make([]task.Task, len(b.tasks))
	copy(tasks, b.tasks)
	return Snapshot{Tasks: tasks, Error: b.errMsg, Loaded: b.loaded}
}

// Load fetches the list. On success it replaces the tasks and clears the
// error line; on failure it sets LoadErrorMessage and keeps the tasks.
func (b *Board) Load(ctx context.Context) error {
	b.mu.RLock()
	start := b.gen
	b.mu.RUnlock()

	tasks, err := b.svc.List(ctx)
	if err != nil {
		b.logger.Warn("load failed", "err", err)
		b.setError(LoadErrorMessage)
		return fmt.Errorf("load tasks: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.errMsg = ""
	b.loaded = true
	// A write that landed while the list was in flight is newer.
	if b.gen != start {
		b.logger.Debug("dropping stale load", "count", len(tasks))
		return nil
	}
	b.tasks = tasks
	b.gen++
	b.logger.Debug("loaded", "count", len(tasks))
	return nil
}

// Create validates d, posts it and refetches the list. A draft that fails
// validation never reaches the service; its message goes on the error line.
func (b *Board) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		b.setError(validationMessage(err))
		return task.Task{}, err
	}

	created, err := b.svc.Create(ctx, d)
	if err != nil {
		b.logger.Warn("create failed", "err", err)
		b.setError(CreateErrorMessage)
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}
	b.logger.Debug("created", "id", created.ID)

	if err := b.Load(ctx); err != nil {
		return created, fmt.Errorf("refetch after create: %w", err)
	}
	return created, nil
}

// Complete marks one task completed and merges the returned record.
func (b *Board) Complete(ctx context.Context, id int64) (task.Task, error) {
	updated, err := b.svc.Complete(ctx, id)
	if err != nil {
		b.logger.Warn("complete failed", "id", id, "err", err)
		b.setError(CompleteErrorMessage)
		return task.Task{}, fmt.Errorf("complete task %d: %w", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks, _ = task.MergeByID(b.tasks, updated)
	b.gen++
	b.errMsg = ""
	return updated, nil
}

// Delete removes one task from the service and from the board.
func (b *Board) Delete(ctx context.Context, id int64) error {
	if err := b.svc.Delete(ctx, id); err != nil {
		b.logger.Warn("delete failed", "id", id, "err", err)
		b.setError(DeleteErrorMessage)
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks, _ = task.RemoveByID(b.tasks, id)
	b.gen++
	b.errMsg = ""
	return nil
}

// Outcome reports what a batch operation did for one id.
type Outcome struct {
	ID      int64
	Task    task.Task
	Err     error
	Skipped bool
}

// CompleteMany completes every id with bounded concurrency and merges each
// returned record. Outcomes are in the order of ids; the error joins every
// failure.
func (b *Board) CompleteMany(ctx context.Context, ids []int64) ([]Outcome, error) {
	outcomes, err := runBatch(ctx, b.concurrency, ids, b.svc.Complete)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range outcomes {
		if o.Err == nil {
			b.tasks, _ = task.MergeByID(b.tasks, o.Task)
			b.gen++
		}
	}
	if err != nil {
		b.errMsg = CompleteErrorMessage
	} else {
		b.errMsg = ""
	}
	return outcomes, err
}

// DeleteMany deletes every id with bounded concurrency and drops the
// deleted records from the board.
func (b *Board) DeleteMany(ctx context.Context, ids []int64) ([]Outcome, error) {
	outcomes, err := runBatch(ctx, b.concurrency, ids, func(ctx context.Context, id int64) (task.Task, error) {
		return task.Task{ID: id}, b.svc.Delete(ctx, id)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range outcomes {
		if o.Err == nil {
			b.tasks, _ = task.RemoveByID(b.tasks, o.ID)
			b.gen++
		}
	}
	if err != nil {
		b.errMsg = DeleteErrorMessage
	} else {
		b.errMsg = ""
	}
	return outcomes, err
}

func runBatch(ctx context.Context, concurrency int, ids []int64, fn func(context.Context, int64) (task.Task, error)) ([]Outcome, error) {
	pool := parallel.NewWorkerPool[task.Task](ctx, concurrency, false)
	for _, id := range ids {
		id := id
		pool.Submit(id, func(ctx context.Context) (task.Task, error) {
			return fn(ctx, id)
		})
	}
	results, errs := pool.Wait()

	byID := parallel.ByID(results)
	outcomes := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		r := byID[id]
		outcomes = append(outcomes, Outcome{ID: id, Task: r.Value, Err: r.Err, Skipped: r.Skipped})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })

	for _, o := range outcomes {
		if o.Skipped {
			errs = append(errs, fmt.Errorf("task %d: %w", o.ID, o.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}

// ClearError empties the error line.
func (b *Board) ClearError() {
	b.setError("")
}

func (b *Board) setError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errMsg = msg
}

// validationMessage returns the bare constraint message, e.g.
// "Task must be titled", without the field path.
func validationMessage(err error) string {
	var verr *task.ValidationError
	if errors.As(err, &verr) && verr.Err != nil {
		return verr.Err.Error()
	}
	return err.Error()
}
