package board

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/nibzard/taskman-go/internal/api"
	"github.com/nibzard/taskman-go/internal/api/apitest"
	"github.com/nibzard/taskman-go/internal/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newBoard(t *testing.T, seed ...task.Task) (*Board, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(seed...)
	t.Cleanup(srv.Close)
	client, err := api.New(srv.CollectionURL())
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	return New(client, WithConcurrency(2)), srv
}

func ids(tasks []task.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestLoad(t *testing.T) {
	b, srv := newBoard(t, task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b", Completed: true})

	if snap := b.Snapshot(); snap.Loaded || len(snap.Tasks) != 0 {
		t.Fatalf("new board snapshot = %+v", snap)
	}
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snap := b.Snapshot()
	if diff := cmp.Diff(srv.Tasks(), snap.Tasks); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
	if !snap.Loaded || snap.Error != "" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestLoadFailureKeepsTasks(t *testing.T) {
	b, srv := newBoard(t, task.Task{ID: 1, Title: "a"})
	ctx := context.Background()

	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	srv.FailNext(http.StatusInternalServerError)
	err := b.Load(ctx)
	var serr *api.StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("Load() error = %v, want *api.StatusError", err)
	}
	snap := b.Snapshot()
	if snap.Error != LoadErrorMessage {
		t.Fatalf("Error = %q, want %q", snap.Error, LoadErrorMessage)
	}
	if diff := cmp.Diff([]int64{1}, ids(snap.Tasks)); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}

	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap := b.Snapshot(); snap.Error != "" {
		t.Fatalf("successful load should clear error, got %q", snap.Error)
	}
}

func TestLoadInvalidPayload(t *testing.T) {
	b, srv := newBoard(t)
	srv.RespondRaw(http.MethodGet, apitest.Path, `{"not":"a list"}`)

	if err := b.Load(context.Background()); err == nil {
		t.Fatal("Load() expected error")
	}
	if snap := b.Snapshot(); snap.Error != LoadErrorMessage || snap.Loaded {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCreateRefetches(t *testing.T) {
	b, srv := newBoard(t, task.Task{ID: 1, Title: "a"})
	ctx := context.Background()

	created, err := b.Create(ctx, task.Draft{Title: " b "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 2 || created.Title != "b" {
		t.Fatalf("Create() = %+v", created)
	}
	if diff := cmp.Diff([]int64{1, 2}, ids(b.Snapshot().Tasks)); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}

	var got []string
	for _, r := range srv.Requests() {
		got = append(got, r.Method)
	}
	if diff := cmp.Diff([]string{http.MethodPost, http.MethodGet}, got); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateBlankTitle(t *testing.T) {
	b, srv := newBoard(t)

	_, err := b.Create(context.Background(), task.Draft{Title: "   "})
	if !errors.Is(err, task.ErrTitleRequired) {
		t.Fatalf("Create() error = %v, want ErrTitleRequired", err)
	}
	if snap := b.Snapshot(); snap.Error != "Task must be titled" {
		t.Fatalf("Error = %q", snap.Error)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Fatalf("server saw %d requests, want 0", n)
	}
}

func TestCreateFailure(t *testing.T) {
	b, srv := newBoard(t)
	srv.FailNext(http.StatusBadRequest)

	if _, err := b.Create(context.Background(), task.Draft{Title: "x"}); err == nil {
		t.Fatal("Create() expected error")
	}
	if snap := b.Snapshot(); snap.Error != CreateErrorMessage {
		t.Fatalf("Error = %q", snap.Error)
	}
	if n := len(srv.Requests()); n != 1 {
		t.Fatalf("server saw %d requests, want 1 (no refetch)", n)
	}
}

// stubService scripts per-call results for cases the HTTP fake cannot
// express, such as a refetch failing after a successful create.
type stubService struct {
	mu        sync.Mutex
	tasks     []task.Task
	listErr   []error
	createErr error
	failIDs   map[int64]error
	inFlight  atomic.Int32
	peak      atomic.Int32
	delay     time.Duration

	// afterListRead runs once List has copied the tasks but before it
	// returns them.
	afterListRead func()
}

func (s *stubService) List(context.Context) ([]task.Task, error) {
	s.mu.Lock()
	if len(s.listErr) > 0 {
		err := s.listErr[0]
		s.listErr = s.listErr[1:]
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	tasks := append([]task.Task(nil), s.tasks...)
	hook := s.afterListRead
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return tasks, nil
}

func (s *stubService) Create(_ context.Context, d task.Draft) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return task.Task{}, s.createErr
	}
	t := task.Task{ID: int64(len(s.tasks) + 1), Title: d.Title, Description: d.Description, DueDate: d.DueDate}
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *stubService) track(ctx context.Context) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.peak.Load()
		if n <= old || s.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubService) Complete(ctx context.Context, id int64) (task.Task, error) {
	if err := s.track(ctx); err != nil {
		return task.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIDs[id]; err != nil {
		return task.Task{}, err
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Completed = true
			return s.tasks[i], nil
		}
	}
	return task.Task{}, api.ErrNotFound
}

func (s *stubService) Delete(ctx context.Context, id int64) error {
	if err := s.track(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIDs[id]; err != nil {
		return err
	}
	s.tasks, _ = task.RemoveByID(s.tasks, id)
	return nil
}

func TestCreateRefetchFailure(t *testing.T) {
	svc := &stubService{listErr: []error{errors.New("connection refused")}}
	b := New(svc)

	created, err := b.Create(context.Background(), task.Draft{Title: "x"})
	if err == nil {
		t.Fatal("Create() expected refetch error")
	}
	if created.ID != 1 {
		t.Fatalf("Create() should still return the created task, got %+v", created)
	}
	if snap := b.Snapshot(); snap.Error != LoadErrorMessage {
		t.Fatalf("Error = %q, want %q", snap.Error, LoadErrorMessage)
	}
}

func TestLoadDoesNotOverwriteNewerWrite(t *testing.T) {
	svc := &stubService{tasks: []task.Task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}}
	b := New(svc)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Complete task 1 while a reload holds a list read before the change.
	svc.afterListRead = func() {
		svc.afterListRead = nil
		if _, err := b.Complete(context.Background(), 1); err != nil {
			t.Errorf("Complete() error = %v", err)
		}
	}
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := b.Snapshot()
	if got := task.Find(snap.Tasks, 1); got == nil || !got.Completed {
		t.Fatalf("stale load overwrote the completed record: %+v", snap.Tasks)
	}

	// The next load with nothing in between applies normally.
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := task.Find(b.Snapshot().Tasks, 1); got == nil || !got.Completed {
		t.Fatalf("fresh load = %+v", b.Snapshot().Tasks)
	}
}

func TestClearError(t *testing.T) {
	b := New(&stubService{})
	if _, err := b.Create(context.Background(), task.Draft{Title: " "}); err == nil {
		t.Fatal("Create() expected validation error")
	}
	if snap := b.Snapshot(); snap.Error == "" {
		t.Fatal("validation failure should set the error line")
	}
	b.ClearError()
	if snap := b.Snapshot(); snap.Error != "" {
		t.Fatalf("Error = %q after ClearError", snap.Error)
	}
}

func TestCompleteMergesByID(t *testing.T) {
	b, srv := newBoard(t,
		task.Task{ID: 1, Title: "a"},
		task.Task{ID: 2, Title: "b"},
		task.Task{ID: 3, Title: "c"},
	)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before := len(srv.Requests())

	got, err := b.Complete(ctx, 2)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !got.Completed {
		t.Fatalf("Complete() = %+v", got)
	}
	want := []task.Task{
		{ID: 1, Title: "a"},
		{ID: 2, Title: "b", Completed: true},
		{ID: 3, Title: "c"},
	}
	if diff := cmp.Diff(want, b.Snapshot().Tasks); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
	for _, r := range srv.Requests()[before:] {
		if r.Method == http.MethodGet && r.Path == apitest.Path {
			t.Fatal("Complete() should merge instead of refetching the list")
		}
	}
}

func TestCompleteUnknownLocally(t *testing.T) {
	b, _ := newBoard(t, task.Task{ID: 5, Title: "server only"})

	if _, err := b.Complete(context.Background(), 5); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if snap := b.Snapshot(); len(snap.Tasks) != 0 {
		t.Fatalf("record missing locally should leave the list unchanged, got %+v", snap.Tasks)
	}
}

func TestCompleteFailure(t *testing.T) {
	b, _ := newBoard(t, task.Task{ID: 1, Title: "a"})
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err := b.Complete(ctx, 42)
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("Complete() error = %v, want ErrNotFound", err)
	}
	snap := b.Snapshot()
	if snap.Error != CompleteErrorMessage {
		t.Fatalf("Error = %q", snap.Error)
	}
	if snap.Tasks[0].Completed {
		t.Fatal("failed complete must not change the list")
	}
}

func TestDelete(t *testing.T) {
	b, srv := newBoard(t, task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b"})
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := b.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if diff := cmp.Diff([]int64{2}, ids(b.Snapshot().Tasks)); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{2}, ids(srv.Tasks())); diff != "" {
		t.Fatalf("server tasks mismatch (-want +got):\n%s", diff)
	}

	srv.FailNext(http.StatusInternalServerError)
	if err := b.Delete(ctx, 2); err == nil {
		t.Fatal("Delete() expected error")
	}
	snap := b.Snapshot()
	if snap.Error != DeleteErrorMessage || len(snap.Tasks) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCompleteMany(t *testing.T) {
	svc := &stubService{
		tasks: []task.Task{
			{ID: 1, Title: "a"}, {ID: 2, Title: "b"}, {ID: 3, Title: "c"},
			{ID: 4, Title: "d"}, {ID: 5, Title: "e"},
		},
		failIDs: map[int64]error{3: errors.New("boom")},
		delay:   20 * time.Millisecond,
	}
	b := New(svc, WithConcurrency(2))
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	outcomes, err := b.CompleteMany(ctx, []int64{5, 3, 1, 2})
	if err == nil {
		t.Fatal("CompleteMany() expected error for task 3")
	}
	if diff := cmp.Diff([]int64{5, 3, 1, 2}, outcomeIDs(outcomes)); diff != "" {
		t.Fatalf("outcome order mismatch (-want +got):\n%s", diff)
	}
	for _, o := range outcomes {
		if (o.Err != nil) != (o.ID == 3) {
			t.Errorf("outcome %d err = %v", o.ID, o.Err)
		}
	}
	if p := svc.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}

	snap := b.Snapshot()
	done := map[int64]bool{}
	for _, tk := range snap.Tasks {
		done[tk.ID] = tk.Completed
	}
	want := map[int64]bool{1: true, 2: true, 3: false, 4: false, 5: true}
	if diff := cmp.Diff(want, done); diff != "" {
		t.Fatalf("completed mismatch (-want +got):\n%s", diff)
	}
	if snap.Error != CompleteErrorMessage {
		t.Fatalf("Error = %q", snap.Error)
	}
}

func TestDeleteMany(t *testing.T) {
	svc := &stubService{
		tasks: []task.Task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}, {ID: 3, Title: "c"}},
	}
	b := New(svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	outcomes, err := b.DeleteMany(ctx, []int64{1, 3})
	if err != nil {
		t.Fatalf("DeleteMany() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if diff := cmp.Diff([]int64{2}, ids(b.Snapshot().Tasks)); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
	if snap := b.Snapshot(); snap.Error != "" {
		t.Fatalf("Error = %q", snap.Error)
	}
}

func TestBatchCancelled(t *testing.T) {
	svc := &stubService{
		tasks: []task.Task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}},
		delay: time.Second,
	}
	b := New(svc)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes, err := b.DeleteMany(ctx, []int64{1, 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DeleteMany() error = %v, want context.Canceled", err)
	}
	for _, o := range outcomes {
		if !o.Skipped {
			t.Errorf("outcome %d should be skipped", o.ID)
		}
	}
	if diff := cmp.Diff([]int64{1, 2}, ids(b.Snapshot().Tasks)); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	b, _ := newBoard(t, task.Task{ID: 1, Title: "a"})
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snap := b.Snapshot()
	snap.Tasks[0].Title = "mutated"
	if got := b.Snapshot().Tasks[0].Title; got != "a" {
		t.Fatalf("board changed through snapshot: %q", got)
	}
}

func outcomeIDs(outcomes []Outcome) []int64 {
	out := make([]int64, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.ID)
	}
	return out
}
