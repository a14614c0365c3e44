package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/nibzard/taskman-go/internal/api/apitest"
	"github.com/nibzard/taskman-go/internal/logging"
	"github.com/nibzard/taskman-go/internal/task"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []logging.Entry
}

func (r *memRecorder) Record(e logging.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRecorder) Entries() []logging.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logging.Entry(nil), r.entries...)
}

func newTestClient(t *testing.T, srv *apitest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(srv.CollectionURL(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func dueDate(y int, m time.Month, d int) *task.Date {
	date := task.NewDate(y, m, d)
	return &date
}

func TestNewRejectsBadURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "localhost:8080/api/tasks"},
		{"ftp", "ftp://example.com/tasks"},
		{"no host", "http:///api/tasks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.url); err == nil {
				t.Fatalf("New(%q) expected error", tt.url)
			}
		})
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c, err := New(" http://localhost:8080/api/tasks/ ")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := c.BaseURL(), "http://localhost:8080/api/tasks"; got != want {
		t.Fatalf("BaseURL() = %q, want %q", got, want)
	}
	if got, want := c.itemURL(7), "http://localhost:8080/api/tasks/7"; got != want {
		t.Fatalf("itemURL(7) = %q, want %q", got, want)
	}
}

func TestListReturnsSeededTasks(t *testing.T) {
	seed := []task.Task{
		{ID: 1, Title: "Write report", DueDate: dueDate(2024, time.March, 1)},
		{ID: 2, Title: "Ship it", Description: "before friday", Completed: true},
	}
	srv := apitest.NewServer(seed...)
	defer srv.Close()

	got, err := newTestClient(t, srv).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff(seed, got); diff != "" {
		t.Fatalf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestListEmpty(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	got, err := newTestClient(t, srv).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("List() = %#v, want empty non-nil slice", got)
	}
}

func TestListNullBody(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.RespondRaw(http.MethodGet, apitest.Path, "null")

	got, err := newTestClient(t, srv).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("List() = %#v, want empty non-nil slice", got)
	}
}

func TestGet(t *testing.T) {
	want := task.Task{ID: 4, Title: "Call mum", DueDate: dueDate(2024, time.May, 12)}
	srv := apitest.NewServer(want)
	defer srv.Close()
	c := newTestClient(t, srv)

	got, err := c.Get(context.Background(), 4)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Get() mismatch (-want +got):\n%s", diff)
	}

	_, err = c.Get(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(99) error = %v, want ErrNotFound", err)
	}
}

func TestCreate(t *testing.T) {
	srv := apitest.NewServer(task.Task{ID: 3, Title: "existing"})
	defer srv.Close()
	c := newTestClient(t, srv)

	got, err := c.Create(context.Background(), task.Draft{
		Title:       "  Buy milk  ",
		Description: "semi-skimmed",
		DueDate:     dueDate(2024, time.June, 2),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	want := task.Task{ID: 4, Title: "Buy milk", Description: "semi-skimmed", DueDate: dueDate(2024, time.June, 2)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Create() mismatch (-want +got):\n%s", diff)
	}
	if len(srv.Tasks()) != 2 {
		t.Fatalf("server has %d tasks, want 2", len(srv.Tasks()))
	}
}

func TestCreateValidatesLocally(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  error
	}{
		{"blank", "   ", task.ErrTitleRequired},
		{"too long", strings.Repeat("x", task.MaxTitleLength+1), task.ErrTitleTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.NewServer()
			defer srv.Close()

			_, err := newTestClient(t, srv).Create(context.Background(), task.Draft{Title: tt.title})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
			var verr *task.ValidationError
			if !errors.As(err, &verr) || verr.Path != "title" {
				t.Fatalf("Create() error = %#v, want title ValidationError", err)
			}
			if n := len(srv.Requests()); n != 0 {
				t.Fatalf("server saw %d requests, want 0", n)
			}
		})
	}
}

func TestCreateAcceptsMaxLengthTitle(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	title := strings.Repeat("é", task.MaxTitleLength)
	got, err := newTestClient(t, srv).Create(context.Background(), task.Draft{Title: title})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.Title != title {
		t.Fatalf("Create() title = %q", got.Title)
	}
}

func TestUpdate(t *testing.T) {
	srv := apitest.NewServer(task.Task{ID: 1, Title: "old"})
	defer srv.Close()
	c := newTestClient(t, srv)

	got, err := c.Update(context.Background(), task.Task{ID: 1, Title: "new", Description: "d"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != "new" || got.Description != "d" {
		t.Fatalf("Update() = %+v", got)
	}

	if _, err := c.Update(context.Background(), task.Task{Title: "no id"}); err == nil {
		t.Fatal("Update() without id expected error")
	}
	if _, err := c.Update(context.Background(), task.Task{ID: 42, Title: "gone"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update(42) error = %v, want ErrNotFound", err)
	}
}

func TestCompleteFetchesThenReplaces(t *testing.T) {
	srv := apitest.NewServer(task.Task{ID: 5, Title: "Water plants", Description: "balcony", DueDate: dueDate(2024, time.July, 1)})
	defer srv.Close()

	got, err := newTestClient(t, srv).Complete(context.Background(), 5)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	want := task.Task{ID: 5, Title: "Water plants", Description: "balcony", DueDate: dueDate(2024, time.July, 1), Completed: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Complete() mismatch (-want +got):\n%s", diff)
	}

	var methods []string
	for _, r := range srv.Requests() {
		methods = append(methods, r.Method+" "+r.Path)
	}
	wantMethods := []string{"GET /api/tasks/5", "PUT /api/tasks/5"}
	if diff := cmp.Diff(wantMethods, methods); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteMissing(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), 8)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Complete() error = %v, want ErrNotFound", err)
	}
	if n := len(srv.Requests()); n != 1 {
		t.Fatalf("server saw %d requests, want 1", n)
	}
}

func TestDelete(t *testing.T) {
	srv := apitest.NewServer(task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b"})
	defer srv.Close()

	if err := newTestClient(t, srv).Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	left := srv.Tasks()
	if len(left) != 1 || left[0].ID != 2 {
		t.Fatalf("remaining tasks = %+v", left)
	}
}

func TestStatusErrors(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv)

	srv.FailNext(http.StatusInternalServerError)
	_, err := c.List(context.Background())
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("List() error = %v, want *StatusError", err)
	}
	if serr.StatusCode != http.StatusInternalServerError || serr.Method != http.MethodGet {
		t.Fatalf("StatusError = %+v", serr)
	}
	if !strings.Contains(serr.Error(), "500 Internal Server Error") {
		t.Fatalf("Error() = %q", serr.Error())
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("500 should not match ErrNotFound")
	}

	srv.FailNext(http.StatusNotFound)
	if err := c.Delete(context.Background(), 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStatusErrorLongMultibyteBody(t *testing.T) {
	body := strings.Repeat("é", 150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, body, http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL + apitest.Path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.List(context.Background())
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("List() error = %v, want *StatusError", err)
	}
	if !utf8.ValidString(serr.Body) || !utf8.ValidString(serr.Error()) {
		t.Fatalf("body is not valid UTF-8: %q", serr.Body)
	}
	if got := utf8.RuneCountInString(serr.Body); got != 150 {
		t.Fatalf("short body should be kept whole, got %d runes", got)
	}

	long := strings.Repeat("é", 300)
	got := summarizeBody([]byte(long))
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != 200 || !strings.HasSuffix(got, "...") {
		t.Fatalf("summarizeBody() = %q", got)
	}
}

func TestInvalidPayload(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.RespondRaw(http.MethodGet, apitest.Path, `[{"id":0,"title":7,"completed":"no"}]`)

	_, err := newTestClient(t, srv).List(context.Background())
	var perr *task.PayloadError
	if !errors.As(err, &perr) {
		t.Fatalf("List() error = %v, want *task.PayloadError", err)
	}
	if len(perr.Errors) < 3 {
		t.Fatalf("PayloadError has %d violations, want at least 3: %v", len(perr.Errors), perr)
	}
}

func TestRequestIDAndRecorder(t *testing.T) {
	srv := apitest.NewServer(task.Task{ID: 1, Title: "a"})
	defer srv.Close()
	rec := &memRecorder{}
	c := newTestClient(t, srv, WithRecorder(rec), WithLogger(logging.Discard()))

	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if _, err := c.Get(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(9) error = %v", err)
	}

	reqs := srv.Requests()
	entries := rec.Entries()
	if len(reqs) != 2 || len(entries) != 2 {
		t.Fatalf("requests = %d, entries = %d, want 2 each", len(reqs), len(entries))
	}
	for i := range reqs {
		if reqs[i].RequestID == "" {
			t.Fatalf("request %d has no %s header", i, RequestIDHeader)
		}
		if reqs[i].RequestID != entries[i].RequestID {
			t.Fatalf("request id %q != journal id %q", reqs[i].RequestID, entries[i].RequestID)
		}
	}
	if reqs[0].RequestID == reqs[1].RequestID {
		t.Fatal("request ids should differ")
	}

	if entries[0].Status != http.StatusOK || entries[0].Error != "" {
		t.Fatalf("entry[0] = %+v", entries[0])
	}
	if entries[1].TaskID != 9 || entries[1].Error == "" {
		t.Fatalf("entry[1] = %+v", entries[1])
	}
}

func TestTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := New(srv.URL+apitest.Path, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.List(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("List() error = %v, want deadline exceeded", err)
	}
}

func TestPing(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	srv.FailNext(http.StatusServiceUnavailable)
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("Ping() expected error")
	}
}
