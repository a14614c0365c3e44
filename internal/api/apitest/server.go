// Package apitest provides an in-memory task service for tests.
//
// It mirrors the service's observable behaviour: ids are assigned in
// increasing order, a lookup of an unknown id answers 200 with an empty
// body, blank or overlong titles are rejected with 400, and PUT replaces
// every editable field.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nibzard/taskman-go/internal/task"
)

// Path is the collection path served by Server.
const Path = "/api/tasks"

// Request is one request observed by the server.
type Request struct {
	Method    string
	Path      string
	RequestID string
}

// Server is an in-memory task service.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int64
	tasks    map[int64]task.Task
	requests []Request
	failures []int
	raw      map[string]string
}

// NewServer starts a server seeded with tasks. Seeded tasks keep their ids;
// new ids continue after the highest one.
func NewServer(seed ...task.Task) *Server {
	s := &Server{
		nextID: 1,
		tasks:  make(map[int64]task.Task),
		raw:    make(map[string]string),
	}
	for _, t := range seed {
		s.tasks[t.ID] = t
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// CollectionURL returns the collection URL.
func (s *Server) CollectionURL() string {
	return s.Server.URL + Path
}

// FailNext makes the next len(statuses) requests answer with the given
// status codes, in order.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// RespondRaw makes every request for "METHOD path" answer 200 with body.
func (s *Server) RespondRaw(method, path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[method+" "+path] = body
}

// Requests returns the requests seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Tasks returns the stored tasks ordered by id.
func (s *Server) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Server) sortedLocked() []task.Task {
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: r.Header.Get("X-Request-ID"),
	})

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		http.Error(w, http.StatusText(status), status)
		return
	}
	if body, ok := s.raw[r.Method+" "+r.URL.Path]; ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, s.sortedLocked())
		case http.MethodPost:
			s.create(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, ok := s.tasks[id]
		if !ok {
			// The service answers unknown ids with an empty 200.
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, t)
	case http.MethodPut:
		s.update(w, r, id)
	case http.MethodDelete:
		delete(s.tasks, id)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := t.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.ID = s.nextID
	s.nextID++
	s.tasks[t.ID] = t
	writeJSON(w, t)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, id int64) {
	var in task.Task
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, ok := s.tasks[id]
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	t.Title = in.Title
	t.Description = in.Description
	t.DueDate = in.DueDate
	t.Completed = in.Completed
	s.tasks[id] = t
	writeJSON(w, t)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
