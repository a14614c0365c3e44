// Package api is an HTTP client for the task service.
//
// The service exposes a collection URL (by default
// http://localhost:8080/api/tasks) with the usual verbs:
//
//	GET    {base}        list tasks
//	POST   {base}        create a task
//	GET    {base}/{id}   fetch one task
//	PUT    {base}/{id}   replace a task's fields
//	DELETE {base}/{id}   delete a task
//
// The service answers a lookup of an unknown id with 200 and an empty
// body; the client reports that case as ErrNotFound.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/taskman-go/internal/logging"
	"github.com/nibzard/taskman-go/internal/task"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ErrNotFound is returned when the service has no task with the given id.
var ErrNotFound = errors.New("task not found")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Recorder receives one entry per HTTP exchange.
type Recorder interface {
	Record(logging.Entry) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the console logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets where exchanges are journaled.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// Client talks to one task service collection.
type Client struct {
	base     *url.URL
	http     *http.Client
	timeout  time.Duration
	logger   *log.Logger
	recorder Recorder
}

// New returns a client for the collection at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse api url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url: missing host")
	}

	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the collection URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// List returns every task.
func (c *Client) List(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task
	if err := c.do(ctx, http.MethodGet, c.base.String(), 0, nil, task.KindList, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

// Get returns one task.
func (c *Client) Get(ctx context.Context, id int64) (task.Task, error) {
	var t task.Task
	err := c.do(ctx, http.MethodGet, c.itemURL(id), id, nil, task.KindTask, &t)
	return t, err
}

// Create validates the draft locally and posts it.
func (c *Client) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}
	var t task.Task
	err := c.do(ctx, http.MethodPost, c.base.String(), 0, d, task.KindTask, &t)
	return t, err
}

// Update replaces the stored fields of t and returns the stored record.
func (c *Client) Update(ctx context.Context, t task.Task) (task.Task, error) {
	if t.IsZero() {
		return task.Task{}, fmt.Errorf("update: task has no id")
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	var out task.Task
	err := c.do(ctx, http.MethodPut, c.itemURL(t.ID), t.ID, t, task.KindTask, &out)
	return out, err
}

// Complete marks a task as completed and returns the record the service
// stored. The service only offers whole-record updates, so the current
// record is fetched first.
func (c *Client) Complete(ctx context.Context, id int64) (task.Task, error) {
	current, err := c.Get(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	current.Completed = true
	return c.Update(ctx, current)
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, c.itemURL(id), id, nil, task.KindTask, nil)
}

// Ping checks that the collection answers a list request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.List(ctx)
	return err
}

func (c *Client) itemURL(id int64) string {
	return c.base.JoinPath(strconv.FormatInt(id, 10)).String()
}

// do performs one exchange. When out is non-nil the response body is
// validated against kind and decoded into out.
func (c *Client) do(ctx context.Context, method, target string, taskID int64, body any, kind task.Kind, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	entry := logging.Entry{
		Time:      time.Now().UTC(),
		RequestID: requestID,
		Method:    method,
		URL:       target,
		TaskID:    taskID,
	}
	start := time.Now()
	data, status, err := c.send(req)
	entry.DurationMS = time.Since(start).Milliseconds()
	entry.Status = status

	if err == nil {
		err = c.interpret(method, target, status, data, kind, out)
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.record(entry)
	return err
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: read response: %w", req.Method, req.URL, err)
	}
	return data, resp.StatusCode, nil
}

func (c *Client) interpret(method, target string, status int, data []byte, kind task.Kind, out any) error {
	if status < 200 || status > 299 {
		return &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: status,
			Body:       summarizeBody(data),
		}
	}
	if out == nil {
		return nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if kind == task.KindList {
			return nil
		}
		return ErrNotFound
	}

	if err := task.ValidateJSON(trimmed, kind); err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, target, err)
	}
	return nil
}

func (c *Client) record(e logging.Entry) {
	fields := []any{"method", e.Method, "url", e.URL, "status", e.Status, "duration_ms", e.DurationMS, "request_id", e.RequestID}
	if e.Error != "" {
		c.logger.Debug("request failed", append(fields, "err", e.Error)...)
	} else {
		c.logger.Debug("request", fields...)
	}

	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(e); err != nil {
		c.logger.Warn("journal write failed", "err", err)
	}
}

// summarizeBody keeps error bodies short enough for a one-line message.
func summarizeBody(data []byte) string {
	s := strings.Join(strings.Fields(string(data)), " ")
	if r := []rune(s); len(r) > 200 {
		s = string(r[:197]) + "..."
	}
	return s
}
