package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the longest title the service accepts, in characters.
const MaxTitleLength = 100

// DateLayout is the wire format for due dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("due date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task is a single record owned by the task service.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     *Date  `json:"dueDate"`
	Completed   bool   `json:"completed"`
}

// IsZero returns true if the task has not been assigned an id.
func (t *Task) IsZero() bool {
	return t.ID == 0
}

// Draft is the user-supplied part of a task, as entered in a form.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     *Date  `json:"dueDate"`
}

// Normalize trims surrounding whitespace from the text fields.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	return d
}

// Validate checks the draft against the service's title constraints.
func (d Draft) Validate() error {
	return validateTitle(d.Title, "title")
}

// Validate checks a full task record before it is sent as an update.
func (t *Task) Validate() error {
	return validateTitle(t.Title, "title")
}

// Apply overwrites the user-editable fields of t with those from d.
func (t *Task) Apply(d Draft) {
	t.Title = d.Title
	t.Description = d.Description
	t.DueDate = d.DueDate
}

func validateTitle(title, path string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return &ValidationError{Path: path, Err: ErrTitleRequired}
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return &ValidationError{Path: path, Err: ErrTitleTooLong}
	}
	return nil
}
