package task

import "sort"

// Find returns a pointer into list for the task with the given id, or nil.
func Find(list []Task, id int64) *Task {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

// MergeByID returns a copy of list where the entry sharing t's id has been
// replaced by t. Other entries keep their position. The boolean reports
// whether a match was found; when it is false the copy equals list.
func MergeByID(list []Task, t Task) ([]Task, bool) {
	merged := make([]Task, len(list))
	copy(merged, list)
	for i := range merged {
		if merged[i].ID == t.ID {
			merged[i] = t
			return merged, true
		}
	}
	return merged, false
}

// RemoveByID returns a copy of list without the entry for id.
func RemoveByID(list []Task, id int64) ([]Task, bool) {
	out := make([]Task, 0, len(list))
	found := false
	for _, t := range list {
		if t.ID == id {
			found = true
			continue
		}
		out = append(out, t)
	}
	return out, found
}

// Sort orders tasks in place: open before completed, then by due date
// (undated last), then by id.
func Sort(list []Task) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		switch {
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return a.ID < b.ID
	})
}

// Filter selects tasks by completion state and due date. Zero-valued
// fields match everything.
type Filter struct {
	Completed *bool
	DueBefore *Date
}

// Match reports whether t passes the filter.
func (f Filter) Match(t Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.DueBefore != nil {
		if t.DueDate == nil || !t.DueDate.Before(*f.DueBefore) {
			return false
		}
	}
	return true
}

// Apply returns the tasks that pass the filter, preserving order.
func (f Filter) Apply(list []Task) []Task {
	out := make([]Task, 0, len(list))
	for _, t := range list {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Counts returns the number of open and completed tasks.
func Counts(list []Task) (open, done int) {
	for _, t := range list {
		if t.Completed {
			done++
		} else {
			open++
		}
	}
	return open, done
}
