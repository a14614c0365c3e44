package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/taskman-go/internal/task"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldDue
	fieldCount
)

var fieldLabels = [fieldCount]string{"Title", "Description", "Due date"}

// taskForm is the new-task form.
type taskForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	err    string
}

func newTaskForm() *taskForm {
	f := &taskForm{}

	title := textinput.New()
	title.Placeholder = "What needs doing?"
	title.CharLimit = task.MaxTitleLength + 20
	title.Width = 48

	desc := textinput.New()
	desc.Placeholder = "optional"
	desc.CharLimit = 500
	desc.Width = 48

	due := textinput.New()
	due.Placeholder = "YYYY-MM-DD"
	due.CharLimit = len(task.DateLayout)
	due.Width = 12

	f.inputs = [fieldCount]textinput.Model{title, desc, due}
	f.inputs[fieldTitle].Focus()
	return f
}

// draft builds a draft from the current input. Only the due date can fail
// here; title rules are checked by the board.
func (f *taskForm) draft() (task.Draft, error) {
	d := task.Draft{
		Title:       f.inputs[fieldTitle].Value(),
		Description: f.inputs[fieldDescription].Value(),
	}
	if raw := strings.TrimSpace(f.inputs[fieldDue].Value()); raw != "" {
		due, err := task.ParseDate(raw)
		if err != nil {
			return task.Draft{}, err
		}
		d.DueDate = &due
	}
	return d, nil
}

func (f *taskForm) setFocus(i int) tea.Cmd {
	f.focus = (i + fieldCount) % fieldCount
	var cmd tea.Cmd
	for n := range f.inputs {
		if n == f.focus {
			cmd = f.inputs[n].Focus()
			continue
		}
		f.inputs[n].Blur()
	}
	return cmd
}

// update forwards msg to the focused input.
func (f *taskForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *taskForm) view(st styles) string {
	var b strings.Builder
	b.WriteString(st.Selected.Render("New task") + "\n\n")
	for i, in := range f.inputs {
		b.WriteString(st.Label.Render(fieldLabels[i]) + in.View() + "\n")
	}
	if f.err != "" {
		b.WriteString("\n" + st.Error.Render(f.err) + "\n")
	}
	b.WriteString("\n" + st.Muted.Render("tab next field • enter save • esc cancel"))
	return st.Form.Render(b.String())
}
