// Package ui provides the interactive terminal view of the task board.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/nibzard/taskman-go/internal/board"
	"github.com/nibzard/taskman-go/internal/task"
)

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

type tuiConfig struct {
	refresh   time.Duration
	altScreen bool
}

// WithRefreshInterval reloads the board periodically. Zero disables it.
func WithRefreshInterval(d time.Duration) TUIOption {
	return func(c *tuiConfig) {
		if d >= 0 {
			c.refresh = d
		}
	}
}

// WithAltScreen controls whether the TUI takes over the whole terminal.
func WithAltScreen(enabled bool) TUIOption {
	return func(c *tuiConfig) {
		c.altScreen = enabled
	}
}

// RunTUI starts the TUI over b. It returns when the user quits or ctx is
// cancelled.
func RunTUI(ctx context.Context, b *board.Board, opts ...TUIOption) error {
	c := &tuiConfig{
		refresh:   30 * time.Second,
		altScreen: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.altScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	model := newTUIModel(ctx, b, c.refresh)
	_, err := tea.NewProgram(model, programOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type filterMode int

const (
	filterAll filterMode = iota
	filterOpen
	filterDone
)

func (f filterMode) String() string {
	switch f {
	case filterOpen:
		return "open"
	case filterDone:
		return "done"
	default:
		return "all"
	}
}

func (f filterMode) next() filterMode {
	return (f + 1) % 3
}

func (f filterMode) taskFilter() task.Filter {
	if f == filterAll {
		return task.Filter{}
	}
	completed := f == filterDone
	return task.Filter{Completed: &completed}
}

type tuiModel struct {
	ctx      context.Context
	board    *board.Board
	snap     board.Snapshot
	cursor   int
	filter   filterMode
	showHelp bool
	form     *taskForm
	busy     bool
	notice   string
	refresh  time.Duration
	styles   styles
}

type loadedMsg struct{ err error }

type createdMsg struct {
	task task.Task
	err  error
}

type completedMsg struct {
	task task.Task
	err  error
}

type deletedMsg struct {
	id  int64
	err error
}

type tickMsg time.Time

func newTUIModel(ctx context.Context, b *board.Board, refresh time.Duration) *tuiModel {
	return &tuiModel{
		ctx:     ctx,
		board:   b,
		snap:    b.Snapshot(),
		refresh: refresh,
		styles:  defaultStyles(),
	}
}

func (m *tuiModel) Init() tea.Cmd {
	m.busy = true
	return tea.Batch(m.loadCmd(), tickCmd(m.refresh))
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.form != nil {
			return m, m.updateForm(msg)
		}
		return m, m.handleKey(msg)
	case loadedMsg:
		m.busy = false
		m.sync()
	case createdMsg:
		m.busy = false
		m.sync()
		if m.form != nil {
			if msg.err != nil && msg.task.IsZero() {
				m.form.err = m.snap.Error
				return m, nil
			}
			m.form = nil
		}
		if !msg.task.IsZero() {
			m.notice = fmt.Sprintf("Created #%d", msg.task.ID)
			m.selectID(msg.task.ID)
		}
	case completedMsg:
		m.busy = false
		m.sync()
		if msg.err == nil {
			m.notice = fmt.Sprintf("Completed #%d", msg.task.ID)
		}
	case deletedMsg:
		m.busy = false
		m.sync()
		if msg.err == nil {
			m.notice = fmt.Sprintf("Deleted #%d", msg.id)
		}
	case tickMsg:
		if m.busy || m.form != nil {
			return m, tickCmd(m.refresh)
		}
		m.busy = true
		return m, tea.Batch(m.loadCmd(), tickCmd(m.refresh))
	}
	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.showHelp {
		switch msg.String() {
		case "ctrl+c", "q":
			return tea.Quit
		}
		m.showHelp = false
		return nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "?", "h":
		m.showHelp = true
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = len(m.visible()) - 1
		m.clampCursor()
	case "f":
		m.filter = m.filter.next()
		m.clampCursor()
	case "r", "f5":
		m.busy = true
		m.notice = ""
		return m.loadCmd()
	case "n", "a":
		m.form = newTaskForm()
		m.notice = ""
		return m.form.setFocus(fieldTitle)
	case "c", " ", "enter":
		if t, ok := m.selected(); ok && !t.Completed {
			m.busy = true
			return m.completeCmd(t.ID)
		}
	case "d", "delete":
		if t, ok := m.selected(); ok {
			m.busy = true
			return m.deleteCmd(t.ID)
		}
	}
	return nil
}

func (m *tuiModel) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "esc":
		// The form already showed the failed create's message.
		if m.form.err != "" && m.form.err == m.board.Snapshot().Error {
			m.board.ClearError()
			m.sync()
		}
		m.form = nil
		return nil
	case "tab", "down":
		return m.form.setFocus(m.form.focus + 1)
	case "shift+tab", "up":
		return m.form.setFocus(m.form.focus - 1)
	case "enter":
		d, err := m.form.draft()
		if err != nil {
			m.form.err = err.Error()
			return nil
		}
		m.form.err = ""
		m.busy = true
		return m.createCmd(d)
	}
	return m.form.update(msg)
}

func (m *tuiModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Task Manager") + "\n")

	if m.snap.Error != "" {
		b.WriteString(m.styles.Error.Render(m.snap.Error) + "\n\n")
	} else if m.notice != "" {
		b.WriteString(m.styles.Info.Render(m.notice) + "\n\n")
	}

	if m.showHelp {
		writeHelp(&b, m.styles)
		return b.String()
	}

	if m.form != nil {
		b.WriteString(m.form.view(m.styles) + "\n")
		return b.String()
	}

	open, done := task.Counts(m.snap.Tasks)
	summary := fmt.Sprintf("%d open • %d done", open, done)
	if m.filter != filterAll {
		summary += fmt.Sprintf(" • showing %s", m.filter)
	}
	if m.busy {
		summary += " • working..."
	}
	b.WriteString(m.styles.Muted.Render(summary) + "\n\n")

	visible := m.visible()
	switch {
	case !m.snap.Loaded && m.snap.Error == "" && len(m.snap.Tasks) == 0:
		b.WriteString("Loading...\n")
	case len(visible) == 0:
		b.WriteString("No tasks yet.\n")
	default:
		for i, t := range visible {
			b.WriteString(m.formatTask(t, i == m.cursor) + "\n")
		}
	}

	b.WriteString(m.styles.Footer.Render("n new • c complete • d delete • f filter • r reload • ? help • q quit"))
	return b.String()
}

func (m *tuiModel) formatTask(t task.Task, selected bool) string {
	pointer := "  "
	name := m.styles.TaskName.Render(t.Title)
	if selected {
		pointer = "> "
		name = m.styles.Selected.Render(t.Title)
	}
	line := fmt.Sprintf("%s#%d %s", pointer, t.ID, name)
	if t.Completed {
		line += " " + m.styles.Done.Render("✓")
	}
	if t.Description != "" {
		line += " — " + t.Description
	}
	if t.DueDate != nil {
		line += m.styles.Muted.Render(fmt.Sprintf(" (due %s)", t.DueDate))
	}
	return line
}

func writeHelp(b *strings.Builder, st styles) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  j, k, ↑, ↓   Move\n")
	b.WriteString("  n            New task\n")
	b.WriteString("  c, space     Complete selected task\n")
	b.WriteString("  d            Delete selected task\n")
	b.WriteString("  f            Cycle filter (all, open, done)\n")
	b.WriteString("  r, F5        Reload\n")
	b.WriteString("  ?, h         Toggle this help screen\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString(st.Footer.Render("Press any key to return"))
}

// sync copies the board state into the model.
func (m *tuiModel) sync() {
	var selectedID int64
	if t, ok := m.selected(); ok {
		selectedID = t.ID
	}
	m.snap = m.board.Snapshot()
	if selectedID != 0 {
		m.selectID(selectedID)
	}
	m.clampCursor()
}

func (m *tuiModel) visible() []task.Task {
	return m.filter.taskFilter().Apply(m.snap.Tasks)
}

func (m *tuiModel) selected() (task.Task, bool) {
	visible := m.visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return task.Task{}, false
	}
	return visible[m.cursor], true
}

func (m *tuiModel) selectID(id int64) {
	for i, t := range m.visible() {
		if t.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m *tuiModel) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *tuiModel) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *tuiModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.board.Load(m.ctx)}
	}
}

func (m *tuiModel) createCmd(d task.Draft) tea.Cmd {
	return func() tea.Msg {
		t, err := m.board.Create(m.ctx, d)
		return createdMsg{task: t, err: err}
	}
}

func (m *tuiModel) completeCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		t, err := m.board.Complete(m.ctx, id)
		return completedMsg{task: t, err: err}
	}
}

func (m *tuiModel) deleteCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{id: id, err: m.board.Delete(m.ctx, id)}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	if d <= 0 {
		return nil
	}
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
