package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/nibzard/taskman-go/internal/api"
	"github.com/nibzard/taskman-go/internal/board"
	"github.com/nibzard/taskman-go/internal/config"
	"github.com/nibzard/taskman-go/internal/task"
	"github.com/nibzard/taskman-go/internal/ui"
	"github.com/nibzard/taskman-go/internal/utils"
)

// lsCommand lists tasks, open ones first.
func lsCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman ls", flag.ContinueOnError)
	statusFilter := fs.String("status", "", "Filter by status (open|done)")
	dueBefore := fs.String("due-before", "", "Only tasks due before this date (YYYY-MM-DD)")
	verbose := fs.Bool("v", false, "Show descriptions in full")
	asJSON := fs.Bool("json", false, "Print tasks as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}
	remaining := fs.Args()
	if len(remaining) == 1 && *statusFilter == "" {
		*statusFilter = remaining[0]
		remaining = remaining[1:]
	}
	if len(remaining) > 0 {
		return fmt.Errorf("unexpected arguments: %v", remaining)
	}

	filter, err := parseListFilter(*statusFilter, *dueBefore)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.board.Load(ctx); err != nil {
		fmt.Fprintln(os.Stderr, s.board.Snapshot().Error)
		return err
	}

	tasks := filter.Apply(s.board.Snapshot().Tasks)
	task.Sort(tasks)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	p := newPalette()
	if len(tasks) == 0 {
		if filter.Completed == nil && filter.DueBefore == nil {
			fmt.Println("No tasks yet.")
		} else {
			fmt.Println("No matching tasks.")
		}
		return nil
	}

	if filter.Completed != nil {
		for _, t := range tasks {
			printTask(p, t, *verbose)
		}
		return nil
	}
	printGroup(p, "open", tasks, false, *verbose)
	printGroup(p, "done", tasks, true, *verbose)
	return nil
}

// addCommand creates a task. The title may be given with -title or as the
// remaining arguments.
func addCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman add", flag.ContinueOnError)
	title := fs.String("title", "", "Task title")
	description := fs.String("description", "", "Task description")
	fs.StringVar(description, "d", "", "Task description")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" {
		*title = strings.Join(fs.Args(), " ")
	} else if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	draft := task.Draft{Title: *title, Description: *description}
	if strings.TrimSpace(*due) != "" {
		d, err := task.ParseDate(*due)
		if err != nil {
			return err
		}
		draft.DueDate = &d
	}

	// Validation runs before any request.
	if err := draft.Normalize().Validate(); err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	created, err := s.board.Create(ctx, draft)
	if created.IsZero() {
		return err
	}
	if err != nil {
		s.logger.Warn("task created but list refresh failed", "err", err)
	}

	p := newPalette()
	fmt.Printf("Created %s %s\n", p.id.Sprintf("#%d", created.ID), created.Title)
	return nil
}

// showCommand prints one task.
func showCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman show", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the task as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: taskman show ID")
	}
	ids, err := utils.ParseIDs(fs.Args())
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("usage: taskman show ID")
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.client.Get(ctx, ids[0])
	if errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("task %d not found", ids[0])
	}
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	p := newPalette()
	status := p.open.Sprint("open")
	if t.Completed {
		status = p.done.Sprint("done")
	}
	fmt.Printf("%s %s\n", p.id.Sprintf("#%d", t.ID), p.title.Sprint(t.Title))
	fmt.Printf("  Status:      %s\n", status)
	if t.DueDate != nil {
		fmt.Printf("  Due:         %s\n", t.DueDate)
	}
	if t.Description != "" {
		fmt.Printf("  Description: %s\n", t.Description)
	}
	return nil
}

// doneCommand marks one or more tasks completed.
func doneCommand(ctx context.Context, cfg *config.Config, args []string) error {
	return batchCommand(ctx, cfg, "done", args, func(ctx context.Context, b *board.Board, ids []int64) ([]board.Outcome, error) {
		return b.CompleteMany(ctx, ids)
	}, "Completed")
}

// rmCommand deletes one or more tasks.
func rmCommand(ctx context.Context, cfg *config.Config, args []string) error {
	return batchCommand(ctx, cfg, "rm", args, func(ctx context.Context, b *board.Board, ids []int64) ([]board.Outcome, error) {
		return b.DeleteMany(ctx, ids)
	}, "Deleted")
}

type batchFunc func(ctx context.Context, b *board.Board, ids []int64) ([]board.Outcome, error)

func batchCommand(ctx context.Context, cfg *config.Config, name string, args []string, run batchFunc, verb string) error {
	fs := flag.NewFlagSet("taskman "+name, flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: taskman %s ID [ID...]", name)
	}
	ids, err := utils.ParseIDs(fs.Args())
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	outcomes, err := run(ctx, s.board, ids)
	p := newPalette()
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			fmt.Fprintf(os.Stderr, "%s skipped\n", p.id.Sprintf("#%d", o.ID))
		case errors.Is(o.Err, api.ErrNotFound):
			fmt.Fprintf(os.Stderr, "%s not found\n", p.id.Sprintf("#%d", o.ID))
		case o.Err != nil:
			fmt.Fprintf(os.Stderr, "%s %s\n", p.id.Sprintf("#%d", o.ID), p.err.Sprint(o.Err))
		default:
			fmt.Printf("%s %s\n", verb, p.id.Sprintf("#%d", o.ID))
		}
	}
	return err
}

// editCommand changes the fields given on the command line and leaves the
// rest as stored.
func editCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman edit", flag.ContinueOnError)
	title := fs.String("title", "", "New title")
	description := fs.String("description", "", "New description (empty clears it)")
	fs.StringVar(description, "d", "", "New description (empty clears it)")
	due := fs.String("due", "", "New due date (YYYY-MM-DD, or \"none\" to clear)")
	completed := fs.Bool("completed", false, "Set the completed flag")

	// Accept the id before or after the flags.
	var idArg []string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		idArg, args = []string{args[0]}, args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	idArg = append(idArg, fs.Args()...)
	if len(idArg) != 1 {
		return fmt.Errorf("usage: taskman edit ID [-title T] [-description D] [-due DATE] [-completed]")
	}
	ids, err := utils.ParseIDs(idArg)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("usage: taskman edit ID [-title T] [-description D] [-due DATE] [-completed]")
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if len(set) == 0 {
		return fmt.Errorf("nothing to change")
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.client.Get(ctx, ids[0])
	if errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("task %d not found", ids[0])
	}
	if err != nil {
		return err
	}

	if set["title"] {
		t.Title = strings.TrimSpace(*title)
	}
	if set["description"] || set["d"] {
		t.Description = strings.TrimSpace(*description)
	}
	if set["due"] {
		switch v := strings.TrimSpace(*due); utils.Normalize(v) {
		case "", "none":
			t.DueDate = nil
		default:
			d, err := task.ParseDate(v)
			if err != nil {
				return err
			}
			t.DueDate = &d
		}
	}
	if set["completed"] {
		t.Completed = *completed
	}

	updated, err := s.client.Update(ctx, t)
	if err != nil {
		return err
	}
	p := newPalette()
	fmt.Println("Updated:")
	printTask(p, updated, true)
	return nil
}

func parseListFilter(status, dueBefore string) (task.Filter, error) {
	var f task.Filter
	switch utils.Normalize(status) {
	case "", "all":
	case "open", "todo":
		v := false
		f.Completed = &v
	case "done", "completed":
		v := true
		f.Completed = &v
	default:
		return f, fmt.Errorf("invalid status %q (expected open|done)", status)
	}
	if strings.TrimSpace(dueBefore) != "" {
		d, err := task.ParseDate(dueBefore)
		if err != nil {
			return f, err
		}
		f.DueBefore = &d
	}
	return f, nil
}

// palette holds the colours used for terminal output. Colour is only used
// when stdout is a terminal and NO_COLOR is unset.
type palette struct {
	id    *color.Color
	title *color.Color
	open  *color.Color
	done  *color.Color
	muted *color.Color
	err   *color.Color
}

func newPalette() palette {
	p := palette{
		id:    color.New(color.FgCyan),
		title: color.New(color.Bold),
		open:  color.New(color.FgYellow),
		done:  color.New(color.FgGreen),
		muted: color.New(color.Faint),
		err:   color.New(color.FgRed),
	}
	enabled := !color.NoColor && ui.IsTTY(os.Stdout)
	for _, c := range []*color.Color{p.id, p.title, p.open, p.done, p.muted, p.err} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// printGroup prints the tasks whose completed flag equals done.
func printGroup(p palette, label string, tasks []task.Task, done bool, verbose bool) {
	var matching []task.Task
	for _, t := range tasks {
		if t.Completed == done {
			matching = append(matching, t)
		}
	}
	if len(matching) == 0 {
		return
	}
	heading := p.open
	if done {
		heading = p.done
	}
	fmt.Printf("%s (%d):\n", heading.Sprint(label), len(matching))
	for _, t := range matching {
		printTask(p, t, verbose)
	}
	fmt.Println()
}

// printTask prints a single task line. Without verbose, long descriptions
// are shortened.
func printTask(p palette, t task.Task, verbose bool) {
	mark := "[ ]"
	if t.Completed {
		mark = p.done.Sprint("[x]")
	}
	line := fmt.Sprintf("  %s %s %s", mark, p.id.Sprintf("#%d", t.ID), p.title.Sprint(t.Title))
	if t.Description != "" {
		desc := t.Description
		if !verbose && len([]rune(desc)) > 60 {
			desc = string([]rune(desc)[:57]) + "..."
		}
		line += " — " + desc
	}
	if t.DueDate != nil {
		line += p.muted.Sprintf(" (due %s)", t.DueDate)
	}
	fmt.Println(line)
}
