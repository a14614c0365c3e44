// Package cmd implements the CLI command structure for taskman.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskman-go/internal/api"
	"github.com/nibzard/taskman-go/internal/board"
	"github.com/nibzard/taskman-go/internal/config"
	"github.com/nibzard/taskman-go/internal/logging"
	"github.com/nibzard/taskman-go/internal/ui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the taskman CLI.
func Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("taskman", flag.ContinueOnError)
	fs.Usage = func() {
		printUsage(fs, os.Stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, os.Stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	// With no subcommand, show the board.
	subcommand := "ls"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	cfg := cws.Config
	switch subcommand {
	case "ls", "list":
		return lsCommand(ctx, cfg, remainingArgs)
	case "add", "new":
		return addCommand(ctx, cfg, remainingArgs)
	case "show":
		return showCommand(ctx, cfg, remainingArgs)
	case "done", "complete":
		return doneCommand(ctx, cfg, remainingArgs)
	case "edit":
		return editCommand(ctx, cfg, remainingArgs)
	case "rm", "delete":
		return rmCommand(ctx, cfg, remainingArgs)
	case "tui":
		return tuiCommand(ctx, cfg, remainingArgs)
	case "doctor":
		return doctorCommand(ctx, cws, remainingArgs)
	case "init":
		return initCommand(remainingArgs)
	case "tail":
		return tailCommand(ctx, cfg, remainingArgs)
	case "version":
		return versionCommand()
	case "help":
		printUsage(fs, os.Stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, os.Stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// session bundles what every service-facing command needs.
type session struct {
	cfg     *config.Config
	logger  *log.Logger
	journal *logging.Journal
	client  *api.Client
	board   *board.Board
}

// openSession validates cfg and builds the logger, journal, client and
// board. A journal that cannot be created is reported and skipped.
func openSession(cfg *config.Config) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewConsoleFromConfig(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.LogTimestamps, cfg.LogCaller)
	for _, w := range cfg.Warnings {
		logger.Warn("config", "warning", w)
	}

	s := &session{cfg: cfg, logger: logger}
	opts := []api.Option{
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(logger),
	}
	if cfg.Journal {
		journal, err := logging.NewJournal(cfg.LogDir, cfg.ProjectRoot)
		if err != nil {
			logger.Warn("request journal disabled", "err", err)
		} else {
			s.journal = journal
			opts = append(opts, api.WithRecorder(journal))
			logger.Debug("request journal", "path", journal.Path)
		}
	}

	client, err := api.New(cfg.APIURL, opts...)
	if err != nil {
		_ = s.journal.Close()
		return nil, err
	}
	s.client = client
	s.board = board.New(client, board.WithConcurrency(cfg.Concurrency), board.WithLogger(logger))
	return s, nil
}

func (s *session) Close() error {
	return s.journal.Close()
}

// tuiCommand launches the interactive board.
func tuiCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman tui", flag.ContinueOnError)
	refresh := fs.Int("refresh", 30, "Reload interval in seconds (0 disables)")
	inline := fs.Bool("inline", false, "Render inline instead of using the alternate screen")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *refresh < 0 {
		return fmt.Errorf("invalid -refresh %d: must be >= 0", *refresh)
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	return ui.RunTUI(ctx, s.board,
		ui.WithRefreshInterval(time.Duration(*refresh)*time.Second),
		ui.WithAltScreen(!*inline),
	)
}

// tailCommand tails the latest request journal.
func tailCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman tail", flag.ContinueOnError)
	follow := fs.Bool("f", false, "Follow the journal (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the journal (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	workDir := cfg.ProjectRoot
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		workDir = wd
	}

	logDir, err := logging.FindLogDir(cfg.LogDir, workDir)
	if err != nil {
		return fmt.Errorf("finding log directory: %w", err)
	}

	logPath, err := logging.FindLatestLog(logDir)
	if err != nil {
		return fmt.Errorf("finding latest journal: %w", err)
	}

	if logPath == "" {
		fmt.Println("No journal files found.")
		return nil
	}

	fmt.Printf("Tailing: %s\n", logPath)
	if *follow {
		fmt.Println("(Ctrl+C to stop)")
	}
	fmt.Println()

	return logging.TailLog(ctx, os.Stdout, logPath, *n, *follow)
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Printf("taskman version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "taskman - a terminal client for the task service")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  taskman [global options] [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ls             List tasks (default command)")
	fmt.Fprintln(w, "  add            Create a task")
	fmt.Fprintln(w, "  show ID        Show one task")
	fmt.Fprintln(w, "  done ID...     Mark tasks completed")
	fmt.Fprintln(w, "  edit ID        Change a task's title, description or due date")
	fmt.Fprintln(w, "  rm ID...       Delete tasks")
	fmt.Fprintln(w, "  tui            Launch the interactive board")
	fmt.Fprintln(w, "  doctor         Check configuration and service reachability")
	fmt.Fprintln(w, "  init           Write an example taskman.toml")
	fmt.Fprintln(w, "  tail           Tail the latest request journal")
	fmt.Fprintln(w, "  version        Show version information")
	fmt.Fprintln(w, "  help           Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Ls Options:")
	fmt.Fprintln(w, "  -status string")
	fmt.Fprintln(w, "        Filter by status (open|done)")
	fmt.Fprintln(w, "  -due-before string")
	fmt.Fprintln(w, "        Only tasks due before this date (YYYY-MM-DD)")
	fmt.Fprintln(w, "  -v    Show descriptions")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Add/Edit Options:")
	fmt.Fprintln(w, "  -title string")
	fmt.Fprintln(w, "        Task title (required for add, at most 100 characters)")
	fmt.Fprintln(w, "  -description string")
	fmt.Fprintln(w, "        Task description")
	fmt.Fprintln(w, "  -due string")
	fmt.Fprintln(w, "        Due date (YYYY-MM-DD); edit accepts \"none\" to clear it")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tail Options:")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the journal (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
}
