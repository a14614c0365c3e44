package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/nibzard/taskman-go/internal/api"
	"github.com/nibzard/taskman-go/internal/config"
	"github.com/nibzard/taskman-go/internal/logging"
	"github.com/nibzard/taskman-go/internal/task"
)

// doctorCommand checks configuration, the journal directory and whether the
// task service answers.
func doctorCommand(ctx context.Context, cws *config.ConfigWithSources, args []string) error {
	fs := flag.NewFlagSet("taskman doctor", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Verbose output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	cfg := cws.Config

	fmt.Println("Taskman Doctor")
	fmt.Println("==============")
	fmt.Println()

	allOK := true

	// Config files and values
	fmt.Println("Config:")
	if len(cws.Files) == 0 {
		fmt.Println("  ⚠️  No config file found (using defaults)")
		if *verbose {
			for _, p := range config.UserConfigPaths() {
				fmt.Printf("     searched %s\n", p)
			}
			for _, name := range config.ProjectConfigNames {
				fmt.Printf("     searched ./%s\n", name)
			}
		}
	}
	for _, f := range cws.Files {
		fmt.Printf("  ✅ Read %s\n", f)
	}
	for _, w := range cfg.Warnings {
		fmt.Printf("  ⚠️  %s\n", w)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  ❌ %v\n", err)
		allOK = false
	} else {
		fmt.Println("  ✅ Valid")
	}
	if *verbose {
		printConfigValues(cws)
	}
	fmt.Println()

	// Journal directory
	if cfg.Journal {
		logDir, err := logging.FindLogDir(cfg.LogDir, cfg.ProjectRoot)
		fmt.Printf("Journal directory: %s\n", logDir)
		switch {
		case err != nil:
			fmt.Printf("  ❌ Error: %v\n", err)
			allOK = false
		default:
			if info, statErr := os.Stat(logDir); statErr != nil {
				if os.IsNotExist(statErr) {
					fmt.Println("  ⚠️  Not found (will be created on first request)")
				} else {
					fmt.Printf("  ❌ Error: %v\n", statErr)
					allOK = false
				}
			} else if !info.IsDir() {
				fmt.Println("  ❌ Error: path is not a directory")
				allOK = false
			} else {
				fmt.Println("  ✅ OK")
			}
		}
	} else {
		fmt.Println("Journal: disabled")
	}
	fmt.Println()

	// Service
	fmt.Printf("Task service: %s\n", cfg.APIURL)
	client, err := api.New(cfg.APIURL, api.WithTimeout(cfg.Timeout()))
	if err != nil {
		fmt.Printf("  ❌ %v\n", err)
		allOK = false
	} else {
		tasks, err := client.List(ctx)
		var payloadErr *task.PayloadError
		switch {
		case errors.As(err, &payloadErr):
			fmt.Println("  ❌ Unexpected response shape:")
			for _, e := range payloadErr.Errors {
				fmt.Printf("     - %v\n", e)
			}
			allOK = false
		case err != nil:
			fmt.Printf("  ❌ Unreachable: %v\n", err)
			allOK = false
		default:
			open, done := task.Counts(tasks)
			fmt.Printf("  ✅ OK (%d open, %d done)\n", open, done)
		}
	}
	fmt.Println()

	if allOK {
		fmt.Println("✅ All checks passed!")
		return nil
	}
	fmt.Println("⚠️  Some checks failed. taskman may not function correctly.")
	return fmt.Errorf("doctor checks failed")
}

func printConfigValues(cws *config.ConfigWithSources) {
	cfg := cws.Config
	values := map[string]string{
		"api_url":         cfg.APIURL,
		"timeout_seconds": fmt.Sprint(cfg.TimeoutSeconds),
		"concurrency":     fmt.Sprint(cfg.Concurrency),
		"log_dir":         cfg.LogDir,
		"journal":         fmt.Sprint(cfg.Journal),
		"log_level":       cfg.LogLevel,
		"log_format":      cfg.LogFormat,
		"log_timestamps":  fmt.Sprint(cfg.LogTimestamps),
		"log_caller":      fmt.Sprint(cfg.LogCaller),
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("     %-16s %-36s (%s)\n", k, values[k], cws.Sources[k])
	}
}

// initCommand writes an example taskman.toml into the current directory.
func initCommand(args []string) error {
	fs := flag.NewFlagSet("taskman init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := "."
	if fs.NArg() > 1 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}
	if fs.NArg() == 1 {
		dir = fs.Arg(0)
	}

	path := filepath.Join(dir, config.ProjectConfigNames[0])
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Printf("%s already exists (use -force to overwrite)\n", path)
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.ExampleConfig()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
