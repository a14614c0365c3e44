package config

import (
	"flag"
)

// flagFields maps global flag names to config field names.
var flagFields = map[string]string{
	"api":            "api_url",
	"timeout":        "timeout_seconds",
	"concurrency":    "concurrency",
	"log-dir":        "log_dir",
	"journal":        "journal",
	"log-level":      "log_level",
	"log-format":     "log_format",
	"log-timestamps": "log_timestamps",
	"log-caller":     "log_caller",
}

// parseFlags defines the global flags on fs and parses args into cfg.
// If sources is non-nil, explicitly set flags are recorded.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("taskman", flag.ContinueOnError)
	}

	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "Task service collection URL")
	fs.IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "Per-request timeout (seconds)")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Maximum in-flight requests for batch commands")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Request journal directory")
	fs.BoolVar(&cfg.Journal, "journal", cfg.Journal, "Record requests to the journal")

	// Logging
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Console log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Console log format (text|json|logfmt)")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Include timestamps in console logs")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Include caller in console logs")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if sources != nil {
		fs.Visit(func(f *flag.Flag) {
			if field, ok := flagFields[f.Name]; ok {
				sources[field] = SourceFlag
			}
		})
	}
	return nil
}
