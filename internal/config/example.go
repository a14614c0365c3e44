package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# taskman configuration file
# Values can be overridden by TASKMAN_* environment variables or CLI flags

# Task service collection URL
api_url = "http://localhost:8080/api/tasks"

# Per-request timeout (seconds)
timeout_seconds = 10

# Maximum in-flight requests for batch commands (done/rm with several ids)
concurrency = 4

# Request journal directory (supports ~ expansion and %VAR% on Windows)
log_dir = "~/.taskman"

# Record every request to a per-session JSONL journal
journal = true

# Console logging: debug, info, warn, error
log_level = "warn"

# Console log format: text, json, logfmt
log_format = "text"
log_timestamps = false
log_caller = false
`
}
