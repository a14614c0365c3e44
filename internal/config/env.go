package config

import (
	"os"
	"strconv"
	"strings"
)

// loadFromEnv overrides config from TASKMAN_* environment variables.
// If sources is non-nil, it tracks the source of each value.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) {
	mark := func(field string) {
		if sources != nil {
			sources[field] = SourceEnv
		}
	}

	if v := os.Getenv("TASKMAN_API_URL"); v != "" {
		cfg.APIURL = v
		mark("api_url")
	}
	if v := os.Getenv("TASKMAN_TIMEOUT"); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.TimeoutSeconds = i
			mark("timeout_seconds")
		}
	}
	if v := os.Getenv("TASKMAN_CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Concurrency = i
			mark("concurrency")
		}
	}
	if v := os.Getenv("TASKMAN_LOG_DIR"); v != "" {
		cfg.LogDir = v
		mark("log_dir")
	}
	if v := os.Getenv("TASKMAN_JOURNAL"); v != "" {
		cfg.Journal = boolFromString(v)
		mark("journal")
	}

	// Logging configuration
	if v := os.Getenv("TASKMAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
		mark("log_level")
	}
	if v := os.Getenv("TASKMAN_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
		mark("log_format")
	}
	if v := os.Getenv("TASKMAN_LOG_TIMESTAMPS"); v != "" {
		cfg.LogTimestamps = boolFromString(v)
		mark("log_timestamps")
	}
	if v := os.Getenv("TASKMAN_LOG_CALLER"); v != "" {
		cfg.LogCaller = boolFromString(v)
		mark("log_caller")
	}
}

func boolFromString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
