package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nibzard/taskman-go/internal/logging"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	Files   []string // config files that were read, lowest priority first
}

// Default values.
const (
	DefaultAPIURL         = "http://localhost:8080/api/tasks"
	DefaultTimeoutSeconds = 10
	DefaultConcurrency    = 4
	DefaultLogDir         = "~/.taskman"
	DefaultJournal        = true
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"
)

// Config holds the full configuration for taskman.
type Config struct {
	// Task service endpoint (collection URL)
	APIURL string `toml:"api_url"`

	// Per-request timeout
	TimeoutSeconds int `toml:"timeout_seconds"`

	// Maximum in-flight requests for batch commands
	Concurrency int `toml:"concurrency"`

	// Request journal
	LogDir  string `toml:"log_dir"`
	Journal bool   `toml:"journal"`

	// Console logging
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Project root (computed)
	ProjectRoot string `toml:"-"`

	// Unknown keys found in config files
	Warnings []string `toml:"-"`
}

func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.TimeoutSeconds = DefaultTimeoutSeconds
	cfg.Concurrency = DefaultConcurrency
	cfg.LogDir = DefaultLogDir
	cfg.Journal = DefaultJournal
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	var problems []string

	u, err := url.Parse(c.APIURL)
	switch {
	case strings.TrimSpace(c.APIURL) == "":
		problems = append(problems, "api_url is empty")
	case err != nil:
		problems = append(problems, fmt.Sprintf("api_url: %v", err))
	case u.Scheme != "http" && u.Scheme != "https":
		problems = append(problems, fmt.Sprintf("api_url: unsupported scheme %q (expected http or https)", u.Scheme))
	case u.Host == "":
		problems = append(problems, "api_url: missing host")
	}

	if c.TimeoutSeconds <= 0 {
		problems = append(problems, fmt.Sprintf("timeout_seconds must be positive, got %d", c.TimeoutSeconds))
	}
	if c.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if !logging.ValidLogLevel(c.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level: unknown level %q", c.LogLevel))
	}
	if !logging.ValidLogFormat(c.LogFormat) {
		problems = append(problems, fmt.Sprintf("log_format: unknown format %q", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
