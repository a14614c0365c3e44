package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ProjectConfigNames lists project-level config file names in lookup order.
var ProjectConfigNames = []string{"taskman.toml", ".taskman.toml"}

// UserConfigPaths returns the user-level config locations taskman checks,
// highest priority first. The files need not exist.
func UserConfigPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".taskman", "taskman.toml"))
	}
	if dir := userConfigDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, "taskman", "taskman.toml"))
	}
	return paths
}

// userConfigDir is os.UserConfigDir with XDG_CONFIG_HOME honoured on every
// Unix, including macOS.
func userConfigDir() string {
	if runtime.GOOS != "windows" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir
}

func findUserConfigFile() string {
	return firstExisting(UserConfigPaths())
}

func findProjectConfigFile() string {
	return firstExisting(ProjectConfigNames)
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// expandPath expands environment variables and a leading ~ in p.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p != "~" && !strings.HasPrefix(p, "~/") && !(runtime.GOOS == "windows" && strings.HasPrefix(p, `~\`)) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
