// Package config loads taskman settings.
//
// Values are layered, each source overriding the one before it:
// built-in defaults, the user config file, the project config file
// (taskman.toml or .taskman.toml in the working directory), TASKMAN_*
// environment variables, and finally CLI flags.
//
// The user config file is the first of UserConfigPaths that exists:
// ~/.taskman/taskman.toml, then taskman/taskman.toml under the OS config
// directory ($XDG_CONFIG_HOME, ~/.config, ~/Library/Application Support
// or %APPDATA%).
//
// LoadWithSources also records which layer set each key, which doctor -v
// prints.
package config
