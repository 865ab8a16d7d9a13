// ABOUTME: CLI preference loading for annosync
// ABOUTME: Loads TOML prefs from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Prefs are CLI-local settings, distinct from the backend configuration the
// sync layer itself consumes.
type Prefs struct {
	Defaults DefaultsPrefs `toml:"defaults"`
	Output   OutputPrefs   `toml:"output"`
}

type DefaultsPrefs struct {
	Backend string `toml:"backend"`
	Config  string `toml:"config"`
}

type OutputPrefs struct {
	Color      bool   `toml:"color"`
	ExportPath string `toml:"export_path"`
}

// prefsPath resolves the CLI prefs file location under XDG config.
func prefsPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "annosync", "cli.toml")
}

// loadPrefs reads CLI preferences. A missing file yields defaults.
func loadPrefs() (*Prefs, error) {
	prefs := &Prefs{
		Output: OutputPrefs{Color: true, ExportPath: "annotations.html"},
	}

	path := prefsPath()
	if path == "" {
		return prefs, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return nil, fmt.Errorf("reading prefs file: %w", err)
	}

	expanded := expandEnvVars(string(data))
	if _, err := toml.Decode(expanded, prefs); err != nil {
		return nil, fmt.Errorf("parsing prefs: %w", err)
	}
	return prefs, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// configPath resolves the backend config file, preferring the environment,
// then the CLI prefs, then the working directory.
func configPath(prefs *Prefs) string {
	if path := os.Getenv("ANNOSYNC_CONFIG"); path != "" {
		return path
	}
	if prefs.Defaults.Config != "" {
		return prefs.Defaults.Config
	}
	return "annosync.yaml"
}
