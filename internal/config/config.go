// ABOUTME: Configuration loading and parsing for annosync
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/annosync/internal/annotation"
)

// Config represents the complete annosync configuration
type Config struct {
	Session  SessionConfig   `yaml:"session"`
	Backends []BackendConfig `yaml:"backends"`
	HTTP     HTTPConfig      `yaml:"http"`
	Drafts   DraftsConfig    `yaml:"drafts"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// SessionConfig identifies the authenticated user and the credential realm
type SessionConfig struct {
	User  string `yaml:"user"`
	Realm string `yaml:"realm"`
}

// BackendConfig describes one remote annotation collection
type BackendConfig struct {
	Name    string `yaml:"name"`
	Family  string `yaml:"family"` // "a" or "b"
	Version int    `yaml:"version"`
	BaseURL string `yaml:"base_url"`
	Kind    string `yaml:"kind"`
	Group   string `yaml:"group"`
}

// HTTPConfig holds retry and timeout tuning for the credentialed client
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"-"`
	RetryBase time.Duration `yaml:"-"`
	RetryCap  int           `yaml:"retry_cap"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw   string `yaml:"timeout"`
	RetryBaseRaw string `yaml:"retry_base"`
}

// DraftsConfig holds the local draft database location
type DraftsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error
	if cfg.HTTP.TimeoutRaw != "" {
		if cfg.HTTP.Timeout, err = time.ParseDuration(cfg.HTTP.TimeoutRaw); err != nil {
			return fmt.Errorf("http.timeout: %w", err)
		}
	}
	if cfg.HTTP.RetryBaseRaw != "" {
		if cfg.HTTP.RetryBase, err = time.ParseDuration(cfg.HTTP.RetryBaseRaw); err != nil {
			return fmt.Errorf("http.retry_base: %w", err)
		}
	}
	return nil
}

// Validate checks required fields and cross-field consistency
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d]: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true
		if b.BaseURL == "" {
			return fmt.Errorf("backend %q: base_url is required", b.Name)
		}
		family, err := ParseFamily(b.Family)
		if err != nil {
			return fmt.Errorf("backend %q: %w", b.Name, err)
		}
		switch family {
		case annotation.FamilyA:
			if b.Version != 1 {
				return fmt.Errorf("backend %q: family a supports only version 1", b.Name)
			}
		case annotation.FamilyB:
			if b.Version != 2 && b.Version != 3 {
				return fmt.Errorf("backend %q: family b supports versions 2 and 3", b.Name)
			}
		}
	}
	if c.HTTP.RetryCap < 0 {
		return fmt.Errorf("http.retry_cap must not be negative")
	}
	return nil
}

// ParseFamily maps a config family tag to its backend family
func ParseFamily(s string) (annotation.Family, error) {
	switch s {
	case "a":
		return annotation.FamilyA, nil
	case "b":
		return annotation.FamilyB, nil
	default:
		return annotation.FamilyA, fmt.Errorf("unknown backend family %q", s)
	}
}

// Backend returns the backend config with the given name
func (c *Config) Backend(name string) (BackendConfig, bool) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}
