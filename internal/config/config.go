// Package config handles actionstatus configuration parsing and location resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "ACTIONSTATUS_CONFIG"

// ErrNotFound is returned by FindConfig when no config file exists in the
// standard locations.
var ErrNotFound = errors.New("no config file found in standard locations")

// Feed identifies the GitHub repository whose releases are the update feed.
type Feed struct {
	Owner string `yaml:"owner" toml:"owner" json:"owner"`
	Repo  string `yaml:"repo" toml:"repo" json:"repo"`
	Token string `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty"` // usually ${GITHUB_TOKEN}
}

// Updates holds the answers used when the updater asks for permission.
type Updates struct {
	AutomaticChecks   bool `yaml:"automatic_checks" toml:"automatic_checks" json:"automatic_checks"`
	SendSystemProfile bool `yaml:"send_system_profile" toml:"send_system_profile" json:"send_system_profile"`
}

// Config is the parsed configuration file.
type Config struct {
	AppName         string   `yaml:"app_name" toml:"app_name" json:"app_name"`
	StatusFile      string   `yaml:"status_file,omitempty" toml:"status_file,omitempty" json:"status_file,omitempty"`
	Repos           []string `yaml:"repos,omitempty" toml:"repos,omitempty" json:"repos,omitempty"` // owner/repo, polled with gh
	RefreshInterval string   `yaml:"refresh_interval,omitempty" toml:"refresh_interval,omitempty" json:"refresh_interval,omitempty"`
	LogLevel        string   `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFormat       string   `yaml:"log_format" toml:"log_format" json:"log_format"`
	Feed            Feed     `yaml:"feed" toml:"feed" json:"feed"`
	Updates         Updates  `yaml:"updates" toml:"updates" json:"updates"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		AppName:         "ActionStatus",
		RefreshInterval: "5m",
		LogLevel:        "info",
		LogFormat:       "text",
		Feed: Feed{
			Owner: "adamancini",
			Repo:  "actionstatus",
		},
	}
}

// Refresh returns the parsed refresh interval, falling back to five minutes.
func (c *Config) Refresh() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// FindConfig searches for a config file in the standard locations.
// Returns the path to the first file found, or ErrNotFound.
func FindConfig(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	searchPaths := []string{
		filepath.Join(xdgConfig, "actionstatus"),
		filepath.Join(home, ".actionstatus"),
	}

	fileNames := []string{
		"config.yaml",
		"config.yml",
		"config.toml",
		"config.json",
		"config",
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", ErrNotFound
}

// Load reads, parses and validates the config file at path. Unset fields
// keep their Default values.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := DetectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	if cfg.StatusFile != "" && !filepath.IsAbs(cfg.StatusFile) {
		cfg.StatusFile = filepath.Join(filepath.Dir(path), cfg.StatusFile)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
