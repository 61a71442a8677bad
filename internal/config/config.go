// Package config provides configuration file parsing for the PR watch tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kyleking/gh-prwatch/internal/rule"
	"github.com/kyleking/gh-prwatch/internal/watcher"
)

// ConfigFilename is the default name for the prwatch configuration file.
const ConfigFilename = ".github/prwatch.yml"

// Defaults applied by LoadFrom.
const (
	DefaultInterval        = 30 * time.Second
	DefaultRequestsPerHour = 5000
)

// WatchConfig represents the prwatch configuration file.
type WatchConfig struct {
	Version int      `yaml:"version"`
	Repos   []string `yaml:"repos"`
	// Interval is the poll period.
	Interval time.Duration `yaml:"interval"`
	// MyPRs also tracks PRs authored by the user outside the repo list.
	MyPRs bool `yaml:"my_prs"`
	// StalePRThreshold evicts snapshots unseen for this long; zero disables.
	StalePRThreshold time.Duration `yaml:"stale_pr_threshold"`
	// RequestsPerHour sizes the API throttle; zero disables throttling.
	RequestsPerHour *int `yaml:"requests_per_hour"`
	// Rules derive each PR's status; empty means no classification.
	Rules []rule.Spec `yaml:"rules"`
}

// Load loads the configuration from the default location under repoRoot.
func Load(repoRoot string) (*WatchConfig, error) {
	return LoadFrom(filepath.Join(repoRoot, ConfigFilename))
}

// LoadFrom loads the configuration from a specific path. A missing file
// yields (nil, nil) so callers can fall back to flags.
func LoadFrom(path string) (*WatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config WatchConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", config.Version)
	}

	if len(config.Repos) == 0 && !config.MyPRs {
		return nil, fmt.Errorf("config must list repos or enable my_prs")
	}

	for _, repo := range config.Repos {
		if _, err := watcher.ParseRepoRef(repo); err != nil {
			return nil, err
		}
	}

	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	if config.RequestsPerHour == nil {
		defaultBudget := DefaultRequestsPerHour
		config.RequestsPerHour = &defaultBudget
	}

	if len(config.Rules) > 0 {
		if _, err := rule.Compile(config.Rules); err != nil {
			return nil, err
		}
	}

	return &config, nil
}
