package config

import (
	"fmt"
	"strings"
	"time"
)

// Release sources understood by the updater.
const (
	SourceGitHub = "github"
	SourceGit    = "git"
)

// UpdateConfig configures release checks.
type UpdateConfig struct {
	Source            string `yaml:"source" toml:"source"`                 // github, git
	Repo              string `yaml:"repo" toml:"repo"`                     // owner/name
	APIURL            string `yaml:"api_url" toml:"api_url"`               // GitHub API base
	Token             string `yaml:"token,omitempty" toml:"token,omitempty"`
	GitRemote         string `yaml:"git_remote" toml:"git_remote"`         // remote URL for the git source
	CheckOnStart      bool   `yaml:"check_on_start" toml:"check_on_start"` // interactive shell only
	IncludePrerelease bool   `yaml:"include_prerelease" toml:"include_prerelease"`
	Timeout           string `yaml:"timeout" toml:"timeout"`
	RequestsPerMinute int    `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Retries           int    `yaml:"retries" toml:"retries"`
}

// DefaultUpdateConfig returns the default release settings.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		Source:            SourceGitHub,
		Repo:              "symmppllee/excel-automation-tool",
		APIURL:            "https://api.github.com",
		CheckOnStart:      true,
		Timeout:           "30s",
		RequestsPerMinute: 30,
		Retries:           3,
	}
}

// GetTimeout returns the per-check timeout.
func (c UpdateConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Validate checks the source selection.
func (c UpdateConfig) Validate() error {
	switch c.Source {
	case SourceGitHub:
		if strings.Count(c.Repo, "/") != 1 {
			return fmt.Errorf("repo must be owner/name, got %q", c.Repo)
		}
	case SourceGit:
		if c.GitRemote == "" {
			return fmt.Errorf("git_remote required for source %q", SourceGit)
		}
	default:
		return fmt.Errorf("invalid source: %s (valid: %s, %s)", c.Source, SourceGitHub, SourceGit)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be >= 1")
	}
	return nil
}
