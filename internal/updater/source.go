package updater

import (
	"fmt"

	"xlsconv/internal/config"
)

// NewSource builds the release source selected in cfg.
func NewSource(cfg config.UpdateConfig) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	switch cfg.Source {
	case config.SourceGit:
		return NewGitTagSource(cfg.GitRemote), nil
	default:
		return NewGitHubSource(GitHubConfig{
			Repo:              cfg.Repo,
			APIURL:            cfg.APIURL,
			Token:             cfg.Token,
			UserAgent:         "xlsconv/" + Current(),
			Timeout:           cfg.GetTimeout(),
			RequestsPerMinute: cfg.RequestsPerMinute,
			Retries:           cfg.Retries,
		}), nil
	}
}

// FromConfig creates an updater for the running build.
func FromConfig(cfg config.UpdateConfig, opts ...Option) (*Updater, error) {
	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithPrerelease(cfg.IncludePrerelease)}, opts...)
	return New(Current(), src, opts...)
}
