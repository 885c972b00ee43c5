package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"xlsconv/internal/logging"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// HTTPError is a non-2xx answer from the release host.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	// Transport errors
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// GitHubConfig configures a GitHubSource.
type GitHubConfig struct {
	Repo              string // owner/name
	APIURL            string
	Token             string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerMinute int
	Retries           int
	// Backoff is the first retry delay, doubled on every attempt.
	Backoff time.Duration
}

// GitHubSource reads releases from the GitHub REST API.
type GitHubSource struct {
	config      GitHubConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewGitHubSource creates a rate limited, retrying release source.
func NewGitHubSource(cfg GitHubConfig) *GitHubSource {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "xlsconv-updater"
	}

	return &GitHubSource{
		config:      cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 2),
	}
}

// Name implements Source.
func (s *GitHubSource) Name() string {
	return "github:" + s.config.Repo
}

type ghAsset struct {
	Name               string `json:"name"`
	URL                string `json:"url"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

type ghRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []ghAsset `json:"assets"`
}

// Releases implements Source. Drafts and tags that are not semantic
// versions are left out.
func (s *GitHubSource) Releases(ctx context.Context) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=50", strings.TrimSuffix(s.config.APIURL, "/"), s.config.Repo)

	var raw []ghRelease
	err := s.do(ctx, url, "application/vnd.github+json", func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&raw)
	})
	if err != nil {
		return nil, fmt.Errorf("list releases of %s: %w", s.config.Repo, err)
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		if r.Draft {
			continue
		}
		v, err := ParseVersion(r.TagName)
		if err != nil {
			logging.UpdaterDebug("Skipping release tag %q: %v", r.TagName, err)
			continue
		}
		rel := Release{
			Version:     v,
			Tag:         r.TagName,
			Name:        r.Name,
			Notes:       r.Body,
			URL:         r.HTMLURL,
			PublishedAt: r.PublishedAt,
			Prerelease:  r.Prerelease,
		}
		for _, a := range r.Assets {
			rel.Assets = append(rel.Assets, Asset{Name: a.Name, URL: a.BrowserDownloadURL, APIURL: a.URL, Size: a.Size})
		}
		releases = append(releases, rel)
	}
	logging.Updater("%s: %d releases", s.Name(), len(releases))
	return releases, nil
}

// Download streams an asset into w.
func (s *GitHubSource) Download(ctx context.Context, a Asset, w io.Writer) error {
	url, accept := a.URL, "application/octet-stream"
	if s.config.Token != "" && a.APIURL != "" {
		url = a.APIURL
	}
	return s.do(ctx, url, accept, func(body io.Reader) error {
		_, err := io.Copy(w, body)
		return err
	})
}

// do runs a GET with rate limiting and retries, handing a 2xx body to
// read.
func (s *GitHubSource) do(ctx context.Context, url, accept string, read func(io.Reader) error) error {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.Retries; attempt++ {
		err := s.doOnce(ctx, url, accept, read)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if attempt == s.config.Retries {
			break
		}

		backoff := s.config.Backoff << uint(attempt)
		logging.UpdaterWarn("Request to %s failed (attempt %d): %v, retrying in %s", url, attempt+1, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *GitHubSource) doOnce(ctx context.Context, url, accept string, read func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return read(resp.Body)
}
