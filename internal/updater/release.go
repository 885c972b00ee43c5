package updater

import (
	"context"
	"sort"
	"time"
)

// Asset is a downloadable release file.
type Asset struct {
	Name string
	URL  string
	// APIURL downloads the asset through the API, needed for private
	// repositories.
	APIURL string
	Size   int64
}

// Release is one published version.
type Release struct {
	Version     Version
	Tag         string
	Name        string
	Notes       string
	URL         string
	PublishedAt time.Time
	Prerelease  bool
	Assets      []Asset
}

// Source lists the releases available from a host.
type Source interface {
	Name() string
	Releases(ctx context.Context) ([]Release, error)
}

// Latest returns the newest release. Pre-releases are skipped unless
// includePrerelease is set.
func Latest(releases []Release, includePrerelease bool) (Release, bool) {
	candidates := make([]Release, 0, len(releases))
	for _, r := range releases {
		if r.Version.IsZero() {
			continue
		}
		if !includePrerelease && (r.Prerelease || r.Version.Prerelease()) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return Release{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Version.Newer(candidates[j].Version)
	})
	return candidates[0], true
}
