package updater

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"xlsconv/internal/logging"
)

// GitTagSource lists version tags of a git remote. Its releases carry no
// assets, so it can report updates but not install them.
type GitTagSource struct {
	Remote string
	// run executes git; replaced in tests.
	run func(ctx context.Context, args ...string) ([]byte, error)
}

// NewGitTagSource creates a source for remote (a URL or a local path).
func NewGitTagSource(remote string) *GitTagSource {
	return &GitTagSource{Remote: remote, run: runGit}
}

func runGit(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Name implements Source.
func (s *GitTagSource) Name() string {
	return "git:" + s.Remote
}

// Releases implements Source.
func (s *GitTagSource) Releases(ctx context.Context) ([]Release, error) {
	out, err := s.run(ctx, "ls-remote", "--tags", "--refs", s.Remote)
	if err != nil {
		return nil, err
	}
	releases := parseLsRemote(out)
	logging.Updater("%s: %d version tags", s.Name(), len(releases))
	return releases, nil
}

// parseLsRemote reads "<sha>\trefs/tags/<tag>" lines.
func parseLsRemote(out []byte) []Release {
	var releases []Release
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 || !strings.HasPrefix(fields[1], "refs/tags/") {
			continue
		}
		tag := strings.TrimSuffix(strings.TrimPrefix(fields[1], "refs/tags/"), "^{}")
		v, err := ParseVersion(tag)
		if err != nil {
			continue
		}
		releases = append(releases, Release{
			Version:    v,
			Tag:        tag,
			Name:       tag,
			Prerelease: v.Prerelease(),
		})
	}
	return releases
}
