// Package updater checks a release host for newer versions of xlsconv and
// replaces the running executable with the published build.
package updater

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"xlsconv/internal/logging"
)

var (
	// ErrNoUpdate is returned by Apply when the release is not newer.
	ErrNoUpdate = errors.New("already up to date")
	// ErrNoAsset is returned when no asset matches this OS and architecture.
	ErrNoAsset = errors.New("no release asset for this platform")
	// ErrChecksumMismatch is returned when a download does not match the
	// published SHA-256.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Downloader is implemented by sources that can fetch their own assets.
type Downloader interface {
	Download(ctx context.Context, a Asset, w io.Writer) error
}

// Updater compares the running version against a source.
type Updater struct {
	current           Version
	source            Source
	includePrerelease bool
	exePath           string
	goos, goarch      string
	client            *http.Client
	start             func(exe string, args []string) error
}

// Option configures an Updater.
type Option func(*Updater)

// WithPrerelease lets pre-releases count as updates.
func WithPrerelease(on bool) Option {
	return func(u *Updater) { u.includePrerelease = on }
}

// WithExecutable overrides the path of the binary Apply replaces.
func WithExecutable(path string) Option {
	return func(u *Updater) { u.exePath = path }
}

// WithPlatform overrides the OS and architecture used to pick assets.
func WithPlatform(goos, goarch string) Option {
	return func(u *Updater) { u.goos, u.goarch = goos, goarch }
}

// WithHTTPClient sets the client used for sources that cannot download.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Updater) { u.client = c }
}

// New creates an updater for the running version current.
func New(current string, source Source, opts ...Option) (*Updater, error) {
	v, err := ParseVersion(current)
	if err != nil {
		return nil, fmt.Errorf("current version: %w", err)
	}
	u := &Updater{
		current: v,
		source:  source,
		goos:    runtime.GOOS,
		goarch:  runtime.GOARCH,
		client:  http.DefaultClient,
		start:   startProcess,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Current returns the running version.
func (u *Updater) Current() Version {
	return u.current
}

// Source returns the release source.
func (u *Updater) Source() Source {
	return u.source
}

// Check reports whether the source has a release newer than the running
// version. latest is the newest eligible release even when it is not
// newer.
func (u *Updater) Check(ctx context.Context) (bool, Release, error) {
	releases, err := u.source.Releases(ctx)
	if err != nil {
		logging.UpdaterError("Update check against %s failed: %v", u.source.Name(), err)
		logging.Audit(logging.AuditEvent{Type: logging.AuditUpdateCheck, Target: u.source.Name(), Err: err})
		return false, Release{}, err
	}

	latest, ok := Latest(releases, u.includePrerelease)
	if !ok {
		logging.Updater("No releases published on %s", u.source.Name())
		return false, Release{}, nil
	}

	has := latest.Version.Newer(u.current)
	logging.Updater("Current %s, latest %s, update: %v", u.current, latest.Version, has)
	logging.Audit(logging.AuditEvent{Type: logging.AuditUpdateCheck, Target: latest.Version.String(), Success: true,
		Fields: map[string]interface{}{"current": u.current.String(), "update": has}})
	return has, latest, nil
}

var platformAliases = map[string][]string{
	"windows": {"windows", "win64", "win32", "win"},
	"darwin":  {"darwin", "macos", "mac", "osx"},
	"linux":   {"linux"},
	"amd64":   {"amd64", "x86_64", "x64"},
	"arm64":   {"arm64", "aarch64"},
	"386":     {"386", "i386"},
}

func matchesAny(name string, aliases []string) bool {
	for _, a := range aliases {
		if strings.Contains(name, a) {
			return true
		}
	}
	return false
}

func isChecksumAsset(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".sha256") ||
		strings.Contains(lower, "checksums") ||
		strings.Contains(lower, "sha256sums")
}

// SelectAsset picks the executable for goos/goarch. Windows assets must
// end in .exe.
func SelectAsset(assets []Asset, goos, goarch string) (Asset, bool) {
	osAliases := platformAliases[goos]
	if osAliases == nil {
		osAliases = []string{goos}
	}
	archAliases := platformAliases[goarch]
	if archAliases == nil {
		archAliases = []string{goarch}
	}

	var osOnly []Asset
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if isChecksumAsset(name) {
			continue
		}
		if goos == "windows" && !strings.HasSuffix(name, ".exe") {
			continue
		}
		if !matchesAny(name, osAliases) {
			continue
		}
		if matchesAny(name, archAliases) {
			return a, true
		}
		osOnly = append(osOnly, a)
	}
	// A single build for the OS is taken to be universal.
	if len(osOnly) == 1 {
		return osOnly[0], true
	}
	return Asset{}, false
}

// checksumFor finds the published SHA-256 of asset, "" when none is
// published.
func (u *Updater) checksumFor(ctx context.Context, rel Release, asset Asset) (string, error) {
	for _, a := range rel.Assets {
		if !isChecksumAsset(a.Name) {
			continue
		}
		single := strings.EqualFold(a.Name, asset.Name+".sha256")
		if !single && strings.HasSuffix(strings.ToLower(a.Name), ".sha256") {
			continue
		}

		var sb strings.Builder
		if err := u.download(ctx, a, &sb); err != nil {
			return "", fmt.Errorf("download %s: %w", a.Name, err)
		}
		if sum := parseChecksums(sb.String(), asset.Name, single); sum != "" {
			return sum, nil
		}
	}
	return "", nil
}

// parseChecksums reads sha256sum output. A single-file checksum may omit
// the name.
func parseChecksums(text, name string, single bool) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		sum := strings.ToLower(fields[0])
		if len(sum) != sha256.Size*2 {
			continue
		}
		if len(fields) == 1 && single {
			return sum
		}
		if len(fields) >= 2 && strings.TrimPrefix(fields[len(fields)-1], "*") == name {
			return sum
		}
	}
	return ""
}

func (u *Updater) download(ctx context.Context, a Asset, w io.Writer) error {
	if d, ok := u.source.(Downloader); ok {
		return d.Download(ctx, a, w)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Executable returns the path of the running binary with symlinks
// resolved. Apply writes the backup next to this path.
func Executable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exe)
}

// Executable returns the binary Apply replaces.
func (u *Updater) Executable() (string, error) {
	if u.exePath != "" {
		return u.exePath, nil
	}
	return Executable()
}

// Apply installs rel over the running executable and returns its path.
// The previous binary is kept as <exe>.old and restored if the swap
// fails.
func (u *Updater) Apply(ctx context.Context, rel Release) (string, error) {
	if !rel.Version.Newer(u.current) {
		return "", fmt.Errorf("%s: %w", rel.Version, ErrNoUpdate)
	}
	asset, ok := SelectAsset(rel.Assets, u.goos, u.goarch)
	if !ok {
		return "", fmt.Errorf("%s %s/%s: %w", rel.Version, u.goos, u.goarch, ErrNoAsset)
	}
	exe, err := u.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	logging.Updater("Applying %s from %s to %s", rel.Version, asset.Name, exe)
	err = u.apply(ctx, rel, asset, exe)
	logging.Audit(logging.AuditEvent{Type: logging.AuditUpdateApply, Target: rel.Version.String(), Success: err == nil, Err: err,
		Fields: map[string]interface{}{"asset": asset.Name, "exe": exe}})
	if err != nil {
		logging.UpdaterError("Update to %s failed: %v", rel.Version, err)
		return "", err
	}
	logging.Updater("Updated to %s", rel.Version)
	return exe, nil
}

func (u *Updater) apply(ctx context.Context, rel Release, asset Asset, exe string) error {
	want, err := u.checksumFor(ctx, rel, asset)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(exe), "."+filepath.Base(exe)+".new-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := sha256.New()
	if err := u.download(ctx, asset, io.MultiWriter(tmp, h)); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", asset.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if want != "" && got != want {
		return fmt.Errorf("%s: got %s, want %s: %w", asset.Name, got, want, ErrChecksumMismatch)
	}
	if want == "" {
		logging.UpdaterWarn("No checksum published for %s", asset.Name)
	}

	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	return swap(exe, tmpPath)
}

// BackupPath returns where Apply keeps the previous binary.
func BackupPath(exe string) string {
	return exe + ".old"
}

// swap moves exe to its backup and next into place, restoring the backup
// when the second rename fails.
func swap(exe, next string) error {
	backup := BackupPath(exe)
	_ = os.Remove(backup)

	if err := os.Rename(exe, backup); err != nil {
		return fmt.Errorf("back up %s: %w", filepath.Base(exe), err)
	}
	if err := os.Rename(next, exe); err != nil {
		if rerr := os.Rename(backup, exe); rerr != nil {
			return fmt.Errorf("install failed (%v) and rollback failed: %w", err, rerr)
		}
		return fmt.Errorf("install new binary (rolled back): %w", err)
	}
	return nil
}

// Rollback restores the binary saved by the last Apply.
func Rollback(exe string) error {
	backup := BackupPath(exe)
	if _, err := os.Stat(backup); err != nil {
		return fmt.Errorf("no backup to restore: %w", err)
	}
	if err := os.Rename(backup, exe); err != nil {
		return fmt.Errorf("restore %s: %w", filepath.Base(exe), err)
	}
	logging.Updater("Rolled back %s", exe)
	return nil
}

func startProcess(exe string, args []string) error {
	cmd := exec.Command(exe, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// Restart starts the updated executable with args. The caller exits
// afterwards.
func (u *Updater) Restart(args ...string) error {
	exe, err := u.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	logging.Updater("Restarting %s", exe)
	if err := u.start(exe, args); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return nil
}
