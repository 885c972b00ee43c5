package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "results", cfg.ResultsDir)
	assert.Equal(t, []string{"D", "E"}, cfg.Columns.Required)
	assert.Equal(t, "I", cfg.Columns.Key)
	assert.Equal(t, "J", cfg.Columns.Sum)
	assert.Equal(t, []string{"1mm", "1.5mm", "2mm", "3mm"}, cfg.Nesting.Thicknesses)
	assert.Equal(t, "E5_TOPAZ", cfg.Nesting.Machines["1.5mm"])
	assert.Equal(t, SourceGitHub, cfg.Update.Source)
	assert.True(t, cfg.Logging.Enabled)
	require.NoError(t, cfg.Validate())
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestConfig_SaveLoadYAML(t *testing.T) {
	t.Setenv("XLSCONV_UPDATE_REPO", "")
	t.Setenv("XLSCONV_RESULTS_DIR", "")

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.ResultsDir = "out"
	cfg.Update.Repo = "acme/tool"
	cfg.Nesting.Machines["4mm"] = "TRUMPF"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", loaded.ResultsDir)
	assert.Equal(t, "acme/tool", loaded.Update.Repo)
	assert.Equal(t, "TRUMPF", loaded.Nesting.Machines["4mm"])
	assert.Equal(t, "A5-25", loaded.Nesting.Machines["1mm"])
}

func TestConfig_SaveLoadTOML(t *testing.T) {
	t.Setenv("XLSCONV_UPDATE_REPO", "")

	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Update.Source = SourceGit
	cfg.Update.GitRemote = "https://git.example.com/tool.git"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[update]")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceGit, loaded.Update.Source)
	assert.Equal(t, "https://git.example.com/tool.git", loaded.Update.GitRemote)
	require.NoError(t, loaded.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Columns, cfg.Columns)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns: [broken"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

// =============================================================================
// PATHS
// =============================================================================

func TestResolvePaths(t *testing.T) {
	app := t.TempDir()
	cfg := DefaultConfig()
	cfg.AppDir = app

	dir, err := cfg.ResolveAppDir()
	require.NoError(t, err)
	assert.Equal(t, app, dir)

	results, err := cfg.ResolveResultsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(app, "results"), results)

	logs, err := cfg.LogsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(app, "logs"), logs)

	db, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(app, "history.db"), db)

	abs := filepath.Join(t.TempDir(), "elsewhere")
	cfg.ResultsDir = abs
	results, err = cfg.ResolveResultsDir()
	require.NoError(t, err)
	assert.Equal(t, abs, results)
}

func TestResolveAppDir_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	cfg := DefaultConfig()
	cfg.AppDir = "~/xlsconv"
	dir, err := cfg.ResolveAppDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "xlsconv"), dir)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Columns.Key = "1"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Update.Source = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Update.Repo = "no-slash"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Update.Source = SourceGit
	assert.Error(t, cfg.Validate(), "git source needs a remote")

	cfg = DefaultConfig()
	cfg.Convert.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Nesting.UnmatchedSheet = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotZero(t, cfg.GetWatchDebounce())
	assert.NotZero(t, cfg.Update.GetTimeout())

	cfg.Watch.Debounce = "garbage"
	assert.Equal(t, DefaultConfig().GetWatchDebounce(), cfg.GetWatchDebounce())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{Enabled: false}
	assert.False(t, c.IsCategoryEnabled("pipeline"))

	c.Enabled = true
	assert.True(t, c.IsCategoryEnabled("pipeline"))

	c.Categories = map[string]bool{"pipeline": false}
	assert.False(t, c.IsCategoryEnabled("pipeline"))
	assert.True(t, c.IsCategoryEnabled("updater"))
}
