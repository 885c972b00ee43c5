package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the application directory.
const DefaultFileName = "config.yaml"

// Config holds all xlsconv configuration.
type Config struct {
	// AppDir holds logs, results and the history database.
	// Empty means the directory of the running executable.
	AppDir string `yaml:"app_dir" toml:"app_dir"`

	// ResultsDir receives one sub-directory per OrderID. Relative paths
	// are resolved against AppDir.
	ResultsDir string `yaml:"results_dir" toml:"results_dir"`

	// Step 1 column layout
	Columns ColumnsConfig `yaml:"columns" toml:"columns"`

	// Step 2 nesting job layout
	Nesting NestingConfig `yaml:"nesting" toml:"nesting"`

	// Step 3 output
	Convert ConvertConfig `yaml:"convert" toml:"convert"`

	// Release checks and self-update
	Update UpdateConfig `yaml:"update" toml:"update"`

	// Inbox watcher
	Watch WatchConfig `yaml:"watch" toml:"watch"`

	// Run history database
	History HistoryConfig `yaml:"history" toml:"history"`

	// File logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ResultsDir: "results",
		Columns:    DefaultColumnsConfig(),
		Nesting:    DefaultNestingConfig(),
		Convert:    ConvertConfig{Workers: 4},
		Update:     DefaultUpdateConfig(),
		Watch: WatchConfig{
			Debounce: "2s",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "history.db",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
	}
}

// Load loads configuration from a YAML or TOML file. A missing file yields
// the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cfg.decode(path, data); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	if isTOML(path) {
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Save saves configuration to path, as TOML when the extension is .toml
// and YAML otherwise.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("XLSCONV_APP_DIR"); dir != "" {
		c.AppDir = dir
	}
	if dir := os.Getenv("XLSCONV_RESULTS_DIR"); dir != "" {
		c.ResultsDir = dir
	}
	if base := os.Getenv("XLSCONV_DRAWING_BASE"); base != "" {
		c.Nesting.DrawingBase = base
	}
	if repo := os.Getenv("XLSCONV_UPDATE_REPO"); repo != "" {
		c.Update.Repo = repo
	}

	// Token: tool-specific first, then the generic GitHub variable
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && c.Update.Token == "" {
		c.Update.Token = token
	}
	if token := os.Getenv("XLSCONV_GITHUB_TOKEN"); token != "" {
		c.Update.Token = token
	}
}

// ResolveAppDir returns the absolute application directory.
func (c *Config) ResolveAppDir() (string, error) {
	dir := c.AppDir
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		dir = filepath.Dir(exe)
	}
	return expandPath(dir, "")
}

// ResolveResultsDir returns the absolute results directory.
func (c *Config) ResolveResultsDir() (string, error) {
	app, err := c.ResolveAppDir()
	if err != nil {
		return "", err
	}
	return expandPath(c.ResultsDir, app)
}

// LogsDir returns <app>/logs.
func (c *Config) LogsDir() (string, error) {
	app, err := c.ResolveAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(app, "logs"), nil
}

// HistoryPath returns the absolute path of the history database.
func (c *Config) HistoryPath() (string, error) {
	app, err := c.ResolveAppDir()
	if err != nil {
		return "", err
	}
	return expandPath(c.History.Path, app)
}

// expandPath expands "~" and makes relative paths absolute against base
// (or the working directory when base is empty).
func expandPath(p, base string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	if !filepath.IsAbs(expanded) && base != "" {
		expanded = filepath.Join(base, expanded)
	}
	return filepath.Abs(expanded)
}

// DefaultPath returns the config file path inside the application directory.
func (c *Config) DefaultPath() (string, error) {
	app, err := c.ResolveAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(app, DefaultFileName), nil
}

// GetWatchDebounce returns the watcher debounce window.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Columns.Validate(); err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	if err := c.Nesting.Validate(); err != nil {
		return fmt.Errorf("nesting: %w", err)
	}
	if err := c.Update.Validate(); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if c.Convert.Workers < 1 {
		return fmt.Errorf("convert: workers must be >= 1")
	}
	return nil
}
