package config

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Inbox    string `yaml:"inbox" toml:"inbox"`
	Debounce string `yaml:"debounce" toml:"debounce"`
}

// ConvertConfig configures step 3.
type ConvertConfig struct {
	// Sheets converted in parallel.
	Workers int `yaml:"workers" toml:"workers"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"` // relative to the app dir
}
