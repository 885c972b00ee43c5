package config

// LoggingConfig configures file logging under <app>/logs.
type LoggingConfig struct {
	Enabled    bool            `yaml:"enabled" toml:"enabled"`       // false = no log files
	Level      string          `yaml:"level" toml:"level"`           // debug, info, warn, error
	Format     string          `yaml:"format" toml:"format"`         // json, text
	Categories map[string]bool `yaml:"categories" toml:"categories"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories missing from the map are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.Enabled {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
