package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Paths(t *testing.T) {
	t.Setenv("XLSCONV_APP_DIR", "/opt/xlsconv")
	t.Setenv("XLSCONV_RESULTS_DIR", "/srv/results")
	t.Setenv("XLSCONV_DRAWING_BASE", `\\nas\parts`)

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/opt/xlsconv", cfg.AppDir)
	assert.Equal(t, "/srv/results", cfg.ResultsDir)
	assert.Equal(t, `\\nas\parts`, cfg.Nesting.DrawingBase)
}

func TestEnvOverrides_Update(t *testing.T) {
	t.Run("repo override", func(t *testing.T) {
		t.Setenv("XLSCONV_UPDATE_REPO", "acme/xlsconv")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "acme/xlsconv", cfg.Update.Repo)
	})

	t.Run("GITHUB_TOKEN fills an empty token", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "gh")
		t.Setenv("XLSCONV_GITHUB_TOKEN", "")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gh", cfg.Update.Token)
	})

	t.Run("GITHUB_TOKEN does not replace a configured token", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "gh")
		t.Setenv("XLSCONV_GITHUB_TOKEN", "")
		cfg := DefaultConfig()
		cfg.Update.Token = "from-file"
		cfg.applyEnvOverrides()
		assert.Equal(t, "from-file", cfg.Update.Token)
	})

	t.Run("Precedence: XLSCONV_GITHUB_TOKEN wins", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "gh")
		t.Setenv("XLSCONV_GITHUB_TOKEN", "tool")
		cfg := DefaultConfig()
		cfg.Update.Token = "from-file"
		cfg.applyEnvOverrides()
		assert.Equal(t, "tool", cfg.Update.Token)
	})
}
