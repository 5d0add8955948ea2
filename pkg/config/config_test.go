package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgJSON := `{
		"content": {
			"enabled": true,
			"source_url": "https://content.example.com/catalog.json",
			"check_interval_hours": 6,
			"timeout_seconds": 30
		},
		"logging": {
			"level": "DEBUG"
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.json"), []byte(cfgJSON), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, cfg.Content.Enabled)
	assert.Equal(t, "https://content.example.com/catalog.json", cfg.Content.SourceURL)
	assert.Equal(t, 6*time.Hour, cfg.Content.Interval())
	assert.Equal(t, 30*time.Second, cfg.Content.Timeout())
	assert.Equal(t, "DEBUG", cfg.Logging.Level)

	// Defaults fill what the file omits.
	assert.Equal(t, 10*time.Second, cfg.Content.QuickTimeout())
	assert.Equal(t, "content", cfg.Content.Dir)
	assert.Equal(t, 720, cfg.Content.MaxResolution)
}

func TestLoadMissingFileDisablesSync(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, cfg.Content.Enabled)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.json"), []byte("{not json"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestDurationFallbacks(t *testing.T) {
	c := ContentConfig{}
	assert.Equal(t, 24*time.Hour, c.Interval())
	assert.Equal(t, 60*time.Second, c.Timeout())
	assert.Equal(t, 10*time.Second, c.QuickTimeout())
}
