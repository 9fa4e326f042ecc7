package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vesta.toml")
	content := `
[window]
title = "demo"
width = 800
height = 600

[renderer]
frames_in_flight = 3
vsync = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Window.Title)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, uint8(3), cfg.Renderer.FramesInFlight)
	assert.False(t, cfg.Renderer.VSync)
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Renderer.ClearColor, cfg.Renderer.ClearColor)
	assert.Equal(t, Default().Assets.Root, cfg.Assets.Root)
}

func TestLoadRejectsZeroFramesInFlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vesta.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nframes_in_flight = 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vesta.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window\ntitle ="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
