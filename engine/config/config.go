package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type Window struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type Renderer struct {
	// Number of frame slots the orchestrator cycles through.
	FramesInFlight uint8 `toml:"frames_in_flight"`
	// RGBA clear color applied when the on-screen pass begins.
	ClearColor [4]float32 `toml:"clear_color"`
	VSync      bool       `toml:"vsync"`
	// Enables GPU timestamp queries when the device supports them.
	Timestamps bool `toml:"timestamps"`
}

type Assets struct {
	Root string `toml:"root"`
	// Watch loaded asset paths for on-disk modification.
	Watch bool `toml:"watch"`
}

type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Assets   Assets   `toml:"assets"`
}

func Default() *Config {
	return &Config{
		Window: Window{
			Title:  "Vesta",
			Width:  1280,
			Height: 720,
		},
		Renderer: Renderer{
			FramesInFlight: 2,
			ClearColor:     [4]float32{0.02, 0.02, 0.04, 1.0},
			VSync:          true,
			Timestamps:     true,
		},
		Assets: Assets{
			Root:  "assets",
			Watch: true,
		},
	}
}

// Load reads a TOML config file on top of the defaults. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if cfg.Renderer.FramesInFlight == 0 {
		return nil, fmt.Errorf("config: frames_in_flight must be at least 1")
	}

	return cfg, nil
}
