package engine

import (
	"path/filepath"

	"github.com/vesta-engine/vesta/engine/assets"
	"github.com/vesta-engine/vesta/engine/config"
	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/platform"
	"github.com/vesta-engine/vesta/engine/renderer"
	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// Engine wires the window, the graphics backend, the frame loop and the
// asset registry together and drives them from a single thread.
type Engine struct {
	game     *Game
	cfg      *config.Config
	platform *platform.Platform
	backend  *vulkan.Backend
	renderer *renderer.Renderer
	registry *assets.Registry

	clock     *core.Clock
	isRunning bool

	// Set while the framebuffer has zero area (minimized window); frames
	// are skipped until it becomes drawable again.
	isSuspended bool
}

func New(g *Game) (*Engine, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		game:     g,
		cfg:      cfg,
		platform: platform.New(),
		clock:    core.NewClock(),
	}, nil
}

func (e *Engine) Initialize() error {
	window := e.cfg.Window
	if err := e.platform.Startup(window.Title, window.Width, window.Height); err != nil {
		return err
	}

	e.backend = vulkan.NewBackend(e.platform)
	if err := e.backend.Initialize(window.Title, window.Width, window.Height); err != nil {
		return err
	}

	e.renderer = renderer.New(e.backend.Context, renderer.Options{
		FramesInFlight: e.cfg.Renderer.FramesInFlight,
		ClearColor:     e.cfg.Renderer.ClearColor,
		VSync:          e.cfg.Renderer.VSync,
		Timestamps:     e.cfg.Renderer.Timestamps,
	})

	// The swapchain clamps to the surface's real pixel size, which can
	// differ from the requested window size on high-DPI displays.
	fbWidth, fbHeight := e.platform.FramebufferSize()
	if err := e.renderer.Initialize(fbWidth, fbHeight); err != nil {
		return err
	}

	e.registry = assets.NewRegistry(e.backend.Context)
	if e.cfg.Assets.Watch {
		if err := e.registry.EnableWatch(); err != nil {
			core.LogWarn("asset watching unavailable: %s", err)
		}
	}

	e.platform.SetResizeCallback(e.onResized)

	if e.game.FnSetup != nil {
		if err := e.game.FnSetup(e); err != nil {
			return err
		}
	}

	e.isRunning = true
	return nil
}

// Run drives the frame loop until the window closes or the game fails.
func (e *Engine) Run() error {
	e.clock.Start()
	e.clock.Update()

	timer := frameTimer{last: e.clock.Elapsed()}
	for e.isRunning {
		if e.isSuspended {
			// Block until an event arrives rather than spinning on poll.
			e.platform.WaitMessages()
		} else {
			e.platform.PumpMessages()
		}
		if e.platform.ShouldClose() {
			e.isRunning = false
			break
		}

		if e.isSuspended {
			timer.suspend()
			continue
		}

		e.clock.Update()
		delta := timer.tick(e.clock.Elapsed())

		if e.game.FnUpdate != nil {
			if err := e.game.FnUpdate(e, delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				e.isRunning = false
				break
			}
		}

		e.registry.ProcessFileEvents()

		if err := e.renderer.DrawFrame(delta); err != nil {
			core.LogWarn("frame dropped: %s", err)
		}
	}

	return nil
}

func (e *Engine) Shutdown() {
	e.isRunning = false

	// The renderer waits for all in-flight GPU work before anything else is
	// torn down.
	if e.renderer != nil {
		e.renderer.Shutdown()
	}
	if e.game.FnShutdown != nil {
		e.game.FnShutdown(e)
	}
	if e.registry != nil {
		e.registry.Shutdown()
	}
	if e.backend != nil {
		e.backend.Shutdown()
	}
	e.platform.Shutdown()
}

func (e *Engine) onResized(width, height uint32) {
	if width == 0 || height == 0 {
		core.LogDebug("window minimized, suspending frames")
		e.isSuspended = true
		return
	}
	e.isSuspended = false

	if err := e.renderer.Resize(width, height); err != nil {
		core.LogError("resize failed: %s", err)
	}
}

// Context exposes the graphics context to game setup code.
func (e *Engine) Context() *vulkan.Context {
	return e.backend.Context
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Registry() *assets.Registry {
	return e.registry
}

// AssetPath resolves a path relative to the configured asset root.
func (e *Engine) AssetPath(parts ...string) string {
	return filepath.Join(append([]string{e.cfg.Assets.Root}, parts...)...)
}
