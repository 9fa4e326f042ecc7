package engine

// Game is the application hooked into the engine loop. Setup runs once after
// the renderer and registry are ready, Update every frame before drawing.
type Game struct {
	// Path to the TOML configuration file; defaults are used when empty or
	// the file does not exist.
	ConfigPath string

	State interface{}

	FnSetup    Setup
	FnUpdate   Update
	FnShutdown Shutdown
}

type Setup func(e *Engine) error
type Update func(e *Engine, deltaTime float64) error
type Shutdown func(e *Engine)
