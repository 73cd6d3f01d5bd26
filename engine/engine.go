package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-webgpu/engine/config"
	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/physics"
	"github.com/spaghettifunk/anima-webgpu/engine/platform"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/webgpu"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// metricsLogInterval is how many frames pass between two frame time logs.
const metricsLogInterval = 600

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.Config
	bus          *core.EventBus
	window       Window
	backend      Backend

	rendererOptions []func(*webgpu.Options)

	instance hal.Instance
	renderer *webgpu.Engine
	shaders  *shaders.Store
	world    *physics.World

	isRunning   atomic.Bool
	isSuspended bool
	width       uint32
	height      uint32
	clock       *core.Clock
	metrics     *core.FrameMetrics
	lastTime    float64
	frame       uint64
}

func New(g *Game, opts ...Option) (*Engine, error) {
	if g == nil {
		err := fmt.Errorf("%w: game is nil", core.ErrInvalidArgument)
		core.LogError("%s", err)
		return nil, err
	}
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		backend:      nativeBackend,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = core.NewEventBus()
	}
	if e.window == nil {
		e.window = platform.New(e.bus)
	}
	return e, nil
}

func (e *Engine) Stage() Stage { return e.currentStage }

func (e *Engine) Bus() *core.EventBus { return e.bus }

func (e *Engine) Renderer() *webgpu.Engine { return e.renderer }

func (e *Engine) Physics() *physics.World { return e.world }

func (e *Engine) Metrics() *core.FrameMetrics { return e.metrics }

// Frames is the number of frames rendered so far.
func (e *Engine) Frames() uint64 { return e.frame }

// GetFramebufferSize returns the width and height (in this order) of the
// main framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		err := fmt.Errorf("engine cannot be initialized twice")
		core.LogError("%s", err)
		return err
	}
	e.currentStage = EngineStageBooting

	cfg, err := resolveConfig(e.gameInstance)
	if err != nil {
		return err
	}
	e.config = cfg
	e.gameInstance.Config = cfg
	core.SetLogLevel(cfg.Application.LogLevel)
	e.width = cfg.Application.Width
	e.height = cfg.Application.Height
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing

	// register some events
	e.bus.Register(core.EventCodeApplicationQuit, e, e.onEvent)
	e.bus.Register(core.EventCodeKeyPressed, e, e.onKey)
	e.bus.Register(core.EventCodeResized, e, e.onResized)
	e.bus.Register(core.EventCodeShaderReloaded, e, e.onShaderReloaded)
	e.bus.Register(core.EventCodeDeviceLost, e, e.onDeviceLost)

	app := cfg.Application
	if err := e.window.Startup(app.Name, app.X, app.Y, app.Width, app.Height); err != nil {
		return err
	}

	instance, surface, err := e.backend(e.window)
	if err != nil {
		core.LogError("failed to open the graphics backend: %s", err)
		return err
	}
	e.instance = instance

	opts := webgpu.OptionsFromConfig(cfg)
	for _, fn := range e.rendererOptions {
		fn(&opts)
	}
	e.renderer = webgpu.New(instance, surface, e.bus, opts)
	if err := e.renderer.Init(); err != nil {
		return err
	}

	if cfg.Shaders.Directory != "" {
		store, err := shaders.NewStore(cfg.Shaders.Directory)
		if err != nil {
			core.LogError("failed to load shaders from %s: %s", cfg.Shaders.Directory, err)
			return err
		}
		e.shaders = store
		if cfg.Shaders.HotReload {
			if err := store.Watch(); err != nil {
				return err
			}
		}
	}

	world, err := physics.NewWorld(physics.NewPointMassPlugin())
	if err != nil {
		return err
	}
	e.world = world

	e.gameInstance.Renderer = e.renderer
	e.gameInstance.Physics = e.world

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Shaders returns the program store, or nil when no shader directory is
// configured.
func (e *Engine) Shaders() *shaders.Store { return e.shaders }

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrEngineNotReady
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.window.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if err := e.frameTick(delta); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frame, err)
			e.isRunning.Store(false)
			return err
		}

		e.metrics.Update(time.Since(frameStart).Seconds())
		e.frame++
		if e.frame%metricsLogInterval == 0 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("frame %d: %.0f fps, %.3f ms, %d draw calls", e.frame, fps, ms, e.renderer.DrawCalls())
		}

		// Update last time
		e.lastTime = currentTime
	}

	return nil
}

func (e *Engine) frameTick(delta float64) error {
	if e.shaders != nil {
		e.shaders.Dispatch(e.bus)
	}
	e.world.Step(float32(delta))

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return err
		}
	}
	// Quit requested during the update.
	if !e.isRunning.Load() {
		return nil
	}

	if err := e.renderer.BeginFrame(); err != nil {
		return err
	}
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(delta); err != nil {
			return err
		}
	}
	return e.renderer.EndFrame()
}

// Stop asks the running loop to return after the current frame.
func (e *Engine) Stop() {
	e.bus.Fire(core.EventCodeApplicationQuit, e, core.EventContext{})
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageUninitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var firstErr error
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			firstErr = err
		}
	}

	e.bus.Unregister(core.EventCodeApplicationQuit, e)
	e.bus.Unregister(core.EventCodeKeyPressed, e)
	e.bus.Unregister(core.EventCodeResized, e)
	e.bus.Unregister(core.EventCodeShaderReloaded, e)
	e.bus.Unregister(core.EventCodeDeviceLost, e)

	if e.shaders != nil {
		if err := e.shaders.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.world != nil {
		e.world.Dispose()
	}
	if e.renderer != nil {
		e.renderer.Dispose()
	}
	if e.instance != nil {
		e.instance.Release()
	}
	if err := e.window.Shutdown(); err != nil && firstErr == nil {
		firstErr = err
	}
	core.LogInfo("engine shut down after %d frames", e.frame)
	return firstErr
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if code == core.EventCodeApplicationQuit {
		core.LogInfo("EventCodeApplicationQuit received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	core.LogDebug("key %d pressed", data.Data.U16[0])
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width := data.Data.U32[0]
	height := data.Data.U32[1]
	if width == e.width && height == e.height && !e.isSuspended {
		return false
	}

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming application.")
		e.isSuspended = false
	}
	e.width = width
	e.height = height

	if e.renderer != nil {
		if err := e.renderer.Resize(width, height); err != nil {
			core.LogError("failed to resize the renderer to %dx%d: %s", width, height, err)
			return false
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize failed: %s", err)
		}
	}
	// Other listeners may want to know too.
	return false
}

func (e *Engine) onShaderReloaded(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if e.shaders == nil || e.renderer == nil {
		return false
	}
	name := data.Data.C[0]
	source, err := e.shaders.Source(name)
	if err != nil {
		core.LogWarn("shader %s changed but could not be read: %s", name, err)
		return false
	}
	if _, err := e.renderer.ReloadProgram(name, source); err != nil {
		core.LogWarn("shader %s failed to reload: %s", name, err)
	}
	return false
}

func (e *Engine) onDeviceLost(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if e.config != nil && e.config.Renderer.AutoReinitialize {
		return false
	}
	core.LogError("GPU device lost (%s) and reinitialization is disabled, stopping.", data.Data.C[0])
	e.isRunning.Store(false)
	return false
}
