package engine

import (
	"github.com/spaghettifunk/anima-webgpu/engine/config"
	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/platform"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/webgpu"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/wgpu"
)

// Window is the OS window the engine draws into.
type Window interface {
	Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error
	// PumpMessages processes pending OS events and returns false once the
	// window should close.
	PumpMessages() bool
	Shutdown() error
}

// Backend opens the graphics instance and the surface of a started window.
// The surface may be nil, in which case the renderer draws offscreen.
type Backend func(w Window) (hal.Instance, hal.Surface, error)

type Option func(e *Engine)

func WithWindow(w Window) Option {
	return func(e *Engine) { e.window = w }
}

func WithBackend(b Backend) Option {
	return func(e *Engine) { e.backend = b }
}

func WithEventBus(bus *core.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithRendererOptions adjusts the renderer options derived from the
// configuration.
func WithRendererOptions(fn func(*webgpu.Options)) Option {
	return func(e *Engine) { e.rendererOptions = append(e.rendererOptions, fn) }
}

// nativeBackend creates a wgpu-native instance and, when the window is the
// glfw platform window, its surface.
func nativeBackend(w Window) (hal.Instance, hal.Surface, error) {
	instance := wgpu.NewInstance()
	p, ok := w.(*platform.Platform)
	if !ok {
		return instance, nil, nil
	}
	return instance, p.CreateSurface(instance), nil
}

func resolveConfig(g *Game) (*config.Config, error) {
	if g.Config != nil {
		if err := g.Config.Validate(); err != nil {
			return nil, err
		}
		return g.Config, nil
	}
	if g.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(g.ConfigPath)
}
