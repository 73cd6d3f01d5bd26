package engine

import (
	"github.com/spaghettifunk/anima-webgpu/engine/config"
	"github.com/spaghettifunk/anima-webgpu/engine/physics"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/webgpu"
)

type Game struct {
	// Config is used as is when set. Otherwise it is loaded from ConfigPath,
	// falling back to config.Default when ConfigPath is empty.
	Config     *config.Config
	ConfigPath string

	// Renderer and Physics are set by the engine before FnInitialize runs.
	Renderer *webgpu.Engine
	Physics  *physics.World

	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error

// Update runs once per frame before the frame is recorded.
type Update func(deltaTime float64) error

// Render records the draws of one frame, between BeginFrame and EndFrame.
type Render func(deltaTime float64) error

type OnResize func(width uint32, height uint32) error
type Shutdown func() error
