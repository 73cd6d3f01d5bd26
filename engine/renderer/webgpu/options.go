package webgpu

import (
	"github.com/spaghettifunk/anima-webgpu/engine/config"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

// Options configures an Engine. DefaultOptions documents every default.
type Options struct {
	// Width and Height size the main framebuffer.
	Width  uint32
	Height uint32

	// CompatibilityMode records draws straight into the live pass instead of
	// render bundles.
	CompatibilityMode bool
	// SnapshotRendering captures the main pass bundles of one frame and
	// replays them on the following frames.
	SnapshotRendering bool
	// MaxUncapturedErrorLogs caps how many uncaptured GPU errors are logged.
	MaxUncapturedErrorLogs int
	// VerboseFrames is how many frames FrameDiagnostics logs in detail.
	VerboseFrames int
	// PipelineCacheDisabled makes every pipeline lookup build a new pipeline.
	PipelineCacheDisabled bool
	// ClearBundleCacheSize bounds the clear quad bundle cache.
	ClearBundleCacheSize int

	ForceFallbackAdapter bool
	PowerPreference      hal.PowerPreference

	// ReverseDepth clears depth to 0 and tests with GreaterEqual.
	ReverseDepth bool
	// AutoReinitialize re-runs the init chain after a device loss.
	AutoReinitialize bool

	// SurfaceFormat is the main framebuffer color format.
	SurfaceFormat hal.TextureFormat
	VSync         bool

	// ShaderCompiler replaces the naga toolchain. Nil uses naga.
	ShaderCompiler shaders.CompileFunc
}

func DefaultOptions() Options {
	return Options{
		Width:                  1280,
		Height:                 720,
		CompatibilityMode:      false,
		SnapshotRendering:      false,
		MaxUncapturedErrorLogs: 100,
		VerboseFrames:          0,
		PipelineCacheDisabled:  false,
		ClearBundleCacheSize:   64,
		ForceFallbackAdapter:   false,
		PowerPreference:        hal.PowerPreferenceHighPerformance,
		ReverseDepth:           false,
		AutoReinitialize:       true,
		SurfaceFormat:          hal.TextureFormatBGRA8Unorm,
		VSync:                  true,
	}
}

// OptionsFromConfig builds Options from the application configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.Width = cfg.Application.Width
	opts.Height = cfg.Application.Height

	r := cfg.Renderer
	opts.CompatibilityMode = r.CompatibilityMode
	opts.SnapshotRendering = r.SnapshotRendering
	opts.MaxUncapturedErrorLogs = r.MaxUncapturedErrorLogs
	opts.VerboseFrames = r.VerboseFrames
	opts.PipelineCacheDisabled = r.PipelineCacheDisabled
	if r.ClearBundleCacheSize > 0 {
		opts.ClearBundleCacheSize = r.ClearBundleCacheSize
	}
	opts.ForceFallbackAdapter = r.ForceFallbackAdapter
	switch r.PowerPreference {
	case "low-power":
		opts.PowerPreference = hal.PowerPreferenceLowPower
	case "high-performance":
		opts.PowerPreference = hal.PowerPreferenceHighPerformance
	default:
		opts.PowerPreference = hal.PowerPreferenceUndefined
	}
	opts.ReverseDepth = r.ReverseDepth
	opts.AutoReinitialize = r.AutoReinitialize
	opts.VSync = r.VSync
	return opts
}
