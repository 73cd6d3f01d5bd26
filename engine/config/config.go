package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting width, if applicable.
	Width uint32 `toml:"width"`
	// Window starting height, if applicable.
	Height uint32 `toml:"height"`
	// Window starting position x axis, if applicable.
	X uint32 `toml:"x"`
	// Window starting position y axis, if applicable.
	Y        uint32        `toml:"y"`
	LogLevel core.LogLevel `toml:"log_level"`
}

type RendererConfig struct {
	CompatibilityMode      bool   `toml:"compatibility_mode"`
	SnapshotRendering      bool   `toml:"snapshot_rendering"`
	MaxUncapturedErrorLogs int    `toml:"max_uncaptured_error_logs"`
	VerboseFrames          int    `toml:"verbose_frames"`
	PipelineCacheDisabled  bool   `toml:"pipeline_cache_disabled"`
	ClearBundleCacheSize   int    `toml:"clear_bundle_cache_size"`
	ForceFallbackAdapter   bool   `toml:"force_fallback_adapter"`
	// PowerPreference is "low-power", "high-performance" or empty.
	PowerPreference  string `toml:"power_preference"`
	ReverseDepth     bool   `toml:"reverse_depth"`
	AutoReinitialize bool   `toml:"auto_reinitialize"`
	VSync            bool   `toml:"vsync"`
}

type ShadersConfig struct {
	// Directory holds WGSL overrides of the builtin programs. Empty disables
	// the on-disk store.
	Directory string `toml:"directory"`
	// HotReload watches Directory and rebuilds changed programs.
	HotReload bool `toml:"hot_reload"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Shaders     ShadersConfig     `toml:"shaders"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:     "Anima",
			Width:    1280,
			Height:   720,
			X:        100,
			Y:        100,
			LogLevel: core.LogLevelInfo,
		},
		Renderer: RendererConfig{
			CompatibilityMode:      false,
			SnapshotRendering:      false,
			MaxUncapturedErrorLogs: 100,
			VerboseFrames:          0,
			PipelineCacheDisabled:  false,
			ClearBundleCacheSize:   64,
			ForceFallbackAdapter:   false,
			PowerPreference:        "high-performance",
			ReverseDepth:           false,
			AutoReinitialize:       true,
			VSync:                  true,
		},
		Shaders: ShadersConfig{
			Directory: "",
			HotReload: false,
		},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default value. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := Decode(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals TOML data into cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		err = fmt.Errorf("failed to decode config: %w", err)
		core.LogError("%s", err)
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		err := fmt.Errorf("%w: window size %dx%d", core.ErrInvalidArgument, c.Application.Width, c.Application.Height)
		core.LogError("%s", err)
		return err
	}
	switch c.Renderer.PowerPreference {
	case "", "low-power", "high-performance":
	default:
		err := fmt.Errorf("%w: power preference %q", core.ErrInvalidArgument, c.Renderer.PowerPreference)
		core.LogError("%s", err)
		return err
	}
	if c.Shaders.HotReload && c.Shaders.Directory == "" {
		err := fmt.Errorf("%w: shader hot reload needs a directory", core.ErrInvalidArgument)
		core.LogError("%s", err)
		return err
	}
	return nil
}

// Encode writes cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
