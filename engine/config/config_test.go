package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anima.toml")
	data := `
[application]
name = "testbed"
width = 800

[renderer]
compatibility_mode = true
power_preference = "low-power"
clear_bundle_cache_size = 8

[shaders]
directory = "shaders"
hot_reload = true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "testbed", cfg.Application.Name)
	assert.Equal(t, uint32(800), cfg.Application.Width)
	assert.Equal(t, uint32(720), cfg.Application.Height)
	assert.Equal(t, core.LogLevelInfo, cfg.Application.LogLevel)
	assert.True(t, cfg.Renderer.CompatibilityMode)
	assert.Equal(t, "low-power", cfg.Renderer.PowerPreference)
	assert.Equal(t, 8, cfg.Renderer.ClearBundleCacheSize)
	assert.True(t, cfg.Renderer.AutoReinitialize)
	assert.Equal(t, "shaders", cfg.Shaders.Directory)
	assert.True(t, cfg.Shaders.HotReload)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecodeRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "[renderer]\nmsaa = 4\n",
		"zero width":       "[application]\nwidth = 0\n",
		"power preference": "[renderer]\npower_preference = \"fast\"\n",
		"reload no dir":    "[shaders]\nhot_reload = true\n",
		"syntax":           "[application\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Decode([]byte(data), Default()))
		})
	}
	err := Decode([]byte("[application]\nheight = 0\n"), Default())
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Renderer.SnapshotRendering = true
	data, err := cfg.Encode()
	require.NoError(t, err)

	back := Default()
	require.NoError(t, Decode(data, back))
	assert.Equal(t, cfg, back)
}
