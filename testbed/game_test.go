package testbed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine"
	"github.com/spaghettifunk/anima-webgpu/engine/config"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal/haltest"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/webgpu"
)

type headlessWindow struct {
	frames int
}

func (w *headlessWindow) Startup(string, uint32, uint32, uint32, uint32) error { return nil }

func (w *headlessWindow) PumpMessages() bool {
	w.frames--
	return w.frames >= 0
}

func (w *headlessWindow) Shutdown() error { return nil }

func TestTriangleIsDrawn(t *testing.T) {
	tg, err := NewTestGame("")
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Application.Width = 64
	cfg.Application.Height = 64
	tg.Config = cfg

	inst := haltest.NewInstance()
	e, err := engine.New(tg.Game,
		engine.WithWindow(&headlessWindow{frames: 3}),
		engine.WithBackend(func(engine.Window) (hal.Instance, hal.Surface, error) { return inst, nil, nil }),
		engine.WithRendererOptions(func(o *webgpu.Options) {
			o.ShaderCompiler = func(string) ([]byte, error) { return []byte{0x03, 0x02, 0x23, 0x07}, nil }
		}),
	)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	dev := inst.LastDevice()
	dev.RegisterFragment(TriangleProgram, func(in *haltest.FragmentInput) ([4]float32, bool) {
		u := in.UniformFloats(0, 0)
		return [4]float32{u[0], u[1], u[2], u[3]}, true
	})

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, 1, e.Renderer().DrawCalls())
	assert.Empty(t, dev.Errors())

	bb := e.Renderer().Backbuffer().Hardware().Texture().(*haltest.Texture)
	center, ok := bb.Pixel(0, 0, 32, 32)
	require.True(t, ok)
	assert.InDelta(t, 0.4, center[1], 0.01)
	corner, _ := bb.Pixel(0, 0, 0, 0)
	assert.InDelta(t, 0.05, corner[1], 0.01)

	require.NoError(t, e.Shutdown())
	assert.Len(t, tg.Physics.Bodies(), 0)
}
