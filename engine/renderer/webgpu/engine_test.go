package webgpu

import (
	"bytes"
	"encoding/binary"
	"errors"
	stdmath "math"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal/haltest"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

// acceptAll stands in for the WGSL toolchain.
func acceptAll(string) ([]byte, error) {
	return []byte{0x03, 0x02, 0x23, 0x07}, nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Width = 64
	opts.Height = 64
	opts.ShaderCompiler = acceptAll
	return opts
}

func floatBytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(v))
	}
	return out
}

// installFragments gives the test device a fragment stage for the built-in
// programs and for the test programs.
func installFragments(dev *haltest.Device) {
	dev.RegisterFragment(shaders.ClearProgram, func(in *haltest.FragmentInput) ([4]float32, bool) {
		u := in.UniformFloats(0, 0)
		return [4]float32{u[0], u[1], u[2], u[3]}, true
	})
	dev.RegisterFragment(shaders.MipmapProgram, func(in *haltest.FragmentInput) ([4]float32, bool) {
		return in.Sample(0, 0, in.U, in.V), true
	})
	dev.RegisterFragment(shaders.InvertProgram, func(in *haltest.FragmentInput) ([4]float32, bool) {
		flags := in.Uniform(0, 2)
		v := in.V
		if binary.LittleEndian.Uint32(flags[0:]) == 1 {
			v = 1 - v
		}
		c := in.Sample(0, 0, in.U, v)
		if binary.LittleEndian.Uint32(flags[4:]) == 1 {
			c[0], c[1], c[2] = c[0]*c[3], c[1]*c[3], c[2]*c[3]
		}
		return c, true
	})
	dev.RegisterFragment("test.color", func(in *haltest.FragmentInput) ([4]float32, bool) {
		u := in.UniformFloats(0, 0)
		return [4]float32{u[0], u[1], u[2], u[3]}, true
	})
	dev.RegisterFragment("test.textured", func(in *haltest.FragmentInput) ([4]float32, bool) {
		return in.Sample(1, 0, in.U, in.V), true
	})
}

func newTestEngine(t *testing.T, configure ...func(*Options)) (*Engine, *haltest.Instance, *haltest.Device) {
	t.Helper()
	opts := testOptions()
	for _, fn := range configure {
		fn(&opts)
	}
	inst := haltest.NewInstance()
	e := New(inst, nil, core.NewEventBus(), opts)
	require.NoError(t, e.Init())
	dev := inst.LastDevice()
	installFragments(dev)
	t.Cleanup(e.Dispose)
	return e, inst, dev
}

var positionLayout = []hal.VertexBufferLayout{{
	ArrayStride: 8,
	StepMode:    hal.VertexStepModeVertex,
	Attributes:  []hal.VertexAttribute{{Format: hal.VertexFormatFloat32x2, ShaderLocation: 0}},
}}

func colorRequest() shaders.Request {
	return shaders.Request{
		Name:          "test.color",
		Source:        "@vertex fn vs() {}\n@fragment fn fs() {}\n",
		VertexEntry:   "vs",
		FragmentEntry: "fs",
		Bindings: []shaders.Binding{
			{Group: 0, Binding: 0, Name: "color", Kind: shaders.BindingUniform, Visibility: hal.ShaderStageFragment},
		},
		VertexBuffers: positionLayout,
	}
}

func texturedRequest() shaders.Request {
	return shaders.Request{
		Name:          "test.textured",
		Source:        "@vertex fn vs() {}\n@fragment fn fs() {}\n",
		VertexEntry:   "vs",
		FragmentEntry: "fs",
		Bindings: []shaders.Binding{
			{Group: 1, Binding: 0, Name: "albedo", Kind: shaders.BindingTexture, Visibility: hal.ShaderStageFragment},
			{Group: 1, Binding: 1, Name: "albedoSampler", Kind: shaders.BindingSampler, Visibility: hal.ShaderStageFragment, Texture: "albedo"},
		},
		VertexBuffers: positionLayout,
	}
}

// triangleDraw is a draw wrapper for one clip space triangle covering the
// center of the target, shaded with the given color.
type triangleDraw struct {
	fx       *Effect
	draw     *DrawContext
	material *MaterialContext
	color    *DataBuffer
}

func newTriangleDraw(t *testing.T, e *Engine, r, g, b, a float32) *triangleDraw {
	t.Helper()
	fx, err := e.CreateEffect(colorRequest())
	require.NoError(t, err)
	vb, err := e.CreateVertexBuffer("triangle", floatBytes(-1, -1, 1, -1, 0, 1))
	require.NoError(t, err)
	color, err := e.CreateUniformBuffer("color", 16)
	require.NoError(t, err)
	require.NoError(t, e.UpdateBuffer(color, 0, floatBytes(r, g, b, a)))

	draw := NewDrawContext()
	draw.SetVertexBuffers(vb)
	draw.SetBuffer("color", color)
	return &triangleDraw{fx: fx, draw: draw, material: NewMaterialContext(), color: color}
}

func (d *triangleDraw) enable(e *Engine) {
	e.EnableDrawWrapper(DrawWrapper{Effect: d.fx, DrawContext: d.draw, MaterialContext: d.material})
}

func TestInitCreatesDeviceObjects(t *testing.T) {
	e, _, dev := newTestEngine(t)
	assert.True(t, e.IsReady())
	assert.NotNil(t, e.Backbuffer())
	assert.Equal(t, uint32(8192), e.Caps().MaxTextureSize)
	assert.True(t, e.Caps().SupportsBundles)
	assert.Equal(t, 3, dev.Created("CommandEncoder"))
	assert.Empty(t, dev.Errors())
}

func TestInitFailures(t *testing.T) {
	inst := haltest.NewInstance()
	inst.FailAdapter = true
	e := New(inst, nil, core.NewEventBus(), testOptions())
	assert.ErrorIs(t, e.Init(), haltest.ErrAdapterUnavailable)
	assert.False(t, e.IsReady())
	assert.ErrorIs(t, e.BeginFrame(), core.ErrEngineNotReady)

	inst = haltest.NewInstance()
	inst.FailDevice = true
	e = New(inst, nil, core.NewEventBus(), testOptions())
	assert.ErrorIs(t, e.Init(), haltest.ErrDeviceUnavailable)
	assert.False(t, e.IsReady())

	failing := testOptions()
	failing.ShaderCompiler = func(string) ([]byte, error) { return nil, errors.New("no toolchain") }
	e = New(haltest.NewInstance(), nil, core.NewEventBus(), failing)
	assert.Error(t, e.Init())
	assert.False(t, e.IsReady())
}

func TestDrawWithoutEffect(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.BeginFrame())
	assert.ErrorIs(t, e.Draw(FillModeTriangles, 0, 3, 1), ErrNoEffect)
}

func TestDrawShadesBackbuffer(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tri := newTriangleDraw(t, e, 1, 0, 0, 1)

	require.NoError(t, e.BeginFrame())
	require.NoError(t, e.Clear(&hal.Color{A: 1}, nil, nil))
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	require.NoError(t, e.EndFrame())

	bb := e.Backbuffer().Hardware().Texture().(*haltest.Texture)
	center, ok := bb.Pixel(0, 0, 32, 32)
	require.True(t, ok)
	assert.InDelta(t, 1.0, center[0], 0.01)
	corner, _ := bb.Pixel(0, 0, 0, 0)
	assert.InDelta(t, 0.0, corner[0], 0.01)
	assert.Equal(t, 1, e.DrawCalls())
	assert.Empty(t, dev.Errors())
}

func TestCountersAndBundleReuse(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tri := newTriangleDraw(t, e, 0, 1, 0, 1)

	frame := func() {
		require.NoError(t, e.BeginFrame())
		tri.enable(e)
		require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
		require.NoError(t, e.EndFrame())
	}

	frame()
	assert.Equal(t, FrameCounters{
		NumEnableEffects:               1,
		NumEnableDrawWrapper:           1,
		NumBundleCreationNonCompatMode: 1,
	}, e.CountersLastFrame)

	frame()
	assert.Equal(t, FrameCounters{
		NumEnableEffects:            1,
		NumEnableDrawWrapper:        1,
		NumBundleReuseNonCompatMode: 1,
	}, e.CountersLastFrame)
	assert.Equal(t, 1, dev.Created("RenderBundle"))

	// A new binding invalidates the recorded bundle.
	other, err := e.CreateUniformBuffer("other", 16)
	require.NoError(t, err)
	tri.draw.SetBuffer("color", other)
	frame()
	assert.Equal(t, 1, e.CountersLastFrame.NumBundleCreationNonCompatMode)
	assert.Empty(t, dev.Errors())
}

func TestCompatibilityModeDrawsOnThePass(t *testing.T) {
	e, _, dev := newTestEngine(t, func(o *Options) { o.CompatibilityMode = true })
	tri := newTriangleDraw(t, e, 0, 0, 1, 1)

	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	require.NoError(t, e.EndFrame())

	assert.Zero(t, dev.Created("RenderBundle"))
	assert.Zero(t, dev.Count("executeBundle"))
	assert.Equal(t, 1, dev.Count("draw"))
	assert.False(t, e.Caps().SupportsBundles)
}

func TestSnapshotRendering(t *testing.T) {
	e, _, dev := newTestEngine(t, func(o *Options) { o.SnapshotRendering = true })
	tri := newTriangleDraw(t, e, 1, 1, 0, 1)
	assert.Equal(t, SNAPSHOT_MODE_RECORD, e.SnapshotMode())

	frame := func() {
		require.NoError(t, e.BeginFrame())
		tri.enable(e)
		require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
		require.NoError(t, e.EndFrame())
	}
	frame()
	assert.Equal(t, SNAPSHOT_MODE_PLAY, e.SnapshotMode())

	dev.ResetTrace()
	frame()
	assert.Equal(t, 1, dev.Created("RenderBundle"))
	assert.Equal(t, 1, dev.Count("executeBundle"))
	assert.Zero(t, e.CountersLastFrame.NumBundleReuseNonCompatMode)

	e.SetSnapshotRendering(false)
	assert.Equal(t, SNAPSHOT_MODE_OFF, e.SnapshotMode())
	assert.Empty(t, dev.Errors())
}

func TestSnapshotKeepsReplacedBundlesAlive(t *testing.T) {
	e, _, dev := newTestEngine(t, func(o *Options) { o.SnapshotRendering = true })
	tri := newTriangleDraw(t, e, 1, 1, 0, 1)

	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 2))
	require.NoError(t, e.EndFrame())
	require.Equal(t, SNAPSHOT_MODE_PLAY, e.SnapshotMode())

	dev.ResetTrace()
	for i := 0; i < 3; i++ {
		require.NoError(t, e.BeginFrame())
		require.NoError(t, e.EndFrame())
	}
	assert.Equal(t, 6, dev.Count("executeBundle"))
	assert.Empty(t, dev.Errors())

	e.SetSnapshotRendering(false)
	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 2))
	require.NoError(t, e.EndFrame())
	assert.Empty(t, dev.Errors())
}

func TestSnapshotKeepsEvictedClearBundlesAlive(t *testing.T) {
	e, _, dev := newTestEngine(t, func(o *Options) {
		o.SnapshotRendering = true
		o.ClearBundleCacheSize = 1
	})
	red := hal.Color{R: 1, A: 1}
	green := hal.Color{G: 1, A: 1}

	require.NoError(t, e.BeginFrame())
	e.SetScissor(0, 0, 8, 8)
	require.NoError(t, e.Clear(&red, nil, nil))
	e.SetScissor(8, 8, 8, 8)
	require.NoError(t, e.Clear(&green, nil, nil))
	e.DisableScissor()
	require.NoError(t, e.EndFrame())
	assert.Equal(t, 1, e.clearQuad.CachedBundles())

	require.NoError(t, e.BeginFrame())
	require.NoError(t, e.EndFrame())
	assert.Empty(t, dev.Errors())

	bb := e.Backbuffer().Hardware().Texture().(*haltest.Texture)
	px, _ := bb.Pixel(0, 0, 4, 4)
	assert.InDelta(t, 1.0, px[0], 0.01)
}

func TestSnapshotDisabledInCompatibilityMode(t *testing.T) {
	e, _, _ := newTestEngine(t, func(o *Options) {
		o.CompatibilityMode = true
		o.SnapshotRendering = true
	})
	assert.Equal(t, SNAPSHOT_MODE_OFF, e.SnapshotMode())
	e.SetSnapshotRendering(true)
	assert.Equal(t, SNAPSHOT_MODE_OFF, e.SnapshotMode())
}

func TestDeviceLostReinitializes(t *testing.T) {
	e, inst, dev := newTestEngine(t)
	tex, err := e.CreateTexture(TextureOptions{
		Label:  "survivor",
		Width:  4,
		Height: 4,
		Type:   formats.TypeUnsignedByte,
		Format: formats.FormatRGBA,
	})
	require.NoError(t, err)
	before := tex.Version()

	var lost, restored int
	var reason string
	e.bus.Register(core.EventCodeDeviceLost, t, func(_ core.SystemEventCode, _ interface{}, _ interface{}, data core.EventContext) bool {
		lost++
		reason = data.Data.C[0]
		return true
	})
	e.bus.Register(core.EventCodeDeviceRestored, t, func(core.SystemEventCode, interface{}, interface{}, core.EventContext) bool {
		restored++
		return true
	})

	dev.Lose("driver reset")
	assert.Equal(t, 1, lost)
	assert.Equal(t, 1, restored)
	assert.Equal(t, "driver reset", reason)
	assert.Len(t, inst.Devices(), 2)
	assert.True(t, e.IsReady())
	assert.Greater(t, tex.Version(), before)
	assert.NotSame(t, dev, inst.LastDevice())

	installFragments(inst.LastDevice())
	tri := newTriangleDraw(t, e, 1, 0, 0, 1)
	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	require.NoError(t, e.EndFrame())
	assert.Empty(t, inst.LastDevice().Errors())
}

func TestDeviceLostWithoutAutoReinitialize(t *testing.T) {
	e, inst, dev := newTestEngine(t, func(o *Options) { o.AutoReinitialize = false })
	dev.Lose("gone")
	assert.False(t, e.IsReady())
	assert.Len(t, inst.Devices(), 1)
	assert.ErrorIs(t, e.BeginFrame(), core.ErrEngineNotReady)
}

func TestUncapturedErrorLogLimit(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	defer core.SetLogOutput(os.Stderr)

	e, _, dev := newTestEngine(t, func(o *Options) { o.MaxUncapturedErrorLogs = 2 })
	for i := 0; i < 5; i++ {
		dev.RaiseError(errors.New("validation failed"))
	}
	assert.Equal(t, 5, e.UncapturedErrorCount())
	assert.Equal(t, 2, strings.Count(buf.String(), "validation failed"))
	assert.Equal(t, 1, strings.Count(buf.String(), "too many warnings"))
}

func TestErrorLogKeepsPercentSigns(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	defer core.SetLogOutput(os.Stderr)

	e, _, _ := newTestEngine(t)
	tex, err := e.CreateTexture(TextureOptions{
		Label:  "grey-50%d",
		Width:  4,
		Height: 4,
		Type:   formats.TypeUnsignedByte,
		Format: formats.FormatRGBA,
	})
	require.NoError(t, err)
	err = e.UpdateTexture(tex, make([]byte, 64), UpdateOptions{Mip: 3})
	require.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Contains(t, buf.String(), "grey-50%d")
	assert.NotContains(t, buf.String(), "%!d")
}

func TestDisposeIsFinal(t *testing.T) {
	inst := haltest.NewInstance()
	e := New(inst, nil, nil, testOptions())
	require.NoError(t, e.Init())
	e.Dispose()
	assert.False(t, e.IsReady())
	assert.ErrorIs(t, e.BeginFrame(), core.ErrEngineDisposed)
	assert.ErrorIs(t, e.Init(), core.ErrEngineDisposed)
	e.Dispose()
}
