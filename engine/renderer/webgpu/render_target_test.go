package webgpu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal/haltest"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

func newTarget(t *testing.T, e *Engine, size uint32, mips bool) *RenderTargetWrapper {
	t.Helper()
	opts := DefaultRenderTargetOptions()
	opts.Label = "offscreen"
	opts.Width, opts.Height = size, size
	opts.GenerateMipMaps = mips
	opts.GenerateStencilBuffer = true
	rt, err := e.CreateRenderTarget(opts)
	require.NoError(t, err)
	return rt
}

func TestRenderTargetDrawAndMipmaps(t *testing.T) {
	e, _, dev := newTestEngine(t)
	rt := newTarget(t, e, 256, true)
	require.Len(t, rt.Textures, 1)
	require.NotNil(t, rt.DepthStencil)
	assert.Equal(t, hal.TextureFormatDepth24PlusStencil8, rt.DepthStencil.NativeFormat())
	assert.Equal(t, uint32(9), rt.Texture().MipLevels)

	tri := newTriangleDraw(t, e, 0.2, 0.4, 0.6, 1)
	depth := float32(1)
	stencil := uint32(0)

	require.NoError(t, e.BeginFrame())
	require.NoError(t, e.BindFramebuffer(rt, 0, 0))
	assert.Same(t, rt, e.CurrentRenderTarget())
	require.NoError(t, e.Clear(&hal.Color{A: 1}, &depth, &stencil))
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	require.NoError(t, e.UnbindFramebuffer())
	assert.Nil(t, e.CurrentRenderTarget())

	px, err := e.ReadPixels(context.Background(), rt.Texture(), 128, 128, 1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{51, 102, 153, 255}, px)

	corner, err := e.ReadPixels(context.Background(), rt.Texture(), 0, 0, 1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 255}, corner)

	level1 := rt.Texture().Hardware().Texture().(*haltest.Texture)
	c, ok := level1.Pixel(1, 0, 64, 64)
	require.True(t, ok)
	assert.NotZero(t, c[2])

	require.NoError(t, e.EndFrame())
	assert.Empty(t, dev.Errors())
}

func TestRenderTargetValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.CreateRenderTarget(RenderTargetOptions{Width: 0, Height: 4})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = e.CreateRenderTarget(RenderTargetOptions{Height: 4, IsCube: true})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = e.CreateMultipleRenderTarget(DefaultRenderTargetOptions(), 9)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	opts := DefaultRenderTargetOptions()
	opts.Width, opts.Height = 32, 32
	mrt, err := e.CreateMultipleRenderTarget(opts, 3)
	require.NoError(t, err)
	assert.Len(t, mrt.Textures, 3)
	assert.Equal(t, hal.TextureFormatDepth32Float, mrt.DepthStencil.NativeFormat())

	opts.NoColorAttachment = true
	depthOnly, err := e.CreateRenderTarget(opts)
	require.NoError(t, err)
	assert.Empty(t, depthOnly.Textures)
	assert.Nil(t, depthOnly.Texture())

	color, err := e.CreateTexture(TextureOptions{Label: "not-depth", Width: 32, Height: 32, Type: opts.Type, Format: opts.Format})
	require.NoError(t, err)
	assert.ErrorIs(t, e.SetDepthStencilTexture(mrt, color), core.ErrInvalidArgument)

	assert.ErrorIs(t, e.BindFramebuffer(nil, 0, 0), core.ErrInvalidArgument)
	assert.NoError(t, e.UnbindFramebuffer())
}

func TestRenderTargetMultisampledResolve(t *testing.T) {
	e, _, dev := newTestEngine(t)
	opts := DefaultRenderTargetOptions()
	opts.Width, opts.Height = 16, 16
	opts.Samples = 8
	rt, err := e.CreateRenderTarget(opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), rt.Samples)

	red := hal.Color{R: 1, A: 1}
	require.NoError(t, e.BeginFrame())
	require.NoError(t, e.BindFramebuffer(rt, 0, 0))
	require.NoError(t, e.Clear(&red, nil, nil))
	require.NoError(t, e.UnbindFramebuffer())
	require.NoError(t, e.EndFrame())

	tex := rt.Texture().Hardware().Texture().(*haltest.Texture)
	c, ok := tex.Pixel(0, 0, 8, 8)
	require.True(t, ok)
	assert.InDelta(t, 1.0, c[0], 0.01)
	assert.Empty(t, dev.Errors())
}

func TestCubeRenderTargetFaces(t *testing.T) {
	e, _, dev := newTestEngine(t)
	opts := DefaultRenderTargetOptions()
	opts.Width = 8
	opts.IsCube = true
	opts.GenerateDepthBuffer = false
	rt, err := e.CreateRenderTarget(opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), rt.Height)
	assert.True(t, rt.Texture().IsCube)

	require.NoError(t, e.BeginFrame())
	for face := uint32(0); face < 6; face++ {
		require.NoError(t, e.BindFramebuffer(rt, face, 0))
		require.NoError(t, e.Clear(&hal.Color{G: float64(face) / 5, A: 1}, nil, nil))
	}
	require.NoError(t, e.UnbindFramebuffer())
	require.NoError(t, e.EndFrame())

	tex := rt.Texture().Hardware().Texture().(*haltest.Texture)
	for face := uint32(0); face < 6; face++ {
		c, ok := tex.Pixel(0, face, 4, 4)
		require.True(t, ok)
		assert.InDelta(t, float64(face)/5, float64(c[1]), 0.01, "face %d", face)
	}
	assert.Empty(t, dev.Errors())
}

func computeRequest() shaders.Request {
	return shaders.Request{
		Name:         "test.fill",
		Source:       "@compute @workgroup_size(64) fn main() {}\n",
		ComputeEntry: "main",
		Bindings: []shaders.Binding{
			{Group: 0, Binding: 0, Name: "data", Kind: shaders.BindingStorage, Visibility: hal.ShaderStageCompute},
		},
	}
}

func TestComputeDispatchDeferredWhileTargetPassOpen(t *testing.T) {
	e, _, dev := newTestEngine(t)
	rt := newTarget(t, e, 32, false)
	tri := newTriangleDraw(t, e, 1, 1, 1, 1)

	fx, err := e.CreateComputeEffect(computeRequest())
	require.NoError(t, err)
	data, err := e.CreateStorageBuffer("data", 256)
	require.NoError(t, err)
	ctx := NewComputeContext()
	ctx.SetBuffer("data", data)

	require.NoError(t, e.BeginFrame())
	require.NoError(t, e.BindFramebuffer(rt, 0, 0))
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))

	require.NoError(t, e.ComputeDispatch(fx, ctx, 1, 1, 1))
	require.NoError(t, e.ComputeDispatch(fx, ctx, 2, 1, 1))
	assert.Equal(t, 2, e.PendingComputeDispatches())

	require.NoError(t, e.UnbindFramebuffer())
	assert.Zero(t, e.PendingComputeDispatches())

	dev.ResetTrace()
	require.NoError(t, e.EndFrame())

	trace := dev.Trace()
	endPass, first := -1, -1
	var dispatches [][]float64
	for i, ev := range trace {
		switch ev.Op {
		case "endRenderPass":
			if ev.Label == "offscreen" && endPass < 0 {
				endPass = i
			}
		case "dispatch":
			if first < 0 {
				first = i
			}
			dispatches = append(dispatches, ev.Values)
		}
	}
	require.GreaterOrEqual(t, endPass, 0)
	require.GreaterOrEqual(t, first, 0)
	assert.Less(t, endPass, first)
	assert.Equal(t, [][]float64{{1, 1, 1}, {2, 1, 1}}, dispatches)
	assert.Empty(t, dev.Errors())
}

func TestComputeDispatchRunsImmediatelyWithoutTarget(t *testing.T) {
	e, _, dev := newTestEngine(t)
	fx, err := e.CreateComputeEffect(computeRequest())
	require.NoError(t, err)
	args, err := e.CreateIndirectBuffer("args", floatBytes(0, 0, 0))
	require.NoError(t, err)
	data, err := e.CreateStorageBuffer("data", 64)
	require.NoError(t, err)
	ctx := NewComputeContext()
	ctx.SetBuffer("data", data)

	require.NoError(t, e.BeginFrame())
	require.NoError(t, e.ComputeDispatch(fx, ctx, 4, 2, 1))
	require.NoError(t, e.ComputeDispatchIndirect(fx, ctx, args, 0))
	assert.Zero(t, e.PendingComputeDispatches())
	require.NoError(t, e.EndFrame())

	assert.Equal(t, 2, dev.Count("dispatch"))
	assert.Empty(t, dev.Errors())

	_, err = e.CreateComputeEffect(colorRequest())
	assert.ErrorIs(t, err, shaders.ErrNoEntryPoint)
	tri := newTriangleDraw(t, e, 0, 0, 0, 1)
	assert.ErrorIs(t, e.ComputeDispatch(tri.fx, ctx, 1, 1, 1), ErrNoEffect)
}
