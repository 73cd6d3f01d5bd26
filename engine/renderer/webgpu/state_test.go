package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal/haltest"
)

func TestDirtyStatesSkipRepeatedValues(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tri := newTriangleDraw(t, e, 1, 0, 0, 1)

	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	e.SetViewport(0, 0, 32, 32)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	e.SetViewport(0, 0, 32, 32)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	require.NoError(t, e.EndFrame())
	assert.Equal(t, 1, dev.Count("setViewport"))

	dev.ResetTrace()
	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	e.SetViewport(0, 0, 16, 16)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	e.SetViewport(0, 0, 32, 32)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	e.SetStencilReference(3)
	e.SetBlendConstant(hal.Color{R: 1})
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	require.NoError(t, e.EndFrame())
	assert.Equal(t, 2, dev.Count("setViewport"))
	assert.Equal(t, 1, dev.Count("setStencilReference"))
	assert.Equal(t, 1, dev.Count("setBlendConstant"))
	assert.Empty(t, dev.Errors())
}

func TestDirtyStatesResetWithEachPass(t *testing.T) {
	e, _, dev := newTestEngine(t, func(o *Options) { o.CompatibilityMode = true })
	tri := newTriangleDraw(t, e, 1, 0, 0, 1)

	for i := 0; i < 2; i++ {
		require.NoError(t, e.BeginFrame())
		tri.enable(e)
		e.SetViewport(0, 0, 32, 32)
		require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
		require.NoError(t, e.EndFrame())
	}
	// The viewport is reapplied in the pass of the second frame.
	assert.Equal(t, 2, dev.Count("setViewport"))
}

func TestViewportLimitsDraw(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tri := newTriangleDraw(t, e, 0, 1, 0, 1)

	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	e.SetViewport(32, 32, 32, 32)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	require.NoError(t, e.EndFrame())

	bb := e.Backbuffer().Hardware().Texture().(*haltest.Texture)
	inside, _ := bb.Pixel(0, 0, 48, 48)
	outside, _ := bb.Pixel(0, 0, 16, 32)
	assert.InDelta(t, 1.0, inside[1], 0.01)
	assert.InDelta(t, 0.0, outside[1], 0.01)
	assert.Empty(t, dev.Errors())
}

func TestScissoredClearUsesClearQuad(t *testing.T) {
	e, _, dev := newTestEngine(t)
	red := hal.Color{R: 1, A: 1}

	require.NoError(t, e.BeginFrame())
	e.SetScissor(0, 0, 8, 8)
	require.NoError(t, e.Clear(&red, nil, nil))
	e.DisableScissor()
	require.NoError(t, e.EndFrame())

	assert.Equal(t, 1, e.clearQuad.CachedBundles())
	assert.Equal(t, 1, dev.Count("executeBundle"))

	bb := e.Backbuffer().Hardware().Texture().(*haltest.Texture)
	in, _ := bb.Pixel(0, 0, 4, 4)
	out, _ := bb.Pixel(0, 0, 20, 20)
	assert.InDelta(t, 1.0, in[0], 0.01)
	assert.InDelta(t, 0.0, out[0], 0.01)
	assert.Empty(t, dev.Errors())
}

func TestFullClearBecomesLoadOp(t *testing.T) {
	e, _, dev := newTestEngine(t)
	blue := hal.Color{B: 1, A: 1}

	require.NoError(t, e.BeginFrame())
	require.NoError(t, e.Clear(&blue, nil, nil))
	require.NoError(t, e.EndFrame())

	assert.Zero(t, e.clearQuad.CachedBundles())
	assert.Equal(t, 1, dev.Count("beginRenderPass"))
	bb := e.Backbuffer().Hardware().Texture().(*haltest.Texture)
	c, _ := bb.Pixel(0, 0, 63, 63)
	assert.InDelta(t, 1.0, c[2], 0.01)
}

func TestClearQuadBundlesAreShared(t *testing.T) {
	e, _, dev := newTestEngine(t)
	q := e.clearQuad
	target := ClearTarget{
		ColorFormats:       []hal.TextureFormat{hal.TextureFormatRGBA8Unorm},
		DepthStencilFormat: hal.TextureFormatDepth24PlusStencil8,
		SampleCount:        1,
	}
	color := hal.Color{G: 1, A: 1}
	depth := float32(0.5)

	a, err := q.Clear(nil, target, &color, &depth, nil)
	require.NoError(t, err)
	b, err := q.Clear(nil, target, &color, &depth, nil)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, dev.Created("RenderBundle"))

	stencil := uint32(1)
	c, err := q.Clear(nil, target, &color, &depth, &stencil)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	q.SetReverseDepth(true)
	d, err := q.Clear(nil, target, &color, &depth, nil)
	require.NoError(t, err)
	assert.NotSame(t, a, d)
	assert.Equal(t, 3, q.CachedBundles())
}

func TestClearQuadCacheIsBounded(t *testing.T) {
	e, _, _ := newTestEngine(t, func(o *Options) { o.ClearBundleCacheSize = 2 })
	target := ClearTarget{ColorFormats: []hal.TextureFormat{hal.TextureFormatRGBA8Unorm}, SampleCount: 1}
	for i := 0; i < 5; i++ {
		c := hal.Color{R: float64(i) / 4, A: 1}
		_, err := e.clearQuad.Clear(nil, target, &c, nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, e.clearQuad.CachedBundles())
}

func TestPipelineCacheLookups(t *testing.T) {
	e, _, dev := newTestEngine(t)
	fx, err := e.CreateEffect(colorRequest())
	require.NoError(t, err)
	_, err = e.effectLayout(fx, 0)
	require.NoError(t, err)
	_, err = e.effectLayout(fx, 1)
	require.NoError(t, err)

	cache := NewRenderPipelineCache(e.Device(), false)
	cache.SetColorFormats([]hal.TextureFormat{hal.TextureFormatRGBA8Unorm})
	cache.SetDepthStencilFormat(hal.TextureFormatDepth24PlusStencil8)
	cache.SetDepthState(e.defaultDepthState())
	cache.SetStencilState(DefaultStencilState())
	cache.SetColorWriteMask(hal.ColorWriteMaskAll)

	first, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	again, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.Same(t, first, again)

	msaa, err := cache.GetRenderPipeline(FillModeTriangles, fx, 4, 0)
	require.NoError(t, err)
	assert.NotSame(t, first, msaa)

	masked, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 1)
	require.NoError(t, err)
	assert.NotSame(t, first, masked)

	lines, err := cache.GetRenderPipeline(FillModeLines, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, first, lines)

	cache.SetColorFormats([]hal.TextureFormat{hal.TextureFormatBGRA8Unorm})
	bgra, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, first, bgra)

	cache.SetAlphaMode(AlphaAdd)
	blended, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, bgra, blended)

	cache.SetDepthStencilFormat(hal.TextureFormatDepth32Float)
	depth32, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, blended, depth32)

	depthState := e.defaultDepthState()
	depthState.Compare = hal.CompareFunctionAlways
	cache.SetDepthState(depthState)
	always, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, depth32, always)

	cache.SetColorWriteMask(hal.ColorWriteMaskRed)
	redOnly, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, always, redOnly)

	req := colorRequest()
	req.Name = "test.color.copy"
	twin, err := e.CreateEffect(req)
	require.NoError(t, err)
	_, err = e.effectLayout(twin, 0)
	require.NoError(t, err)
	other, err := cache.GetRenderPipeline(FillModeTriangles, twin, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, redOnly, other)
	again, err = cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.Same(t, redOnly, again)
	assert.Equal(t, 10, cache.Created())

	cache.InvalidateEffect(fx.ID())
	rebuilt, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, blended, rebuilt)
	cache.EndFrame()
	cache.Release()
	assert.Empty(t, dev.Errors())
}

func TestPipelineCacheDisabled(t *testing.T) {
	e, _, dev := newTestEngine(t)
	fx, err := e.CreateEffect(colorRequest())
	require.NoError(t, err)
	_, err = e.effectLayout(fx, 0)
	require.NoError(t, err)

	before := dev.Created("RenderPipeline")
	cache := NewRenderPipelineCache(e.Device(), true)
	cache.SetColorFormats([]hal.TextureFormat{hal.TextureFormatRGBA8Unorm})
	a, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	b, err := cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, cache.Created())
	assert.Equal(t, before+2, dev.Created("RenderPipeline"))
}

func TestPipelineCacheRejectsComputeEffects(t *testing.T) {
	e, _, _ := newTestEngine(t)
	fx, err := e.CreateComputeEffect(computeRequest())
	require.NoError(t, err)
	cache := NewRenderPipelineCache(e.Device(), false)
	_, err = cache.GetRenderPipeline(FillModeTriangles, fx, 1, 0)
	assert.Error(t, err)
}

func TestBindGroupCacheEvictsIdleEntries(t *testing.T) {
	e, _, dev := newTestEngine(t)
	e.bindGroupCache.maxIdleFrames = 3
	tri := newTriangleDraw(t, e, 0, 1, 0, 1)

	transient := func() *DrawContext {
		draw := NewDrawContext()
		draw.SetVertexBuffers(tri.draw.vertexBuffers...)
		draw.SetBuffer("color", tri.color)
		return draw
	}
	drawWith := func(draw *DrawContext) {
		e.EnableDrawWrapper(DrawWrapper{Effect: tri.fx, DrawContext: draw, MaterialContext: tri.material})
		require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	}

	early := transient()
	for i := 0; i < 10; i++ {
		require.NoError(t, e.BeginFrame())
		tri.enable(e)
		require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
		if i == 0 {
			drawWith(early)
		} else {
			drawWith(transient())
		}
		require.NoError(t, e.EndFrame())
	}
	// the persistent context and the last three transient ones
	assert.Equal(t, 4, e.bindGroupCache.Len())
	assert.Nil(t, early.fastBundle)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.BeginFrame())
		tri.enable(e)
		require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
		require.NoError(t, e.EndFrame())
	}
	assert.Equal(t, 1, e.bindGroupCache.Len())
	assert.Equal(t, 1, e.CountersLastFrame.NumBundleReuseNonCompatMode)

	// an evicted context builds its groups and bundle again
	require.NoError(t, e.BeginFrame())
	drawWith(early)
	require.NoError(t, e.EndFrame())
	assert.Equal(t, 1, e.CountersLastFrame.NumBundleCreationNonCompatMode)
	assert.Equal(t, 2, e.bindGroupCache.Len())
	assert.Empty(t, dev.Errors())
}
