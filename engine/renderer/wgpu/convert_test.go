package wgpu

import (
	"testing"

	native "github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

func TestTextureFormatsAreTotal(t *testing.T) {
	seen := make(map[native.TextureFormat]hal.TextureFormat)
	for f := hal.TextureFormat(1); int(f) < hal.TextureFormatCount; f++ {
		n := textureFormat(f)
		if !assert.NotEqual(t, native.TextureFormatUndefined, n, "format %d", f) {
			continue
		}
		if prev, dup := seen[n]; dup {
			t.Errorf("formats %d and %d map to the same native format", prev, f)
		}
		seen[n] = f

		back, ok := halTextureFormat(n)
		assert.True(t, ok)
		assert.Equal(t, f, back)
	}
	assert.Equal(t, native.TextureFormatUndefined, textureFormat(hal.TextureFormat(hal.TextureFormatCount+3)))
	_, ok := halTextureFormat(native.TextureFormatUndefined)
	assert.False(t, ok)
}

func TestUsageFlags(t *testing.T) {
	assert.Equal(t,
		native.TextureUsageRenderAttachment|native.TextureUsageCopySrc,
		textureUsage(hal.TextureUsageRenderAttachment|hal.TextureUsageCopySrc))
	assert.Equal(t,
		native.BufferUsageVertex|native.BufferUsageCopyDst|native.BufferUsageIndirect,
		bufferUsage(hal.BufferUsageVertex|hal.BufferUsageCopyDst|hal.BufferUsageIndirect))
	assert.Equal(t, native.ShaderStageVertex|native.ShaderStageFragment,
		shaderStage(hal.ShaderStageVertex|hal.ShaderStageFragment))
	assert.Equal(t, native.ColorWriteMaskAll, colorWriteMask(hal.ColorWriteMaskAll))
	assert.Equal(t, native.ColorWriteMaskNone, colorWriteMask(hal.ColorWriteMaskNone))
}

func TestFeaturesRoundTrip(t *testing.T) {
	want := hal.Features{TextureCompressionBC: true, Depth32FloatStencil8: true}
	names := requiredFeatures(want)
	assert.Len(t, names, 2)

	has := func(n native.FeatureName) bool {
		for _, m := range names {
			if m == n {
				return true
			}
		}
		return false
	}
	assert.Equal(t, want, halFeatures(has))
}

func TestAspectsOfDepthFormats(t *testing.T) {
	assert.True(t, hasDepth(hal.TextureFormatDepth24PlusStencil8))
	assert.True(t, hasStencil(hal.TextureFormatDepth24PlusStencil8))
	assert.True(t, hasDepth(hal.TextureFormatDepth32Float))
	assert.False(t, hasStencil(hal.TextureFormatDepth32Float))
	assert.False(t, hasDepth(hal.TextureFormatStencil8))
	assert.False(t, hasDepth(hal.TextureFormatRGBA8Unorm))
}

func TestWholeSize(t *testing.T) {
	assert.Equal(t, uint64(native.WholeSize), wholeSize(0))
	assert.Equal(t, uint64(native.WholeSize), wholeSize(hal.WholeSize))
	assert.Equal(t, uint64(64), wholeSize(64))
}
