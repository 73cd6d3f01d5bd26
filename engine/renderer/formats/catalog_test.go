package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

var allTypes = []TextureType{
	TypeUnsignedByte, TypeByte, TypeShort, TypeUnsignedShort, TypeInt, TypeUnsignedInt,
	TypeFloat, TypeHalfFloat, TypeUnsignedInt2101010Rev, TypeUnsignedInt10F11F11FRev,
	TypeUnsignedInt5999Rev, TypeUnsignedInt248,
}

func TestToNativeFormatSupportedPairs(t *testing.T) {
	pairs := SupportedPairs()
	require.NotEmpty(t, pairs)
	for _, p := range pairs {
		native, err := ToNativeFormat(p.Type, p.Format, false)
		require.NoError(t, err, "%s/%s", p.Type, p.Format)
		assert.NotEqual(t, hal.TextureFormatUndefined, native, "%s/%s", p.Type, p.Format)

		// Every translated color format has a known size.
		_, err = GetBlockInfo(native)
		assert.NoError(t, err, "%s/%s", p.Type, p.Format)
	}
}

func TestToNativeFormatUnsupported(t *testing.T) {
	for _, f := range []TextureFormat{FormatRGB, FormatLuminanceAlpha, FormatLuminance, FormatAlpha, FormatRGBInteger} {
		assert.True(t, IsUnsupported(f))
		for _, typ := range allTypes {
			_, err := ToNativeFormat(typ, f, false)
			assert.ErrorIs(t, err, ErrUnsupportedFormat, "%s/%s", typ, f)
			_, err = ToNativeFormat(typ, f, true)
			assert.ErrorIs(t, err, ErrUnsupportedFormat, "%s/%s srgb", typ, f)
		}
	}
}

func TestToNativeFormatUnknownPair(t *testing.T) {
	// Floats have no integer layout.
	_, err := ToNativeFormat(TypeFloat, FormatRGBAInteger, false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestToNativeFormatSRGB(t *testing.T) {
	native, err := ToNativeFormat(TypeUnsignedByte, FormatRGBA, true)
	require.NoError(t, err)
	assert.Equal(t, hal.TextureFormatRGBA8UnormSrgb, native)
	assert.True(t, IsSRGB(native))

	// Formats without an sRGB sibling are returned as is.
	native, err = ToNativeFormat(TypeFloat, FormatRGBA, true)
	require.NoError(t, err)
	assert.Equal(t, hal.TextureFormatRGBA32Float, native)
}

func TestToNativeFormatTypeless(t *testing.T) {
	for _, typ := range allTypes {
		native, err := ToNativeFormat(typ, FormatDepth24Stencil8, false)
		require.NoError(t, err)
		assert.Equal(t, hal.TextureFormatDepth24PlusStencil8, native)
	}
	native, err := ToNativeFormat(TypeUnsignedByte, FormatCompressedBC3, true)
	require.NoError(t, err)
	assert.Equal(t, hal.TextureFormatBC3RGBAUnormSrgb, native)
}

func TestBlockInfo(t *testing.T) {
	tests := []struct {
		format hal.TextureFormat
		want   BlockInfo
	}{
		{hal.TextureFormatR8Unorm, BlockInfo{1, 1, 1}},
		{hal.TextureFormatRGBA8Unorm, BlockInfo{1, 1, 4}},
		{hal.TextureFormatRGBA16Float, BlockInfo{1, 1, 8}},
		{hal.TextureFormatRGBA32Float, BlockInfo{1, 1, 16}},
		{hal.TextureFormatDepth16Unorm, BlockInfo{1, 1, 2}},
		{hal.TextureFormatDepth32Float, BlockInfo{1, 1, 4}},
		{hal.TextureFormatBC1RGBAUnorm, BlockInfo{4, 4, 8}},
		{hal.TextureFormatBC7RGBAUnorm, BlockInfo{4, 4, 16}},
		{hal.TextureFormatETC2RGB8Unorm, BlockInfo{4, 4, 8}},
		{hal.TextureFormatASTC10x6Unorm, BlockInfo{10, 6, 16}},
	}
	for _, tt := range tests {
		got, err := GetBlockInfo(tt.format)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "format %d", tt.format)
	}
}

func TestBlockInfoNoFixedSize(t *testing.T) {
	for _, f := range []hal.TextureFormat{
		hal.TextureFormatStencil8,
		hal.TextureFormatDepth24Plus,
		hal.TextureFormatDepth24PlusStencil8,
		hal.TextureFormatDepth32FloatStencil8,
	} {
		_, err := GetBlockInfo(f)
		assert.ErrorIs(t, err, ErrNoFixedSize)
		_, err = ChannelCount(f)
		assert.ErrorIs(t, err, ErrNoFixedSize)
	}
	_, err := GetBlockInfo(hal.TextureFormatUndefined)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestBlockInfoTotal(t *testing.T) {
	for f := hal.TextureFormat(1); int(f) < hal.TextureFormatCount; f++ {
		_, err := GetBlockInfo(f)
		if f == hal.TextureFormatStencil8 || f == hal.TextureFormatDepth24Plus ||
			f == hal.TextureFormatDepth24PlusStencil8 || f == hal.TextureFormatDepth32FloatStencil8 {
			assert.ErrorIs(t, err, ErrNoFixedSize)
			continue
		}
		assert.NoError(t, err, "format %d", f)
	}
}

func TestChannelCount(t *testing.T) {
	n, err := ChannelCount(hal.TextureFormatRG16Float)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = ChannelCount(hal.TextureFormatRG11B10Ufloat)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = ChannelCount(hal.TextureFormatBC4RUnorm)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRowPitch(t *testing.T) {
	bpr, err := BytesPerRow(hal.TextureFormatRGBA8Unorm, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 400, bpr)

	bpr, err = BytesPerRow(hal.TextureFormatBC1RGBAUnorm, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 24, bpr)

	rows, err := RowCount(hal.TextureFormatBC1RGBAUnorm, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, rows)
}

func TestFormatPredicates(t *testing.T) {
	assert.True(t, HasDepth(hal.TextureFormatDepth24PlusStencil8))
	assert.True(t, HasStencil(hal.TextureFormatDepth24PlusStencil8))
	assert.False(t, HasDepth(hal.TextureFormatStencil8))
	assert.True(t, IsDepthOrStencil(hal.TextureFormatStencil8))
	assert.True(t, IsCompressed(hal.TextureFormatASTC4x4Unorm))
	assert.False(t, IsCompressed(hal.TextureFormatRGBA8Unorm))

	assert.Equal(t, hal.TextureSampleTypeUnfilterableFloat, SampleType(hal.TextureFormatR32Float, false))
	assert.Equal(t, hal.TextureSampleTypeFloat, SampleType(hal.TextureFormatR32Float, true))
	assert.Equal(t, hal.TextureSampleTypeFloat, SampleType(hal.TextureFormatRGBA16Float, false))
	assert.Equal(t, hal.TextureSampleTypeUint, SampleType(hal.TextureFormatRGBA8Uint, false))
	assert.Equal(t, hal.TextureSampleTypeDepth, SampleType(hal.TextureFormatDepth32Float, false))

	assert.Equal(t, hal.TextureAspectStencilOnly, Aspect(hal.TextureFormatStencil8))
	assert.Equal(t, hal.TextureAspectDepthOnly, Aspect(hal.TextureFormatDepth32Float))
	assert.Equal(t, hal.TextureAspectAll, Aspect(hal.TextureFormatRGBA8Unorm))
}
