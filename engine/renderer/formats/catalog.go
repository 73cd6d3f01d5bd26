package formats

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type formatKey struct {
	t TextureType
	f TextureFormat
}

// nativeFormats is the supported (type, format) matrix for color data.
var nativeFormats = map[formatKey]hal.TextureFormat{
	{TypeUnsignedByte, FormatRed}:         hal.TextureFormatR8Unorm,
	{TypeUnsignedByte, FormatRG}:          hal.TextureFormatRG8Unorm,
	{TypeUnsignedByte, FormatRGBA}:        hal.TextureFormatRGBA8Unorm,
	{TypeUnsignedByte, FormatBGRA}:        hal.TextureFormatBGRA8Unorm,
	{TypeUnsignedByte, FormatRedInteger}:  hal.TextureFormatR8Uint,
	{TypeUnsignedByte, FormatRGInteger}:   hal.TextureFormatRG8Uint,
	{TypeUnsignedByte, FormatRGBAInteger}: hal.TextureFormatRGBA8Uint,

	{TypeByte, FormatRed}:         hal.TextureFormatR8Snorm,
	{TypeByte, FormatRG}:          hal.TextureFormatRG8Snorm,
	{TypeByte, FormatRGBA}:        hal.TextureFormatRGBA8Snorm,
	{TypeByte, FormatRedInteger}:  hal.TextureFormatR8Sint,
	{TypeByte, FormatRGInteger}:   hal.TextureFormatRG8Sint,
	{TypeByte, FormatRGBAInteger}: hal.TextureFormatRGBA8Sint,

	{TypeShort, FormatRedInteger}:  hal.TextureFormatR16Sint,
	{TypeShort, FormatRGInteger}:   hal.TextureFormatRG16Sint,
	{TypeShort, FormatRGBAInteger}: hal.TextureFormatRGBA16Sint,

	{TypeUnsignedShort, FormatRedInteger}:  hal.TextureFormatR16Uint,
	{TypeUnsignedShort, FormatRGInteger}:   hal.TextureFormatRG16Uint,
	{TypeUnsignedShort, FormatRGBAInteger}: hal.TextureFormatRGBA16Uint,

	{TypeInt, FormatRedInteger}:  hal.TextureFormatR32Sint,
	{TypeInt, FormatRGInteger}:   hal.TextureFormatRG32Sint,
	{TypeInt, FormatRGBAInteger}: hal.TextureFormatRGBA32Sint,

	{TypeUnsignedInt, FormatRedInteger}:  hal.TextureFormatR32Uint,
	{TypeUnsignedInt, FormatRGInteger}:   hal.TextureFormatRG32Uint,
	{TypeUnsignedInt, FormatRGBAInteger}: hal.TextureFormatRGBA32Uint,

	{TypeFloat, FormatRed}:  hal.TextureFormatR32Float,
	{TypeFloat, FormatRG}:   hal.TextureFormatRG32Float,
	{TypeFloat, FormatRGBA}: hal.TextureFormatRGBA32Float,

	{TypeHalfFloat, FormatRed}:  hal.TextureFormatR16Float,
	{TypeHalfFloat, FormatRG}:   hal.TextureFormatRG16Float,
	{TypeHalfFloat, FormatRGBA}: hal.TextureFormatRGBA16Float,

	{TypeUnsignedInt2101010Rev, FormatRGBA}:   hal.TextureFormatRGB10A2Unorm,
	{TypeUnsignedInt10F11F11FRev, FormatRGBA}: hal.TextureFormatRG11B10Ufloat,
	{TypeUnsignedInt5999Rev, FormatRGBA}:      hal.TextureFormatRGB9E5Ufloat,
}

// typeless formats ignore the texture type.
var typelessFormats = map[TextureFormat]hal.TextureFormat{
	FormatDepth16:              hal.TextureFormatDepth16Unorm,
	FormatDepth24:              hal.TextureFormatDepth24Plus,
	FormatDepth24Stencil8:      hal.TextureFormatDepth24PlusStencil8,
	FormatDepth32Float:         hal.TextureFormatDepth32Float,
	FormatDepth32FloatStencil8: hal.TextureFormatDepth32FloatStencil8,
	FormatStencil8:             hal.TextureFormatStencil8,
	FormatCompressedBC1:        hal.TextureFormatBC1RGBAUnorm,
	FormatCompressedBC2:        hal.TextureFormatBC2RGBAUnorm,
	FormatCompressedBC3:        hal.TextureFormatBC3RGBAUnorm,
	FormatCompressedBC4:        hal.TextureFormatBC4RUnorm,
	FormatCompressedBC5:        hal.TextureFormatBC5RGUnorm,
	FormatCompressedBC6HUfloat: hal.TextureFormatBC6HRGBUfloat,
	FormatCompressedBC6HFloat:  hal.TextureFormatBC6HRGBFloat,
	FormatCompressedBC7:        hal.TextureFormatBC7RGBAUnorm,
	FormatCompressedETC2RGB8:   hal.TextureFormatETC2RGB8Unorm,
	FormatCompressedETC2RGB8A1: hal.TextureFormatETC2RGB8A1Unorm,
	FormatCompressedETC2RGBA8:  hal.TextureFormatETC2RGBA8Unorm,
	FormatCompressedASTC4x4:    hal.TextureFormatASTC4x4Unorm,
	FormatCompressedASTC6x6:    hal.TextureFormatASTC6x6Unorm,
	FormatCompressedASTC8x8:    hal.TextureFormatASTC8x8Unorm,
	FormatCompressedASTC12x12:  hal.TextureFormatASTC12x12Unorm,
}

// Layouts WebGPU has no format for, whatever the type.
var unsupportedFormats = map[TextureFormat]struct{}{
	FormatAlpha:          {},
	FormatLuminance:      {},
	FormatLuminanceAlpha: {},
	FormatRGB:            {},
	FormatRGBInteger:     {},
}

var srgbVariants = map[hal.TextureFormat]hal.TextureFormat{
	hal.TextureFormatRGBA8Unorm:      hal.TextureFormatRGBA8UnormSrgb,
	hal.TextureFormatBGRA8Unorm:      hal.TextureFormatBGRA8UnormSrgb,
	hal.TextureFormatBC1RGBAUnorm:    hal.TextureFormatBC1RGBAUnormSrgb,
	hal.TextureFormatBC2RGBAUnorm:    hal.TextureFormatBC2RGBAUnormSrgb,
	hal.TextureFormatBC3RGBAUnorm:    hal.TextureFormatBC3RGBAUnormSrgb,
	hal.TextureFormatBC7RGBAUnorm:    hal.TextureFormatBC7RGBAUnormSrgb,
	hal.TextureFormatETC2RGB8Unorm:   hal.TextureFormatETC2RGB8UnormSrgb,
	hal.TextureFormatETC2RGB8A1Unorm: hal.TextureFormatETC2RGB8A1UnormSrgb,
	hal.TextureFormatETC2RGBA8Unorm:  hal.TextureFormatETC2RGBA8UnormSrgb,
	hal.TextureFormatASTC4x4Unorm:    hal.TextureFormatASTC4x4UnormSrgb,
	hal.TextureFormatASTC6x6Unorm:    hal.TextureFormatASTC6x6UnormSrgb,
	hal.TextureFormatASTC8x8Unorm:    hal.TextureFormatASTC8x8UnormSrgb,
	hal.TextureFormatASTC12x12Unorm:  hal.TextureFormatASTC12x12UnormSrgb,
}

// ToNativeFormat maps an engine (type, format) pair to the native format.
// Pairs WebGPU cannot represent fail with ErrUnsupportedFormat; there is no
// silent fallback.
func ToNativeFormat(t TextureType, f TextureFormat, useSRGB bool) (hal.TextureFormat, error) {
	if _, ok := unsupportedFormats[f]; ok {
		return hal.TextureFormatUndefined, fmt.Errorf("%s/%s: %w", t, f, ErrUnsupportedFormat)
	}
	native, ok := typelessFormats[f]
	if !ok {
		native, ok = nativeFormats[formatKey{t, f}]
	}
	if !ok {
		return hal.TextureFormatUndefined, fmt.Errorf("%s/%s: %w", t, f, ErrUnsupportedFormat)
	}
	if useSRGB {
		if s, ok := srgbVariants[native]; ok {
			native = s
		}
	}
	return native, nil
}

// Pair is one (type, format) combination.
type Pair struct {
	Type   TextureType
	Format TextureFormat
}

// SupportedPairs lists every (type, format) pair ToNativeFormat accepts for
// color data. Depth, stencil and compressed layouts accept any type.
func SupportedPairs() []Pair {
	pairs := make([]Pair, 0, len(nativeFormats))
	for k := range nativeFormats {
		pairs = append(pairs, Pair{Type: k.t, Format: k.f})
	}
	return pairs
}

// IsUnsupported reports whether f is documented as having no native format.
func IsUnsupported(f TextureFormat) bool {
	_, ok := unsupportedFormats[f]
	return ok
}
