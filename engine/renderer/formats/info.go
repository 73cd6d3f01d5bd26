package formats

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// BlockInfo is the footprint of one texel block. Uncompressed formats have
// 1x1 blocks.
type BlockInfo struct {
	Width      uint32
	Height     uint32
	ByteLength uint32
}

type kind uint8

const (
	kindFloat kind = iota
	kindFloat32
	kindUint
	kindSint
	kindDepth
	kindStencil
	kindDepthStencil
	kindCompressed
)

type info struct {
	block    BlockInfo
	channels uint32
	kind     kind
	sized    bool
}

func plain(bytes, channels uint32, k kind) info {
	return info{block: BlockInfo{1, 1, bytes}, channels: channels, kind: k, sized: true}
}

func compressed(w, h, bytes, channels uint32) info {
	return info{block: BlockInfo{w, h, bytes}, channels: channels, kind: kindCompressed, sized: true}
}

func unsized(channels uint32, k kind) info {
	return info{channels: channels, kind: k}
}

var table = map[hal.TextureFormat]info{
	hal.TextureFormatR8Unorm: plain(1, 1, kindFloat),
	hal.TextureFormatR8Snorm: plain(1, 1, kindFloat),
	hal.TextureFormatR8Uint:  plain(1, 1, kindUint),
	hal.TextureFormatR8Sint:  plain(1, 1, kindSint),

	hal.TextureFormatR16Uint:  plain(2, 1, kindUint),
	hal.TextureFormatR16Sint:  plain(2, 1, kindSint),
	hal.TextureFormatR16Float: plain(2, 1, kindFloat),
	hal.TextureFormatRG8Unorm: plain(2, 2, kindFloat),
	hal.TextureFormatRG8Snorm: plain(2, 2, kindFloat),
	hal.TextureFormatRG8Uint:  plain(2, 2, kindUint),
	hal.TextureFormatRG8Sint:  plain(2, 2, kindSint),

	hal.TextureFormatR32Uint:        plain(4, 1, kindUint),
	hal.TextureFormatR32Sint:        plain(4, 1, kindSint),
	hal.TextureFormatR32Float:       plain(4, 1, kindFloat32),
	hal.TextureFormatRG16Uint:       plain(4, 2, kindUint),
	hal.TextureFormatRG16Sint:       plain(4, 2, kindSint),
	hal.TextureFormatRG16Float:      plain(4, 2, kindFloat),
	hal.TextureFormatRGBA8Unorm:     plain(4, 4, kindFloat),
	hal.TextureFormatRGBA8UnormSrgb: plain(4, 4, kindFloat),
	hal.TextureFormatRGBA8Snorm:     plain(4, 4, kindFloat),
	hal.TextureFormatRGBA8Uint:      plain(4, 4, kindUint),
	hal.TextureFormatRGBA8Sint:      plain(4, 4, kindSint),
	hal.TextureFormatBGRA8Unorm:     plain(4, 4, kindFloat),
	hal.TextureFormatBGRA8UnormSrgb: plain(4, 4, kindFloat),
	hal.TextureFormatRGB10A2Unorm:   plain(4, 4, kindFloat),
	hal.TextureFormatRG11B10Ufloat:  plain(4, 3, kindFloat),
	hal.TextureFormatRGB9E5Ufloat:   plain(4, 3, kindFloat),

	hal.TextureFormatRG32Uint:    plain(8, 2, kindUint),
	hal.TextureFormatRG32Sint:    plain(8, 2, kindSint),
	hal.TextureFormatRG32Float:   plain(8, 2, kindFloat32),
	hal.TextureFormatRGBA16Uint:  plain(8, 4, kindUint),
	hal.TextureFormatRGBA16Sint:  plain(8, 4, kindSint),
	hal.TextureFormatRGBA16Float: plain(8, 4, kindFloat),

	hal.TextureFormatRGBA32Uint:  plain(16, 4, kindUint),
	hal.TextureFormatRGBA32Sint:  plain(16, 4, kindSint),
	hal.TextureFormatRGBA32Float: plain(16, 4, kindFloat32),

	hal.TextureFormatStencil8:             unsized(1, kindStencil),
	hal.TextureFormatDepth16Unorm:         plain(2, 1, kindDepth),
	hal.TextureFormatDepth24Plus:          unsized(1, kindDepth),
	hal.TextureFormatDepth24PlusStencil8:  unsized(2, kindDepthStencil),
	hal.TextureFormatDepth32Float:         plain(4, 1, kindDepth),
	hal.TextureFormatDepth32FloatStencil8: unsized(2, kindDepthStencil),

	hal.TextureFormatBC1RGBAUnorm:     compressed(4, 4, 8, 4),
	hal.TextureFormatBC1RGBAUnormSrgb: compressed(4, 4, 8, 4),
	hal.TextureFormatBC2RGBAUnorm:     compressed(4, 4, 16, 4),
	hal.TextureFormatBC2RGBAUnormSrgb: compressed(4, 4, 16, 4),
	hal.TextureFormatBC3RGBAUnorm:     compressed(4, 4, 16, 4),
	hal.TextureFormatBC3RGBAUnormSrgb: compressed(4, 4, 16, 4),
	hal.TextureFormatBC4RUnorm:        compressed(4, 4, 8, 1),
	hal.TextureFormatBC4RSnorm:        compressed(4, 4, 8, 1),
	hal.TextureFormatBC5RGUnorm:       compressed(4, 4, 16, 2),
	hal.TextureFormatBC5RGSnorm:       compressed(4, 4, 16, 2),
	hal.TextureFormatBC6HRGBUfloat:    compressed(4, 4, 16, 3),
	hal.TextureFormatBC6HRGBFloat:     compressed(4, 4, 16, 3),
	hal.TextureFormatBC7RGBAUnorm:     compressed(4, 4, 16, 4),
	hal.TextureFormatBC7RGBAUnormSrgb: compressed(4, 4, 16, 4),

	hal.TextureFormatETC2RGB8Unorm:       compressed(4, 4, 8, 3),
	hal.TextureFormatETC2RGB8UnormSrgb:   compressed(4, 4, 8, 3),
	hal.TextureFormatETC2RGB8A1Unorm:     compressed(4, 4, 8, 4),
	hal.TextureFormatETC2RGB8A1UnormSrgb: compressed(4, 4, 8, 4),
	hal.TextureFormatETC2RGBA8Unorm:      compressed(4, 4, 16, 4),
	hal.TextureFormatETC2RGBA8UnormSrgb:  compressed(4, 4, 16, 4),
	hal.TextureFormatEACR11Unorm:         compressed(4, 4, 8, 1),
	hal.TextureFormatEACR11Snorm:         compressed(4, 4, 8, 1),
	hal.TextureFormatEACRG11Unorm:        compressed(4, 4, 16, 2),
	hal.TextureFormatEACRG11Snorm:        compressed(4, 4, 16, 2),

	hal.TextureFormatASTC4x4Unorm:       compressed(4, 4, 16, 4),
	hal.TextureFormatASTC4x4UnormSrgb:   compressed(4, 4, 16, 4),
	hal.TextureFormatASTC5x4Unorm:       compressed(5, 4, 16, 4),
	hal.TextureFormatASTC5x4UnormSrgb:   compressed(5, 4, 16, 4),
	hal.TextureFormatASTC5x5Unorm:       compressed(5, 5, 16, 4),
	hal.TextureFormatASTC5x5UnormSrgb:   compressed(5, 5, 16, 4),
	hal.TextureFormatASTC6x5Unorm:       compressed(6, 5, 16, 4),
	hal.TextureFormatASTC6x5UnormSrgb:   compressed(6, 5, 16, 4),
	hal.TextureFormatASTC6x6Unorm:       compressed(6, 6, 16, 4),
	hal.TextureFormatASTC6x6UnormSrgb:   compressed(6, 6, 16, 4),
	hal.TextureFormatASTC8x5Unorm:       compressed(8, 5, 16, 4),
	hal.TextureFormatASTC8x5UnormSrgb:   compressed(8, 5, 16, 4),
	hal.TextureFormatASTC8x6Unorm:       compressed(8, 6, 16, 4),
	hal.TextureFormatASTC8x6UnormSrgb:   compressed(8, 6, 16, 4),
	hal.TextureFormatASTC8x8Unorm:       compressed(8, 8, 16, 4),
	hal.TextureFormatASTC8x8UnormSrgb:   compressed(8, 8, 16, 4),
	hal.TextureFormatASTC10x5Unorm:      compressed(10, 5, 16, 4),
	hal.TextureFormatASTC10x5UnormSrgb:  compressed(10, 5, 16, 4),
	hal.TextureFormatASTC10x6Unorm:      compressed(10, 6, 16, 4),
	hal.TextureFormatASTC10x6UnormSrgb:  compressed(10, 6, 16, 4),
	hal.TextureFormatASTC10x8Unorm:      compressed(10, 8, 16, 4),
	hal.TextureFormatASTC10x8UnormSrgb:  compressed(10, 8, 16, 4),
	hal.TextureFormatASTC10x10Unorm:     compressed(10, 10, 16, 4),
	hal.TextureFormatASTC10x10UnormSrgb: compressed(10, 10, 16, 4),
	hal.TextureFormatASTC12x10Unorm:     compressed(12, 10, 16, 4),
	hal.TextureFormatASTC12x10UnormSrgb: compressed(12, 10, 16, 4),
	hal.TextureFormatASTC12x12Unorm:     compressed(12, 12, 16, 4),
	hal.TextureFormatASTC12x12UnormSrgb: compressed(12, 12, 16, 4),
}

func lookup(f hal.TextureFormat) (info, error) {
	in, ok := table[f]
	if !ok {
		return info{}, fmt.Errorf("native format %d: %w", f, ErrUnsupportedFormat)
	}
	return in, nil
}

// GetBlockInfo returns the texel block footprint of f. Stencil-only and
// unsized depth formats return ErrNoFixedSize; callers special-case them.
func GetBlockInfo(f hal.TextureFormat) (BlockInfo, error) {
	in, err := lookup(f)
	if err != nil {
		return BlockInfo{}, err
	}
	if !in.sized {
		return BlockInfo{}, fmt.Errorf("native format %d: %w", f, ErrNoFixedSize)
	}
	return in.block, nil
}

// ChannelCount returns the number of channels stored by f, with the same
// failure set as GetBlockInfo.
func ChannelCount(f hal.TextureFormat) (uint32, error) {
	in, err := lookup(f)
	if err != nil {
		return 0, err
	}
	if !in.sized {
		return 0, fmt.Errorf("native format %d: %w", f, ErrNoFixedSize)
	}
	return in.channels, nil
}

// BytesPerRow returns the tightly packed row pitch of width texels.
func BytesPerRow(f hal.TextureFormat, width uint32) (uint32, error) {
	b, err := GetBlockInfo(f)
	if err != nil {
		return 0, err
	}
	return (width + b.Width - 1) / b.Width * b.ByteLength, nil
}

// RowCount returns the number of block rows covering height texels.
func RowCount(f hal.TextureFormat, height uint32) (uint32, error) {
	b, err := GetBlockInfo(f)
	if err != nil {
		return 0, err
	}
	return (height + b.Height - 1) / b.Height, nil
}

func IsCompressed(f hal.TextureFormat) bool {
	return table[f].kind == kindCompressed
}

func HasDepth(f hal.TextureFormat) bool {
	k := table[f].kind
	return k == kindDepth || k == kindDepthStencil
}

func HasStencil(f hal.TextureFormat) bool {
	k := table[f].kind
	return k == kindStencil || k == kindDepthStencil
}

func IsDepthOrStencil(f hal.TextureFormat) bool {
	return HasDepth(f) || HasStencil(f)
}

// IsFloat32 reports whether f stores 32-bit floats, which are not
// filterable unless the device exposes float32-filterable.
func IsFloat32(f hal.TextureFormat) bool {
	return table[f].kind == kindFloat32
}

func IsSRGB(f hal.TextureFormat) bool {
	for _, s := range srgbVariants {
		if s == f {
			return true
		}
	}
	return false
}

// SampleType returns the binding sample type for f. Float32 formats are
// reported as unfilterable when the device cannot filter them.
func SampleType(f hal.TextureFormat, float32Filterable bool) hal.TextureSampleType {
	switch table[f].kind {
	case kindUint:
		return hal.TextureSampleTypeUint
	case kindSint:
		return hal.TextureSampleTypeSint
	case kindDepth, kindDepthStencil:
		return hal.TextureSampleTypeDepth
	case kindStencil:
		return hal.TextureSampleTypeUint
	case kindFloat32:
		if float32Filterable {
			return hal.TextureSampleTypeFloat
		}
		return hal.TextureSampleTypeUnfilterableFloat
	}
	return hal.TextureSampleTypeFloat
}

// Aspect returns the aspect to address when copying a single plane of f.
func Aspect(f hal.TextureFormat) hal.TextureAspect {
	switch table[f].kind {
	case kindStencil:
		return hal.TextureAspectStencilOnly
	case kindDepth:
		return hal.TextureAspectDepthOnly
	}
	return hal.TextureAspectAll
}
