// Package formats translates engine texture types and formats into native
// GPU formats and answers size and channel questions about them.
package formats

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("texture format has no WebGPU equivalent")
	ErrNoFixedSize       = errors.New("texture format has no fixed texel size")
)

// TextureType is the component type of texture data.
type TextureType uint8

const (
	TypeUnsignedByte TextureType = iota
	TypeByte
	TypeShort
	TypeUnsignedShort
	TypeInt
	TypeUnsignedInt
	TypeFloat
	TypeHalfFloat
	TypeUnsignedInt2101010Rev
	TypeUnsignedInt10F11F11FRev
	TypeUnsignedInt5999Rev
	TypeUnsignedInt248
)

// TextureFormat is the channel layout of texture data.
type TextureFormat uint8

const (
	FormatAlpha TextureFormat = iota
	FormatLuminance
	FormatLuminanceAlpha
	FormatRed
	FormatRG
	FormatRGB
	FormatRGBA
	FormatBGRA
	FormatRedInteger
	FormatRGInteger
	FormatRGBInteger
	FormatRGBAInteger

	FormatDepth16
	FormatDepth24
	FormatDepth24Stencil8
	FormatDepth32Float
	FormatDepth32FloatStencil8
	FormatStencil8

	FormatCompressedBC1
	FormatCompressedBC2
	FormatCompressedBC3
	FormatCompressedBC4
	FormatCompressedBC5
	FormatCompressedBC6HUfloat
	FormatCompressedBC6HFloat
	FormatCompressedBC7
	FormatCompressedETC2RGB8
	FormatCompressedETC2RGB8A1
	FormatCompressedETC2RGBA8
	FormatCompressedASTC4x4
	FormatCompressedASTC6x6
	FormatCompressedASTC8x8
	FormatCompressedASTC12x12
)

var typeNames = map[TextureType]string{
	TypeUnsignedByte:            "unsigned_byte",
	TypeByte:                    "byte",
	TypeShort:                   "short",
	TypeUnsignedShort:           "unsigned_short",
	TypeInt:                     "int",
	TypeUnsignedInt:             "unsigned_int",
	TypeFloat:                   "float",
	TypeHalfFloat:               "half_float",
	TypeUnsignedInt2101010Rev:   "unsigned_int_2_10_10_10_rev",
	TypeUnsignedInt10F11F11FRev: "unsigned_int_10f_11f_11f_rev",
	TypeUnsignedInt5999Rev:      "unsigned_int_5_9_9_9_rev",
	TypeUnsignedInt248:          "unsigned_int_24_8",
}

func (t TextureType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

var formatNames = map[TextureFormat]string{
	FormatAlpha:                "alpha",
	FormatLuminance:            "luminance",
	FormatLuminanceAlpha:       "luminance_alpha",
	FormatRed:                  "red",
	FormatRG:                   "rg",
	FormatRGB:                  "rgb",
	FormatRGBA:                 "rgba",
	FormatBGRA:                 "bgra",
	FormatRedInteger:           "red_integer",
	FormatRGInteger:            "rg_integer",
	FormatRGBInteger:           "rgb_integer",
	FormatRGBAInteger:          "rgba_integer",
	FormatDepth16:              "depth16",
	FormatDepth24:              "depth24",
	FormatDepth24Stencil8:      "depth24_stencil8",
	FormatDepth32Float:         "depth32float",
	FormatDepth32FloatStencil8: "depth32float_stencil8",
	FormatStencil8:             "stencil8",
	FormatCompressedBC1:        "bc1",
	FormatCompressedBC2:        "bc2",
	FormatCompressedBC3:        "bc3",
	FormatCompressedBC4:        "bc4",
	FormatCompressedBC5:        "bc5",
	FormatCompressedBC6HUfloat: "bc6h_ufloat",
	FormatCompressedBC6HFloat:  "bc6h_float",
	FormatCompressedBC7:        "bc7",
	FormatCompressedETC2RGB8:   "etc2_rgb8",
	FormatCompressedETC2RGB8A1: "etc2_rgb8a1",
	FormatCompressedETC2RGBA8:  "etc2_rgba8",
	FormatCompressedASTC4x4:    "astc_4x4",
	FormatCompressedASTC6x6:    "astc_6x6",
	FormatCompressedASTC8x8:    "astc_8x8",
	FormatCompressedASTC12x12:  "astc_12x12",
}

func (f TextureFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// IsDepthStencil reports whether f is one of the depth or stencil layouts.
func (f TextureFormat) IsDepthStencil() bool {
	return f >= FormatDepth16 && f <= FormatStencil8
}

// IsCompressed reports whether f is a block compressed layout.
func (f TextureFormat) IsCompressed() bool {
	return f >= FormatCompressedBC1 && f <= FormatCompressedASTC12x12
}
