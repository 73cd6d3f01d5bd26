package haltest

import (
	"encoding/binary"
	"fmt"
	"image"
	stdmath "math"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// Texture keeps one byte plane per (mip, layer). Combined depth-stencil
// formats get a second plane for stencil.
type Texture struct {
	device *Device
	desc   hal.TextureDescriptor

	blockW, blockH, blockBytes uint32

	planes    [][]byte
	stencil   [][]byte
	destroyed bool
}

func storageInfo(f hal.TextureFormat) (bw, bh, bytes uint32) {
	if b, err := formats.GetBlockInfo(f); err == nil {
		return b.Width, b.Height, b.ByteLength
	}
	switch f {
	case hal.TextureFormatStencil8:
		return 1, 1, 1
	default:
		// Unsized depth is stored as float32.
		return 1, 1, 4
	}
}

func newTexture(d *Device, desc hal.TextureDescriptor) *Texture {
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	if desc.Size.DepthOrArrayLayers == 0 {
		desc.Size.DepthOrArrayLayers = 1
	}
	t := &Texture{device: d, desc: desc}
	t.blockW, t.blockH, t.blockBytes = storageInfo(desc.Format)

	layers := desc.Size.DepthOrArrayLayers
	t.planes = make([][]byte, desc.MipLevelCount*layers)
	combined := desc.Format == hal.TextureFormatDepth24PlusStencil8 || desc.Format == hal.TextureFormatDepth32FloatStencil8
	if combined {
		t.stencil = make([][]byte, desc.MipLevelCount*layers)
	}
	for mip := uint32(0); mip < desc.MipLevelCount; mip++ {
		w, h := t.MipSize(mip)
		bw := (w + t.blockW - 1) / t.blockW
		bh := (h + t.blockH - 1) / t.blockH
		for layer := uint32(0); layer < layers; layer++ {
			t.planes[mip*layers+layer] = make([]byte, bw*bh*t.blockBytes)
			if combined {
				t.stencil[mip*layers+layer] = make([]byte, w*h)
			}
		}
	}
	return t
}

func (t *Texture) Descriptor() hal.TextureDescriptor { return t.desc }

func (t *Texture) Destroy() { t.destroyed = true }

func (t *Texture) Destroyed() bool { return t.destroyed }

func (t *Texture) Label() string { return t.desc.Label }

// MipSize returns the size of a mip level.
func (t *Texture) MipSize(mip uint32) (uint32, uint32) {
	w := t.desc.Size.Width >> mip
	h := t.desc.Size.Height >> mip
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return w, h
}

func (t *Texture) plane(mip, layer uint32, aspect hal.TextureAspect) ([]byte, uint32, uint32, uint32, error) {
	if mip >= t.desc.MipLevelCount || layer >= t.desc.Size.DepthOrArrayLayers {
		return nil, 0, 0, 0, fmt.Errorf("haltest: texture %q has no mip %d layer %d", t.desc.Label, mip, layer)
	}
	idx := mip*t.desc.Size.DepthOrArrayLayers + layer
	if aspect == hal.TextureAspectStencilOnly && t.stencil != nil {
		return t.stencil[idx], 1, 1, 1, nil
	}
	return t.planes[idx], t.blockW, t.blockH, t.blockBytes, nil
}

// Bytes returns the raw storage of a mip level and layer.
func (t *Texture) Bytes(mip, layer uint32) []byte {
	p, _, _, _, err := t.plane(mip, layer, hal.TextureAspectAll)
	if err != nil {
		return nil
	}
	return p
}

func (t *Texture) CreateView(desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	if t.destroyed {
		return nil, fmt.Errorf("haltest: view of destroyed texture %q: %w", t.desc.Label, hal.ErrResourceReleased)
	}
	v := &TextureView{texture: t}
	if desc != nil {
		v.desc = *desc
	}
	if v.desc.Format == hal.TextureFormatUndefined {
		v.desc.Format = t.desc.Format
	}
	if v.desc.MipLevelCount == 0 {
		v.desc.MipLevelCount = t.desc.MipLevelCount - v.desc.BaseMipLevel
	}
	if v.desc.ArrayLayerCount == 0 {
		v.desc.ArrayLayerCount = t.desc.Size.DepthOrArrayLayers - v.desc.BaseArrayLayer
	}
	if v.desc.BaseMipLevel+v.desc.MipLevelCount > t.desc.MipLevelCount ||
		v.desc.BaseArrayLayer+v.desc.ArrayLayerCount > t.desc.Size.DepthOrArrayLayers {
		return nil, fmt.Errorf("haltest: view of %q out of range", t.desc.Label)
	}
	return v, nil
}

// writeRegion copies linear data laid out by layout into the texture.
func (t *Texture) writeRegion(dst *hal.ImageCopyTexture, data []byte, layout *hal.TextureDataLayout, size *hal.Extent3D) error {
	return t.copyRegion(dst, size, func(plane []byte, planeOff, srcOff, n uint32) {
		copy(plane[planeOff:planeOff+n], data[srcOff:srcOff+n])
	}, layout, uint64(len(data)))
}

// readRegion copies texture data into out, laid out by layout.
func (t *Texture) readRegion(src *hal.ImageCopyTexture, out []byte, layout *hal.TextureDataLayout, size *hal.Extent3D) error {
	return t.copyRegion(src, size, func(plane []byte, planeOff, bufOff, n uint32) {
		copy(out[bufOff:bufOff+n], plane[planeOff:planeOff+n])
	}, layout, uint64(len(out)))
}

func (t *Texture) copyRegion(at *hal.ImageCopyTexture, size *hal.Extent3D, fn func(plane []byte, planeOff, linearOff, n uint32), layout *hal.TextureDataLayout, linearLen uint64) error {
	depth := size.DepthOrArrayLayers
	if depth == 0 {
		depth = 1
	}
	for z := uint32(0); z < depth; z++ {
		plane, bw, bh, bytes, err := t.plane(at.MipLevel, at.Origin.Z+z, at.Aspect)
		if err != nil {
			return err
		}
		mw, mh := t.MipSize(at.MipLevel)
		if at.Origin.X+size.Width > mw || at.Origin.Y+size.Height > mh {
			return fmt.Errorf("haltest: region %dx%d at (%d,%d) outside %q mip %d",
				size.Width, size.Height, at.Origin.X, at.Origin.Y, t.desc.Label, at.MipLevel)
		}
		planeRow := (mw + bw - 1) / bw * bytes
		rowBytes := (size.Width + bw - 1) / bw * bytes
		rows := (size.Height + bh - 1) / bh
		bpr := layout.BytesPerRow
		if bpr == 0 {
			bpr = rowBytes
		}
		rowsPerImage := layout.RowsPerImage
		if rowsPerImage == 0 {
			rowsPerImage = rows
		}
		for r := uint32(0); r < rows; r++ {
			linear := uint32(layout.Offset) + z*rowsPerImage*bpr + r*bpr
			if uint64(linear+rowBytes) > linearLen {
				return fmt.Errorf("haltest: linear data too short for %q", t.desc.Label)
			}
			planeOff := (at.Origin.Y/bh+r)*planeRow + at.Origin.X/bw*bytes
			fn(plane, planeOff, linear, rowBytes)
		}
	}
	return nil
}

func (t *Texture) writeImage(dst *hal.ImageCopyTexture, src image.Image, size *hal.Extent3D) error {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	data := rgba.Pix
	switch t.desc.Format {
	case hal.TextureFormatRGBA8Unorm, hal.TextureFormatRGBA8UnormSrgb:
	case hal.TextureFormatBGRA8Unorm, hal.TextureFormatBGRA8UnormSrgb:
		data = make([]byte, len(rgba.Pix))
		for i := 0; i+3 < len(rgba.Pix); i += 4 {
			data[i], data[i+1], data[i+2], data[i+3] = rgba.Pix[i+2], rgba.Pix[i+1], rgba.Pix[i], rgba.Pix[i+3]
		}
	default:
		return fmt.Errorf("haltest: external image into %q format %d", t.desc.Label, t.desc.Format)
	}
	return t.writeRegion(dst, data, &hal.TextureDataLayout{BytesPerRow: uint32(rgba.Stride)}, size)
}

// Pixel decodes the texel at (x, y). The second result is false for formats
// the rasterizer cannot decode.
func (t *Texture) Pixel(mip, layer, x, y uint32) ([4]float32, bool) {
	plane, _, _, bytes, err := t.plane(mip, layer, hal.TextureAspectAll)
	if err != nil {
		return [4]float32{}, false
	}
	w, _ := t.MipSize(mip)
	off := (y*w + x) * bytes
	if int(off+bytes) > len(plane) {
		return [4]float32{}, false
	}
	return decodeTexel(t.desc.Format, plane[off:off+bytes])
}

func (t *Texture) setPixel(mip, layer, x, y uint32, c [4]float32, mask hal.ColorWriteMask) bool {
	plane, _, _, bytes, err := t.plane(mip, layer, hal.TextureAspectAll)
	if err != nil {
		return false
	}
	w, _ := t.MipSize(mip)
	off := (y*w + x) * bytes
	texel := plane[off : off+bytes]
	if mask != hal.ColorWriteMaskAll {
		old, ok := decodeTexel(t.desc.Format, texel)
		if !ok {
			return false
		}
		for i, bit := range []hal.ColorWriteMask{hal.ColorWriteMaskRed, hal.ColorWriteMaskGreen, hal.ColorWriteMaskBlue, hal.ColorWriteMaskAlpha} {
			if mask&bit == 0 {
				c[i] = old[i]
			}
		}
	}
	return encodeTexel(t.desc.Format, texel, c)
}

func (t *Texture) fill(mip, layer uint32, c [4]float32) bool {
	w, h := t.MipSize(mip)
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			if !t.setPixel(mip, layer, x, y, c, hal.ColorWriteMaskAll) {
				return false
			}
		}
	}
	return true
}

func (t *Texture) clearDepth(mip, layer uint32, depth float32) {
	plane, _, _, _, err := t.plane(mip, layer, hal.TextureAspectDepthOnly)
	if err != nil {
		return
	}
	switch t.desc.Format {
	case hal.TextureFormatDepth16Unorm:
		v := uint16(clamp01(depth) * 65535)
		for i := 0; i+1 < len(plane); i += 2 {
			binary.LittleEndian.PutUint16(plane[i:], v)
		}
	case hal.TextureFormatStencil8:
	default:
		bits := stdmath.Float32bits(depth)
		for i := 0; i+3 < len(plane); i += 4 {
			binary.LittleEndian.PutUint32(plane[i:], bits)
		}
	}
}

func (t *Texture) clearStencil(mip, layer uint32, value uint32) {
	var plane []byte
	switch {
	case t.desc.Format == hal.TextureFormatStencil8:
		plane, _, _, _, _ = t.plane(mip, layer, hal.TextureAspectAll)
	case t.stencil != nil:
		plane, _, _, _, _ = t.plane(mip, layer, hal.TextureAspectStencilOnly)
	}
	for i := range plane {
		plane[i] = byte(value)
	}
}

// DepthAt returns the stored depth of a float depth texture.
func (t *Texture) DepthAt(mip, layer, x, y uint32) float32 {
	plane, _, _, bytes, err := t.plane(mip, layer, hal.TextureAspectDepthOnly)
	if err != nil || bytes != 4 {
		return 0
	}
	w, _ := t.MipSize(mip)
	off := (y*w + x) * 4
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(plane[off:]))
}

// StencilAt returns the stored stencil value.
func (t *Texture) StencilAt(mip, layer, x, y uint32) uint8 {
	var plane []byte
	switch {
	case t.desc.Format == hal.TextureFormatStencil8:
		plane, _, _, _, _ = t.plane(mip, layer, hal.TextureAspectAll)
	case t.stencil != nil:
		plane, _, _, _, _ = t.plane(mip, layer, hal.TextureAspectStencilOnly)
	}
	w, _ := t.MipSize(mip)
	if int(y*w+x) >= len(plane) {
		return 0
	}
	return plane[y*w+x]
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func unorm8(v float32) byte {
	return byte(stdmath.Round(float64(clamp01(v)) * 255))
}

func decodeTexel(f hal.TextureFormat, b []byte) ([4]float32, bool) {
	switch f {
	case hal.TextureFormatRGBA8Unorm, hal.TextureFormatRGBA8UnormSrgb:
		return [4]float32{float32(b[0]) / 255, float32(b[1]) / 255, float32(b[2]) / 255, float32(b[3]) / 255}, true
	case hal.TextureFormatBGRA8Unorm, hal.TextureFormatBGRA8UnormSrgb:
		return [4]float32{float32(b[2]) / 255, float32(b[1]) / 255, float32(b[0]) / 255, float32(b[3]) / 255}, true
	case hal.TextureFormatR8Unorm:
		return [4]float32{float32(b[0]) / 255, 0, 0, 1}, true
	case hal.TextureFormatRG8Unorm:
		return [4]float32{float32(b[0]) / 255, float32(b[1]) / 255, 0, 1}, true
	case hal.TextureFormatR32Float:
		return [4]float32{f32(b[0:]), 0, 0, 1}, true
	case hal.TextureFormatRG32Float:
		return [4]float32{f32(b[0:]), f32(b[4:]), 0, 1}, true
	case hal.TextureFormatRGBA32Float:
		return [4]float32{f32(b[0:]), f32(b[4:]), f32(b[8:]), f32(b[12:])}, true
	}
	return [4]float32{}, false
}

func encodeTexel(f hal.TextureFormat, b []byte, c [4]float32) bool {
	switch f {
	case hal.TextureFormatRGBA8Unorm, hal.TextureFormatRGBA8UnormSrgb:
		b[0], b[1], b[2], b[3] = unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(c[3])
	case hal.TextureFormatBGRA8Unorm, hal.TextureFormatBGRA8UnormSrgb:
		b[0], b[1], b[2], b[3] = unorm8(c[2]), unorm8(c[1]), unorm8(c[0]), unorm8(c[3])
	case hal.TextureFormatR8Unorm:
		b[0] = unorm8(c[0])
	case hal.TextureFormatRG8Unorm:
		b[0], b[1] = unorm8(c[0]), unorm8(c[1])
	case hal.TextureFormatR32Float:
		putF32(b[0:], c[0])
	case hal.TextureFormatRG32Float:
		putF32(b[0:], c[0])
		putF32(b[4:], c[1])
	case hal.TextureFormatRGBA32Float:
		for i := 0; i < 4; i++ {
			putF32(b[i*4:], c[i])
		}
	default:
		return false
	}
	return true
}

func f32(b []byte) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, stdmath.Float32bits(v))
}

type TextureView struct {
	texture  *Texture
	desc     hal.TextureViewDescriptor
	released bool
}

func (v *TextureView) Release() { v.released = true }

// Texture returns the texture the view was created from.
func (v *TextureView) Texture() *Texture { return v.texture }

func (v *TextureView) Descriptor() hal.TextureViewDescriptor { return v.desc }

func (v *TextureView) size() (uint32, uint32) {
	return v.texture.MipSize(v.desc.BaseMipLevel)
}

// sample reads the view with bilinear filtering and clamp to edge. u and v
// are normalized, origin top left.
func (v *TextureView) sample(u, vv float32, layer uint32) [4]float32 {
	t := v.texture
	mip := v.desc.BaseMipLevel
	w, h := t.MipSize(mip)
	layer += v.desc.BaseArrayLayer

	fx := u*float32(w) - 0.5
	fy := vv*float32(h) - 0.5
	x0 := int(stdmath.Floor(float64(fx)))
	y0 := int(stdmath.Floor(float64(fy)))
	ax := fx - float32(x0)
	ay := fy - float32(y0)

	at := func(x, y int) [4]float32 {
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		if x >= int(w) {
			x = int(w) - 1
		}
		if y >= int(h) {
			y = int(h) - 1
		}
		c, _ := t.Pixel(mip, layer, uint32(x), uint32(y))
		return c
	}
	c00, c10 := at(x0, y0), at(x0+1, y0)
	c01, c11 := at(x0, y0+1), at(x0+1, y0+1)
	var out [4]float32
	for i := 0; i < 4; i++ {
		top := c00[i]*(1-ax) + c10[i]*ax
		bottom := c01[i]*(1-ax) + c11[i]*ax
		out[i] = top*(1-ay) + bottom*ay
	}
	return out
}
