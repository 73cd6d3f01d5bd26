package webgpu

import (
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/math"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type SamplingMode uint8

const (
	SamplingTrilinear SamplingMode = iota
	SamplingBilinear
	SamplingNearest
)

// HardwareTexture is the device side of an InternalTexture.
type HardwareTexture struct {
	texture     hal.Texture
	view        hal.TextureView
	msaaTexture hal.Texture
	msaaView    hal.TextureView
	format      hal.TextureFormat
}

func (h *HardwareTexture) Texture() hal.Texture { return h.texture }

func (h *HardwareTexture) View() hal.TextureView { return h.view }

func (h *HardwareTexture) Format() hal.TextureFormat { return h.format }

func (h *HardwareTexture) release() {
	if h.view != nil {
		h.view.Release()
	}
	if h.texture != nil {
		h.texture.Destroy()
	}
	if h.msaaView != nil {
		h.msaaView.Release()
	}
	if h.msaaTexture != nil {
		h.msaaTexture.Destroy()
	}
}

// InternalTexture is a logical texture and the hardware texture it owns.
type InternalTexture struct {
	UniqueID uint32
	Label    string

	Width  uint32
	Height uint32
	// Depth is the depth of 3D textures or the layer count of arrays. Cube
	// textures have 6 layers.
	Depth     uint32
	IsCube    bool
	Is3D      bool
	Samples   uint32
	MipLevels uint32

	Type            formats.TextureType
	Format          formats.TextureFormat
	UseSRGB         bool
	GenerateMipMaps bool

	SamplingMode        SamplingMode
	WrapU, WrapV, WrapW hal.AddressMode

	IsReady bool

	native   hal.TextureFormat
	usage    hal.TextureUsage
	hardware *HardwareTexture
	// version is bumped when the hardware texture is replaced.
	version uint32
}

func (t *InternalTexture) Hardware() *HardwareTexture { return t.hardware }

func (t *InternalTexture) NativeFormat() hal.TextureFormat { return t.native }

func (t *InternalTexture) Version() uint32 { return t.version }

func (t *InternalTexture) layers() uint32 {
	if t.Is3D || t.Depth == 0 {
		return 1
	}
	return t.Depth
}

func (t *InternalTexture) viewDimension() hal.TextureViewDimension {
	switch {
	case t.IsCube:
		return hal.TextureViewDimensionCube
	case t.Is3D:
		return hal.TextureViewDimension3D
	case t.Depth > 1:
		return hal.TextureViewDimension2DArray
	}
	return hal.TextureViewDimension2D
}

// TextureOptions describes a texture to create.
type TextureOptions struct {
	Label  string
	Width  uint32
	Height uint32
	// Depth is the depth of 3D textures or the layer count of array
	// textures. Zero means 1.
	Depth uint32
	Is3D  bool

	Type    formats.TextureType
	Format  formats.TextureFormat
	UseSRGB bool

	GenerateMipMaps bool
	// Samples is clamped to 1 or 4.
	Samples      uint32
	SamplingMode SamplingMode
	WrapU        hal.AddressMode
	WrapV        hal.AddressMode
	WrapW        hal.AddressMode
	// Usage is added to the usage the engine derives.
	Usage hal.TextureUsage
}

func clampSamples(n uint32) uint32 {
	if n > 1 {
		return 4
	}
	return 1
}

// textureUsage widens the usage of uncompressed 2D textures so any later
// upload or internal pass can target them.
func textureUsage(native hal.TextureFormat, is3D bool, extra hal.TextureUsage) hal.TextureUsage {
	usage := hal.TextureUsageTextureBinding | hal.TextureUsageCopySrc | hal.TextureUsageCopyDst | extra
	if !formats.IsCompressed(native) && !is3D {
		usage |= hal.TextureUsageRenderAttachment | hal.TextureUsageCopyDst
	}
	return usage
}

// CreateTexture allocates a 2D, 2D array or 3D texture.
func (e *Engine) CreateTexture(opts TextureOptions) (*InternalTexture, error) {
	return e.createTexture(opts, false)
}

// CreateCubeTexture allocates a cube texture of six width x width faces.
func (e *Engine) CreateCubeTexture(opts TextureOptions) (*InternalTexture, error) {
	opts.Height = opts.Width
	opts.Depth = 6
	opts.Is3D = false
	return e.createTexture(opts, true)
}

func (e *Engine) createTexture(opts TextureOptions, cube bool) (*InternalTexture, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	native, err := formats.ToNativeFormat(opts.Type, opts.Format, opts.UseSRGB)
	if err != nil {
		core.LogError("create texture %q: %s", opts.Label, err)
		return nil, err
	}
	tex := &InternalTexture{
		Label:           opts.Label,
		Width:           opts.Width,
		Height:          opts.Height,
		Depth:           math.MaxOf(opts.Depth, 1),
		IsCube:          cube,
		Is3D:            opts.Is3D,
		Samples:         clampSamples(opts.Samples),
		Type:            opts.Type,
		Format:          opts.Format,
		UseSRGB:         opts.UseSRGB,
		GenerateMipMaps: opts.GenerateMipMaps,
		SamplingMode:    opts.SamplingMode,
		WrapU:           opts.WrapU,
		WrapV:           opts.WrapV,
		WrapW:           opts.WrapW,
		native:          native,
		usage:           textureUsage(native, opts.Is3D, opts.Usage),
	}
	if err := e.registerTexture(tex); err != nil {
		return nil, err
	}
	return tex, nil
}

// registerTexture assigns an id and builds the hardware texture.
func (e *Engine) registerTexture(tex *InternalTexture) error {
	tex.MipLevels = 1
	if tex.GenerateMipMaps {
		tex.MipLevels = math.MipLevels(tex.Width, tex.Height)
	}
	if tex.Label == "" {
		tex.Label = "texture-" + uuid.NewString()
	}
	if err := e.recreateHardware(tex); err != nil {
		return err
	}
	tex.UniqueID = e.textureIDs.Acquire(tex)
	e.textures[tex.UniqueID] = tex
	return nil
}

// recreateHardware builds the device texture of tex, replacing any
// previous one.
func (e *Engine) recreateHardware(tex *InternalTexture) error {
	dim := hal.TextureDimension2D
	if tex.Is3D {
		dim = hal.TextureDimension3D
	}
	texture, err := e.device.CreateTexture(&hal.TextureDescriptor{
		Label:         tex.Label,
		Size:          hal.Extent3D{Width: tex.Width, Height: tex.Height, DepthOrArrayLayers: math.MaxOf(tex.Depth, 1)},
		MipLevelCount: tex.MipLevels,
		SampleCount:   1,
		Dimension:     dim,
		Format:        tex.native,
		Usage:         tex.usage,
	})
	if err != nil {
		err = fmt.Errorf("create texture %q: %w", tex.Label, err)
		core.LogError("%s", err)
		return err
	}
	view, err := texture.CreateView(&hal.TextureViewDescriptor{
		Label:     tex.Label,
		Format:    tex.native,
		Dimension: tex.viewDimension(),
		Aspect:    hal.TextureAspectAll,
	})
	if err != nil {
		texture.Destroy()
		err = fmt.Errorf("view of texture %q: %w", tex.Label, err)
		core.LogError("%s", err)
		return err
	}
	hw := &HardwareTexture{texture: texture, view: view, format: tex.native}

	if tex.Samples > 1 {
		msaa, err := e.device.CreateTexture(&hal.TextureDescriptor{
			Label:         tex.Label + "-msaa",
			Size:          hal.Extent3D{Width: tex.Width, Height: tex.Height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   tex.Samples,
			Dimension:     hal.TextureDimension2D,
			Format:        tex.native,
			Usage:         hal.TextureUsageRenderAttachment,
		})
		if err != nil {
			hw.release()
			err = fmt.Errorf("create multisampled texture %q: %w", tex.Label, err)
			core.LogError("%s", err)
			return err
		}
		hw.msaaTexture = msaa
		if hw.msaaView, err = msaa.CreateView(nil); err != nil {
			hw.release()
			return err
		}
	}

	if old := tex.hardware; old != nil {
		e.retire(old.release)
	}
	tex.hardware = hw
	tex.version++
	return nil
}

// createNativeTexture allocates an engine owned texture that is not
// registered for reinitialization.
func (e *Engine) createNativeTexture(label string, width, height, depth uint32, native hal.TextureFormat, samples uint32, usage hal.TextureUsage) (*InternalTexture, error) {
	tex := &InternalTexture{
		Label:     label,
		Width:     width,
		Height:    height,
		Depth:     depth,
		Samples:   samples,
		MipLevels: 1,
		native:    native,
		usage:     usage,
		IsReady:   true,
	}
	if err := e.recreateHardware(tex); err != nil {
		return nil, err
	}
	return tex, nil
}

// ReleaseTexture schedules the destruction of tex at the end of the frame.
// Draws recorded earlier in the frame can still use it.
func (e *Engine) ReleaseTexture(tex *InternalTexture) {
	if tex == nil || tex.hardware == nil {
		return
	}
	hw := tex.hardware
	tex.hardware = nil
	tex.IsReady = false
	if _, ok := e.textures[tex.UniqueID]; ok {
		delete(e.textures, tex.UniqueID)
		if err := e.textureIDs.Release(tex.UniqueID); err != nil {
			core.LogWarn("release texture %q: %s", tex.Label, err)
		}
	}
	if e.textureHelper != nil {
		e.textureHelper.purge(tex.UniqueID)
	}
	e.retire(hw.release)
}

// UpdateOptions selects the region an update writes.
type UpdateOptions struct {
	X, Y uint32
	// Width and Height of zero cover the whole mip level.
	Width, Height uint32
	// Layer is the cube face or array layer.
	Layer uint32
	Mip   uint32

	InvertY     bool
	Premultiply bool
}

func (e *Engine) updateRegion(tex *InternalTexture, opts *UpdateOptions) (hal.Extent3D, error) {
	if opts.Mip >= tex.MipLevels {
		return hal.Extent3D{}, e.regionError(tex, "mip %d of %d", opts.Mip, tex.MipLevels)
	}
	mw, mh := math.MipSize(tex.Width, opts.Mip), math.MipSize(tex.Height, opts.Mip)
	if opts.X >= mw || opts.Y >= mh {
		return hal.Extent3D{}, e.regionError(tex, "origin (%d,%d) outside mip %d of %dx%d", opts.X, opts.Y, opts.Mip, mw, mh)
	}
	w, h := opts.Width, opts.Height
	if w == 0 {
		w = mw - opts.X
	}
	if h == 0 {
		h = mh - opts.Y
	}
	if err := e.checkRegion(tex, opts.X, opts.Y, w, h, opts.Layer, opts.Mip); err != nil {
		return hal.Extent3D{}, err
	}
	return hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}, nil
}

// checkRegion fails with ErrInvalidArgument unless the region lies inside
// the given layer and mip level of tex.
func (e *Engine) checkRegion(tex *InternalTexture, x, y, width, height, layer, mip uint32) error {
	if mip >= tex.MipLevels {
		return e.regionError(tex, "mip %d of %d", mip, tex.MipLevels)
	}
	layers := tex.layers()
	if tex.Is3D {
		layers = math.MipSize(math.MaxOf(tex.Depth, 1), mip)
	}
	if layer >= layers {
		return e.regionError(tex, "layer %d of %d", layer, layers)
	}
	mw, mh := math.MipSize(tex.Width, mip), math.MipSize(tex.Height, mip)
	if width == 0 || height == 0 || uint64(x)+uint64(width) > uint64(mw) || uint64(y)+uint64(height) > uint64(mh) {
		return e.regionError(tex, "region %dx%d at (%d,%d) outside mip %d of %dx%d", width, height, x, y, mip, mw, mh)
	}
	return nil
}

func (e *Engine) regionError(tex *InternalTexture, format string, args ...interface{}) error {
	err := fmt.Errorf("texture %q: %s: %w", tex.Label, fmt.Sprintf(format, args...), core.ErrInvalidArgument)
	core.LogError("%s", err)
	return err
}

// UpdateTexture uploads raw texel data. Rows already aligned to 256 bytes
// go through a direct queue write, others through a staging buffer.
// Y inversion and premultiplication run on the GPU after the copy.
func (e *Engine) UpdateTexture(tex *InternalTexture, data []byte, opts UpdateOptions) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if tex.hardware == nil {
		return fmt.Errorf("update texture %q: %w", tex.Label, hal.ErrResourceReleased)
	}
	size, err := e.updateRegion(tex, &opts)
	if err != nil {
		return err
	}
	bpr, err := formats.BytesPerRow(tex.native, size.Width)
	if err != nil {
		return err
	}
	rows, err := formats.RowCount(tex.native, size.Height)
	if err != nil {
		return err
	}
	if uint64(len(data)) < uint64(bpr)*uint64(rows) {
		err := fmt.Errorf("update texture %q: %d bytes for %d rows of %d: %w", tex.Label, len(data), rows, bpr, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return err
	}

	dst := &hal.ImageCopyTexture{
		Texture:  tex.hardware.texture,
		MipLevel: opts.Mip,
		Origin:   hal.Origin3D{X: opts.X, Y: opts.Y, Z: opts.Layer},
		Aspect:   hal.TextureAspectAll,
	}
	if bpr%hal.CopyBytesPerRowAlignment == 0 {
		layout := &hal.TextureDataLayout{BytesPerRow: bpr, RowsPerImage: rows}
		if err := e.queue.WriteTexture(dst, data, layout, &size); err != nil {
			err = fmt.Errorf("write texture %q: %w", tex.Label, err)
			core.LogError("%s", err)
			return err
		}
	} else if err := e.textureHelper.stagedUpload(tex, dst, data, bpr, rows, size); err != nil {
		return err
	}
	return e.afterUpload(tex, opts)
}

// UpdateTextureFromImage uploads a decoded image through the external
// image copy path.
func (e *Engine) UpdateTextureFromImage(tex *InternalTexture, img image.Image, opts UpdateOptions) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if tex.hardware == nil {
		return fmt.Errorf("update texture %q: %w", tex.Label, hal.ErrResourceReleased)
	}
	b := img.Bounds()
	opts.Width, opts.Height = uint32(b.Dx()), uint32(b.Dy())
	if err := e.checkRegion(tex, opts.X, opts.Y, opts.Width, opts.Height, opts.Layer, opts.Mip); err != nil {
		return err
	}
	size := hal.Extent3D{Width: opts.Width, Height: opts.Height, DepthOrArrayLayers: 1}
	dst := &hal.ImageCopyTexture{
		Texture:  tex.hardware.texture,
		MipLevel: opts.Mip,
		Origin:   hal.Origin3D{X: opts.X, Y: opts.Y, Z: opts.Layer},
		Aspect:   hal.TextureAspectAll,
	}
	if err := e.queue.CopyExternalImageToTexture(img, dst, &size); err != nil {
		err = fmt.Errorf("copy image into %q: %w", tex.Label, err)
		core.LogError("%s", err)
		return err
	}
	return e.afterUpload(tex, opts)
}

func (e *Engine) afterUpload(tex *InternalTexture, opts UpdateOptions) error {
	if opts.InvertY || opts.Premultiply {
		if err := e.textureHelper.InvertYPremultiplyAlpha(e.uploadEncoder, tex, opts.Layer, opts.Mip, opts.InvertY, opts.Premultiply); err != nil {
			return err
		}
	}
	if tex.GenerateMipMaps && opts.Mip == 0 && tex.MipLevels > 1 {
		if err := e.textureHelper.GenerateMipmaps(e.uploadEncoder, tex, opts.Layer); err != nil {
			return err
		}
	}
	tex.IsReady = true
	return nil
}

// GenerateMipmaps regenerates the mip chain of every layer of tex.
func (e *Engine) GenerateMipmaps(tex *InternalTexture) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if tex.IsCube {
		return e.textureHelper.GenerateCubeMipmaps(e.uploadEncoder, tex)
	}
	for layer := uint32(0); layer < tex.layers(); layer++ {
		if err := e.textureHelper.GenerateMipmaps(e.uploadEncoder, tex, layer); err != nil {
			return err
		}
	}
	return nil
}
