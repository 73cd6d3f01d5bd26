package webgpu

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/math"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

type helperKind uint8

const (
	helperMipmap helperKind = iota
	helperInvert
	helperPremultiply
	helperInvertPremultiply
)

// helperKey addresses the scratch objects of one internal pass over one
// mip level of one layer of a texture.
type helperKey struct {
	textureID uint32
	version   uint32
	layer     uint32
	mip       uint32
	kind      helperKind
}

type helperEntry struct {
	views  []hal.TextureView
	group  hal.BindGroup
	buffer hal.Buffer
}

func (h *helperEntry) release() {
	for _, v := range h.views {
		v.Release()
	}
	if h.group != nil {
		h.group.Release()
	}
	if h.buffer != nil {
		h.buffer.Destroy()
	}
}

// TextureHelper runs the internal texture passes: mip generation and Y
// inversion / alpha premultiplication. The bind groups and views those
// passes need are kept in a side table so static textures do not rebuild
// them on every regeneration.
type TextureHelper struct {
	engine    *Engine
	mipmap    *Effect
	invert    *Effect
	pipelines *RenderPipelineCache
	scratch   map[helperKey]*helperEntry
}

func NewTextureHelper(e *Engine) (*TextureHelper, error) {
	h := &TextureHelper{
		engine:    e,
		pipelines: NewRenderPipelineCache(e.device, false),
		scratch:   make(map[helperKey]*helperEntry),
	}
	h.pipelines.SetDepthStencilFormat(hal.TextureFormatUndefined)
	var err error
	if h.mipmap, err = e.builtinEffect(shaders.MipmapProgram); err != nil {
		return nil, err
	}
	if h.invert, err = e.builtinEffect(shaders.InvertProgram); err != nil {
		return nil, err
	}
	return h, nil
}

func (e *Engine) builtinEffect(name string) (*Effect, error) {
	req, ok := shaders.Builtin(name)
	if !ok {
		return nil, fmt.Errorf("builtin program %s: %w", name, core.ErrInvalidArgument)
	}
	return e.newEffect(req)
}

// fallbackMask returns the mask bit for sampling a texture of format f.
func (e *Engine) fallbackMask(f hal.TextureFormat) uint32 {
	if formats.IsFloat32(f) && !e.caps.Float32Filterable {
		return 1
	}
	return 0
}

// ScratchEntries returns the number of cached scratch entries.
func (h *TextureHelper) ScratchEntries() int { return len(h.scratch) }

func (h *TextureHelper) entry(key helperKey, build func() (*helperEntry, error)) (*helperEntry, error) {
	if en, ok := h.scratch[key]; ok {
		return en, nil
	}
	en, err := build()
	if err != nil {
		return nil, err
	}
	h.scratch[key] = en
	return en, nil
}

// purge drops every scratch entry of a texture.
func (h *TextureHelper) purge(textureID uint32) {
	for key, en := range h.scratch {
		if key.textureID == textureID {
			h.engine.retire(en.release)
			delete(h.scratch, key)
		}
	}
}

func (h *TextureHelper) levelView(tex *InternalTexture, layer, mip uint32) (hal.TextureView, error) {
	return tex.hardware.texture.CreateView(&hal.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s-l%d-m%d", tex.Label, layer, mip),
		Format:          tex.native,
		Dimension:       hal.TextureViewDimension2D,
		Aspect:          hal.TextureAspectAll,
		BaseMipLevel:    mip,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	})
}

func (h *TextureHelper) pipeline(fx *Effect, native hal.TextureFormat) (hal.RenderPipeline, *effectLayout, uint32, error) {
	mask := h.engine.fallbackMask(native)
	layout, err := h.engine.effectLayout(fx, mask)
	if err != nil {
		return nil, nil, 0, err
	}
	h.pipelines.SetColorFormats([]hal.TextureFormat{native})
	p, err := h.pipelines.GetRenderPipeline(FillModeTriangles, fx, 1, mask)
	return p, layout, mask, err
}

func (h *TextureHelper) sampler(mask uint32) (hal.Sampler, error) {
	filter := hal.FilterModeLinear
	if mask != 0 {
		filter = hal.FilterModeNearest
	}
	return h.engine.sampler(hal.SamplerDescriptor{
		AddressModeU:  hal.AddressModeClampToEdge,
		AddressModeV:  hal.AddressModeClampToEdge,
		AddressModeW:  hal.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  hal.FilterModeNearest,
		MaxAnisotropy: 1,
	})
}

func canRenderInto(tex *InternalTexture) bool {
	return tex.usage&hal.TextureUsageRenderAttachment != 0 && !formats.IsCompressed(tex.native) && !formats.IsDepthOrStencil(tex.native)
}

// GenerateMipmaps renders every mip level of a layer from the level above
// it, on enc.
func (h *TextureHelper) GenerateMipmaps(enc *trackedEncoder, tex *InternalTexture, layer uint32) error {
	if tex.MipLevels <= 1 {
		return nil
	}
	if !canRenderInto(tex) {
		core.LogWarn("cannot generate mipmaps of %q with format %d", tex.Label, tex.native)
		return nil
	}
	pipeline, layout, mask, err := h.pipeline(h.mipmap, tex.native)
	if err != nil {
		return err
	}
	sampler, err := h.sampler(mask)
	if err != nil {
		return err
	}
	for mip := uint32(1); mip < tex.MipLevels; mip++ {
		key := helperKey{textureID: tex.UniqueID, version: tex.version, layer: layer, mip: mip, kind: helperMipmap}
		en, err := h.entry(key, func() (*helperEntry, error) {
			src, err := h.levelView(tex, layer, mip-1)
			if err != nil {
				return nil, err
			}
			dst, err := h.levelView(tex, layer, mip)
			if err != nil {
				src.Release()
				return nil, err
			}
			group, err := h.engine.device.CreateBindGroup(&hal.BindGroupDescriptor{
				Label:  fmt.Sprintf("%s-mipmap-%d", tex.Label, mip),
				Layout: layout.groups[0],
				Entries: []hal.BindGroupEntry{
					{Binding: 0, TextureView: src},
					{Binding: 1, Sampler: sampler},
				},
			})
			if err != nil {
				src.Release()
				dst.Release()
				return nil, err
			}
			return &helperEntry{views: []hal.TextureView{src, dst}, group: group}, nil
		})
		if err != nil {
			core.LogError("mipmap %d of %q: %s", mip, tex.Label, err)
			return err
		}
		err = enc.runInternalPass(&hal.RenderPassDescriptor{
			Label: fmt.Sprintf("%s-mipmap-%d", tex.Label, mip),
			ColorAttachments: []hal.RenderPassColorAttachment{
				{View: en.views[1], LoadOp: hal.LoadOpClear, StoreOp: hal.StoreOpStore},
			},
		}, func(pass hal.RenderPass) {
			pass.SetPipeline(pipeline)
			pass.SetBindGroup(0, en.group, nil)
			pass.Draw(3, 1, 0, 0)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GenerateCubeMipmaps regenerates the mip chain of all six faces.
func (h *TextureHelper) GenerateCubeMipmaps(enc *trackedEncoder, tex *InternalTexture) error {
	for face := uint32(0); face < 6; face++ {
		if err := h.GenerateMipmaps(enc, tex, face); err != nil {
			return err
		}
	}
	return nil
}

// InvertYPremultiplyAlpha rewrites one mip level of one layer: it renders
// the level flipped and/or premultiplied into a scratch texture and copies
// the result back.
func (h *TextureHelper) InvertYPremultiplyAlpha(enc *trackedEncoder, tex *InternalTexture, layer, mip uint32, invertY, premultiply bool) error {
	if !invertY && !premultiply {
		return nil
	}
	if !canRenderInto(tex) {
		core.LogWarn("cannot invert %q with format %d", tex.Label, tex.native)
		return nil
	}
	kind := helperInvertPremultiply
	switch {
	case !premultiply:
		kind = helperInvert
	case !invertY:
		kind = helperPremultiply
	}
	pipeline, layout, mask, err := h.pipeline(h.invert, tex.native)
	if err != nil {
		return err
	}
	sampler, err := h.sampler(mask)
	if err != nil {
		return err
	}
	e := h.engine
	key := helperKey{textureID: tex.UniqueID, version: tex.version, layer: layer, mip: mip, kind: kind}
	en, err := h.entry(key, func() (*helperEntry, error) {
		src, err := h.levelView(tex, layer, mip)
		if err != nil {
			return nil, err
		}
		flags, err := e.device.CreateBuffer(&hal.BufferDescriptor{
			Label: tex.Label + "-invert-flags",
			Size:  shaders.InvertUniformSize,
			Usage: hal.BufferUsageUniform | hal.BufferUsageCopyDst,
		})
		if err != nil {
			src.Release()
			return nil, err
		}
		data := make([]byte, shaders.InvertUniformSize)
		if invertY {
			binary.LittleEndian.PutUint32(data[0:], 1)
		}
		if premultiply {
			binary.LittleEndian.PutUint32(data[4:], 1)
		}
		if err := e.queue.WriteBuffer(flags, 0, data); err != nil {
			src.Release()
			flags.Destroy()
			return nil, err
		}
		group, err := e.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  tex.Label + "-invert",
			Layout: layout.groups[0],
			Entries: []hal.BindGroupEntry{
				{Binding: 0, TextureView: src},
				{Binding: 1, Sampler: sampler},
				{Binding: 2, Buffer: flags, Size: shaders.InvertUniformSize},
			},
		})
		if err != nil {
			src.Release()
			flags.Destroy()
			return nil, err
		}
		return &helperEntry{views: []hal.TextureView{src}, group: group, buffer: flags}, nil
	})
	if err != nil {
		core.LogError("invert %q: %s", tex.Label, err)
		return err
	}

	w, hgt := math.MipSize(tex.Width, mip), math.MipSize(tex.Height, mip)
	scratch, err := e.device.CreateTexture(&hal.TextureDescriptor{
		Label:         tex.Label + "-invert-scratch",
		Size:          hal.Extent3D{Width: w, Height: hgt, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     hal.TextureDimension2D,
		Format:        tex.native,
		Usage:         hal.TextureUsageRenderAttachment | hal.TextureUsageCopySrc,
	})
	if err != nil {
		core.LogError("invert scratch of %q: %s", tex.Label, err)
		return err
	}
	scratchView, err := scratch.CreateView(nil)
	if err != nil {
		scratch.Destroy()
		return err
	}
	e.retire(func() {
		scratchView.Release()
		scratch.Destroy()
	})

	err = enc.runInternalPass(&hal.RenderPassDescriptor{
		Label: tex.Label + "-invert",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{View: scratchView, LoadOp: hal.LoadOpClear, StoreOp: hal.StoreOpStore},
		},
	}, func(pass hal.RenderPass) {
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, en.group, nil)
		pass.Draw(3, 1, 0, 0)
	})
	if err != nil {
		return err
	}
	enc.encoder.CopyTextureToTexture(
		&hal.ImageCopyTexture{Texture: scratch, Aspect: hal.TextureAspectAll},
		&hal.ImageCopyTexture{Texture: tex.hardware.texture, MipLevel: mip, Origin: hal.Origin3D{Z: layer}, Aspect: hal.TextureAspectAll},
		&hal.Extent3D{Width: w, Height: hgt, DepthOrArrayLayers: 1},
	)
	return nil
}

// stagedUpload writes data through a mapped staging buffer whose rows are
// padded to the copy alignment.
func (h *TextureHelper) stagedUpload(tex *InternalTexture, dst *hal.ImageCopyTexture, data []byte, bpr, rows uint32, size hal.Extent3D) error {
	e := h.engine
	padded := math.AlignUp(bpr, uint32(hal.CopyBytesPerRowAlignment))
	buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label:            tex.Label + "-staging",
		Size:             uint64(padded) * uint64(rows),
		Usage:            hal.BufferUsageCopySrc | hal.BufferUsageMapWrite,
		MappedAtCreation: true,
	})
	if err != nil {
		err = fmt.Errorf("staging buffer for %q: %w", tex.Label, err)
		core.LogError("%s", err)
		return err
	}
	mapped := buf.MappedRange(0, hal.WholeSize)
	for r := uint32(0); r < rows; r++ {
		copy(mapped[r*padded:r*padded+bpr], data[r*bpr:(r+1)*bpr])
	}
	buf.Unmap()

	if err := e.uploadEncoder.checkNoPass(); err != nil {
		buf.Destroy()
		return err
	}
	e.uploadEncoder.encoder.CopyBufferToTexture(
		&hal.ImageCopyBuffer{Buffer: buf, Layout: hal.TextureDataLayout{BytesPerRow: padded, RowsPerImage: rows}},
		dst,
		&size,
	)
	e.retire(buf.Destroy)
	return nil
}

// ReadPixels copies a region of a texture back to memory, with tightly
// packed rows. It flushes all pending work and waits for the GPU, so it is
// slow.
func (e *Engine) ReadPixels(ctx context.Context, tex *InternalTexture, x, y, width, height, layer, mip uint32) ([]byte, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if tex.hardware == nil {
		return nil, fmt.Errorf("read pixels of %q: %w", tex.Label, hal.ErrResourceReleased)
	}
	if err := e.checkRegion(tex, x, y, width, height, layer, mip); err != nil {
		return nil, err
	}
	if err := e.FlushFramebuffer(true); err != nil {
		return nil, err
	}
	bpr, err := formats.BytesPerRow(tex.native, width)
	if err != nil {
		return nil, err
	}
	rows, err := formats.RowCount(tex.native, height)
	if err != nil {
		return nil, err
	}
	padded := math.AlignUp(bpr, uint32(hal.CopyBytesPerRowAlignment))
	size := uint64(padded) * uint64(rows)

	buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: tex.Label + "-readback",
		Size:  size,
		Usage: hal.BufferUsageMapRead | hal.BufferUsageCopyDst,
	})
	if err != nil {
		err = fmt.Errorf("readback buffer for %q: %w", tex.Label, err)
		core.LogError("%s", err)
		return nil, err
	}
	defer buf.Destroy()

	enc, err := e.device.CreateCommandEncoder(tex.Label + "-readback")
	if err != nil {
		return nil, err
	}
	enc.CopyTextureToBuffer(
		&hal.ImageCopyTexture{Texture: tex.hardware.texture, MipLevel: mip, Origin: hal.Origin3D{X: x, Y: y, Z: layer}, Aspect: hal.TextureAspectAll},
		&hal.ImageCopyBuffer{Buffer: buf, Layout: hal.TextureDataLayout{BytesPerRow: padded, RowsPerImage: rows}},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	cb, err := enc.Finish()
	if err != nil {
		return nil, err
	}
	e.queue.Submit(cb)
	e.device.Poll(true)

	if err := buf.MapRead(ctx, 0, size); err != nil {
		err = fmt.Errorf("map readback of %q: %w", tex.Label, err)
		core.LogError("%s", err)
		return nil, err
	}
	mapped := buf.MappedRange(0, size)
	out := make([]byte, bpr*rows)
	for r := uint32(0); r < rows; r++ {
		copy(out[r*bpr:(r+1)*bpr], mapped[r*padded:r*padded+bpr])
	}
	buf.Unmap()
	return out, nil
}

func (h *TextureHelper) Release() {
	for key, en := range h.scratch {
		en.release()
		delete(h.scratch, key)
	}
	h.pipelines.Release()
	h.mipmap.release()
	h.invert.release()
}
