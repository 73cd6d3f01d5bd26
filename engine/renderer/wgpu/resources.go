package wgpu

import (
	"context"
	"fmt"

	native "github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type Texture struct {
	texture *native.Texture
	desc    hal.TextureDescriptor
	device  *Device
	// Surface textures are owned by the swapchain and never destroyed here.
	surface bool
}

func (t *Texture) CreateView(desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	if t.texture == nil {
		return nil, hal.ErrResourceReleased
	}
	viewFormat := t.desc.Format
	var ndesc *native.TextureViewDescriptor
	if desc != nil {
		mips := desc.MipLevelCount
		if mips == 0 {
			mips = t.desc.MipLevelCount - desc.BaseMipLevel
		}
		layers := desc.ArrayLayerCount
		if layers == 0 {
			layers = 1
			if t.desc.Dimension != hal.TextureDimension3D {
				layers = t.desc.Size.DepthOrArrayLayers - desc.BaseArrayLayer
			}
		}
		if desc.Format != hal.TextureFormatUndefined {
			viewFormat = desc.Format
		}
		ndesc = &native.TextureViewDescriptor{
			Label:           desc.Label,
			Format:          textureFormat(viewFormat),
			Dimension:       textureViewDimension(desc.Dimension),
			BaseMipLevel:    desc.BaseMipLevel,
			MipLevelCount:   mips,
			BaseArrayLayer:  desc.BaseArrayLayer,
			ArrayLayerCount: layers,
			Aspect:          textureAspect(desc.Aspect),
		}
	}
	v, err := t.texture.CreateView(ndesc)
	if err != nil {
		return nil, err
	}
	return &TextureView{view: v, format: viewFormat}, nil
}

func (t *Texture) Descriptor() hal.TextureDescriptor {
	return t.desc
}

func (t *Texture) Destroy() {
	if t.texture == nil {
		return
	}
	if !t.surface {
		t.texture.Destroy()
	}
	t.texture.Release()
	t.texture = nil
}

type TextureView struct {
	view   *native.TextureView
	format hal.TextureFormat
}

func (v *TextureView) Release() {
	if v.view != nil {
		v.view.Release()
		v.view = nil
	}
}

type Sampler struct {
	sampler *native.Sampler
}

func (s *Sampler) Release() {
	s.sampler.Release()
}

type Buffer struct {
	buffer *native.Buffer
	size   uint64
	device *Device
}

func (b *Buffer) Size() uint64 {
	return b.size
}

func (b *Buffer) MappedRange(offset, size uint64) []byte {
	if b.buffer == nil {
		return nil
	}
	return b.buffer.GetMappedRange(uint(offset), uint(size))
}

// MapRead polls the device until the map callback fires or ctx ends.
func (b *Buffer) MapRead(ctx context.Context, offset, size uint64) error {
	if b.buffer == nil {
		return hal.ErrResourceReleased
	}
	done := make(chan native.BufferMapAsyncStatus, 1)
	err := b.buffer.MapAsync(native.MapModeRead, offset, size, func(status native.BufferMapAsyncStatus) {
		done <- status
	})
	if err != nil {
		return err
	}
	for {
		select {
		case status := <-done:
			if status != native.BufferMapAsyncStatusSuccess {
				return fmt.Errorf("%w: map status %d", hal.ErrNotMapped, status)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.device.Poll(false)
		}
	}
}

func (b *Buffer) Unmap() {
	if b.buffer != nil {
		b.buffer.Unmap()
	}
}

func (b *Buffer) Destroy() {
	if b.buffer == nil {
		return
	}
	b.buffer.Destroy()
	b.buffer.Release()
	b.buffer = nil
}

type ShaderModule struct {
	module *native.ShaderModule
}

func (m *ShaderModule) Release() {
	m.module.Release()
}

type BindGroupLayout struct {
	layout *native.BindGroupLayout
}

func (l *BindGroupLayout) Release() {
	l.layout.Release()
}

type PipelineLayout struct {
	layout *native.PipelineLayout
}

func (l *PipelineLayout) Release() {
	l.layout.Release()
}

type BindGroup struct {
	group *native.BindGroup
}

func (g *BindGroup) Release() {
	g.group.Release()
}

type RenderPipeline struct {
	pipeline *native.RenderPipeline
}

func (p *RenderPipeline) Release() {
	p.pipeline.Release()
}

type ComputePipeline struct {
	pipeline *native.ComputePipeline
}

func (p *ComputePipeline) Release() {
	p.pipeline.Release()
}

type CommandBuffer struct {
	buffer *native.CommandBuffer
}

func (b *CommandBuffer) Release() {
	b.buffer.Release()
}

type RenderBundle struct {
	bundle *native.RenderBundle
}

func (b *RenderBundle) Release() {
	b.bundle.Release()
}
