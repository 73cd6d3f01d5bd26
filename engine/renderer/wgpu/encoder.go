package wgpu

import (
	native "github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type CommandEncoder struct {
	encoder  *native.CommandEncoder
	device   *Device
	label    string
	passOpen bool
	finished bool
}

func (c *CommandEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) (hal.RenderPass, error) {
	if c.finished {
		return nil, hal.ErrEncoderFinished
	}
	if c.passOpen {
		return nil, hal.ErrPassAlreadyOpen
	}
	colors := make([]native.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, a := range desc.ColorAttachments {
		att := native.RenderPassColorAttachment{
			View:       a.View.(*TextureView).view,
			LoadOp:     loadOp(a.LoadOp),
			StoreOp:    storeOp(a.StoreOp),
			ClearValue: color(a.ClearValue),
		}
		if a.ResolveTarget != nil {
			att.ResolveTarget = a.ResolveTarget.(*TextureView).view
		}
		colors[i] = att
	}
	ndesc := &native.RenderPassDescriptor{Label: desc.Label, ColorAttachments: colors}
	if ds := desc.DepthStencilAttachment; ds != nil {
		att := &native.RenderPassDepthStencilAttachment{
			View:              ds.View.(*TextureView).view,
			DepthClearValue:   ds.DepthClearValue,
			DepthReadOnly:     ds.DepthReadOnly,
			StencilClearValue: ds.StencilClearValue,
			StencilReadOnly:   ds.StencilReadOnly,
		}
		// Load and store ops of an aspect the format lacks, or that is read
		// only, must stay undefined.
		format := hal.TextureFormatDepth24PlusStencil8
		if t, ok := ds.View.(*TextureView); ok && t.format != hal.TextureFormatUndefined {
			format = t.format
		}
		if hasDepth(format) && !ds.DepthReadOnly {
			att.DepthLoadOp = loadOp(ds.DepthLoadOp)
			att.DepthStoreOp = storeOp(ds.DepthStoreOp)
		}
		if hasStencil(format) && !ds.StencilReadOnly {
			att.StencilLoadOp = loadOp(ds.StencilLoadOp)
			att.StencilStoreOp = storeOp(ds.StencilStoreOp)
		}
		ndesc.DepthStencilAttachment = att
	}
	c.passOpen = true
	return &RenderPass{pass: c.encoder.BeginRenderPass(ndesc), encoder: c}, nil
}

func (c *CommandEncoder) BeginComputePass(label string) (hal.ComputePass, error) {
	if c.finished {
		return nil, hal.ErrEncoderFinished
	}
	if c.passOpen {
		return nil, hal.ErrPassAlreadyOpen
	}
	c.passOpen = true
	return &ComputePass{pass: c.encoder.BeginComputePass(&native.ComputePassDescriptor{Label: label}), encoder: c}, nil
}

func (c *CommandEncoder) CopyBufferToTexture(src *hal.ImageCopyBuffer, dst *hal.ImageCopyTexture, size *hal.Extent3D) {
	err := c.encoder.CopyBufferToTexture(imageCopyBuffer(src), imageCopyTexture(dst), extent(size))
	c.device.report("copyBufferToTexture", err)
}

func (c *CommandEncoder) CopyTextureToBuffer(src *hal.ImageCopyTexture, dst *hal.ImageCopyBuffer, size *hal.Extent3D) {
	err := c.encoder.CopyTextureToBuffer(imageCopyTexture(src), imageCopyBuffer(dst), extent(size))
	c.device.report("copyTextureToBuffer", err)
}

func (c *CommandEncoder) CopyTextureToTexture(src *hal.ImageCopyTexture, dst *hal.ImageCopyTexture, size *hal.Extent3D) {
	err := c.encoder.CopyTextureToTexture(imageCopyTexture(src), imageCopyTexture(dst), extent(size))
	c.device.report("copyTextureToTexture", err)
}

func (c *CommandEncoder) Finish() (hal.CommandBuffer, error) {
	if c.finished {
		return nil, hal.ErrEncoderFinished
	}
	if c.passOpen {
		return nil, hal.ErrPassAlreadyOpen
	}
	c.finished = true
	buf, err := c.encoder.Finish(&native.CommandBufferDescriptor{Label: c.label})
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{buffer: buf}, nil
}

func (c *CommandEncoder) Release() {
	c.encoder.Release()
}

func imageCopyBuffer(b *hal.ImageCopyBuffer) *native.ImageCopyBuffer {
	return &native.ImageCopyBuffer{
		Layout: dataLayout(b.Layout),
		Buffer: b.Buffer.(*Buffer).buffer,
	}
}

type RenderPass struct {
	pass    *native.RenderPassEncoder
	encoder *CommandEncoder
}

func (p *RenderPass) SetPipeline(pipeline hal.RenderPipeline) {
	p.pass.SetPipeline(pipeline.(*RenderPipeline).pipeline)
}

func (p *RenderPass) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	p.pass.SetBindGroup(index, group.(*BindGroup).group, dynamicOffsets)
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset, size uint64) {
	p.pass.SetVertexBuffer(slot, buffer.(*Buffer).buffer, offset, wholeSize(size))
}

func (p *RenderPass) SetIndexBuffer(buffer hal.Buffer, format hal.IndexFormat, offset, size uint64) {
	p.pass.SetIndexBuffer(buffer.(*Buffer).buffer, indexFormat(format), offset, wholeSize(size))
}

func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *RenderPass) DrawIndirect(buffer hal.Buffer, offset uint64) {
	p.pass.DrawIndirect(buffer.(*Buffer).buffer, offset)
}

func (p *RenderPass) DrawIndexedIndirect(buffer hal.Buffer, offset uint64) {
	p.pass.DrawIndexedIndirect(buffer.(*Buffer).buffer, offset)
}

func (p *RenderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.pass.SetViewport(x, y, width, height, minDepth, maxDepth)
}

func (p *RenderPass) SetScissorRect(x, y, width, height uint32) {
	p.pass.SetScissorRect(x, y, width, height)
}

func (p *RenderPass) SetStencilReference(reference uint32) {
	p.pass.SetStencilReference(reference)
}

func (p *RenderPass) SetBlendConstant(c hal.Color) {
	nc := color(c)
	p.pass.SetBlendConstant(&nc)
}

func (p *RenderPass) ExecuteBundles(bundles ...hal.RenderBundle) {
	nb := make([]*native.RenderBundle, len(bundles))
	for i, b := range bundles {
		nb[i] = b.(*RenderBundle).bundle
	}
	p.pass.ExecuteBundles(nb...)
}

func (p *RenderPass) End() error {
	p.encoder.passOpen = false
	err := p.pass.End()
	p.pass.Release()
	return err
}

type RenderBundleEncoder struct {
	encoder *native.RenderBundleEncoder
}

func (b *RenderBundleEncoder) SetPipeline(pipeline hal.RenderPipeline) {
	b.encoder.SetPipeline(pipeline.(*RenderPipeline).pipeline)
}

func (b *RenderBundleEncoder) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	b.encoder.SetBindGroup(index, group.(*BindGroup).group, dynamicOffsets)
}

func (b *RenderBundleEncoder) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset, size uint64) {
	b.encoder.SetVertexBuffer(slot, buffer.(*Buffer).buffer, offset, wholeSize(size))
}

func (b *RenderBundleEncoder) SetIndexBuffer(buffer hal.Buffer, format hal.IndexFormat, offset, size uint64) {
	b.encoder.SetIndexBuffer(buffer.(*Buffer).buffer, indexFormat(format), offset, wholeSize(size))
}

func (b *RenderBundleEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	b.encoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (b *RenderBundleEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	b.encoder.DrawIndexed(indexCount, instanceCount, firstIndex, uint32(baseVertex), firstInstance)
}

func (b *RenderBundleEncoder) DrawIndirect(buffer hal.Buffer, offset uint64) {
	b.encoder.DrawIndirect(buffer.(*Buffer).buffer, offset)
}

func (b *RenderBundleEncoder) DrawIndexedIndirect(buffer hal.Buffer, offset uint64) {
	b.encoder.DrawIndexedIndirect(buffer.(*Buffer).buffer, offset)
}

func (b *RenderBundleEncoder) Finish(label string) (hal.RenderBundle, error) {
	bundle := b.encoder.Finish(&native.RenderBundleDescriptor{Label: label})
	b.encoder.Release()
	return &RenderBundle{bundle: bundle}, nil
}

type ComputePass struct {
	pass    *native.ComputePassEncoder
	encoder *CommandEncoder
}

func (p *ComputePass) SetPipeline(pipeline hal.ComputePipeline) {
	p.pass.SetPipeline(pipeline.(*ComputePipeline).pipeline)
}

func (p *ComputePass) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	p.pass.SetBindGroup(index, group.(*BindGroup).group, dynamicOffsets)
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.pass.DispatchWorkgroups(x, y, z)
}

func (p *ComputePass) DispatchWorkgroupsIndirect(buffer hal.Buffer, offset uint64) {
	p.pass.DispatchWorkgroupsIndirect(buffer.(*Buffer).buffer, offset)
}

func (p *ComputePass) End() error {
	p.encoder.passOpen = false
	err := p.pass.End()
	p.pass.Release()
	return err
}

func wholeSize(size uint64) uint64 {
	if size == 0 || size == hal.WholeSize {
		return native.WholeSize
	}
	return size
}
