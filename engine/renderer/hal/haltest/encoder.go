package haltest

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type CommandBuffer struct {
	label    string
	commands []func()
	executed bool
}

func (c *CommandBuffer) Release() {}

type CommandEncoder struct {
	device   *Device
	label    string
	commands []func()
	open     bool
	finished bool
}

func (e *CommandEncoder) beginPass() error {
	if e.finished {
		return fmt.Errorf("encoder %q: %w", e.label, hal.ErrEncoderFinished)
	}
	if e.open {
		e.device.validationError("encoder %q already has an open pass", e.label)
		return fmt.Errorf("encoder %q: %w", e.label, hal.ErrPassAlreadyOpen)
	}
	e.open = true
	return nil
}

func (e *CommandEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) (hal.RenderPass, error) {
	if err := e.beginPass(); err != nil {
		return nil, err
	}
	p := &RenderPass{encoder: e, desc: *desc}
	p.desc.ColorAttachments = append([]hal.RenderPassColorAttachment(nil), desc.ColorAttachments...)
	if desc.DepthStencilAttachment != nil {
		ds := *desc.DepthStencilAttachment
		p.desc.DepthStencilAttachment = &ds
	}
	p.recorder.device = e.device
	return p, nil
}

func (e *CommandEncoder) BeginComputePass(label string) (hal.ComputePass, error) {
	if err := e.beginPass(); err != nil {
		return nil, err
	}
	return &ComputePass{encoder: e, label: label}, nil
}

func (e *CommandEncoder) checkCopy(op string) {
	if e.open {
		e.device.validationError("%s recorded on %q while a pass is open", op, e.label)
	}
}

func (e *CommandEncoder) CopyBufferToTexture(src *hal.ImageCopyBuffer, dst *hal.ImageCopyTexture, size *hal.Extent3D) {
	e.checkCopy("copyBufferToTexture")
	s, d, sz := *src, *dst, *size
	e.commands = append(e.commands, func() {
		buf := s.Buffer.(*Buffer)
		tex := d.Texture.(*Texture)
		e.device.record("copyBufferToTexture", tex.desc.Label, float64(d.MipLevel), float64(d.Origin.Z))
		if buf.destroyed || tex.destroyed {
			e.device.validationError("copy %q -> %q uses a destroyed resource", buf.Desc.Label, tex.desc.Label)
			return
		}
		if buf.mapped {
			e.device.validationError("copy from mapped buffer %q", buf.Desc.Label)
			return
		}
		if s.Layout.BytesPerRow%hal.CopyBytesPerRowAlignment != 0 {
			e.device.validationError("copy from %q: bytes per row %d not aligned", buf.Desc.Label, s.Layout.BytesPerRow)
			return
		}
		if err := tex.writeRegion(&d, buf.data, &s.Layout, &sz); err != nil {
			e.device.RaiseError(err)
		}
	})
}

func (e *CommandEncoder) CopyTextureToBuffer(src *hal.ImageCopyTexture, dst *hal.ImageCopyBuffer, size *hal.Extent3D) {
	e.checkCopy("copyTextureToBuffer")
	s, d, sz := *src, *dst, *size
	e.commands = append(e.commands, func() {
		tex := s.Texture.(*Texture)
		buf := d.Buffer.(*Buffer)
		e.device.record("copyTextureToBuffer", tex.desc.Label, float64(s.MipLevel), float64(s.Origin.Z))
		if buf.destroyed || tex.destroyed {
			e.device.validationError("copy %q -> %q uses a destroyed resource", tex.desc.Label, buf.Desc.Label)
			return
		}
		if d.Layout.BytesPerRow%hal.CopyBytesPerRowAlignment != 0 {
			e.device.validationError("copy into %q: bytes per row %d not aligned", buf.Desc.Label, d.Layout.BytesPerRow)
			return
		}
		if err := tex.readRegion(&s, buf.data, &d.Layout, &sz); err != nil {
			e.device.RaiseError(err)
		}
	})
}

func (e *CommandEncoder) CopyTextureToTexture(src *hal.ImageCopyTexture, dst *hal.ImageCopyTexture, size *hal.Extent3D) {
	e.checkCopy("copyTextureToTexture")
	s, d, sz := *src, *dst, *size
	e.commands = append(e.commands, func() {
		from := s.Texture.(*Texture)
		to := d.Texture.(*Texture)
		e.device.record("copyTextureToTexture", to.desc.Label, float64(d.MipLevel), float64(d.Origin.Z))
		if from.destroyed || to.destroyed {
			e.device.validationError("copy %q -> %q uses a destroyed texture", from.desc.Label, to.desc.Label)
			return
		}
		if from.desc.Format != to.desc.Format {
			e.device.validationError("copy %q -> %q with different formats", from.desc.Label, to.desc.Label)
			return
		}
		depth := sz.DepthOrArrayLayers
		if depth == 0 {
			depth = 1
		}
		bpr := (sz.Width + from.blockW - 1) / from.blockW * from.blockBytes
		rows := (sz.Height + from.blockH - 1) / from.blockH
		layout := hal.TextureDataLayout{BytesPerRow: bpr, RowsPerImage: rows}
		tmp := make([]byte, bpr*rows*depth)
		if err := from.readRegion(&s, tmp, &layout, &sz); err != nil {
			e.device.RaiseError(err)
			return
		}
		if err := to.writeRegion(&d, tmp, &layout, &sz); err != nil {
			e.device.RaiseError(err)
		}
	})
}

func (e *CommandEncoder) Finish() (hal.CommandBuffer, error) {
	if e.finished {
		return nil, fmt.Errorf("encoder %q: %w", e.label, hal.ErrEncoderFinished)
	}
	if e.open {
		return nil, fmt.Errorf("finish encoder %q: %w", e.label, hal.ErrPassAlreadyOpen)
	}
	e.finished = true
	return &CommandBuffer{label: e.label, commands: e.commands}, nil
}

func (e *CommandEncoder) Release() {}

// recorder collects render commands for passes and bundles.
type recorder struct {
	device   *Device
	commands []func(s *renderState)
}

func (r *recorder) SetPipeline(pipeline hal.RenderPipeline) {
	p := pipeline.(*RenderPipeline)
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("setPipeline", p.label())
		s.pipeline = p
	})
}

func (r *recorder) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	g, _ := group.(*BindGroup)
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("setBindGroup", "", float64(index))
		s.groups[index] = g
	})
}

func (r *recorder) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset, size uint64) {
	b := buffer.(*Buffer)
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("setVertexBuffer", b.Desc.Label, float64(slot))
		s.vertex[slot] = vertexBinding{buffer: b, offset: offset}
	})
}

func (r *recorder) SetIndexBuffer(buffer hal.Buffer, format hal.IndexFormat, offset, size uint64) {
	b := buffer.(*Buffer)
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("setIndexBuffer", b.Desc.Label)
		s.index = b
		s.indexFormat = format
		s.indexOffset = offset
	})
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("draw", s.pipelineLabel(), float64(vertexCount), float64(instanceCount), float64(firstVertex))
		s.draw(firstVertex, vertexCount, nil)
	})
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("drawIndexed", s.pipelineLabel(), float64(indexCount), float64(instanceCount), float64(firstIndex))
		indices, err := s.readIndices(firstIndex, indexCount, baseVertex)
		if err != nil {
			s.device.RaiseError(err)
			return
		}
		s.draw(0, indexCount, indices)
	})
}

func (r *recorder) DrawIndirect(buffer hal.Buffer, offset uint64) {
	b := buffer.(*Buffer)
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("drawIndirect", s.pipelineLabel(), float64(offset))
		args := readUint32s(b.data[offset:], 4)
		s.draw(args[2], args[0], nil)
	})
}

func (r *recorder) DrawIndexedIndirect(buffer hal.Buffer, offset uint64) {
	b := buffer.(*Buffer)
	r.commands = append(r.commands, func(s *renderState) {
		s.device.record("drawIndexedIndirect", s.pipelineLabel(), float64(offset))
		args := readUint32s(b.data[offset:], 5)
		indices, err := s.readIndices(args[2], args[0], int32(args[3]))
		if err != nil {
			s.device.RaiseError(err)
			return
		}
		s.draw(0, args[0], indices)
	})
}

type RenderPass struct {
	recorder
	encoder *CommandEncoder
	desc    hal.RenderPassDescriptor
	ended   bool
}

func (p *RenderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.commands = append(p.commands, func(s *renderState) {
		s.device.record("setViewport", s.label, float64(x), float64(y), float64(width), float64(height))
		s.viewport = [6]float32{x, y, width, height, minDepth, maxDepth}
	})
}

func (p *RenderPass) SetScissorRect(x, y, width, height uint32) {
	p.commands = append(p.commands, func(s *renderState) {
		s.device.record("setScissorRect", s.label, float64(x), float64(y), float64(width), float64(height))
		s.scissor = [4]uint32{x, y, width, height}
	})
}

func (p *RenderPass) SetStencilReference(reference uint32) {
	p.commands = append(p.commands, func(s *renderState) {
		s.device.record("setStencilReference", s.label, float64(reference))
		s.stencilRef = reference
	})
}

func (p *RenderPass) SetBlendConstant(color hal.Color) {
	p.commands = append(p.commands, func(s *renderState) {
		s.device.record("setBlendConstant", s.label, color.R, color.G, color.B, color.A)
		s.blend = color
	})
}

func (p *RenderPass) ExecuteBundles(bundles ...hal.RenderBundle) {
	list := make([]*RenderBundle, 0, len(bundles))
	for _, b := range bundles {
		list = append(list, b.(*RenderBundle))
	}
	p.commands = append(p.commands, func(s *renderState) {
		for _, b := range list {
			s.device.record("executeBundle", b.label)
			if b.released {
				s.device.validationError("released bundle %q executed", b.label)
				continue
			}
			s.resetBindings()
			for _, cmd := range b.commands {
				cmd(s)
			}
		}
		s.resetBindings()
	})
}

func (p *RenderPass) End() error {
	if p.ended {
		return fmt.Errorf("pass %q already ended", p.desc.Label)
	}
	p.ended = true
	p.encoder.open = false
	desc := p.desc
	cmds := p.commands
	device := p.device
	p.encoder.commands = append(p.encoder.commands, func() {
		s, ok := beginRenderState(device, &desc)
		if !ok {
			return
		}
		for _, cmd := range cmds {
			cmd(s)
		}
		s.end()
	})
	return nil
}

type RenderBundleEncoder struct {
	recorder
	device *Device
	desc   hal.RenderBundleEncoderDescriptor
}

func (b *RenderBundleEncoder) Finish(label string) (hal.RenderBundle, error) {
	b.device.created["RenderBundle"]++
	return &RenderBundle{label: label, desc: b.desc, commands: b.commands}, nil
}

type RenderBundle struct {
	label    string
	desc     hal.RenderBundleEncoderDescriptor
	commands []func(s *renderState)
	released bool
}

func (b *RenderBundle) Release() { b.released = true }

func (b *RenderBundle) Label() string { return b.label }

type ComputePass struct {
	encoder  *CommandEncoder
	label    string
	commands []func()
	ended    bool
}

func (c *ComputePass) SetPipeline(pipeline hal.ComputePipeline) {
	p := pipeline.(*ComputePipeline)
	c.commands = append(c.commands, func() {
		c.encoder.device.record("setComputePipeline", p.Desc.Label)
	})
}

func (c *ComputePass) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	c.commands = append(c.commands, func() {
		c.encoder.device.record("setBindGroup", c.label, float64(index))
	})
}

func (c *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	c.commands = append(c.commands, func() {
		c.encoder.device.record("dispatch", c.label, float64(x), float64(y), float64(z))
	})
}

func (c *ComputePass) DispatchWorkgroupsIndirect(buffer hal.Buffer, offset uint64) {
	b := buffer.(*Buffer)
	c.commands = append(c.commands, func() {
		args := readUint32s(b.data[offset:], 3)
		c.encoder.device.record("dispatch", c.label, float64(args[0]), float64(args[1]), float64(args[2]))
	})
}

func (c *ComputePass) End() error {
	if c.ended {
		return fmt.Errorf("compute pass %q already ended", c.label)
	}
	c.ended = true
	c.encoder.open = false
	d := c.encoder.device
	label := c.label
	cmds := c.commands
	c.encoder.commands = append(c.encoder.commands, func() {
		d.record("beginComputePass", label)
		for _, cmd := range cmds {
			cmd()
		}
		d.record("endComputePass", label)
	})
	return nil
}
