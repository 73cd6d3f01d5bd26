package wgpu

import (
	"fmt"
	"image"

	native "github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type Device struct {
	device *native.Device
	queue  *Queue
	lost   bool

	onUncapturedError func(err error)
}

// report forwards errors of calls the hal interface treats as fire and
// forget.
func (d *Device) report(op string, err error) {
	if err == nil {
		return
	}
	err = fmt.Errorf("%s: %w", op, err)
	if d.onUncapturedError != nil {
		d.onUncapturedError(err)
		return
	}
	core.LogError("%s", err)
}

func (d *Device) check() error {
	if d.lost {
		return hal.ErrDeviceLost
	}
	return nil
}

func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	t, err := d.device.CreateTexture(&native.TextureDescriptor{
		Label:         desc.Label,
		Usage:         textureUsage(desc.Usage),
		Dimension:     textureDimension(desc.Dimension),
		Size:          *extent(&desc.Size),
		Format:        textureFormat(desc.Format),
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   desc.SampleCount,
	})
	if err != nil {
		return nil, err
	}
	return &Texture{texture: t, desc: *desc, device: d}, nil
}

func (d *Device) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	maxAnisotropy := desc.MaxAnisotropy
	if maxAnisotropy == 0 {
		maxAnisotropy = 1
	}
	s, err := d.device.CreateSampler(&native.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  addressMode(desc.AddressModeU),
		AddressModeV:  addressMode(desc.AddressModeV),
		AddressModeW:  addressMode(desc.AddressModeW),
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  mipmapFilterMode(desc.MipmapFilter),
		LodMinClamp:   desc.LodMinClamp,
		LodMaxClamp:   desc.LodMaxClamp,
		Compare:       compareFunction(desc.Compare),
		MaxAnisotropy: maxAnisotropy,
	})
	if err != nil {
		return nil, err
	}
	return &Sampler{sampler: s}, nil
}

func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	b, err := d.device.CreateBuffer(&native.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            bufferUsage(desc.Usage),
		MappedAtCreation: desc.MappedAtCreation,
	})
	if err != nil {
		return nil, err
	}
	return &Buffer{buffer: b, size: desc.Size, device: d}, nil
}

func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	m, err := d.device.CreateShaderModule(&native.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &native.ShaderModuleWGSLDescriptor{Code: desc.Code},
	})
	if err != nil {
		return nil, err
	}
	return &ShaderModule{module: m}, nil
}

func (d *Device) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	entries := make([]native.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := native.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: shaderStage(e.Visibility),
		}
		switch {
		case e.Buffer != nil:
			entry.Buffer = native.BufferBindingLayout{
				Type:             bufferBindingType(e.Buffer.Type),
				HasDynamicOffset: e.Buffer.HasDynamicOffset,
				MinBindingSize:   e.Buffer.MinBindingSize,
			}
		case e.Sampler != nil:
			entry.Sampler = native.SamplerBindingLayout{Type: samplerBindingType(e.Sampler.Type)}
		case e.Texture != nil:
			entry.Texture = native.TextureBindingLayout{
				SampleType:    textureSampleType(e.Texture.SampleType),
				ViewDimension: textureViewDimension(e.Texture.ViewDimension),
				Multisampled:  e.Texture.Multisampled,
			}
		default:
			return nil, fmt.Errorf("%w: binding %d of %q has no resource type", core.ErrInvalidArgument, e.Binding, desc.Label)
		}
		entries[i] = entry
	}
	l, err := d.device.CreateBindGroupLayout(&native.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return nil, err
	}
	return &BindGroupLayout{layout: l}, nil
}

func (d *Device) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	layouts := make([]*native.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layouts[i] = l.(*BindGroupLayout).layout
	}
	l, err := d.device.CreatePipelineLayout(&native.PipelineLayoutDescriptor{Label: desc.Label, BindGroupLayouts: layouts})
	if err != nil {
		return nil, err
	}
	return &PipelineLayout{layout: l}, nil
}

func (d *Device) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	entries := make([]native.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := native.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			b := e.Buffer.(*Buffer)
			if b.buffer == nil {
				return nil, hal.ErrResourceReleased
			}
			entry.Buffer = b.buffer
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 {
				entry.Size = native.WholeSize
			}
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*Sampler).sampler
		case e.TextureView != nil:
			entry.TextureView = e.TextureView.(*TextureView).view
		}
		entries[i] = entry
	}
	g, err := d.device.CreateBindGroup(&native.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.(*BindGroupLayout).layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &BindGroup{group: g}, nil
}

func (d *Device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	buffers := make([]native.VertexBufferLayout, len(desc.Vertex.Buffers))
	for i, b := range desc.Vertex.Buffers {
		attrs := make([]native.VertexAttribute, len(b.Attributes))
		for j, a := range b.Attributes {
			attrs[j] = native.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			}
		}
		buffers[i] = native.VertexBufferLayout{
			ArrayStride: b.ArrayStride,
			StepMode:    vertexStepMode(b.StepMode),
			Attributes:  attrs,
		}
	}
	ndesc := &native.RenderPipelineDescriptor{
		Label: desc.Label,
		Vertex: native.VertexState{
			Module:     desc.Vertex.Module.(*ShaderModule).module,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    buffers,
		},
		Primitive: native.PrimitiveState{
			Topology:         primitiveTopology(desc.Primitive.Topology),
			StripIndexFormat: indexFormat(desc.Primitive.StripIndexFormat),
			FrontFace:        frontFace(desc.Primitive.FrontFace),
			CullMode:         cullMode(desc.Primitive.CullMode),
		},
		Multisample: native.MultisampleState{
			Count:                  desc.Multisample.Count,
			Mask:                   desc.Multisample.Mask,
			AlphaToCoverageEnabled: desc.Multisample.AlphaToCoverageEnabled,
		},
	}
	if desc.Layout != nil {
		ndesc.Layout = desc.Layout.(*PipelineLayout).layout
	}
	if ds := desc.DepthStencil; ds != nil {
		ndesc.DepthStencil = &native.DepthStencilState{
			Format:            textureFormat(ds.Format),
			DepthWriteEnabled: ds.DepthWriteEnabled,
			DepthCompare:      compareFunction(ds.DepthCompare),
			StencilFront:      stencilFace(ds.StencilFront),
			StencilBack:       stencilFace(ds.StencilBack),
			StencilReadMask:   ds.StencilReadMask,
			StencilWriteMask:  ds.StencilWriteMask,
			DepthBias:         ds.DepthBias,
		}
	}
	if fs := desc.Fragment; fs != nil {
		targets := make([]native.ColorTargetState, len(fs.Targets))
		for i, t := range fs.Targets {
			target := native.ColorTargetState{
				Format:    textureFormat(t.Format),
				WriteMask: colorWriteMask(t.WriteMask),
			}
			if t.Blend != nil {
				target.Blend = &native.BlendState{
					Color: blendComponent(t.Blend.Color),
					Alpha: blendComponent(t.Blend.Alpha),
				}
			}
			targets[i] = target
		}
		ndesc.Fragment = &native.FragmentState{
			Module:     fs.Module.(*ShaderModule).module,
			EntryPoint: fs.EntryPoint,
			Targets:    targets,
		}
	}
	p, err := d.device.CreateRenderPipeline(ndesc)
	if err != nil {
		return nil, err
	}
	return &RenderPipeline{pipeline: p}, nil
}

func stencilFace(s hal.StencilFaceState) native.StencilFaceState {
	return native.StencilFaceState{
		Compare:     compareFunction(s.Compare),
		FailOp:      stencilOperation(s.FailOp),
		DepthFailOp: stencilOperation(s.DepthFailOp),
		PassOp:      stencilOperation(s.PassOp),
	}
}

func blendComponent(c hal.BlendComponent) native.BlendComponent {
	return native.BlendComponent{
		Operation: blendOperation(c.Operation),
		SrcFactor: blendFactor(c.SrcFactor),
		DstFactor: blendFactor(c.DstFactor),
	}
}

func (d *Device) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	ndesc := &native.ComputePipelineDescriptor{
		Label: desc.Label,
		Compute: native.ProgrammableStageDescriptor{
			Module:     desc.Module.(*ShaderModule).module,
			EntryPoint: desc.EntryPoint,
		},
	}
	if desc.Layout != nil {
		ndesc.Layout = desc.Layout.(*PipelineLayout).layout
	}
	p, err := d.device.CreateComputePipeline(ndesc)
	if err != nil {
		return nil, err
	}
	return &ComputePipeline{pipeline: p}, nil
}

func (d *Device) CreateCommandEncoder(label string) (hal.CommandEncoder, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	enc, err := d.device.CreateCommandEncoder(&native.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &CommandEncoder{encoder: enc, device: d, label: label}, nil
}

func (d *Device) CreateRenderBundleEncoder(desc *hal.RenderBundleEncoderDescriptor) (hal.RenderBundleEncoder, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	formats := make([]native.TextureFormat, len(desc.ColorFormats))
	for i, f := range desc.ColorFormats {
		formats[i] = textureFormat(f)
	}
	enc, err := d.device.CreateRenderBundleEncoder(&native.RenderBundleEncoderDescriptor{
		Label:              desc.Label,
		ColorFormats:       formats,
		DepthStencilFormat: textureFormat(desc.DepthStencilFormat),
		SampleCount:        desc.SampleCount,
	})
	if err != nil {
		return nil, err
	}
	return &RenderBundleEncoder{encoder: enc}, nil
}

func (d *Device) Queue() hal.Queue {
	return d.queue
}

func (d *Device) Features() hal.Features {
	return halFeatures(d.device.HasFeature)
}

func (d *Device) Limits() hal.Limits {
	return halLimits(d.device.GetLimits().Limits)
}

func (d *Device) Poll(wait bool) {
	d.device.Poll(wait, nil)
}

func (d *Device) Release() {
	d.device.Release()
}

type Queue struct {
	queue  *native.Queue
	device *Device
}

func (q *Queue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.TextureDataLayout, size *hal.Extent3D) error {
	if err := q.device.check(); err != nil {
		return err
	}
	nlayout := dataLayout(*layout)
	return q.queue.WriteTexture(imageCopyTexture(dst), data, &nlayout, extent(size))
}

func (q *Queue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	if err := q.device.check(); err != nil {
		return err
	}
	b := buffer.(*Buffer)
	if b.buffer == nil {
		return hal.ErrResourceReleased
	}
	return q.queue.WriteBuffer(b.buffer, offset, data)
}

// CopyExternalImageToTexture converts src to RGBA and writes it with
// WriteTexture. wgpu-native has no external image path.
func (q *Queue) CopyExternalImageToTexture(src image.Image, dst *hal.ImageCopyTexture, size *hal.Extent3D) error {
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		b := src.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, src, b.Min, draw.Src)
	}
	return q.WriteTexture(dst, rgba.Pix, &hal.TextureDataLayout{
		BytesPerRow:  uint32(rgba.Stride),
		RowsPerImage: uint32(rgba.Rect.Dy()),
	}, size)
}

func (q *Queue) Submit(buffers ...hal.CommandBuffer) {
	if len(buffers) == 0 || q.device.lost {
		return
	}
	cmds := make([]*native.CommandBuffer, len(buffers))
	for i, b := range buffers {
		cmds[i] = b.(*CommandBuffer).buffer
	}
	q.queue.Submit(cmds...)
}

func imageCopyTexture(c *hal.ImageCopyTexture) *native.ImageCopyTexture {
	return &native.ImageCopyTexture{
		Texture:  c.Texture.(*Texture).texture,
		MipLevel: c.MipLevel,
		Origin:   native.Origin3D{X: c.Origin.X, Y: c.Origin.Y, Z: c.Origin.Z},
		Aspect:   textureAspect(c.Aspect),
	}
}
