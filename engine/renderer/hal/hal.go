// Package hal is the engine-neutral view of a WebGPU style device. The
// renderer only talks to these interfaces; engine/renderer/wgpu implements
// them on top of wgpu-native and haltest implements them in memory.
package hal

import (
	"context"
	"image"
)

type Instance interface {
	RequestAdapter(opts *RequestAdapterOptions) (Adapter, error)
	Release()
}

type Adapter interface {
	RequestDevice(desc *DeviceDescriptor) (Device, error)
	Info() AdapterInfo
	Features() Features
	Limits() Limits
	Release()
}

type Device interface {
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)
	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	CreateRenderBundleEncoder(desc *RenderBundleEncoderDescriptor) (RenderBundleEncoder, error)
	Queue() Queue
	Features() Features
	Limits() Limits
	// Poll drives pending callbacks. With wait set it blocks until the
	// queue is idle.
	Poll(wait bool)
	Release()
}

type Queue interface {
	WriteTexture(dst *ImageCopyTexture, data []byte, layout *TextureDataLayout, size *Extent3D) error
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error
	// CopyExternalImageToTexture uploads a decoded image into dst.
	CopyExternalImageToTexture(src image.Image, dst *ImageCopyTexture, size *Extent3D) error
	Submit(buffers ...CommandBuffer)
}

type Surface interface {
	Configure(adapter Adapter, device Device, config *SurfaceConfiguration) error
	CurrentTexture() (Texture, error)
	Present()
	Release()
}

type Texture interface {
	CreateView(desc *TextureViewDescriptor) (TextureView, error)
	Descriptor() TextureDescriptor
	Destroy()
}

type TextureView interface {
	Release()
}

type Sampler interface {
	Release()
}

type Buffer interface {
	Size() uint64
	// MappedRange returns the mapped memory of a buffer created with
	// MappedAtCreation or mapped by MapRead.
	MappedRange(offset, size uint64) []byte
	// MapRead maps the buffer for reading and blocks until the mapping
	// resolves or ctx ends.
	MapRead(ctx context.Context, offset, size uint64) error
	Unmap()
	Destroy()
}

type ShaderModule interface {
	Release()
}

type BindGroupLayout interface {
	Release()
}

type PipelineLayout interface {
	Release()
}

type BindGroup interface {
	Release()
}

type RenderPipeline interface {
	Release()
}

type ComputePipeline interface {
	Release()
}

type CommandBuffer interface {
	Release()
}

type RenderBundle interface {
	Release()
}

type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	BeginComputePass(label string) (ComputePass, error)
	CopyBufferToTexture(src *ImageCopyBuffer, dst *ImageCopyTexture, size *Extent3D)
	CopyTextureToBuffer(src *ImageCopyTexture, dst *ImageCopyBuffer, size *Extent3D)
	CopyTextureToTexture(src *ImageCopyTexture, dst *ImageCopyTexture, size *Extent3D)
	Finish() (CommandBuffer, error)
	Release()
}

// RenderCommands is the command subset shared by render passes and render
// bundle encoders.
type RenderCommands interface {
	SetPipeline(pipeline RenderPipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer Buffer, offset, size uint64)
	SetIndexBuffer(buffer Buffer, format IndexFormat, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	DrawIndirect(buffer Buffer, offset uint64)
	DrawIndexedIndirect(buffer Buffer, offset uint64)
}

type RenderPass interface {
	RenderCommands
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	SetStencilReference(reference uint32)
	SetBlendConstant(color Color)
	ExecuteBundles(bundles ...RenderBundle)
	End() error
}

type RenderBundleEncoder interface {
	RenderCommands
	Finish(label string) (RenderBundle, error)
}

type ComputePass interface {
	SetPipeline(pipeline ComputePipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	DispatchWorkgroups(x, y, z uint32)
	DispatchWorkgroupsIndirect(buffer Buffer, offset uint64)
	End() error
}
