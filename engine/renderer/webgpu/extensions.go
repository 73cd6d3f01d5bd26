package webgpu

import (
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

// ComputeExtension runs compute programs on the engine device.
type ComputeExtension interface {
	CreateComputeEffect(req shaders.Request) (*Effect, error)
	ComputeDispatch(fx *Effect, ctx *ComputeContext, x, y, z uint32) error
	ComputeDispatchIndirect(fx *Effect, ctx *ComputeContext, buf *DataBuffer, offset uint64) error
}

// RenderTargetExtension manages offscreen framebuffers.
type RenderTargetExtension interface {
	CreateRenderTarget(opts RenderTargetOptions) (*RenderTargetWrapper, error)
	CreateMultipleRenderTarget(opts RenderTargetOptions, count int) (*RenderTargetWrapper, error)
	BindFramebuffer(rt *RenderTargetWrapper, face, lod uint32) error
	UnbindFramebuffer() error
	ReleaseRenderTarget(rt *RenderTargetWrapper)
}

// VideoTextureExtension feeds encoded video frames into textures.
type VideoTextureExtension interface {
	CreateVideoTexture(opts TextureOptions) (*InternalTexture, error)
	UpdateVideoTexture(tex *InternalTexture, frame []byte, invertY bool) error
}

var (
	_ ComputeExtension      = (*Engine)(nil)
	_ RenderTargetExtension = (*Engine)(nil)
	_ VideoTextureExtension = (*Engine)(nil)
)
