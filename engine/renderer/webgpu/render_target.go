package webgpu

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/math"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// RenderTargetOptions describes an offscreen framebuffer. Start from
// DefaultRenderTargetOptions; the zero value has no depth buffer.
type RenderTargetOptions struct {
	Label  string
	Width  uint32
	Height uint32
	IsCube bool
	// Count is the number of color attachments. Zero means 1.
	Count int

	Type    formats.TextureType
	Format  formats.TextureFormat
	UseSRGB bool

	GenerateMipMaps       bool
	GenerateDepthBuffer   bool
	GenerateStencilBuffer bool
	SamplingMode          SamplingMode
	// Samples is clamped to 1 or 4.
	Samples           uint32
	CreationFlags     uint32
	NoColorAttachment bool
}

func DefaultRenderTargetOptions() RenderTargetOptions {
	return RenderTargetOptions{
		Type:                formats.TypeUnsignedByte,
		Format:              formats.FormatRGBA,
		GenerateDepthBuffer: true,
		SamplingMode:        SamplingTrilinear,
		Samples:             1,
	}
}

type attachmentKey struct {
	index   int
	version uint32
	face    uint32
	lod     uint32
}

// RenderTargetWrapper is an offscreen framebuffer: its color textures and
// an optional depth-stencil texture.
type RenderTargetWrapper struct {
	Label           string
	Width           uint32
	Height          uint32
	IsCube          bool
	Samples         uint32
	GenerateMipMaps bool

	Textures     []*InternalTexture
	DepthStencil *InternalTexture
	// ownsDepth is false when the depth-stencil texture was attached by the
	// caller and must outlive the target.
	ownsDepth bool

	views map[attachmentKey]hal.TextureView
}

func (rt *RenderTargetWrapper) lodSize(lod uint32) (uint32, uint32) {
	return math.MipSize(rt.Width, lod), math.MipSize(rt.Height, lod)
}

// Texture returns the first color texture, nil without color attachments.
func (rt *RenderTargetWrapper) Texture() *InternalTexture {
	if len(rt.Textures) == 0 {
		return nil
	}
	return rt.Textures[0]
}

// attachmentView returns the single level, single layer view of color
// attachment i used as a render target for face and lod.
func (rt *RenderTargetWrapper) attachmentView(e *Engine, i int, face, lod uint32) (hal.TextureView, error) {
	tex := rt.Textures[i]
	if tex.hardware == nil {
		return nil, fmt.Errorf("attachment %d of %q: %w", i, rt.Label, hal.ErrResourceReleased)
	}
	key := attachmentKey{index: i, version: tex.version, face: face, lod: lod}
	if v, ok := rt.views[key]; ok {
		return v, nil
	}
	v, err := tex.hardware.texture.CreateView(&hal.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s-att%d-f%d-l%d", rt.Label, i, face, lod),
		Format:          tex.native,
		Dimension:       hal.TextureViewDimension2D,
		Aspect:          hal.TextureAspectAll,
		BaseMipLevel:    lod,
		MipLevelCount:   1,
		BaseArrayLayer:  face,
		ArrayLayerCount: 1,
	})
	if err != nil {
		err = fmt.Errorf("attachment view of %q: %w", rt.Label, err)
		core.LogError("%s", err)
		return nil, err
	}
	rt.views[key] = v
	return v, nil
}

// invalidateViews forgets the attachment views. Used when the device they
// belong to is gone.
func (rt *RenderTargetWrapper) invalidateViews() {
	rt.views = make(map[attachmentKey]hal.TextureView)
}

func (rt *RenderTargetWrapper) releaseViews(e *Engine) {
	for key, v := range rt.views {
		e.retire(v.Release)
		delete(rt.views, key)
	}
}

// CreateRenderTarget creates an offscreen framebuffer with one color
// attachment, or none with NoColorAttachment.
func (e *Engine) CreateRenderTarget(opts RenderTargetOptions) (*RenderTargetWrapper, error) {
	if opts.Count == 0 {
		opts.Count = 1
	}
	if opts.NoColorAttachment {
		opts.Count = 0
	}
	return e.createRenderTarget(opts)
}

// CreateMultipleRenderTarget creates an offscreen framebuffer with count
// color attachments sharing one format.
func (e *Engine) CreateMultipleRenderTarget(opts RenderTargetOptions, count int) (*RenderTargetWrapper, error) {
	if count < 1 || uint32(count) > math.MaxOf(e.caps.MaxColorAttachments, 1) {
		err := fmt.Errorf("%d color attachments (max %d): %w", count, e.caps.MaxColorAttachments, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return nil, err
	}
	opts.Count = count
	opts.NoColorAttachment = false
	return e.createRenderTarget(opts)
}

func (e *Engine) createRenderTarget(opts RenderTargetOptions) (*RenderTargetWrapper, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if opts.IsCube {
		opts.Height = opts.Width
	}
	if opts.Width == 0 || opts.Height == 0 {
		err := fmt.Errorf("render target of %dx%d: %w", opts.Width, opts.Height, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return nil, err
	}
	if opts.Label == "" {
		opts.Label = "rt-" + uuid.NewString()
	}
	rt := &RenderTargetWrapper{
		Label:           opts.Label,
		Width:           opts.Width,
		Height:          opts.Height,
		IsCube:          opts.IsCube,
		Samples:         clampSamples(opts.Samples),
		GenerateMipMaps: opts.GenerateMipMaps,
		views:           make(map[attachmentKey]hal.TextureView),
	}

	for i := 0; i < opts.Count; i++ {
		texOpts := TextureOptions{
			Label:           fmt.Sprintf("%s-color%d", opts.Label, i),
			Width:           opts.Width,
			Height:          opts.Height,
			Type:            opts.Type,
			Format:          opts.Format,
			UseSRGB:         opts.UseSRGB,
			GenerateMipMaps: opts.GenerateMipMaps,
			Samples:         rt.Samples,
			SamplingMode:    opts.SamplingMode,
			WrapU:           hal.AddressModeClampToEdge,
			WrapV:           hal.AddressModeClampToEdge,
			WrapW:           hal.AddressModeClampToEdge,
			Usage:           hal.TextureUsageRenderAttachment,
		}
		var tex *InternalTexture
		var err error
		if opts.IsCube {
			tex, err = e.CreateCubeTexture(texOpts)
		} else {
			tex, err = e.CreateTexture(texOpts)
		}
		if err != nil {
			e.ReleaseRenderTarget(rt)
			return nil, err
		}
		tex.IsReady = true
		rt.Textures = append(rt.Textures, tex)
	}

	if opts.GenerateDepthBuffer || opts.GenerateStencilBuffer {
		native := hal.TextureFormatDepth32Float
		if opts.GenerateStencilBuffer {
			native = hal.TextureFormatDepth24PlusStencil8
		}
		ds := &InternalTexture{
			Label:   opts.Label + "-depth",
			Width:   opts.Width,
			Height:  opts.Height,
			Depth:   1,
			Samples: rt.Samples,
			IsReady: true,
			native:  native,
			usage:   hal.TextureUsageRenderAttachment | hal.TextureUsageTextureBinding,
		}
		if err := e.registerTexture(ds); err != nil {
			e.ReleaseRenderTarget(rt)
			return nil, err
		}
		rt.DepthStencil = ds
		rt.ownsDepth = true
	}
	core.LogDebug("created render target %q (%dx%d, %d attachments, %d samples)", rt.Label, rt.Width, rt.Height, len(rt.Textures), rt.Samples)
	return rt, nil
}

// SetDepthStencilTexture attaches a caller owned depth-stencil texture in
// place of the generated one.
func (e *Engine) SetDepthStencilTexture(rt *RenderTargetWrapper, tex *InternalTexture) error {
	if tex != nil && !formats.IsDepthOrStencil(tex.native) {
		err := fmt.Errorf("%q is not a depth or stencil texture: %w", tex.Label, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return err
	}
	if e.currentRT == rt && e.rtPass.pass != nil {
		if err := e.endRenderTargetPass(); err != nil {
			return err
		}
	}
	if rt.ownsDepth && rt.DepthStencil != nil {
		e.ReleaseTexture(rt.DepthStencil)
	}
	rt.DepthStencil = tex
	rt.ownsDepth = false
	return nil
}

// ReleaseRenderTarget schedules the release of rt and of the textures it
// owns.
func (e *Engine) ReleaseRenderTarget(rt *RenderTargetWrapper) {
	if rt == nil {
		return
	}
	if e.currentRT == rt {
		if err := e.UnbindFramebuffer(); err != nil {
			core.LogWarn("unbind %q on release: %s", rt.Label, err)
		}
	}
	rt.releaseViews(e)
	for _, tex := range rt.Textures {
		e.ReleaseTexture(tex)
	}
	rt.Textures = nil
	if rt.ownsDepth && rt.DepthStencil != nil {
		e.ReleaseTexture(rt.DepthStencil)
	}
	rt.DepthStencil = nil
}

// BindFramebuffer redirects the following clears and draws into face and
// mip level lod of rt. The main pass is ended first.
func (e *Engine) BindFramebuffer(rt *RenderTargetWrapper, face, lod uint32) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if rt == nil {
		return fmt.Errorf("bind framebuffer: %w", core.ErrInvalidArgument)
	}
	if e.currentRT != nil {
		if err := e.UnbindFramebuffer(); err != nil {
			return err
		}
	}
	if err := e.endMainPass(); err != nil {
		return err
	}
	e.currentRT = rt
	e.currentFace = face
	e.currentLod = lod
	e.pendingClear[rtPassSlot] = pendingClear{}
	e.resetPendingState()
	e.diag.Logf("bound render target %q face %d lod %d", rt.Label, face, lod)
	return nil
}

// UnbindFramebuffer ends the render target pass, regenerates the mip chain
// of the target if it has one and goes back to the main framebuffer.
// Compute dispatches deferred while the pass was open run afterwards.
func (e *Engine) UnbindFramebuffer() error {
	if err := e.checkReady(); err != nil {
		return err
	}
	rt := e.currentRT
	if rt == nil {
		return nil
	}
	if err := e.forcePendingClear(rtPassSlot); err != nil {
		return err
	}
	if err := e.endRenderTargetPass(); err != nil {
		return err
	}
	if rt.GenerateMipMaps && e.currentLod == 0 {
		for _, tex := range rt.Textures {
			if err := e.textureHelper.GenerateMipmaps(e.renderTargetEncoder, tex, e.currentFace); err != nil {
				return err
			}
		}
	}
	e.currentRT = nil
	e.currentFace, e.currentLod = 0, 0
	e.resetPendingState()
	e.diag.Logf("unbound render target %q", rt.Label)
	return e.deferredCompute.drain()
}

// CurrentRenderTarget returns the bound render target, nil for the main
// framebuffer.
func (e *Engine) CurrentRenderTarget() *RenderTargetWrapper { return e.currentRT }
