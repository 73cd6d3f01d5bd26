package webgpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// currentSlot is the pass slot draws and clears go to.
func (e *Engine) currentSlot() int {
	if e.currentRT != nil {
		return rtPassSlot
	}
	return mainPassSlot
}

func (e *Engine) wrapper(slot int) *renderPassWrapper {
	if slot == rtPassSlot {
		return &e.rtPass
	}
	return &e.mainPass
}

// targetSize is the size of the framebuffer currently bound.
func (e *Engine) targetSize() (uint32, uint32) {
	if rt := e.currentRT; rt != nil {
		return rt.lodSize(e.currentLod)
	}
	return e.width, e.height
}

// resetPendingState points the pending viewport and scissor at the whole
// bound framebuffer.
func (e *Engine) resetPendingState() {
	w, h := e.targetSize()
	e.viewport.set(fullViewport(w, h))
	if !e.scissorEnabled {
		e.scissor.set(fullScissor(w, h))
	}
}

func loadOps(clear *pendingClear) (hal.LoadOp, hal.LoadOp, hal.LoadOp) {
	color, depth, stencil := hal.LoadOpLoad, hal.LoadOpLoad, hal.LoadOpLoad
	if clear.color != nil {
		color = hal.LoadOpClear
	}
	if clear.depth != nil {
		depth = hal.LoadOpClear
	}
	if clear.stencil != nil {
		stencil = hal.LoadOpClear
	}
	return color, depth, stencil
}

func (e *Engine) depthAttachment(view hal.TextureView, format hal.TextureFormat, clear *pendingClear) *hal.RenderPassDepthStencilAttachment {
	_, depthOp, stencilOp := loadOps(clear)
	att := &hal.RenderPassDepthStencilAttachment{
		View:            view,
		DepthLoadOp:     depthOp,
		DepthStoreOp:    hal.StoreOpStore,
		DepthClearValue: 1,
		StencilLoadOp:   stencilOp,
		StencilStoreOp:  hal.StoreOpStore,
	}
	if e.opts.ReverseDepth {
		att.DepthClearValue = 0
	}
	if clear.depth != nil {
		att.DepthClearValue = *clear.depth
	}
	if clear.stencil != nil {
		att.StencilClearValue = *clear.stencil
	}
	if format == hal.TextureFormatDepth32Float || format == hal.TextureFormatDepth16Unorm || format == hal.TextureFormatDepth24Plus {
		att.StencilLoadOp = hal.LoadOpLoad
	}
	return att
}

// mainColorView returns the view of the main framebuffer, acquiring the
// surface texture of the frame if needed.
func (e *Engine) mainColorView() (hal.TextureView, error) {
	if e.surface == nil {
		return e.backbuffer.hardware.view, nil
	}
	if e.surfaceView != nil {
		return e.surfaceView, nil
	}
	texture, err := e.surface.CurrentTexture()
	if err != nil {
		err = fmt.Errorf("acquire surface texture: %w", err)
		core.LogError("%s", err)
		return nil, err
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		return nil, err
	}
	e.surfaceTexture, e.surfaceView = texture, view
	return view, nil
}

func (e *Engine) startMainPass() error {
	if e.mainPass.pass != nil {
		return nil
	}
	view, err := e.mainColorView()
	if err != nil {
		return err
	}
	clear := &e.pendingClear[mainPassSlot]
	colorOp, _, _ := loadOps(clear)
	desc := &hal.RenderPassDescriptor{
		Label: "main",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{View: view, LoadOp: colorOp, StoreOp: hal.StoreOpStore},
		},
		DepthStencilAttachment: e.depthAttachment(e.mainDepth.hardware.view, e.mainDepth.native, clear),
	}
	if clear.color != nil {
		desc.ColorAttachments[0].ClearValue = *clear.color
	}
	pass, err := e.renderEncoder.beginRenderPass(desc, ENCODER_STATE_MAIN_PASS_OPEN)
	if err != nil {
		return err
	}
	e.mainPass = renderPassWrapper{
		pass:               pass,
		desc:               desc,
		colorFormats:       []hal.TextureFormat{e.opts.SurfaceFormat},
		depthStencilFormat: e.mainDepth.native,
		sampleCount:        1,
		width:              e.width,
		height:             e.height,
	}
	*clear = pendingClear{}
	e.resetDirtyStates(mainPassSlot, e.width, e.height)
	e.diag.Logf("main pass started")
	return nil
}

func (e *Engine) startRenderTargetPass() error {
	if e.rtPass.pass != nil {
		return nil
	}
	rt := e.currentRT
	if rt == nil {
		return ErrNotBound
	}
	clear := &e.pendingClear[rtPassSlot]
	colorOp, _, _ := loadOps(clear)
	desc := &hal.RenderPassDescriptor{Label: rt.Label}
	var colorFormats []hal.TextureFormat
	for i, tex := range rt.Textures {
		view, err := rt.attachmentView(e, i, e.currentFace, e.currentLod)
		if err != nil {
			return err
		}
		att := hal.RenderPassColorAttachment{View: view, LoadOp: colorOp, StoreOp: hal.StoreOpStore}
		if clear.color != nil {
			att.ClearValue = *clear.color
		}
		if rt.Samples > 1 {
			att.View = tex.hardware.msaaView
			att.ResolveTarget = view
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
		colorFormats = append(colorFormats, tex.native)
	}
	depthFormat := hal.TextureFormatUndefined
	if ds := rt.DepthStencil; ds != nil {
		depthFormat = ds.native
		view := ds.hardware.view
		if ds.hardware.msaaView != nil {
			view = ds.hardware.msaaView
		}
		desc.DepthStencilAttachment = e.depthAttachment(view, depthFormat, clear)
	}
	pass, err := e.renderTargetEncoder.beginRenderPass(desc, ENCODER_STATE_RENDER_TARGET_PASS_OPEN)
	if err != nil {
		return err
	}
	w, h := rt.lodSize(e.currentLod)
	e.rtPass = renderPassWrapper{
		pass:               pass,
		desc:               desc,
		colorFormats:       colorFormats,
		depthStencilFormat: depthFormat,
		sampleCount:        rt.Samples,
		width:              w,
		height:             h,
	}
	*clear = pendingClear{}
	e.resetDirtyStates(rtPassSlot, w, h)
	e.diag.Logf("render target pass %q started", rt.Label)
	return nil
}

// ensurePass opens the pass of slot if it is not open yet.
func (e *Engine) ensurePass(slot int) (*renderPassWrapper, error) {
	var err error
	if slot == rtPassSlot {
		err = e.startRenderTargetPass()
	} else {
		err = e.startMainPass()
	}
	if err != nil {
		return nil, err
	}
	return e.wrapper(slot), nil
}

func (e *Engine) endMainPass() error {
	if e.mainPass.pass == nil {
		return nil
	}
	list := e.bundleLists[mainPassSlot]
	if !e.opts.CompatibilityMode {
		e.snapshot.endMainPass(list).run(e.mainPass.pass)
	}
	list.reset()
	err := e.renderEncoder.endPass(e.mainPass.pass)
	e.mainPass.reset()
	e.diag.Logf("main pass ended")
	return err
}

func (e *Engine) endRenderTargetPass() error {
	if e.rtPass.pass == nil {
		return nil
	}
	list := e.bundleLists[rtPassSlot]
	if !e.opts.CompatibilityMode {
		list.run(e.rtPass.pass)
	}
	list.reset()
	err := e.renderTargetEncoder.endPass(e.rtPass.pass)
	e.rtPass.reset()
	e.diag.Logf("render target pass ended")
	return err
}

// forcePendingClear runs a clear that no draw has consumed yet, by opening
// and closing the pass of the slot.
func (e *Engine) forcePendingClear(slot int) error {
	if e.pendingClear[slot].empty() {
		return nil
	}
	if slot == rtPassSlot && e.currentRT == nil {
		e.pendingClear[slot] = pendingClear{}
		return nil
	}
	if _, err := e.ensurePass(slot); err != nil {
		return err
	}
	if slot == rtPassSlot {
		return e.endRenderTargetPass()
	}
	return e.endMainPass()
}

// FlushFramebuffer ends the open passes, submits the upload, render target
// and render encoders in that order and replaces them. With reopen the
// passes that were open are started again, loading their contents.
func (e *Engine) FlushFramebuffer(reopen bool) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	mainOpen := e.mainPass.pass != nil
	rtOpen := e.rtPass.pass != nil

	if err := e.forcePendingClear(rtPassSlot); err != nil {
		return err
	}
	if err := e.forcePendingClear(mainPassSlot); err != nil {
		return err
	}
	if err := e.endRenderTargetPass(); err != nil {
		return err
	}
	if err := e.endMainPass(); err != nil {
		return err
	}

	var buffers []hal.CommandBuffer
	for _, enc := range []*trackedEncoder{e.uploadEncoder, e.renderTargetEncoder, e.renderEncoder} {
		cb, err := enc.finish()
		if err != nil {
			err = fmt.Errorf("finish the %s encoder: %w", enc.label, err)
			core.LogError("%s", err)
			return err
		}
		buffers = append(buffers, cb)
	}
	e.queue.Submit(buffers...)
	e.diag.Logf("submitted %d command buffers", len(buffers))

	var err error
	if e.uploadEncoder, err = newTrackedEncoder(e.device, "upload"); err != nil {
		return err
	}
	if e.renderTargetEncoder, err = newTrackedEncoder(e.device, "render-target"); err != nil {
		return err
	}
	if e.renderEncoder, err = newTrackedEncoder(e.device, "render"); err != nil {
		return err
	}

	if reopen {
		if rtOpen && e.currentRT != nil {
			if err := e.startRenderTargetPass(); err != nil {
				return err
			}
		}
		if mainOpen {
			if err := e.startMainPass(); err != nil {
				return err
			}
		}
	}
	return nil
}

// BeginFrame starts a frame.
func (e *Engine) BeginFrame() error {
	if err := e.checkReady(); err != nil {
		return err
	}
	e.diag.Logf("begin frame")
	return nil
}

// EndFrame submits the frame, releases what was retired during it, rolls
// the counters over and presents.
func (e *Engine) EndFrame() error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if e.currentRT != nil {
		if err := e.UnbindFramebuffer(); err != nil {
			return err
		}
	}
	if e.surface != nil || e.snapshot.mode == SNAPSHOT_MODE_PLAY {
		if err := e.startMainPass(); err != nil {
			return err
		}
	}
	if err := e.FlushFramebuffer(false); err != nil {
		return err
	}

	e.drainReleaseQueue()
	e.pipelineCache.EndFrame()
	e.bindGroupCache.EndFrame()
	e.clearQuad.EndFrame()
	e.textureHelper.pipelines.EndFrame()
	e.snapshot.endFrame()

	e.CountersLastFrame = e.counters
	e.counters = FrameCounters{}
	e.lastDrawCalls = e.drawCalls
	e.drawCalls = 0
	e.diag.Logf("end frame (%d draw calls)", e.lastDrawCalls)
	e.diag.Advance()

	if e.surface != nil && e.surfaceTexture != nil {
		e.surface.Present()
		e.surfaceView.Release()
		e.surfaceTexture, e.surfaceView = nil, nil
	}
	e.device.Poll(false)
	e.frame++
	return nil
}

// Resize resizes the main framebuffer.
func (e *Engine) Resize(width, height uint32) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if width == 0 || height == 0 || (width == e.width && height == e.height) {
		return nil
	}
	if err := e.FlushFramebuffer(false); err != nil {
		return err
	}
	if e.surfaceView != nil {
		e.surfaceView.Release()
		e.surfaceTexture, e.surfaceView = nil, nil
	}
	if e.backbuffer != nil {
		e.retire(e.backbuffer.hardware.release)
	}
	e.retire(e.mainDepth.hardware.release)
	e.width, e.height = width, height
	if err := e.configureMainFramebuffer(); err != nil {
		return err
	}
	e.resetPendingState()
	core.LogInfo("main framebuffer resized to %dx%d", width, height)
	return nil
}
