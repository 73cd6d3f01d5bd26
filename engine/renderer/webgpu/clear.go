package webgpu

import (
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// Clear clears the bound framebuffer. A nil argument leaves that aspect
// untouched. Without a scissor, the clear becomes the load operation of the
// next pass of the target; with one it is drawn with the clear quad inside
// the scissor rectangle.
func (e *Engine) Clear(color *hal.Color, depth *float32, stencil *uint32) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if color == nil && depth == nil && stencil == nil {
		return nil
	}
	slot := e.currentSlot()

	if e.scissorCoversTarget() {
		e.pendingClear[slot].merge(color, depth, stencil)
		if slot == rtPassSlot {
			return e.endRenderTargetPass()
		}
		return e.endMainPass()
	}

	if e.snapshot.playing(slot) {
		return nil
	}
	wrapper, err := e.ensurePass(slot)
	if err != nil {
		return err
	}
	if !formats.HasDepth(wrapper.depthStencilFormat) {
		depth = nil
	}
	if !formats.HasStencil(wrapper.depthStencilFormat) {
		stencil = nil
	}
	target := ClearTarget{
		ColorFormats:       wrapper.colorFormats,
		DepthStencilFormat: wrapper.depthStencilFormat,
		SampleCount:        wrapper.sampleCount,
		IsRenderTarget:     slot == rtPassSlot,
	}
	e.flushDirtyStates(slot, wrapper.pass)

	if e.opts.CompatibilityMode {
		if stencil != nil {
			wrapper.pass.SetStencilReference(*stencil)
			e.stencilRef.current[slot] = *stencil
		}
		_, err := e.clearQuad.Clear(wrapper.pass, target, color, depth, stencil)
		return err
	}

	bundle, err := e.clearQuad.Clear(nil, target, color, depth, stencil)
	if err != nil {
		return err
	}
	list := e.bundleLists[slot]
	if stencil != nil {
		ref := *stencil
		list.addState(func(pass hal.RenderPass) { pass.SetStencilReference(ref) })
		e.stencilRef.current[slot] = ref
	}
	list.addBundle(bundle)
	return nil
}
