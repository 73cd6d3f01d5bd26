package webgpu

import "github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"

const (
	mainPassSlot = 0
	rtPassSlot   = 1
)

// dirtyState remembers, per pass slot, the last value applied to the live
// pass so a value is only re-applied when it changed. The slot cache is
// reset to the WebGPU pass default whenever a pass starts.
type dirtyState[T comparable] struct {
	pending T
	current [2]T
	apply   func(pass hal.RenderPass, v T)
}

func newDirtyState[T comparable](apply func(pass hal.RenderPass, v T)) *dirtyState[T] {
	return &dirtyState[T]{apply: apply}
}

func (d *dirtyState[T]) set(v T) { d.pending = v }

func (d *dirtyState[T]) reset(slot int, def T) { d.current[slot] = def }

func (d *dirtyState[T]) mustUpdate(slot int) bool {
	return d.pending != d.current[slot]
}

func (d *dirtyState[T]) applyTo(slot int, pass hal.RenderPass) {
	d.apply(pass, d.pending)
	d.current[slot] = d.pending
}

// item captures the pending value as a bundle list entry and marks it
// applied for the slot.
func (d *dirtyState[T]) item(slot int) func(pass hal.RenderPass) {
	v := d.pending
	d.current[slot] = v
	apply := d.apply
	return func(pass hal.RenderPass) { apply(pass, v) }
}

func (e *Engine) initDirtyStates() {
	e.viewport = newDirtyState(func(p hal.RenderPass, v Viewport) {
		p.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	})
	e.scissor = newDirtyState(func(p hal.RenderPass, s ScissorRect) {
		p.SetScissorRect(s.X, s.Y, s.Width, s.Height)
	})
	e.stencilRef = newDirtyState(func(p hal.RenderPass, ref uint32) {
		p.SetStencilReference(ref)
	})
	e.blendColor = newDirtyState(func(p hal.RenderPass, c hal.Color) {
		p.SetBlendConstant(c)
	})
}

// resetDirtyStates puts the slot caches back to what a fresh pass of the
// given size starts with.
func (e *Engine) resetDirtyStates(slot int, w, h uint32) {
	e.viewport.reset(slot, fullViewport(w, h))
	e.scissor.reset(slot, fullScissor(w, h))
	e.stencilRef.reset(slot, 0)
	e.blendColor.reset(slot, hal.Color{})
}

// flushDirtyStates applies every changed value: straight on the pass in
// compatibility mode, as bundle list entries otherwise.
func (e *Engine) flushDirtyStates(slot int, pass hal.RenderPass) {
	viewport := e.viewport.mustUpdate(slot)
	scissor := e.scissor.mustUpdate(slot)
	stencil := e.stencilRef.mustUpdate(slot)
	blend := e.blendColor.mustUpdate(slot)
	if e.opts.CompatibilityMode {
		if viewport {
			e.viewport.applyTo(slot, pass)
		}
		if scissor {
			e.scissor.applyTo(slot, pass)
		}
		if stencil {
			e.stencilRef.applyTo(slot, pass)
		}
		if blend {
			e.blendColor.applyTo(slot, pass)
		}
		return
	}
	list := e.bundleLists[slot]
	if viewport {
		list.addState(e.viewport.item(slot))
	}
	if scissor {
		list.addState(e.scissor.item(slot))
	}
	if stencil {
		list.addState(e.stencilRef.item(slot))
	}
	if blend {
		list.addState(e.blendColor.item(slot))
	}
}
