package webgpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// drawSignature is everything a recorded draw bundle depends on. A draw
// whose signature equals the one stored on its DrawContext replays the
// stored bundle.
type drawSignature struct {
	effect    *Effect
	version   uint32
	pipeline  [6]uint64
	mask      uint32
	draw      uint64
	material  uint64
	materials *MaterialContext
	start     uint32
	count     uint32
	instances uint32
	slot      int
	gen       uint64
}

// floatFallbackMask sets bit i for every texture binding i of fx whose
// bound texture cannot be sampled with a filtering sampler on this device.
func (e *Engine) floatFallbackMask(fx *Effect, material *MaterialContext) uint32 {
	if e.caps.Float32Filterable {
		return 0
	}
	var mask uint32
	for i, b := range fx.program.Textures() {
		if i >= 32 {
			break
		}
		if tex := material.textures[b.Name]; tex != nil && e.fallbackMask(tex.native) != 0 {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// Draw issues a draw of count vertices (or indices, with an index buffer
// bound) starting at start, for the current effect and contexts. With an
// indirect buffer bound the range comes from the buffer and start and count
// are ignored.
func (e *Engine) Draw(fillMode FillMode, start, count, instances uint32) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	fx := e.currentEffect
	if fx == nil || fx.module == nil {
		core.LogError("draw: %s", ErrNoEffect)
		return ErrNoEffect
	}
	if instances == 0 {
		instances = 1
	}
	draw, material := e.currentDraw, e.currentMaterial
	if draw == nil {
		draw = e.emptyDraw
	}
	if material == nil {
		material = e.emptyMaterial
	}

	slot := e.currentSlot()
	e.drawCalls++
	if e.snapshot.playing(slot) {
		return nil
	}
	wrapper, err := e.ensurePass(slot)
	if err != nil {
		return err
	}

	cache := e.pipelineCache
	cache.SetColorFormats(wrapper.colorFormats)
	cache.SetDepthStencilFormat(wrapper.depthStencilFormat)
	cache.SetAlphaMode(e.alphaMode)
	cache.SetDepthState(e.depthState)
	cache.SetStencilState(e.stencilState)
	cache.SetColorWriteMask(e.colorWrite)

	material.sync()
	mask := e.floatFallbackMask(fx, material)
	e.flushDirtyStates(slot, wrapper.pass)

	sig := drawSignature{
		effect:    fx,
		version:   fx.version,
		pipeline:  cache.keys(fillMode, fx, wrapper.sampleCount, mask),
		mask:      mask,
		draw:      draw.updateID,
		material:  material.updateID,
		materials: material,
		start:     start,
		count:     count,
		instances: instances,
		slot:      slot,
		gen:       e.deviceGen,
	}
	if !e.opts.CompatibilityMode && draw.fastBundle != nil && draw.fastSig == sig {
		e.bundleLists[slot].addBundle(draw.fastBundle)
		e.counters.NumBundleReuseNonCompatMode++
		return nil
	}

	if _, err := e.effectLayout(fx, mask); err != nil {
		return err
	}
	pipeline, err := cache.GetRenderPipeline(fillMode, fx, wrapper.sampleCount, mask)
	if err != nil {
		return err
	}
	groups, err := e.bindGroupCache.GetBindGroups(fx, mask, draw, material)
	if err != nil {
		return err
	}

	if e.opts.CompatibilityMode {
		return e.record(wrapper.pass, pipeline, groups, draw, start, count, instances)
	}

	enc, err := e.device.CreateRenderBundleEncoder(&hal.RenderBundleEncoderDescriptor{
		Label:              fx.program.Name,
		ColorFormats:       wrapper.colorFormats,
		DepthStencilFormat: wrapper.depthStencilFormat,
		SampleCount:        wrapper.sampleCount,
	})
	if err != nil {
		err = fmt.Errorf("bundle encoder for %s: %w", fx.program.Name, err)
		core.LogError("%s", err)
		return err
	}
	if err := e.record(enc, pipeline, groups, draw, start, count, instances); err != nil {
		return err
	}
	bundle, err := enc.Finish(fx.program.Name)
	if err != nil {
		err = fmt.Errorf("finish bundle of %s: %w", fx.program.Name, err)
		core.LogError("%s", err)
		return err
	}
	e.counters.NumBundleCreationNonCompatMode++
	if old := draw.fastBundle; old != nil {
		e.retireBundle(old, old.Release)
	}
	draw.fastBundle = bundle
	draw.fastSig = sig
	e.bundleLists[slot].addBundle(bundle)
	return nil
}

// record binds the draw state on cmds and issues the draw.
func (e *Engine) record(cmds hal.RenderCommands, pipeline hal.RenderPipeline, groups []hal.BindGroup, draw *DrawContext, start, count, instances uint32) error {
	cmds.SetPipeline(pipeline)
	for i, g := range groups {
		cmds.SetBindGroup(uint32(i), g, nil)
	}
	for i, vb := range draw.vertexBuffers {
		if vb == nil || vb.buffer == nil {
			return fmt.Errorf("vertex buffer %d: %w", i, hal.ErrResourceReleased)
		}
		cmds.SetVertexBuffer(uint32(i), vb.buffer, 0, vb.size)
	}
	indexed := draw.indexBuffer != nil
	if indexed {
		ib := draw.indexBuffer
		if ib.buffer == nil {
			return fmt.Errorf("index buffer %q: %w", ib.Label, hal.ErrResourceReleased)
		}
		cmds.SetIndexBuffer(ib.buffer, draw.indexFormat, 0, ib.size)
	}

	switch ind := draw.indirectBuffer; {
	case ind != nil && indexed:
		cmds.DrawIndexedIndirect(ind.buffer, draw.indirectOffset)
	case ind != nil:
		cmds.DrawIndirect(ind.buffer, draw.indirectOffset)
	case indexed:
		cmds.DrawIndexed(count, instances, start, 0, 0)
	default:
		cmds.Draw(count, instances, start, 0)
	}
	return nil
}
