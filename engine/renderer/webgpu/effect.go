package webgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

var effectIDs atomic.Uint64

// effectLayout is the bind group and pipeline layout of an effect for one
// float fallback mask.
type effectLayout struct {
	groups   []hal.BindGroupLayout
	pipeline hal.PipelineLayout
}

func (l *effectLayout) release() {
	for _, g := range l.groups {
		g.Release()
	}
	l.pipeline.Release()
}

// Effect is a compiled program bound to the device: its shader module, its
// layouts and, for compute programs, its pipeline.
type Effect struct {
	id      uint64
	request shaders.Request
	program *shaders.Program
	module  hal.ShaderModule
	layouts map[uint32]*effectLayout
	compute hal.ComputePipeline
	// version is bumped whenever the program or the device objects change.
	version uint32
}

func (fx *Effect) ID() uint64 { return fx.id }

func (fx *Effect) Name() string { return fx.program.Name }

func (fx *Effect) Program() *shaders.Program { return fx.program }

func (fx *Effect) Version() uint32 { return fx.version }

func (fx *Effect) release() {
	for _, l := range fx.layouts {
		l.release()
	}
	fx.layouts = make(map[uint32]*effectLayout)
	if fx.module != nil {
		fx.module.Release()
	}
	if fx.compute != nil {
		fx.compute.Release()
	}
}

// CreateEffect compiles a render program and builds its shader module.
// Requests with the same name and defines share one Effect.
func (e *Engine) CreateEffect(req shaders.Request) (*Effect, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	key := shaders.ProgramKey(req.Name, req.Defines)
	if fx, ok := e.effects[key]; ok {
		return fx, nil
	}
	fx, err := e.newEffect(req)
	if err != nil {
		return nil, err
	}
	e.effects[key] = fx
	return fx, nil
}

// newEffect builds an effect the engine does not track for reloads.
func (e *Engine) newEffect(req shaders.Request) (*Effect, error) {
	program, err := e.processor.Compile(req)
	if err != nil {
		return nil, err
	}
	fx := &Effect{
		id:      effectIDs.Add(1),
		request: req,
		program: program,
		layouts: make(map[uint32]*effectLayout),
	}
	if err := e.buildEffect(fx); err != nil {
		return nil, err
	}
	return fx, nil
}

// buildEffect creates the device objects of fx from its program.
func (e *Engine) buildEffect(fx *Effect) error {
	module, err := e.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: fx.program.Name,
		Code:  fx.program.Code,
	})
	if err != nil {
		err = fmt.Errorf("shader module %s: %w", fx.program.Name, err)
		core.LogError("%s", err)
		return err
	}
	fx.module = module
	fx.layouts = make(map[uint32]*effectLayout)
	fx.compute = nil
	fx.version++

	if fx.program.IsCompute() {
		layout, err := e.effectLayout(fx, 0)
		if err != nil {
			return err
		}
		pipeline, err := e.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:      fx.program.Name,
			Layout:     layout.pipeline,
			Module:     module,
			EntryPoint: fx.program.ComputeEntry,
		})
		if err != nil {
			err = fmt.Errorf("compute pipeline %s: %w", fx.program.Name, err)
			core.LogError("%s", err)
			return err
		}
		fx.compute = pipeline
	}
	return nil
}

// effectLayout returns the layouts of fx for a fallback mask. Textures whose
// mask bit is set are declared unfilterable and their samplers
// non-filtering.
func (e *Engine) effectLayout(fx *Effect, mask uint32) (*effectLayout, error) {
	if l, ok := fx.layouts[mask]; ok {
		return l, nil
	}
	fallback := make(map[string]bool)
	for i, b := range fx.program.Textures() {
		if mask&(1<<uint(i)) != 0 {
			fallback[b.Name] = true
		}
	}

	layout := &effectLayout{}
	for g := uint32(0); g < fx.program.GroupCount(); g++ {
		var entries []hal.BindGroupLayoutEntry
		for _, b := range fx.program.Group(g) {
			entries = append(entries, layoutEntry(b, fallback))
		}
		bgl, err := e.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s-group%d-mask%d", fx.program.Name, g, mask),
			Entries: entries,
		})
		if err != nil {
			err = fmt.Errorf("bind group layout %d of %s: %w", g, fx.program.Name, err)
			core.LogError("%s", err)
			return nil, err
		}
		layout.groups = append(layout.groups, bgl)
	}
	pl, err := e.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            fx.program.Name,
		BindGroupLayouts: layout.groups,
	})
	if err != nil {
		err = fmt.Errorf("pipeline layout of %s: %w", fx.program.Name, err)
		core.LogError("%s", err)
		return nil, err
	}
	layout.pipeline = pl
	fx.layouts[mask] = layout
	return layout, nil
}

func layoutEntry(b shaders.Binding, fallback map[string]bool) hal.BindGroupLayoutEntry {
	entry := hal.BindGroupLayoutEntry{Binding: b.Binding, Visibility: b.Visibility}
	switch b.Kind {
	case shaders.BindingUniform:
		entry.Buffer = &hal.BufferBindingLayout{Type: hal.BufferBindingTypeUniform}
	case shaders.BindingStorage:
		entry.Buffer = &hal.BufferBindingLayout{Type: hal.BufferBindingTypeStorage}
	case shaders.BindingReadOnlyStorage:
		entry.Buffer = &hal.BufferBindingLayout{Type: hal.BufferBindingTypeReadOnlyStorage}
	case shaders.BindingTexture:
		dim := b.ViewDimension
		if dim == hal.TextureViewDimensionUndefined {
			dim = hal.TextureViewDimension2D
		}
		sampleType := hal.TextureSampleTypeFloat
		if fallback[b.Name] {
			sampleType = hal.TextureSampleTypeUnfilterableFloat
		}
		entry.Texture = &hal.TextureBindingLayout{SampleType: sampleType, ViewDimension: dim}
	case shaders.BindingSampler:
		samplerType := hal.SamplerBindingTypeFiltering
		if fallback[b.Texture] {
			samplerType = hal.SamplerBindingTypeNonFiltering
		}
		entry.Sampler = &hal.SamplerBindingLayout{Type: samplerType}
	}
	return entry
}

// EnableEffect makes fx the effect of the following draws.
func (e *Engine) EnableEffect(fx *Effect) {
	e.currentEffect = fx
	e.counters.NumEnableEffects++
}

// DrawWrapper groups what a draw needs besides its range.
type DrawWrapper struct {
	Effect          *Effect
	DrawContext     *DrawContext
	MaterialContext *MaterialContext
}

func (e *Engine) EnableDrawWrapper(w DrawWrapper) {
	if w.Effect != nil {
		e.EnableEffect(w.Effect)
	}
	e.currentDraw = w.DrawContext
	e.currentMaterial = w.MaterialContext
	e.counters.NumEnableDrawWrapper++
}

// ReloadProgram recompiles every effect built from the named program with
// new source. Effects that fail to compile keep their previous program.
// It returns how many effects were rebuilt.
func (e *Engine) ReloadProgram(name, source string) (int, error) {
	if err := e.checkReady(); err != nil {
		return 0, err
	}
	reloaded := 0
	var firstErr error
	for _, fx := range e.effects {
		if fx.program.Name != name {
			continue
		}
		req := fx.request
		req.Source = source
		program, err := e.processor.Compile(req)
		if err != nil {
			core.LogWarn("reload of %s failed, keeping the previous program: %s", name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		old := *fx
		e.retire(old.release)
		e.pipelineCache.InvalidateEffect(fx.id)
		e.bindGroupCache.InvalidateEffect(fx)

		fx.request = req
		fx.program = program
		if err := e.buildEffect(fx); err != nil {
			return reloaded, err
		}
		reloaded++
	}
	if reloaded > 0 {
		core.LogInfo("reloaded program %s (%d effects)", name, reloaded)
	}
	return reloaded, firstErr
}
