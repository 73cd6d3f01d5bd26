package webgpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type pipelineNode struct {
	values   map[uint64]*pipelineNode
	pipeline hal.RenderPipeline
}

func newPipelineNode() *pipelineNode {
	return &pipelineNode{values: make(map[uint64]*pipelineNode)}
}

func (n *pipelineNode) collect(out []hal.RenderPipeline) []hal.RenderPipeline {
	if n.pipeline != nil {
		out = append(out, n.pipeline)
	}
	for _, child := range n.values {
		out = child.collect(out)
	}
	return out
}

// RenderPipelineCache memoizes render pipelines. The lookup walks a tree
// keyed first by effect, then by topology and sample state, attachment
// formats and the blend, depth and stencil state set on the cache.
type RenderPipelineCache struct {
	device hal.Device
	// Disabled builds a new pipeline on every lookup.
	Disabled bool

	root *pipelineNode

	colorFormats       []hal.TextureFormat
	depthStencilFormat hal.TextureFormat
	alphaMode          AlphaMode
	depthState         DepthState
	stencilState       StencilState
	writeMask          hal.ColorWriteMask

	retired []hal.RenderPipeline
	created int
}

func NewRenderPipelineCache(device hal.Device, disabled bool) *RenderPipelineCache {
	return &RenderPipelineCache{
		device:       device,
		Disabled:     disabled,
		root:         newPipelineNode(),
		depthState:   DepthState{TestEnabled: true, WriteEnabled: true, Compare: hal.CompareFunctionLessEqual},
		stencilState: DefaultStencilState(),
		writeMask:    hal.ColorWriteMaskAll,
	}
}

func (c *RenderPipelineCache) SetColorFormats(f []hal.TextureFormat) {
	c.colorFormats = append(c.colorFormats[:0], f...)
}

func (c *RenderPipelineCache) SetDepthStencilFormat(f hal.TextureFormat) { c.depthStencilFormat = f }
func (c *RenderPipelineCache) SetAlphaMode(m AlphaMode)                 { c.alphaMode = m }
func (c *RenderPipelineCache) SetDepthState(s DepthState)               { c.depthState = s }
func (c *RenderPipelineCache) SetStencilState(s StencilState)           { c.stencilState = s }
func (c *RenderPipelineCache) SetColorWriteMask(m hal.ColorWriteMask)   { c.writeMask = m }

// Created returns how many pipelines the cache has built.
func (c *RenderPipelineCache) Created() int { return c.created }

func (c *RenderPipelineCache) keys(fillMode FillMode, fx *Effect, sampleCount uint32, mask uint32) [6]uint64 {
	var colors uint64
	for i, f := range c.colorFormats {
		if i == 8 {
			break
		}
		colors |= uint64(f&0xff) << (8 * uint(i))
	}
	return [6]uint64{
		fx.id,
		uint64(fillMode) | uint64(sampleCount)<<8 | uint64(mask)<<16 | uint64(len(c.colorFormats))<<48,
		colors,
		uint64(c.depthStencilFormat) | uint64(c.alphaMode)<<16 | uint64(c.writeMask)<<24,
		c.depthState.key(),
		c.stencilState.key(),
	}
}

// GetRenderPipeline returns the pipeline of fx for the current state. Equal
// inputs return the same pipeline.
func (c *RenderPipelineCache) GetRenderPipeline(fillMode FillMode, fx *Effect, sampleCount uint32, mask uint32) (hal.RenderPipeline, error) {
	if sampleCount == 0 {
		sampleCount = 1
	}
	if c.Disabled {
		p, err := c.create(fillMode, fx, sampleCount, mask)
		if err != nil {
			return nil, err
		}
		c.retired = append(c.retired, p)
		return p, nil
	}

	node := c.root
	for _, k := range c.keys(fillMode, fx, sampleCount, mask) {
		next, ok := node.values[k]
		if !ok {
			next = newPipelineNode()
			node.values[k] = next
		}
		node = next
	}
	if node.pipeline != nil {
		return node.pipeline, nil
	}
	p, err := c.create(fillMode, fx, sampleCount, mask)
	if err != nil {
		return nil, err
	}
	node.pipeline = p
	return p, nil
}

func (c *RenderPipelineCache) create(fillMode FillMode, fx *Effect, sampleCount uint32, mask uint32) (hal.RenderPipeline, error) {
	if fx.program.IsCompute() {
		err := fmt.Errorf("%s is a compute program: %w", fx.program.Name, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return nil, err
	}
	layout, ok := fx.layouts[mask]
	if !ok {
		err := fmt.Errorf("%s has no layout for fallback mask %d: %w", fx.program.Name, mask, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return nil, err
	}

	targets := make([]hal.ColorTargetState, 0, len(c.colorFormats))
	for _, f := range c.colorFormats {
		target := hal.ColorTargetState{Format: f, WriteMask: c.writeMask}
		if !formats.IsFloat32(f) {
			target.Blend = c.alphaMode.blendState()
		}
		targets = append(targets, target)
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%s#%d", fx.program.Name, c.created),
		Layout: layout.pipeline,
		Vertex: hal.VertexState{
			Module:     fx.module,
			EntryPoint: fx.program.VertexEntry,
			Buffers:    fx.program.VertexBuffers,
		},
		Primitive: hal.PrimitiveState{
			Topology:  fillMode.topology(),
			FrontFace: hal.FrontFaceCCW,
			CullMode:  hal.CullModeNone,
		},
		Multisample: hal.MultisampleState{Count: sampleCount, Mask: 0xFFFFFFFF},
		Fragment: &hal.FragmentState{
			Module:     fx.module,
			EntryPoint: fx.program.FragmentEntry,
			Targets:    targets,
		},
	}
	if c.depthStencilFormat != hal.TextureFormatUndefined {
		compare := hal.CompareFunctionAlways
		if c.depthState.TestEnabled {
			compare = c.depthState.Compare
		}
		face := c.stencilState.face()
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            c.depthStencilFormat,
			DepthWriteEnabled: c.depthState.WriteEnabled && formats.HasDepth(c.depthStencilFormat),
			DepthCompare:      compare,
			StencilFront:      face,
			StencilBack:       face,
			StencilReadMask:   c.stencilState.ReadMask,
			StencilWriteMask:  c.stencilState.WriteMask,
			DepthBias:         c.depthState.Bias,
		}
		if !formats.HasStencil(c.depthStencilFormat) {
			desc.DepthStencil.StencilReadMask = 0
			desc.DepthStencil.StencilWriteMask = 0
		}
	}

	p, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		err = fmt.Errorf("render pipeline %s: %w", desc.Label, err)
		core.LogError("%s", err)
		return nil, err
	}
	c.created++
	return p, nil
}

// InvalidateEffect drops every pipeline built for an effect. The pipelines
// are released on the next EndFrame.
func (c *RenderPipelineCache) InvalidateEffect(id uint64) {
	node, ok := c.root.values[id]
	if !ok {
		return
	}
	delete(c.root.values, id)
	c.retired = node.collect(c.retired)
}

// EndFrame releases pipelines that can no longer be looked up.
func (c *RenderPipelineCache) EndFrame() {
	for _, p := range c.retired {
		p.Release()
	}
	c.retired = c.retired[:0]
}

func (c *RenderPipelineCache) Release() {
	c.retired = c.root.collect(c.retired)
	c.root = newPipelineNode()
	c.EndFrame()
}
