package webgpu

import (
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// FillMode selects the primitive topology of a draw.
type FillMode uint8

const (
	FillModeTriangles FillMode = iota
	FillModeTriangleStrip
	FillModeLines
	FillModeLineStrip
	FillModePoints
)

func (m FillMode) topology() hal.PrimitiveTopology {
	switch m {
	case FillModeTriangleStrip:
		return hal.PrimitiveTopologyTriangleStrip
	case FillModeLines:
		return hal.PrimitiveTopologyLineList
	case FillModeLineStrip:
		return hal.PrimitiveTopologyLineStrip
	case FillModePoints:
		return hal.PrimitiveTopologyPointList
	}
	return hal.PrimitiveTopologyTriangleList
}

type AlphaMode uint8

const (
	AlphaDisabled AlphaMode = iota
	AlphaAdd
	AlphaCombine
	AlphaSubtract
	AlphaMultiply
	AlphaMaximized
	AlphaPremultiplied
)

func (m AlphaMode) blendState() *hal.BlendState {
	comp := func(src, dst hal.BlendFactor) hal.BlendComponent {
		return hal.BlendComponent{Operation: hal.BlendOperationAdd, SrcFactor: src, DstFactor: dst}
	}
	switch m {
	case AlphaAdd:
		return &hal.BlendState{Color: comp(hal.BlendFactorSrcAlpha, hal.BlendFactorOne), Alpha: comp(hal.BlendFactorZero, hal.BlendFactorOne)}
	case AlphaCombine:
		return &hal.BlendState{Color: comp(hal.BlendFactorSrcAlpha, hal.BlendFactorOneMinusSrcAlpha), Alpha: comp(hal.BlendFactorOne, hal.BlendFactorOne)}
	case AlphaSubtract:
		return &hal.BlendState{
			Color: hal.BlendComponent{Operation: hal.BlendOperationReverseSubtract, SrcFactor: hal.BlendFactorOne, DstFactor: hal.BlendFactorOne},
			Alpha: comp(hal.BlendFactorZero, hal.BlendFactorOne),
		}
	case AlphaMultiply:
		return &hal.BlendState{Color: comp(hal.BlendFactorDst, hal.BlendFactorZero), Alpha: comp(hal.BlendFactorOne, hal.BlendFactorZero)}
	case AlphaMaximized:
		return &hal.BlendState{Color: comp(hal.BlendFactorSrcAlpha, hal.BlendFactorOneMinusSrc), Alpha: comp(hal.BlendFactorOne, hal.BlendFactorOne)}
	case AlphaPremultiplied:
		return &hal.BlendState{Color: comp(hal.BlendFactorOne, hal.BlendFactorOneMinusSrcAlpha), Alpha: comp(hal.BlendFactorOne, hal.BlendFactorOneMinusSrcAlpha)}
	}
	return nil
}

type DepthState struct {
	TestEnabled  bool
	WriteEnabled bool
	Compare      hal.CompareFunction
	Bias         int32
}

func (s DepthState) key() uint64 {
	k := uint64(s.Compare) | uint64(uint32(s.Bias))<<16
	if s.TestEnabled {
		k |= 1 << 8
	}
	if s.WriteEnabled {
		k |= 1 << 9
	}
	return k
}

type StencilState struct {
	Enabled     bool
	Compare     hal.CompareFunction
	FailOp      hal.StencilOperation
	DepthFailOp hal.StencilOperation
	PassOp      hal.StencilOperation
	ReadMask    uint32
	WriteMask   uint32
}

func DefaultStencilState() StencilState {
	return StencilState{
		Compare:   hal.CompareFunctionAlways,
		FailOp:    hal.StencilOperationKeep,
		PassOp:    hal.StencilOperationKeep,
		ReadMask:  0xff,
		WriteMask: 0xff,
	}
}

func (s StencilState) key() uint64 {
	if !s.Enabled {
		return 0
	}
	return 1 |
		uint64(s.Compare)<<1 |
		uint64(s.FailOp)<<5 |
		uint64(s.DepthFailOp)<<9 |
		uint64(s.PassOp)<<13 |
		uint64(s.ReadMask&0xff)<<17 |
		uint64(s.WriteMask&0xff)<<25
}

func (s StencilState) face() hal.StencilFaceState {
	if !s.Enabled {
		return hal.StencilFaceState{Compare: hal.CompareFunctionAlways}
	}
	return hal.StencilFaceState{Compare: s.Compare, FailOp: s.FailOp, DepthFailOp: s.DepthFailOp, PassOp: s.PassOp}
}

// Viewport is a pixel rectangle plus depth range.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type ScissorRect struct {
	X, Y, Width, Height uint32
}

func fullViewport(w, h uint32) Viewport {
	return Viewport{Width: float32(w), Height: float32(h), MaxDepth: 1}
}

func fullScissor(w, h uint32) ScissorRect {
	return ScissorRect{Width: w, Height: h}
}

// SetViewport sets the viewport of the following draws, in pixels of the
// current target.
func (e *Engine) SetViewport(x, y, width, height float32) {
	e.viewport.set(Viewport{X: x, Y: y, Width: width, Height: height, MaxDepth: 1})
}

func (e *Engine) SetScissor(x, y, width, height uint32) {
	e.scissorEnabled = true
	e.scissor.set(ScissorRect{X: x, Y: y, Width: width, Height: height})
}

func (e *Engine) DisableScissor() {
	e.scissorEnabled = false
	w, h := e.targetSize()
	e.scissor.set(fullScissor(w, h))
}

func (e *Engine) SetStencilReference(ref uint32) {
	e.stencilRef.set(ref)
}

func (e *Engine) SetBlendConstant(c hal.Color) {
	e.blendColor.set(c)
}

func (e *Engine) SetAlphaMode(mode AlphaMode) {
	e.alphaMode = mode
}

func (e *Engine) SetDepthState(s DepthState) {
	e.depthState = s
}

func (e *Engine) SetStencilState(s StencilState) {
	e.stencilState = s
}

func (e *Engine) SetColorWrite(mask hal.ColorWriteMask) {
	e.colorWrite = mask
}

func (e *Engine) defaultDepthState() DepthState {
	cmp := hal.CompareFunctionLessEqual
	if e.opts.ReverseDepth {
		cmp = hal.CompareFunctionGreaterEqual
	}
	return DepthState{TestEnabled: true, WriteEnabled: true, Compare: cmp}
}

// scissorCoversTarget reports whether the scissor leaves the whole target
// visible.
func (e *Engine) scissorCoversTarget() bool {
	if !e.scissorEnabled {
		return true
	}
	w, h := e.targetSize()
	s := e.scissor.pending
	return s.X == 0 && s.Y == 0 && s.Width >= w && s.Height >= h
}
