package haltest

import (
	"encoding/binary"
	"fmt"
	stdmath "math"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// FragmentInput is handed to a FragmentFunc for every covered pixel.
type FragmentInput struct {
	// X and Y are the pixel coordinates in the attachment.
	X, Y uint32
	// U and V are the normalized coordinates of the pixel center, origin top left.
	U, V float32
	// Target is the index of the color attachment being shaded.
	Target int

	groups map[uint32]*BindGroup
}

// Uniform returns the bytes of the buffer bound at (group, binding).
func (in *FragmentInput) Uniform(group, binding uint32) []byte {
	g := in.groups[group]
	if g == nil {
		return nil
	}
	e, ok := g.entry(binding)
	if !ok || e.Buffer == nil {
		return nil
	}
	b := e.Buffer.(*Buffer)
	size := e.Size
	if size == 0 || size == hal.WholeSize || e.Offset+size > uint64(len(b.data)) {
		size = uint64(len(b.data)) - e.Offset
	}
	return b.data[e.Offset : e.Offset+size]
}

// UniformFloats decodes the uniform at (group, binding) as float32 values.
func (in *FragmentInput) UniformFloats(group, binding uint32) []float32 {
	raw := in.Uniform(group, binding)
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = stdmath.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

// Sample reads the texture view bound at (group, binding) with bilinear
// filtering.
func (in *FragmentInput) Sample(group, binding uint32, u, v float32) [4]float32 {
	g := in.groups[group]
	if g == nil {
		return [4]float32{}
	}
	e, ok := g.entry(binding)
	if !ok || e.TextureView == nil {
		return [4]float32{}
	}
	return e.TextureView.(*TextureView).sample(u, v, 0)
}

// FragmentFunc shades one pixel. Returning false discards it.
type FragmentFunc func(in *FragmentInput) ([4]float32, bool)

type vertexBinding struct {
	buffer *Buffer
	offset uint64
}

type renderState struct {
	device *Device
	label  string

	colors []hal.RenderPassColorAttachment
	depth  *hal.RenderPassDepthStencilAttachment
	width  uint32
	height uint32

	pipeline    *RenderPipeline
	groups      map[uint32]*BindGroup
	vertex      map[uint32]vertexBinding
	index       *Buffer
	indexFormat hal.IndexFormat
	indexOffset uint64

	viewport   [6]float32
	scissor    [4]uint32
	stencilRef uint32
	blend      hal.Color
}

func viewOf(v hal.TextureView) *TextureView {
	if v == nil {
		return nil
	}
	tv, _ := v.(*TextureView)
	return tv
}

func beginRenderState(d *Device, desc *hal.RenderPassDescriptor) (*renderState, bool) {
	s := &renderState{
		device: d,
		label:  desc.Label,
		colors: desc.ColorAttachments,
		depth:  desc.DepthStencilAttachment,
	}
	s.resetBindings()
	d.record("beginRenderPass", desc.Label)

	for i, c := range s.colors {
		v := viewOf(c.View)
		if v == nil || v.texture.destroyed || v.released {
			d.validationError("pass %q color attachment %d is not usable", desc.Label, i)
			return nil, false
		}
		s.width, s.height = v.size()
		if c.LoadOp == hal.LoadOpClear {
			col := [4]float32{float32(c.ClearValue.R), float32(c.ClearValue.G), float32(c.ClearValue.B), float32(c.ClearValue.A)}
			if !v.texture.fill(v.desc.BaseMipLevel, v.desc.BaseArrayLayer, col) {
				d.validationError("pass %q cannot clear format %d", desc.Label, v.texture.desc.Format)
			}
		}
	}
	if s.depth != nil {
		v := viewOf(s.depth.View)
		if v == nil || v.texture.destroyed || v.released {
			d.validationError("pass %q depth attachment is not usable", desc.Label)
			return nil, false
		}
		w, h := v.size()
		if len(s.colors) > 0 && (w != s.width || h != s.height) {
			d.validationError("pass %q attachments differ in size", desc.Label)
		}
		s.width, s.height = w, h
		if s.depth.DepthLoadOp == hal.LoadOpClear {
			v.texture.clearDepth(v.desc.BaseMipLevel, v.desc.BaseArrayLayer, s.depth.DepthClearValue)
		}
		if s.depth.StencilLoadOp == hal.LoadOpClear {
			v.texture.clearStencil(v.desc.BaseMipLevel, v.desc.BaseArrayLayer, s.depth.StencilClearValue)
		}
	}
	s.viewport = [6]float32{0, 0, float32(s.width), float32(s.height), 0, 1}
	s.scissor = [4]uint32{0, 0, s.width, s.height}
	return s, true
}

func (s *renderState) resetBindings() {
	s.pipeline = nil
	s.groups = make(map[uint32]*BindGroup)
	s.vertex = make(map[uint32]vertexBinding)
	s.index = nil
}

func (s *renderState) pipelineLabel() string {
	if s.pipeline == nil {
		return ""
	}
	return s.pipeline.label()
}

// end resolves multisampled attachments.
func (s *renderState) end() {
	for _, c := range s.colors {
		src, dst := viewOf(c.View), viewOf(c.ResolveTarget)
		if dst == nil {
			continue
		}
		w, h := src.size()
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				px, _ := src.texture.Pixel(src.desc.BaseMipLevel, src.desc.BaseArrayLayer, x, y)
				dst.texture.setPixel(dst.desc.BaseMipLevel, dst.desc.BaseArrayLayer, x, y, px, hal.ColorWriteMaskAll)
			}
		}
	}
	s.device.record("endRenderPass", s.label)
}

func (s *renderState) readIndices(first, count uint32, base int32) ([]uint32, error) {
	if s.index == nil {
		return nil, fmt.Errorf("haltest: indexed draw without an index buffer")
	}
	size := uint64(2)
	if s.indexFormat == hal.IndexFormatUint32 {
		size = 4
	}
	out := make([]uint32, count)
	for i := range out {
		off := s.indexOffset + uint64(first+uint32(i))*size
		if off+size > uint64(len(s.index.data)) {
			return nil, fmt.Errorf("haltest: index %d outside %q", first+uint32(i), s.index.Desc.Label)
		}
		var v uint32
		if size == 2 {
			v = uint32(binary.LittleEndian.Uint16(s.index.data[off:]))
		} else {
			v = binary.LittleEndian.Uint32(s.index.data[off:])
		}
		out[i] = uint32(int32(v) + base)
	}
	return out, nil
}

func readUint32s(b []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := 0; i < n && i*4+4 <= len(b); i++ {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func (s *renderState) validateBindings() bool {
	for _, g := range s.groups {
		if g == nil {
			continue
		}
		if g.released {
			s.device.validationError("pass %q uses a released bind group", s.label)
			return false
		}
		for _, e := range g.Desc.Entries {
			if v := viewOf(e.TextureView); v != nil && v.texture.destroyed {
				s.device.validationError("pass %q samples destroyed texture %q", s.label, v.texture.desc.Label)
				return false
			}
			if e.Buffer != nil && e.Buffer.(*Buffer).destroyed {
				s.device.validationError("pass %q reads destroyed buffer %q", s.label, e.Buffer.(*Buffer).Desc.Label)
				return false
			}
		}
	}
	for _, vb := range s.vertex {
		if vb.buffer.destroyed {
			s.device.validationError("pass %q reads destroyed vertex buffer %q", s.label, vb.buffer.Desc.Label)
			return false
		}
	}
	return true
}

// draw shades the primitives formed by vertices [first, first+count), or by
// indices when given.
func (s *renderState) draw(first, count uint32, indices []uint32) {
	if s.pipeline == nil {
		s.device.validationError("draw in pass %q without a pipeline", s.label)
		return
	}
	if s.pipeline.released {
		s.device.validationError("draw in pass %q with a released pipeline", s.label)
		return
	}
	if !s.validateBindings() {
		return
	}
	desc := &s.pipeline.Desc
	if desc.Fragment == nil {
		return
	}
	module, _ := desc.Fragment.Module.(*ShaderModule)
	if module == nil {
		return
	}
	frag := s.device.fragments[module.Label]
	if frag == nil {
		return
	}

	if len(desc.Vertex.Buffers) == 0 {
		if count >= 3 {
			s.shadeRect(frag)
		}
		return
	}
	if desc.Primitive.Topology != hal.PrimitiveTopologyTriangleList && desc.Primitive.Topology != hal.PrimitiveTopologyTriangleStrip {
		return
	}
	positions, ok := s.positions(first, count, indices)
	if !ok {
		return
	}
	if desc.Primitive.Topology == hal.PrimitiveTopologyTriangleList {
		for i := 0; i+2 < len(positions); i += 3 {
			s.shadeTriangle(frag, positions[i], positions[i+1], positions[i+2])
		}
		return
	}
	for i := 0; i+2 < len(positions); i++ {
		s.shadeTriangle(frag, positions[i], positions[i+1], positions[i+2])
	}
}

func (s *renderState) positions(first, count uint32, indices []uint32) ([][2]float32, bool) {
	layout := s.pipeline.Desc.Vertex.Buffers[0]
	var attr *hal.VertexAttribute
	for i := range layout.Attributes {
		if layout.Attributes[i].ShaderLocation == 0 {
			attr = &layout.Attributes[i]
		}
	}
	vb, bound := s.vertex[0]
	if attr == nil || !bound {
		s.device.validationError("draw in pass %q without a position stream", s.label)
		return nil, false
	}
	if attr.Format != hal.VertexFormatFloat32x2 && attr.Format != hal.VertexFormatFloat32x3 && attr.Format != hal.VertexFormatFloat32x4 {
		return nil, false
	}
	out := make([][2]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx := first + i
		if indices != nil {
			idx = indices[i]
		}
		off := vb.offset + uint64(idx)*layout.ArrayStride + attr.Offset
		if off+8 > uint64(len(vb.buffer.data)) {
			s.device.validationError("vertex %d outside %q", idx, vb.buffer.Desc.Label)
			return nil, false
		}
		out = append(out, [2]float32{f32(vb.buffer.data[off:]), f32(vb.buffer.data[off+4:])})
	}
	return out, true
}

// bounds returns the pixel rectangle inside viewport, scissor and target.
func (s *renderState) bounds() (x0, y0, x1, y1 uint32) {
	vx0 := uint32(stdmath.Max(0, float64(s.viewport[0])))
	vy0 := uint32(stdmath.Max(0, float64(s.viewport[1])))
	vx1 := uint32(stdmath.Max(0, float64(s.viewport[0]+s.viewport[2])))
	vy1 := uint32(stdmath.Max(0, float64(s.viewport[1]+s.viewport[3])))
	x0 = maxU(vx0, s.scissor[0])
	y0 = maxU(vy0, s.scissor[1])
	x1 = minU(minU(vx1, s.scissor[0]+s.scissor[2]), s.width)
	y1 = minU(minU(vy1, s.scissor[1]+s.scissor[3]), s.height)
	return
}

func (s *renderState) shadeRect(frag FragmentFunc) {
	x0, y0, x1, y1 := s.bounds()
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			s.shade(frag, x, y)
		}
	}
}

func (s *renderState) shadeTriangle(frag FragmentFunc, a, b, c [2]float32) {
	toWindow := func(p [2]float32) [2]float32 {
		return [2]float32{
			s.viewport[0] + (p[0]+1)/2*s.viewport[2],
			s.viewport[1] + (1-p[1])/2*s.viewport[3],
		}
	}
	wa, wb, wc := toWindow(a), toWindow(b), toWindow(c)
	edge := func(p, q [2]float32, x, y float32) float32 {
		return (q[0]-p[0])*(y-p[1]) - (q[1]-p[1])*(x-p[0])
	}
	area := edge(wa, wb, wc[0], wc[1])
	if area == 0 {
		return
	}
	x0, y0, x1, y1 := s.bounds()
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			px, py := float32(x)+0.5, float32(y)+0.5
			e0 := edge(wa, wb, px, py)
			e1 := edge(wb, wc, px, py)
			e2 := edge(wc, wa, px, py)
			inside := (e0 >= 0 && e1 >= 0 && e2 >= 0) || (e0 <= 0 && e1 <= 0 && e2 <= 0)
			if inside {
				s.shade(frag, x, y)
			}
		}
	}
}

func (s *renderState) shade(frag FragmentFunc, x, y uint32) {
	targets := s.pipeline.Desc.Fragment.Targets
	for i, c := range s.colors {
		mask := hal.ColorWriteMaskAll
		if i < len(targets) {
			mask = targets[i].WriteMask
		}
		if mask == hal.ColorWriteMaskNone {
			continue
		}
		in := &FragmentInput{
			X:      x,
			Y:      y,
			U:      (float32(x) + 0.5) / float32(s.width),
			V:      (float32(y) + 0.5) / float32(s.height),
			Target: i,
			groups: s.groups,
		}
		col, keep := frag(in)
		if !keep {
			continue
		}
		v := viewOf(c.View)
		if !v.texture.setPixel(v.desc.BaseMipLevel, v.desc.BaseArrayLayer, x, y, col, mask) {
			s.device.validationError("pass %q cannot write format %d", s.label, v.texture.desc.Format)
			return
		}
	}
}

func maxU(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minU(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
