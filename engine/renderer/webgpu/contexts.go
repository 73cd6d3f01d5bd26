package webgpu

import "github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"

// DrawContext holds the per draw bindings: named buffers, vertex and index
// streams and an optional indirect buffer. Replacing any of them bumps the
// update id, which invalidates the cached bind groups and the fast bundle.
// Writing new contents into a bound buffer does not.
type DrawContext struct {
	buffers        map[string]*DataBuffer
	vertexBuffers  []*DataBuffer
	indexBuffer    *DataBuffer
	indexFormat    hal.IndexFormat
	indirectBuffer *DataBuffer
	indirectOffset uint64

	updateID uint64

	fastBundle hal.RenderBundle
	fastSig    drawSignature
}

func NewDrawContext() *DrawContext {
	return &DrawContext{buffers: make(map[string]*DataBuffer)}
}

func (c *DrawContext) UpdateID() uint64 { return c.updateID }

func (c *DrawContext) touch() {
	c.updateID++
	c.fastSig = drawSignature{}
}

func (c *DrawContext) SetBuffer(name string, buf *DataBuffer) {
	if c.buffers[name] == buf {
		return
	}
	c.buffers[name] = buf
	c.touch()
}

func (c *DrawContext) SetVertexBuffers(bufs ...*DataBuffer) {
	same := len(bufs) == len(c.vertexBuffers)
	for i := 0; same && i < len(bufs); i++ {
		same = bufs[i] == c.vertexBuffers[i]
	}
	if same {
		return
	}
	c.vertexBuffers = append([]*DataBuffer(nil), bufs...)
	c.touch()
}

func (c *DrawContext) SetIndexBuffer(buf *DataBuffer, format hal.IndexFormat) {
	if c.indexBuffer == buf && c.indexFormat == format {
		return
	}
	c.indexBuffer = buf
	c.indexFormat = format
	c.touch()
}

// SetIndirectBuffer makes the following draws read their arguments from buf
// at offset. A nil buffer goes back to direct draws.
func (c *DrawContext) SetIndirectBuffer(buf *DataBuffer, offset uint64) {
	if c.indirectBuffer == buf && c.indirectOffset == offset {
		return
	}
	c.indirectBuffer = buf
	c.indirectOffset = offset
	c.touch()
}

// MaterialContext holds the per material textures. A texture whose device
// objects were recreated since the last draw counts as a new binding.
type MaterialContext struct {
	textures map[string]*InternalTexture
	seen     map[string]uint32
	updateID uint64
}

func NewMaterialContext() *MaterialContext {
	return &MaterialContext{
		textures: make(map[string]*InternalTexture),
		seen:     make(map[string]uint32),
	}
}

func (c *MaterialContext) UpdateID() uint64 { return c.updateID }

func (c *MaterialContext) SetTexture(name string, tex *InternalTexture) {
	if c.textures[name] == tex {
		return
	}
	c.textures[name] = tex
	c.updateID++
}

// sync bumps the update id when a bound texture changed identity.
func (c *MaterialContext) sync() {
	changed := false
	for name, tex := range c.textures {
		if tex == nil {
			continue
		}
		if c.seen[name] != tex.version {
			c.seen[name] = tex.version
			changed = true
		}
	}
	if changed {
		c.updateID++
	}
}

// ComputeContext holds the bindings of a compute dispatch.
type ComputeContext struct {
	buffers  map[string]*DataBuffer
	textures map[string]*InternalTexture
	updateID uint64
}

func NewComputeContext() *ComputeContext {
	return &ComputeContext{
		buffers:  make(map[string]*DataBuffer),
		textures: make(map[string]*InternalTexture),
	}
}

func (c *ComputeContext) SetBuffer(name string, buf *DataBuffer) {
	if c.buffers[name] != buf {
		c.buffers[name] = buf
		c.updateID++
	}
}

func (c *ComputeContext) SetTexture(name string, tex *InternalTexture) {
	if c.textures[name] != tex {
		c.textures[name] = tex
		c.updateID++
	}
}

// bindingSource resolves binding names to resources.
type bindingSource interface {
	buffer(name string) *DataBuffer
	texture(name string) *InternalTexture
}

type drawSource struct {
	draw     *DrawContext
	material *MaterialContext
}

func (s drawSource) buffer(name string) *DataBuffer { return s.draw.buffers[name] }

func (s drawSource) texture(name string) *InternalTexture { return s.material.textures[name] }

func (c *ComputeContext) buffer(name string) *DataBuffer { return c.buffers[name] }

func (c *ComputeContext) texture(name string) *InternalTexture { return c.textures[name] }
