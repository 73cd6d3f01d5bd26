package webgpu

import (
	"encoding/binary"
	"fmt"
	stdmath "math"

	lru "github.com/hashicorp/golang-lru"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

// ClearTarget describes the attachments of the pass a clear goes into.
type ClearTarget struct {
	ColorFormats       []hal.TextureFormat
	DepthStencilFormat hal.TextureFormat
	SampleCount        uint32
	IsRenderTarget     bool
}

type clearKey struct {
	colors       [8]hal.TextureFormat
	colorCount   int
	depthFormat  hal.TextureFormat
	color        [4]uint32
	hasColor     bool
	depth        uint32
	hasDepth     bool
	stencil      uint32
	hasStencil   bool
	reverseDepth bool
	isRTT        bool
	samples      uint32
}

type clearEntry struct {
	uniforms hal.Buffer
	group    hal.BindGroup
	bundle   hal.RenderBundle
}

func (c *clearEntry) release() {
	if c.bundle != nil {
		c.bundle.Release()
	}
	c.group.Release()
	c.uniforms.Destroy()
}

// ClearQuad clears attachments by drawing a full screen triangle, for the
// clears a pass load operation cannot express. Cacheable clears are kept as
// prebuilt render bundles in a bounded LRU.
type ClearQuad struct {
	engine       *Engine
	effect       *Effect
	pipelines    *RenderPipelineCache
	bundles      *lru.Cache
	reverseDepth bool
}

func NewClearQuad(e *Engine, cacheSize int) (*ClearQuad, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	q := &ClearQuad{
		engine:       e,
		pipelines:    NewRenderPipelineCache(e.device, false),
		reverseDepth: e.opts.ReverseDepth,
	}
	bundles, err := lru.NewWithEvict(cacheSize, func(_ interface{}, value interface{}) {
		entry := value.(*clearEntry)
		e.retireBundle(entry.bundle, entry.release)
	})
	if err != nil {
		return nil, err
	}
	q.bundles = bundles

	req, _ := shaders.Builtin(shaders.ClearProgram)
	if q.effect, err = e.newEffect(req); err != nil {
		return nil, err
	}
	if _, err := e.effectLayout(q.effect, 0); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *ClearQuad) SetReverseDepth(on bool) { q.reverseDepth = on }

// CachedBundles returns how many clear bundles are cached.
func (q *ClearQuad) CachedBundles() int { return q.bundles.Len() }

func (q *ClearQuad) key(target ClearTarget, color *hal.Color, depth *float32, stencil *uint32) clearKey {
	k := clearKey{
		colorCount:   len(target.ColorFormats),
		depthFormat:  target.DepthStencilFormat,
		reverseDepth: q.reverseDepth,
		isRTT:        target.IsRenderTarget,
		samples:      target.SampleCount,
	}
	copy(k.colors[:], target.ColorFormats)
	if color != nil {
		k.hasColor = true
		k.color = [4]uint32{
			stdmath.Float32bits(float32(color.R)),
			stdmath.Float32bits(float32(color.G)),
			stdmath.Float32bits(float32(color.B)),
			stdmath.Float32bits(float32(color.A)),
		}
	}
	if depth != nil {
		k.hasDepth = true
		k.depth = stdmath.Float32bits(*depth)
	}
	if stencil != nil {
		k.hasStencil = true
		k.stencil = *stencil
	}
	return k
}

func (q *ClearQuad) pipeline(target ClearTarget, color *hal.Color, depth *float32, stencil *uint32) (hal.RenderPipeline, error) {
	p := q.pipelines
	p.SetColorFormats(target.ColorFormats)
	p.SetDepthStencilFormat(target.DepthStencilFormat)
	if color != nil {
		p.SetColorWriteMask(hal.ColorWriteMaskAll)
	} else {
		p.SetColorWriteMask(hal.ColorWriteMaskNone)
	}
	p.SetDepthState(DepthState{TestEnabled: false, WriteEnabled: depth != nil, Compare: hal.CompareFunctionAlways})
	stencilState := StencilState{}
	if stencil != nil {
		stencilState = StencilState{
			Enabled:     true,
			Compare:     hal.CompareFunctionAlways,
			FailOp:      hal.StencilOperationReplace,
			DepthFailOp: hal.StencilOperationReplace,
			PassOp:      hal.StencilOperationReplace,
			ReadMask:    0xff,
			WriteMask:   0xff,
		}
	}
	p.SetStencilState(stencilState)
	return p.GetRenderPipeline(FillModeTriangles, q.effect, target.SampleCount, 0)
}

func (q *ClearQuad) build(color *hal.Color, depth *float32) (*clearEntry, error) {
	e := q.engine
	uniforms, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "clear-quad-uniforms",
		Size:  shaders.ClearUniformSize,
		Usage: hal.BufferUsageUniform | hal.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	data := make([]byte, shaders.ClearUniformSize)
	if color != nil {
		for i, v := range []float64{color.R, color.G, color.B, color.A} {
			binary.LittleEndian.PutUint32(data[i*4:], stdmath.Float32bits(float32(v)))
		}
	}
	d := float32(1)
	if q.reverseDepth {
		d = 0
	}
	if depth != nil {
		d = *depth
	}
	binary.LittleEndian.PutUint32(data[16:], stdmath.Float32bits(d))
	if err := e.queue.WriteBuffer(uniforms, 0, data); err != nil {
		uniforms.Destroy()
		return nil, err
	}

	group, err := e.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "clear-quad",
		Layout:  q.effect.layouts[0].groups[0],
		Entries: []hal.BindGroupEntry{{Binding: 0, Buffer: uniforms, Size: shaders.ClearUniformSize}},
	})
	if err != nil {
		uniforms.Destroy()
		return nil, err
	}
	return &clearEntry{uniforms: uniforms, group: group}, nil
}

// Clear clears the attachments of target. With a live pass it draws into
// it and returns nil. With a nil pass it returns a render bundle, the same
// one for identical targets and values.
func (q *ClearQuad) Clear(pass hal.RenderPass, target ClearTarget, color *hal.Color, depth *float32, stencil *uint32) (hal.RenderBundle, error) {
	if target.SampleCount == 0 {
		target.SampleCount = 1
	}
	key := q.key(target, color, depth, stencil)
	var en *clearEntry
	if v, ok := q.bundles.Get(key); ok {
		en = v.(*clearEntry)
		if pass == nil && en.bundle != nil {
			return en.bundle, nil
		}
	}

	pipeline, err := q.pipeline(target, color, depth, stencil)
	if err != nil {
		return nil, err
	}
	if en == nil {
		if en, err = q.build(color, depth); err != nil {
			core.LogError("clear quad: %s", err)
			return nil, err
		}
		q.bundles.Add(key, en)
	}

	if pass != nil {
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, en.group, nil)
		pass.Draw(3, 1, 0, 0)
		return nil, nil
	}

	enc, err := q.engine.device.CreateRenderBundleEncoder(&hal.RenderBundleEncoderDescriptor{
		Label:              "clear-quad",
		ColorFormats:       target.ColorFormats,
		DepthStencilFormat: target.DepthStencilFormat,
		SampleCount:        target.SampleCount,
	})
	if err != nil {
		return nil, err
	}
	enc.SetPipeline(pipeline)
	enc.SetBindGroup(0, en.group, nil)
	enc.Draw(3, 1, 0, 0)
	bundle, err := enc.Finish(fmt.Sprintf("clear-quad-%d", q.bundles.Len()))
	if err != nil {
		return nil, err
	}
	en.bundle = bundle
	return bundle, nil
}

func (q *ClearQuad) EndFrame() {
	q.pipelines.EndFrame()
}

func (q *ClearQuad) Release() {
	q.bundles.Purge()
	q.pipelines.Release()
	q.effect.release()
}
