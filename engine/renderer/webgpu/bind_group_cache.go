package webgpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

type bindGroupKey struct {
	layout *effectLayout
	source bindingSource
}

// defaultBindGroupIdleFrames is how many frames an entry may go unused
// before EndFrame evicts it.
const defaultBindGroupIdleFrames = 120

type bindGroupEntry struct {
	update   [2]uint64
	groups   []hal.BindGroup
	lastUsed uint64
}

// BindGroupCache memoizes the bind groups of an (effect layout, draw
// context, material context) triple for as long as neither context reports
// a binding change. Entries left unused for maxIdleFrames frames are
// evicted, so transient contexts are not pinned.
type BindGroupCache struct {
	engine        *Engine
	entries       map[bindGroupKey]*bindGroupEntry
	retired       []hal.BindGroup
	created       int
	frame         uint64
	maxIdleFrames uint64
}

func NewBindGroupCache(e *Engine) *BindGroupCache {
	return &BindGroupCache{
		engine:        e,
		entries:       make(map[bindGroupKey]*bindGroupEntry),
		maxIdleFrames: defaultBindGroupIdleFrames,
	}
}

// Len returns how many entries are cached.
func (c *BindGroupCache) Len() int { return len(c.entries) }

// Created returns how many bind groups the cache has built.
func (c *BindGroupCache) Created() int { return c.created }

// GetBindGroups returns the bind groups of fx for a draw.
func (c *BindGroupCache) GetBindGroups(fx *Effect, mask uint32, draw *DrawContext, material *MaterialContext) ([]hal.BindGroup, error) {
	material.sync()
	return c.groups(fx, mask, drawSource{draw: draw, material: material}, [2]uint64{draw.updateID, material.updateID})
}

func (c *BindGroupCache) groups(fx *Effect, mask uint32, src bindingSource, update [2]uint64) ([]hal.BindGroup, error) {
	layout, err := c.engine.effectLayout(fx, mask)
	if err != nil {
		return nil, err
	}
	key := bindGroupKey{layout: layout, source: src}
	if entry, ok := c.entries[key]; ok {
		if entry.update == update {
			entry.lastUsed = c.frame
			return entry.groups, nil
		}
		c.retired = append(c.retired, entry.groups...)
		delete(c.entries, key)
	}

	textures := fx.program.Textures()
	fallback := make(map[string]bool)
	for i, b := range textures {
		if mask&(1<<uint(i)) != 0 {
			fallback[b.Name] = true
		}
	}

	groups := make([]hal.BindGroup, 0, len(layout.groups))
	for g, bgl := range layout.groups {
		entries := make([]hal.BindGroupEntry, 0)
		for _, b := range fx.program.Group(uint32(g)) {
			entry, err := c.entry(fx, b, src, fallback)
			if err != nil {
				for _, made := range groups {
					made.Release()
				}
				return nil, err
			}
			entries = append(entries, entry)
		}
		group, err := c.engine.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s-group%d", fx.program.Name, g),
			Layout:  bgl,
			Entries: entries,
		})
		if err != nil {
			err = fmt.Errorf("bind group %d of %s: %w", g, fx.program.Name, err)
			core.LogError("%s", err)
			return nil, err
		}
		c.created++
		groups = append(groups, group)
	}
	c.entries[key] = &bindGroupEntry{update: update, groups: groups, lastUsed: c.frame}
	return groups, nil
}

func (c *BindGroupCache) entry(fx *Effect, b shaders.Binding, src bindingSource, fallback map[string]bool) (hal.BindGroupEntry, error) {
	missing := func(name string) error {
		err := fmt.Errorf("%s binding %q (group %d, binding %d): %w", fx.program.Name, name, b.Group, b.Binding, ErrMissingBinding)
		core.LogError("%s", err)
		return err
	}
	switch b.Kind {
	case shaders.BindingUniform, shaders.BindingStorage, shaders.BindingReadOnlyStorage:
		buf := src.buffer(b.Name)
		if buf == nil || buf.buffer == nil {
			return hal.BindGroupEntry{}, missing(b.Name)
		}
		return hal.BindGroupEntry{Binding: b.Binding, Buffer: buf.buffer, Size: buf.size}, nil
	case shaders.BindingTexture:
		tex := src.texture(b.Name)
		if tex == nil || tex.hardware == nil {
			return hal.BindGroupEntry{}, missing(b.Name)
		}
		return hal.BindGroupEntry{Binding: b.Binding, TextureView: tex.hardware.view}, nil
	case shaders.BindingSampler:
		tex := src.texture(b.Texture)
		if tex == nil {
			return hal.BindGroupEntry{}, missing(b.Texture)
		}
		sampler, err := c.engine.samplerFor(tex, fallback[b.Texture])
		if err != nil {
			return hal.BindGroupEntry{}, err
		}
		return hal.BindGroupEntry{Binding: b.Binding, Sampler: sampler}, nil
	}
	return hal.BindGroupEntry{}, fmt.Errorf("binding %q has kind %d: %w", b.Name, b.Kind, core.ErrInvalidArgument)
}

// InvalidateEffect drops the groups built with any layout of fx.
func (c *BindGroupCache) InvalidateEffect(fx *Effect) {
	for key, entry := range c.entries {
		for _, l := range fx.layouts {
			if key.layout == l {
				c.retired = append(c.retired, entry.groups...)
				delete(c.entries, key)
				break
			}
		}
	}
}

// EndFrame evicts idle entries and releases the groups replaced during the
// frame. Nothing is evicted while a snapshot plays, since the replayed
// bundles still bind groups their draws no longer request.
func (c *BindGroupCache) EndFrame() {
	if c.engine.snapshot.mode != SNAPSHOT_MODE_PLAY {
		c.evictIdle()
	}
	for _, g := range c.retired {
		g.Release()
	}
	c.retired = c.retired[:0]
	c.frame++
}

func (c *BindGroupCache) evictIdle() {
	for key, entry := range c.entries {
		if c.frame-entry.lastUsed < c.maxIdleFrames {
			continue
		}
		c.retired = append(c.retired, entry.groups...)
		delete(c.entries, key)
		// the fast path bundle of the draw context binds these groups
		if src, ok := key.source.(drawSource); ok && src.draw != nil && src.draw.fastBundle != nil {
			old := src.draw.fastBundle
			src.draw.fastBundle = nil
			c.engine.retireBundle(old, old.Release)
		}
	}
}

func (c *BindGroupCache) Release() {
	for key, entry := range c.entries {
		c.retired = append(c.retired, entry.groups...)
		delete(c.entries, key)
	}
	c.EndFrame()
}

// samplerFor returns the sampler matching the sampling settings of tex.
// nearest forces non-filtering sampling for the float fallback.
func (e *Engine) samplerFor(tex *InternalTexture, nearest bool) (hal.Sampler, error) {
	desc := hal.SamplerDescriptor{
		AddressModeU:  tex.WrapU,
		AddressModeV:  tex.WrapV,
		AddressModeW:  tex.WrapW,
		LodMaxClamp:   float32(tex.MipLevels),
		MaxAnisotropy: 1,
	}
	mode := tex.SamplingMode
	if nearest {
		mode = SamplingNearest
	}
	switch mode {
	case SamplingNearest:
		desc.MagFilter, desc.MinFilter, desc.MipmapFilter = hal.FilterModeNearest, hal.FilterModeNearest, hal.FilterModeNearest
	case SamplingBilinear:
		desc.MagFilter, desc.MinFilter, desc.MipmapFilter = hal.FilterModeLinear, hal.FilterModeLinear, hal.FilterModeNearest
	default:
		desc.MagFilter, desc.MinFilter, desc.MipmapFilter = hal.FilterModeLinear, hal.FilterModeLinear, hal.FilterModeLinear
	}
	return e.sampler(desc)
}

func (e *Engine) sampler(desc hal.SamplerDescriptor) (hal.Sampler, error) {
	if s, ok := e.samplers[desc]; ok {
		return s, nil
	}
	s, err := e.device.CreateSampler(&desc)
	if err != nil {
		err = fmt.Errorf("sampler: %w", err)
		core.LogError("%s", err)
		return nil, err
	}
	e.samplers[desc] = s
	return s, nil
}
