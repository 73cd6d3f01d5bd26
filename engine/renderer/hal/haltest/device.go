// Package haltest is an in-memory hal implementation for tests. Commands are
// recorded by encoders and executed when submitted, in submission order.
// Every executed command is appended to the device trace so tests can assert
// ordering and call counts.
//
// Rasterization is deliberately small: triangles are read from vertex buffer
// slot 0 (attribute location 0, clip space positions), pipelines without
// vertex buffers cover the whole viewport, fragment shading goes through
// FragmentFunc callbacks registered by shader module label, and blending is
// replace only. There is no depth test; depth and stencil are only touched by
// load operations.
package haltest

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

var (
	ErrAdapterUnavailable = errors.New("haltest: adapter unavailable")
	ErrDeviceUnavailable  = errors.New("haltest: device unavailable")
)

// Event is one executed command.
type Event struct {
	Op     string
	Label  string
	Values []float64
}

type Instance struct {
	// FailAdapter makes RequestAdapter fail.
	FailAdapter bool
	// FailDevice makes RequestDevice fail.
	FailDevice bool

	Features hal.Features
	Limits   hal.Limits

	mu      sync.Mutex
	devices []*Device
}

func NewInstance() *Instance {
	return &Instance{
		Limits: hal.Limits{
			MaxTextureDimension2D:      8192,
			MaxTextureDimension3D:      2048,
			MaxTextureArrayLayers:      256,
			MaxBindGroups:              4,
			MaxColorAttachments:        8,
			MaxComputeWorkgroupsPerDim: 65535,
		},
	}
}

func (i *Instance) RequestAdapter(opts *hal.RequestAdapterOptions) (hal.Adapter, error) {
	if i.FailAdapter {
		return nil, ErrAdapterUnavailable
	}
	return &Adapter{instance: i}, nil
}

func (i *Instance) Release() {}

// Devices returns every device created so far, oldest first.
func (i *Instance) Devices() []*Device {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*Device, len(i.devices))
	copy(out, i.devices)
	return out
}

// LastDevice returns the most recently created device.
func (i *Instance) LastDevice() *Device {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.devices) == 0 {
		return nil
	}
	return i.devices[len(i.devices)-1]
}

type Adapter struct {
	instance *Instance
}

func (a *Adapter) RequestDevice(desc *hal.DeviceDescriptor) (hal.Device, error) {
	if a.instance.FailDevice {
		return nil, ErrDeviceUnavailable
	}
	d := newDevice(a.instance.Features, a.instance.Limits)
	if desc != nil {
		d.label = desc.Label
		d.onLost = desc.OnDeviceLost
		d.onError = desc.OnUncapturedError
	}
	a.instance.mu.Lock()
	a.instance.devices = append(a.instance.devices, d)
	a.instance.mu.Unlock()
	return d, nil
}

func (a *Adapter) Info() hal.AdapterInfo {
	return hal.AdapterInfo{Name: "haltest", Vendor: "anima", Backend: "memory", Description: "recording test device"}
}

func (a *Adapter) Features() hal.Features { return a.instance.Features }
func (a *Adapter) Limits() hal.Limits { return a.instance.Limits }
func (a *Adapter) Release() {}

// Device records everything created from it and executes submitted work.
type Device struct {
	label    string
	features hal.Features
	limits   hal.Limits

	onLost  func(reason string)
	onError func(err error)

	queue     *Queue
	fragments map[string]FragmentFunc

	trace   []Event
	errs    []error
	created map[string]int
	lost    bool
}

func newDevice(features hal.Features, limits hal.Limits) *Device {
	d := &Device{
		features:  features,
		limits:    limits,
		fragments: make(map[string]FragmentFunc),
		created:   make(map[string]int),
	}
	d.queue = &Queue{device: d}
	return d
}

// RegisterFragment installs the fragment stage used by pipelines whose
// fragment module carries the given label.
func (d *Device) RegisterFragment(moduleLabel string, fn FragmentFunc) {
	d.fragments[moduleLabel] = fn
}

// Lose marks the device lost and notifies the owner.
func (d *Device) Lose(reason string) {
	if d.lost {
		return
	}
	d.lost = true
	if d.onLost != nil {
		d.onLost(reason)
	}
}

func (d *Device) IsLost() bool { return d.lost }

// RaiseError reports an asynchronous validation error, as the GPU would.
func (d *Device) RaiseError(err error) {
	d.errs = append(d.errs, err)
	if d.onError != nil {
		d.onError(err)
	}
}

func (d *Device) validationError(format string, args ...interface{}) {
	d.RaiseError(fmt.Errorf("haltest: "+format, args...))
}

// Errors returns every validation error raised so far.
func (d *Device) Errors() []error {
	out := make([]error, len(d.errs))
	copy(out, d.errs)
	return out
}

// Trace returns every executed command in execution order.
func (d *Device) Trace() []Event {
	out := make([]Event, len(d.trace))
	copy(out, d.trace)
	return out
}

func (d *Device) ResetTrace() {
	d.trace = d.trace[:0]
}

// Count returns how many executed commands have the given op.
func (d *Device) Count(op string) int {
	n := 0
	for _, e := range d.trace {
		if e.Op == op {
			n++
		}
	}
	return n
}

// Created returns how many objects of the kind ("RenderPipeline",
// "BindGroup", "RenderBundle", ...) were created.
func (d *Device) Created(kind string) int {
	return d.created[kind]
}

func (d *Device) record(op, label string, values ...float64) {
	d.trace = append(d.trace, Event{Op: op, Label: label, Values: values})
}

func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return nil, fmt.Errorf("haltest: texture %q has an empty size", desc.Label)
	}
	d.created["Texture"]++
	return newTexture(d, *desc), nil
}

func (d *Device) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	d.created["Sampler"]++
	return &Sampler{Desc: *desc}, nil
}

func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.created["Buffer"]++
	b := &Buffer{Desc: *desc, data: make([]byte, desc.Size)}
	b.mapped = desc.MappedAtCreation
	return b, nil
}

func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.created["ShaderModule"]++
	return &ShaderModule{Label: desc.Label, Code: desc.Code}, nil
}

func (d *Device) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	d.created["BindGroupLayout"]++
	return &BindGroupLayout{Desc: *desc}, nil
}

func (d *Device) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	d.created["PipelineLayout"]++
	return &PipelineLayout{Desc: *desc}, nil
}

func (d *Device) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	layout, ok := desc.Layout.(*BindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("haltest: bind group %q has no layout", desc.Label)
	}
	if len(layout.Desc.Entries) != len(desc.Entries) {
		return nil, fmt.Errorf("haltest: bind group %q has %d entries, layout wants %d",
			desc.Label, len(desc.Entries), len(layout.Desc.Entries))
	}
	d.created["BindGroup"]++
	return &BindGroup{Desc: *desc}, nil
}

func (d *Device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.created["RenderPipeline"]++
	return &RenderPipeline{Desc: *desc}, nil
}

func (d *Device) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	d.created["ComputePipeline"]++
	return &ComputePipeline{Desc: *desc}, nil
}

func (d *Device) CreateCommandEncoder(label string) (hal.CommandEncoder, error) {
	if d.lost {
		return nil, hal.ErrDeviceLost
	}
	d.created["CommandEncoder"]++
	return &CommandEncoder{device: d, label: label}, nil
}

func (d *Device) CreateRenderBundleEncoder(desc *hal.RenderBundleEncoderDescriptor) (hal.RenderBundleEncoder, error) {
	d.created["RenderBundleEncoder"]++
	return &RenderBundleEncoder{device: d, desc: *desc}, nil
}

func (d *Device) Queue() hal.Queue { return d.queue }
func (d *Device) Features() hal.Features { return d.features }
func (d *Device) Limits() hal.Limits { return d.limits }
func (d *Device) Poll(wait bool) {}
func (d *Device) Release() {}

// Queue executes writes immediately and command buffers on Submit.
type Queue struct {
	device *Device
}

func (q *Queue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.TextureDataLayout, size *hal.Extent3D) error {
	t, ok := dst.Texture.(*Texture)
	if !ok {
		return fmt.Errorf("haltest: foreign texture")
	}
	if t.destroyed {
		q.device.validationError("write to destroyed texture %q", t.desc.Label)
		return nil
	}
	q.device.record("writeTexture", t.desc.Label, float64(dst.MipLevel), float64(dst.Origin.Z))
	return t.writeRegion(dst, data, layout, size)
}

func (q *Queue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	b, ok := buffer.(*Buffer)
	if !ok {
		return fmt.Errorf("haltest: foreign buffer")
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("haltest: write of %d bytes at %d overflows buffer %q", len(data), offset, b.Desc.Label)
	}
	q.device.record("writeBuffer", b.Desc.Label, float64(offset), float64(len(data)))
	copy(b.data[offset:], data)
	return nil
}

func (q *Queue) CopyExternalImageToTexture(src image.Image, dst *hal.ImageCopyTexture, size *hal.Extent3D) error {
	t, ok := dst.Texture.(*Texture)
	if !ok {
		return fmt.Errorf("haltest: foreign texture")
	}
	q.device.record("copyExternalImageToTexture", t.desc.Label, float64(dst.MipLevel), float64(dst.Origin.Z))
	return t.writeImage(dst, src, size)
}

func (q *Queue) Submit(buffers ...hal.CommandBuffer) {
	for _, cb := range buffers {
		c, ok := cb.(*CommandBuffer)
		if !ok || c == nil {
			continue
		}
		if c.executed {
			q.device.validationError("command buffer %q submitted twice", c.label)
			continue
		}
		c.executed = true
		q.device.record("submit", c.label)
		for _, cmd := range c.commands {
			cmd()
		}
	}
}

type Sampler struct {
	Desc     hal.SamplerDescriptor
	released bool
}

func (s *Sampler) Release() { s.released = true }

type ShaderModule struct {
	Label string
	Code  string
}

func (m *ShaderModule) Release() {}

type BindGroupLayout struct {
	Desc hal.BindGroupLayoutDescriptor
}

func (l *BindGroupLayout) Release() {}

type PipelineLayout struct {
	Desc hal.PipelineLayoutDescriptor
}

func (l *PipelineLayout) Release() {}

type BindGroup struct {
	Desc     hal.BindGroupDescriptor
	released bool
}

func (g *BindGroup) Release() { g.released = true }

// entry returns the resource bound at binding.
func (g *BindGroup) entry(binding uint32) (hal.BindGroupEntry, bool) {
	for _, e := range g.Desc.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return hal.BindGroupEntry{}, false
}

type RenderPipeline struct {
	Desc     hal.RenderPipelineDescriptor
	released bool
}

func (p *RenderPipeline) Release() { p.released = true }

func (p *RenderPipeline) label() string {
	return p.Desc.Label
}

type ComputePipeline struct {
	Desc hal.ComputePipelineDescriptor
}

func (p *ComputePipeline) Release() {}
