// Package webgpu is the rendering core of the engine. It owns the GPU device
// and the three command encoders, serializes draws onto render passes and
// render bundles, caches pipelines and bind groups and runs the internal
// texture passes (mipmaps, Y inversion, clears).
//
// The engine is driven from a single render goroutine. Nothing in this
// package locks.
package webgpu

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

var (
	ErrNoEffect       = errors.New("no effect is bound")
	ErrPassOpen       = errors.New("a pass is already open on this encoder")
	ErrMissingBinding = errors.New("binding has no resource")
	ErrNotBound       = errors.New("no render target is bound")
)

// FrameCounters are the per frame statistics of the engine.
type FrameCounters struct {
	NumEnableEffects               int
	NumEnableDrawWrapper           int
	NumBundleCreationNonCompatMode int
	NumBundleReuseNonCompatMode    int
}

// Caps describes what the current device supports.
type Caps struct {
	MaxTextureSize         uint32
	MaxCubeTextureSize     uint32
	MaxTextureArrayLayers  uint32
	MaxColorAttachments    uint32
	MaxSamples             uint32
	Float32Filterable      bool
	SupportsBundles        bool
	TextureCompressionBC   bool
	TextureCompressionETC2 bool
	TextureCompressionASTC bool
}

type pendingClear struct {
	color   *hal.Color
	depth   *float32
	stencil *uint32
}

func (p pendingClear) empty() bool {
	return p.color == nil && p.depth == nil && p.stencil == nil
}

func (p *pendingClear) merge(color *hal.Color, depth *float32, stencil *uint32) {
	if color != nil {
		c := *color
		p.color = &c
	}
	if depth != nil {
		d := *depth
		p.depth = &d
	}
	if stencil != nil {
		s := *stencil
		p.stencil = &s
	}
}

// renderPassWrapper is the open pass of a slot plus what pipelines and
// bundles recorded for it must match.
type renderPassWrapper struct {
	pass               hal.RenderPass
	desc               *hal.RenderPassDescriptor
	colorFormats       []hal.TextureFormat
	depthStencilFormat hal.TextureFormat
	sampleCount        uint32
	width, height      uint32
}

func (w *renderPassWrapper) reset() {
	*w = renderPassWrapper{}
}

type Engine struct {
	opts      Options
	instance  hal.Instance
	surface   hal.Surface
	bus       *core.EventBus
	processor *shaders.Processor

	adapter hal.Adapter
	device  hal.Device
	queue   hal.Queue
	caps    Caps

	ready    bool
	disposed bool
	// deviceGen is bumped on every device recreation. Anything cached with
	// an older generation is stale.
	deviceGen uint64

	width, height uint32

	uploadEncoder       *trackedEncoder
	renderTargetEncoder *trackedEncoder
	renderEncoder       *trackedEncoder

	mainPass     renderPassWrapper
	rtPass       renderPassWrapper
	pendingClear [2]pendingClear
	bundleLists  [2]*BundleList

	// Main framebuffer. surfaceTexture is acquired lazily per frame; without
	// a surface the engine renders into backbuffer.
	surfaceTexture hal.Texture
	surfaceView    hal.TextureView
	backbuffer     *InternalTexture
	mainDepth      *InternalTexture

	currentRT   *RenderTargetWrapper
	currentFace uint32
	currentLod  uint32

	viewport       *dirtyState[Viewport]
	scissor        *dirtyState[ScissorRect]
	stencilRef     *dirtyState[uint32]
	blendColor     *dirtyState[hal.Color]
	scissorEnabled bool

	alphaMode    AlphaMode
	depthState   DepthState
	stencilState StencilState
	colorWrite   hal.ColorWriteMask

	effects         map[string]*Effect
	currentEffect   *Effect
	currentDraw     *DrawContext
	currentMaterial *MaterialContext
	emptyDraw       *DrawContext
	emptyMaterial   *MaterialContext

	pipelineCache  *RenderPipelineCache
	bindGroupCache *BindGroupCache
	samplers       map[hal.SamplerDescriptor]hal.Sampler
	clearQuad      *ClearQuad
	textureHelper  *TextureHelper

	textureIDs *core.IdentifierPool
	textures   map[uint32]*InternalTexture
	bufferIDs  *core.IdentifierPool
	buffers    map[uint32]*DataBuffer

	deferredCompute *computeQueue
	releaseQueue    []func()

	snapshot snapshotRecorder
	diag     *FrameDiagnostics

	counters          FrameCounters
	CountersLastFrame FrameCounters
	drawCalls         int
	lastDrawCalls     int
	uncapturedErrors  int
	frame             uint64
}

// New returns an engine that is not usable until Init succeeds. surface may
// be nil, in which case the main framebuffer is an offscreen texture.
func New(instance hal.Instance, surface hal.Surface, bus *core.EventBus, opts Options) *Engine {
	if bus == nil {
		bus = core.DefaultEventBus()
	}
	processor := shaders.NewProcessor()
	if opts.ShaderCompiler != nil {
		processor = shaders.NewProcessorWithCompiler(opts.ShaderCompiler)
	}
	if opts.CompatibilityMode && opts.SnapshotRendering {
		core.LogWarn("snapshot rendering is not available in compatibility mode, disabling it")
		opts.SnapshotRendering = false
	}
	e := &Engine{
		opts:       opts,
		instance:   instance,
		surface:    surface,
		bus:        bus,
		processor:  processor,
		width:      opts.Width,
		height:     opts.Height,
		effects:    make(map[string]*Effect),
		textureIDs: core.NewIdentifierPool(64),
		textures:   make(map[uint32]*InternalTexture),
		bufferIDs:  core.NewIdentifierPool(64),
		buffers:    make(map[uint32]*DataBuffer),
		diag:       NewFrameDiagnostics(opts.VerboseFrames),
		colorWrite: hal.ColorWriteMaskAll,
	}
	e.bundleLists = [2]*BundleList{NewBundleList(), NewBundleList()}
	e.deferredCompute = newComputeQueue()
	e.emptyDraw = NewDrawContext()
	e.emptyMaterial = NewMaterialContext()
	e.depthState = e.defaultDepthState()
	e.stencilState = DefaultStencilState()
	e.snapshot.enabled = opts.SnapshotRendering
	_ = e.snapshot.reset()
	e.initDirtyStates()
	return e
}

// Init runs the initialization chain: shader toolchain, adapter, device,
// then every object depending on the device. A failing stage leaves the
// engine unusable.
func (e *Engine) Init() error {
	if e.disposed {
		return core.ErrEngineDisposed
	}
	if err := e.processor.Init(); err != nil {
		return err
	}

	adapter, err := e.instance.RequestAdapter(&hal.RequestAdapterOptions{
		PowerPreference:      e.opts.PowerPreference,
		ForceFallbackAdapter: e.opts.ForceFallbackAdapter,
		CompatibleSurface:    e.surface,
	})
	if err != nil {
		err = fmt.Errorf("failed to acquire a WebGPU adapter: %w", err)
		core.LogError("%s", err)
		return err
	}
	info := adapter.Info()
	core.LogInfo("WebGPU adapter: %s (%s) on %s", info.Name, info.Vendor, info.Backend)

	device, err := adapter.RequestDevice(&hal.DeviceDescriptor{
		Label:             "anima-device",
		RequiredFeatures:  adapter.Features(),
		OnDeviceLost:      e.onDeviceLost,
		OnUncapturedError: e.onUncapturedError,
	})
	if err != nil {
		err = fmt.Errorf("failed to acquire a WebGPU device: %w", err)
		core.LogError("%s", err)
		return err
	}
	e.adapter = adapter
	e.device = device
	e.queue = device.Queue()
	e.caps = e.buildCaps()

	if err := e.initDeviceObjects(); err != nil {
		return err
	}
	e.ready = true
	core.LogInfo("WebGPU engine initialized (%dx%d, compatibility mode: %t)", e.width, e.height, e.opts.CompatibilityMode)
	return nil
}

func (e *Engine) buildCaps() Caps {
	features := e.device.Features()
	limits := e.device.Limits()
	return Caps{
		MaxTextureSize:         limits.MaxTextureDimension2D,
		MaxCubeTextureSize:     limits.MaxTextureDimension2D,
		MaxTextureArrayLayers:  limits.MaxTextureArrayLayers,
		MaxColorAttachments:    limits.MaxColorAttachments,
		MaxSamples:             4,
		Float32Filterable:      features.Float32Filterable,
		SupportsBundles:        !e.opts.CompatibilityMode,
		TextureCompressionBC:   features.TextureCompressionBC,
		TextureCompressionETC2: features.TextureCompressionETC2,
		TextureCompressionASTC: features.TextureCompressionASTC,
	}
}

func (e *Engine) initDeviceObjects() error {
	var err error
	if e.uploadEncoder, err = newTrackedEncoder(e.device, "upload"); err != nil {
		return err
	}
	if e.renderTargetEncoder, err = newTrackedEncoder(e.device, "render-target"); err != nil {
		return err
	}
	if e.renderEncoder, err = newTrackedEncoder(e.device, "render"); err != nil {
		return err
	}

	e.samplers = make(map[hal.SamplerDescriptor]hal.Sampler)
	e.pipelineCache = NewRenderPipelineCache(e.device, e.opts.PipelineCacheDisabled)
	e.bindGroupCache = NewBindGroupCache(e)

	if e.clearQuad, err = NewClearQuad(e, e.opts.ClearBundleCacheSize); err != nil {
		return err
	}
	if e.textureHelper, err = NewTextureHelper(e); err != nil {
		return err
	}
	if err := e.configureMainFramebuffer(); err != nil {
		return err
	}
	e.resetPendingState()
	return nil
}

// configureMainFramebuffer configures the surface, or allocates the
// offscreen backbuffer, and the main depth buffer.
func (e *Engine) configureMainFramebuffer() error {
	if e.surface != nil {
		err := e.surface.Configure(e.adapter, e.device, &hal.SurfaceConfiguration{
			Format: e.opts.SurfaceFormat,
			Usage:  hal.TextureUsageRenderAttachment,
			Width:  e.width,
			Height: e.height,
			VSync:  e.opts.VSync,
		})
		if err != nil {
			err = fmt.Errorf("failed to configure the surface: %w", err)
			core.LogError("%s", err)
			return err
		}
	} else {
		bb, err := e.createNativeTexture("anima-backbuffer", e.width, e.height, 1, e.opts.SurfaceFormat, 1,
			hal.TextureUsageRenderAttachment|hal.TextureUsageCopySrc|hal.TextureUsageTextureBinding)
		if err != nil {
			return err
		}
		e.backbuffer = bb
	}
	depth, err := e.createNativeTexture("anima-main-depth", e.width, e.height, 1, hal.TextureFormatDepth24PlusStencil8, 1,
		hal.TextureUsageRenderAttachment)
	if err != nil {
		return err
	}
	e.mainDepth = depth
	return nil
}

func (e *Engine) checkReady() error {
	if e.disposed {
		return core.ErrEngineDisposed
	}
	if !e.ready {
		return core.ErrEngineNotReady
	}
	return nil
}

func (e *Engine) IsReady() bool { return e.ready }

func (e *Engine) Caps() Caps { return e.caps }

func (e *Engine) Device() hal.Device { return e.device }

func (e *Engine) Options() Options { return e.opts }

// Backbuffer is the offscreen main framebuffer, nil when rendering to a
// surface.
func (e *Engine) Backbuffer() *InternalTexture { return e.backbuffer }

func (e *Engine) Diagnostics() *FrameDiagnostics { return e.diag }

func (e *Engine) DrawCalls() int { return e.lastDrawCalls }

func (e *Engine) UncapturedErrorCount() int { return e.uncapturedErrors }

func (e *Engine) onUncapturedError(err error) {
	e.uncapturedErrors++
	n := e.uncapturedErrors
	max := e.opts.MaxUncapturedErrorLogs
	switch {
	case n <= max:
		core.LogWarn("WebGPU uncaptured error (%d): %s", n, err)
	case n == max+1:
		core.LogWarn("WebGPU uncaptured error: too many warnings (%d), no more warnings will be reported", max)
	}
}

func (e *Engine) onDeviceLost(reason string) {
	if e.disposed {
		return
	}
	core.LogError("WebGPU device lost: %s", reason)
	e.ready = false

	var ctx core.EventContext
	ctx.Data.C[0] = reason
	e.bus.Fire(core.EventCodeDeviceLost, e, ctx)

	if !e.opts.AutoReinitialize {
		return
	}
	if err := e.reinitialize(); err != nil {
		core.LogError("WebGPU reinitialization failed: %s", err)
		return
	}
	e.bus.Fire(core.EventCodeDeviceRestored, e, core.EventContext{})
}

// reinitialize repeats the init chain on a fresh device and rebuilds every
// registered resource on it. Objects of the lost device are dropped, not
// released.
func (e *Engine) reinitialize() error {
	e.mainPass.reset()
	e.rtPass.reset()
	e.pendingClear = [2]pendingClear{}
	e.bundleLists[mainPassSlot].reset()
	e.bundleLists[rtPassSlot].reset()
	e.surfaceTexture, e.surfaceView = nil, nil
	e.backbuffer, e.mainDepth = nil, nil
	e.releaseQueue = nil
	e.deferredCompute = newComputeQueue()
	_ = e.snapshot.reset()
	e.deviceGen++

	if err := e.Init(); err != nil {
		return err
	}
	for _, fx := range e.effects {
		if err := e.buildEffect(fx); err != nil {
			return err
		}
	}
	for _, tex := range e.textures {
		if err := e.recreateHardware(tex); err != nil {
			return err
		}
	}
	for _, buf := range e.buffers {
		if err := e.recreateBuffer(buf); err != nil {
			return err
		}
	}
	if rt := e.currentRT; rt != nil {
		rt.invalidateViews()
	}
	e.currentRT = nil
	e.resetPendingState()
	core.LogInfo("WebGPU device restored (generation %d)", e.deviceGen)
	return nil
}

// retire schedules fn to run once the current frame has been submitted.
func (e *Engine) retire(fn func()) {
	e.releaseQueue = append(e.releaseQueue, fn)
}

func (e *Engine) drainReleaseQueue() {
	queue := e.releaseQueue
	e.releaseQueue = nil
	for _, fn := range queue {
		fn()
	}
	if len(queue) > 0 {
		e.diag.Logf("released %d deferred objects", len(queue))
	}
}

// Dispose flushes pending work and releases every GPU object. The engine
// cannot be used afterwards.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	if e.ready {
		if err := e.FlushFramebuffer(false); err != nil {
			core.LogWarn("flush on dispose: %s", err)
		}
	}
	for _, tex := range e.textures {
		e.ReleaseTexture(tex)
	}
	for _, buf := range e.buffers {
		e.ReleaseBuffer(buf)
	}
	if e.backbuffer != nil {
		e.backbuffer.hardware.release()
	}
	if e.mainDepth != nil {
		e.mainDepth.hardware.release()
	}
	for _, fx := range e.effects {
		fx.release()
	}
	if e.pipelineCache != nil {
		e.pipelineCache.Release()
	}
	if e.bindGroupCache != nil {
		e.bindGroupCache.Release()
	}
	if e.clearQuad != nil {
		e.clearQuad.Release()
	}
	if e.textureHelper != nil {
		e.textureHelper.Release()
	}
	for _, s := range e.samplers {
		s.Release()
	}
	for _, fn := range e.snapshot.reset() {
		e.retire(fn)
	}
	e.drainReleaseQueue()
	if e.device != nil {
		e.device.Release()
	}
	if e.adapter != nil {
		e.adapter.Release()
	}
	e.ready = false
	e.disposed = true
	core.LogInfo("WebGPU engine disposed")
}
