// Package wgpu implements the hal interfaces on top of wgpu-native through
// github.com/cogentcore/webgpu.
package wgpu

import (
	"fmt"

	native "github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type Instance struct {
	instance *native.Instance
}

func NewInstance() *Instance {
	return &Instance{instance: native.CreateInstance(nil)}
}

// CreateSurface wraps a platform surface descriptor, as returned by
// wgpuglfw.GetSurfaceDescriptor.
func (i *Instance) CreateSurface(desc *native.SurfaceDescriptor) *Surface {
	return &Surface{surface: i.instance.CreateSurface(desc)}
}

func (i *Instance) RequestAdapter(opts *hal.RequestAdapterOptions) (hal.Adapter, error) {
	nopts := &native.RequestAdapterOptions{}
	if opts != nil {
		nopts.PowerPreference = powerPreference(opts.PowerPreference)
		nopts.ForceFallbackAdapter = opts.ForceFallbackAdapter
		if s, ok := opts.CompatibleSurface.(*Surface); ok && s != nil {
			nopts.CompatibleSurface = s.surface
		}
	}
	a, err := i.instance.RequestAdapter(nopts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", hal.ErrAdapterNotFound, err)
	}
	return &Adapter{adapter: a}, nil
}

func (i *Instance) Release() {
	i.instance.Release()
}

type Adapter struct {
	adapter *native.Adapter
}

func (a *Adapter) Info() hal.AdapterInfo {
	info := a.adapter.GetInfo()
	return hal.AdapterInfo{
		Name:        info.Name,
		Vendor:      info.VendorName,
		Backend:     info.BackendType.String(),
		Description: info.DriverDescription,
	}
}

func (a *Adapter) Features() hal.Features {
	return halFeatures(a.adapter.HasFeature)
}

func (a *Adapter) Limits() hal.Limits {
	return halLimits(a.adapter.GetLimits().Limits)
}

func (a *Adapter) RequestDevice(desc *hal.DeviceDescriptor) (hal.Device, error) {
	d := &Device{}
	ndesc := &native.DeviceDescriptor{}
	if desc != nil {
		ndesc.Label = desc.Label
		ndesc.RequiredFeatures = requiredFeatures(desc.RequiredFeatures)
		d.onUncapturedError = desc.OnUncapturedError
		if desc.OnDeviceLost != nil {
			lost := desc.OnDeviceLost
			ndesc.DeviceLostCallback = func(reason native.DeviceLostReason, message string) {
				d.lost = true
				lost(fmt.Sprintf("%s (reason %d)", message, reason))
			}
		}
	}
	limits := native.DefaultLimits()
	supported := a.adapter.GetLimits().Limits
	limits.MaxTextureDimension2D = supported.MaxTextureDimension2D
	limits.MaxTextureArrayLayers = supported.MaxTextureArrayLayers
	limits.MaxColorAttachments = supported.MaxColorAttachments
	ndesc.RequiredLimits = &native.RequiredLimits{Limits: limits}

	dev, err := a.adapter.RequestDevice(ndesc)
	if err != nil {
		return nil, err
	}
	d.device = dev
	d.queue = &Queue{queue: dev.GetQueue(), device: d}
	core.LogDebug("wgpu device acquired, max texture size %d", limits.MaxTextureDimension2D)
	return d, nil
}

func (a *Adapter) Release() {
	a.adapter.Release()
}

var (
	_ hal.Instance            = (*Instance)(nil)
	_ hal.Adapter             = (*Adapter)(nil)
	_ hal.Device              = (*Device)(nil)
	_ hal.Queue               = (*Queue)(nil)
	_ hal.Surface             = (*Surface)(nil)
	_ hal.Texture             = (*Texture)(nil)
	_ hal.Buffer              = (*Buffer)(nil)
	_ hal.CommandEncoder      = (*CommandEncoder)(nil)
	_ hal.RenderPass          = (*RenderPass)(nil)
	_ hal.RenderBundleEncoder = (*RenderBundleEncoder)(nil)
	_ hal.ComputePass         = (*ComputePass)(nil)
)
