package wgpu

import (
	"fmt"

	native "github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type Surface struct {
	surface *native.Surface
	config  hal.SurfaceConfiguration
	device  *Device
}

func (s *Surface) Configure(adapter hal.Adapter, device hal.Device, config *hal.SurfaceConfiguration) error {
	a := adapter.(*Adapter)
	d := device.(*Device)
	caps := s.surface.GetCapabilities(a.adapter)

	format := textureFormat(config.Format)
	supported := false
	for _, f := range caps.Formats {
		if f == format {
			supported = true
			break
		}
	}
	if !supported {
		err := fmt.Errorf("%w: surface format %d", core.ErrNotSupported, config.Format)
		core.LogError("%s", err)
		return err
	}

	present := native.PresentModeFifo
	if !config.VSync {
		for _, m := range caps.PresentModes {
			if m == native.PresentModeImmediate || m == native.PresentModeMailbox {
				present = m
				break
			}
		}
	}
	alpha := native.CompositeAlphaModeAuto
	if len(caps.AlphaModes) > 0 {
		alpha = caps.AlphaModes[0]
	}

	s.surface.Configure(a.adapter, d.device, &native.SurfaceConfiguration{
		Usage:       textureUsage(config.Usage),
		Format:      format,
		Width:       config.Width,
		Height:      config.Height,
		PresentMode: present,
		AlphaMode:   alpha,
	})
	s.config = *config
	s.device = d
	return nil
}

func (s *Surface) CurrentTexture() (hal.Texture, error) {
	if s.device == nil {
		return nil, fmt.Errorf("%w: surface is not configured", core.ErrEngineNotReady)
	}
	t, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	return &Texture{
		texture: t,
		device:  s.device,
		surface: true,
		desc: hal.TextureDescriptor{
			Label:         "surface",
			Size:          hal.Extent3D{Width: s.config.Width, Height: s.config.Height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     hal.TextureDimension2D,
			Format:        s.config.Format,
			Usage:         s.config.Usage,
		},
	}, nil
}

func (s *Surface) Present() {
	s.surface.Present()
}

func (s *Surface) Release() {
	s.surface.Release()
}
